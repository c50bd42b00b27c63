package storage

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Alert subscription kinds.
const (
	KindScoreThreshold = "score_threshold"
	KindNewComment     = "new_comment"
	KindNewRating      = "new_rating"
)

// Artist identifies a tracked artist and the genre tags that place it in a cohort.
type Artist struct {
	ID     int64
	Name   string
	Genres []string
}

// ArtistSnapshot is one streaming-platform observation for an artist.
type ArtistSnapshot struct {
	ArtistID   int64
	CapturedAt time.Time
	Popularity int
	Followers  decimal.Decimal
}

// SocialSnapshot is one follower observation for an artist's social link.
type SocialSnapshot struct {
	ArtistID   int64
	Platform   string
	CapturedAt time.Time
	Followers  decimal.Decimal
}

// AlertSubscription 表示一个用户对某艺人的订阅。
// Threshold is set only for the score_threshold kind.
type AlertSubscription struct {
	ID        int64
	UserID    int64
	ArtistID  int64
	Kind      string
	Threshold *float64
	Active    bool
	LastFired *time.Time
	CreatedAt time.Time
}

// NotificationRecord captures a dispatched notification for auditing.
type NotificationRecord struct {
	ID        int64
	UserID    int64
	Kind      string
	Title     string
	Message   string
	Payload   json.RawMessage
	CreatedAt time.Time
}
