package momentum

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientData marks an artist with fewer than two in-window
	// snapshots. Expected state, not a failure: the artist has no
	// measurable momentum yet and is excluded from cohort runs.
	ErrInsufficientData = errors.New("momentum: insufficient snapshot data")
)

// InvalidInputError reports a malformed snapshot value reaching the scorer.
// Such values should have been rejected upstream; one artist's bad data
// skips that artist only.
type InvalidInputError struct {
	ArtistID int64
	Reason   string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("momentum: artist %d: %s", e.ArtistID, e.Reason)
}

// PlatformSpotify is the primary streaming platform; its follower count
// rides along with popularity in artist snapshots.
const PlatformSpotify = "spotify"

// SecondarySignal binds one social platform to its fixed weights.
// CohortWeight applies inside the social bucket of the cohort-mode
// composite; SoloScale multiplies the raw growth in single-artist mode.
type SecondarySignal struct {
	Platform     string
	CohortWeight float64
	SoloScale    float64
}

// DefaultSecondaries returns the ordered secondary-platform tuple. The
// order and weights are a design constant shared with stored alert
// thresholds; changing them re-scores every existing alert.
func DefaultSecondaries() [3]SecondarySignal {
	return [3]SecondarySignal{
		{Platform: "instagram", CohortWeight: 0.4, SoloScale: 3},
		{Platform: "tiktok", CohortWeight: 0.3, SoloScale: 2},
		{Platform: "youtube", CohortWeight: 0.3, SoloScale: 2},
	}
}

// Composite weights, fixed for threshold compatibility.
const (
	weightStreaming = 0.4
	weightSocial    = 0.6
	primaryZScale   = 0.5

	soloPopularityDiv = 10
	soloPrimaryScale  = 5
)

// PlatformDelta reports one social platform's fractional growth inside the window.
type PlatformDelta struct {
	Platform  string
	GrowthPct float64
}

// Record is the scored view of one artist for a single computation run.
// Scores are unitless and comparable only inside the run that produced
// them; single-artist runs use a different scale than cohort runs.
type Record struct {
	ArtistID         int64
	Name             string
	Genres           []string
	Popularity       int
	Followers        decimal.Decimal
	PopularityDelta  float64
	SpotifyGrowthPct float64
	Social           [3]PlatformDelta
	Score            float64
	Sparkline        []int
}
