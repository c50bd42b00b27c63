package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"artist-momentum/internal/alerting"
	"artist-momentum/internal/momentum"
	"artist-momentum/internal/storage"
)

// SimulateAlert 用合成的快照数据驱动一次完整的阈值告警流程，
// 用于验证通道配置，不读写数据库。
func (a *App) SimulateAlert(ctx context.Context, threshold float64) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}

	channels := a.newChannels()
	if len(channels) == 0 {
		return errors.New("未配置任何告警通道")
	}

	fixture := newSimFixture(threshold, a.Config.Scoring.WindowDays)
	engine := momentum.NewEngine(fixture, fixture, momentum.Config{
		WindowDays:          a.Config.Scoring.WindowDays,
		IncludeSelfInCohort: a.Config.Scoring.IncludeSelfInCohort,
		Workers:             a.Config.Scoring.Workers,
		Secondaries:         momentum.DefaultSecondaries(),
	}, a.Logger)
	evaluator := alerting.NewEvaluator(fixture, nil, engine, channels, a.Config.Scoring.WindowDays, a.Logger)

	result, err := evaluator.EvaluateScoreAlerts(ctx, a.Config.Alerting.ScoreCooldown)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "simulated sweep: checked %d, triggered %d\n", result.Checked, result.Triggered)
	return nil
}

// simFixture serves a two-artist synthetic cohort: one surging act and one
// flat peer, plus a single threshold subscription on the surging act.
type simFixture struct {
	artists []storage.Artist
	snaps   map[int64][]storage.ArtistSnapshot
	socials map[int64][]storage.SocialSnapshot
	sub     storage.AlertSubscription
}

func newSimFixture(threshold float64, windowDays int) *simFixture {
	now := time.Now().UTC()
	start := now.AddDate(0, 0, -windowDays+1)

	f := &simFixture{
		artists: []storage.Artist{
			{ID: 1, Name: "Surge Act", Genres: []string{"indie"}},
			{ID: 2, Name: "Flat Act", Genres: []string{"indie"}},
		},
		snaps:   make(map[int64][]storage.ArtistSnapshot),
		socials: make(map[int64][]storage.SocialSnapshot),
		sub: storage.AlertSubscription{
			ID:        1,
			UserID:    7,
			ArtistID:  1,
			Kind:      storage.KindScoreThreshold,
			Threshold: &threshold,
			Active:    true,
			CreatedAt: now,
		},
	}

	f.snaps[1] = []storage.ArtistSnapshot{
		{ArtistID: 1, CapturedAt: start, Popularity: 50, Followers: decimal.NewFromInt(10000)},
		{ArtistID: 1, CapturedAt: now, Popularity: 62, Followers: decimal.NewFromInt(13000)},
	}
	f.snaps[2] = []storage.ArtistSnapshot{
		{ArtistID: 2, CapturedAt: start, Popularity: 40, Followers: decimal.NewFromInt(8000)},
		{ArtistID: 2, CapturedAt: now, Popularity: 40, Followers: decimal.NewFromInt(8000)},
	}
	for _, platform := range []string{"instagram", "tiktok", "youtube"} {
		f.socials[1] = append(f.socials[1],
			storage.SocialSnapshot{ArtistID: 1, Platform: platform, CapturedAt: start, Followers: decimal.NewFromInt(5000)},
			storage.SocialSnapshot{ArtistID: 1, Platform: platform, CapturedAt: now, Followers: decimal.NewFromInt(6000)},
		)
		f.socials[2] = append(f.socials[2],
			storage.SocialSnapshot{ArtistID: 2, Platform: platform, CapturedAt: start, Followers: decimal.NewFromInt(5000)},
			storage.SocialSnapshot{ArtistID: 2, Platform: platform, CapturedAt: now, Followers: decimal.NewFromInt(5000)},
		)
	}

	return f
}

func (f *simFixture) FindArtistsByGenres(ctx context.Context, genres []string) ([]storage.Artist, error) {
	return f.artists, nil
}

func (f *simFixture) GetArtist(ctx context.Context, id int64) (storage.Artist, error) {
	for _, a := range f.artists {
		if a.ID == id {
			return a, nil
		}
	}
	return storage.Artist{}, storage.ErrArtistNotFound
}

func (f *simFixture) ListArtistSnapshots(ctx context.Context, artistID int64, from, to time.Time) ([]storage.ArtistSnapshot, error) {
	return f.snaps[artistID], nil
}

func (f *simFixture) ListArtistSnapshotsBatch(ctx context.Context, artistIDs []int64, from, to time.Time) (map[int64][]storage.ArtistSnapshot, error) {
	return f.snaps, nil
}

func (f *simFixture) ListSocialSnapshots(ctx context.Context, artistID int64, from, to time.Time) ([]storage.SocialSnapshot, error) {
	return f.socials[artistID], nil
}

func (f *simFixture) ListSocialSnapshotsBatch(ctx context.Context, artistIDs []int64, from, to time.Time) (map[int64][]storage.SocialSnapshot, error) {
	return f.socials, nil
}

func (f *simFixture) ListActiveSubscriptions(ctx context.Context, kind string, artistID int64) ([]storage.AlertSubscription, error) {
	if kind != f.sub.Kind {
		return nil, nil
	}
	return []storage.AlertSubscription{f.sub}, nil
}

func (f *simFixture) UpdateLastFired(ctx context.Context, subscriptionID int64, firedAt time.Time) error {
	f.sub.LastFired = &firedAt
	return nil
}

var _ storage.SnapshotStore = (*simFixture)(nil)
var _ storage.ArtistStore = (*simFixture)(nil)
var _ storage.SubscriptionStore = (*simFixture)(nil)
