package momentum

import (
	"time"

	"github.com/shopspring/decimal"

	"artist-momentum/internal/storage"
)

// signalDeltas holds the raw first-to-last movements of every tracked
// signal for one artist, plus the current values carried into the Record.
type signalDeltas struct {
	popularity float64
	primary    float64
	secondary  [3]float64

	currentPopularity int
	currentFollowers  decimal.Decimal
	sparkline         []int
}

// growthPct computes fractional follower growth between two observations.
// A zero (or negative) baseline reports zero: with no prior followers
// there is no measurable rate, even when the current count is large.
func growthPct(first, last decimal.Decimal) float64 {
	if first.Sign() <= 0 {
		return 0
	}
	return last.Sub(first).Div(first).InexactFloat64()
}

// clipWindow keeps the snapshots inside [from, to]. Input order is
// preserved, so equal timestamps resolve to the later row.
func clipWindow(snaps []storage.ArtistSnapshot, from, to time.Time) []storage.ArtistSnapshot {
	in := make([]storage.ArtistSnapshot, 0, len(snaps))
	for _, s := range snaps {
		if s.CapturedAt.Before(from) || s.CapturedAt.After(to) {
			continue
		}
		in = append(in, s)
	}
	return in
}

func clipSocialWindow(snaps []storage.SocialSnapshot, from, to time.Time) []storage.SocialSnapshot {
	in := make([]storage.SocialSnapshot, 0, len(snaps))
	for _, s := range snaps {
		if s.CapturedAt.Before(from) || s.CapturedAt.After(to) {
			continue
		}
		in = append(in, s)
	}
	return in
}

func validateArtistSnapshot(artistID int64, s storage.ArtistSnapshot) error {
	if s.CapturedAt.IsZero() {
		return &InvalidInputError{ArtistID: artistID, Reason: "snapshot without timestamp"}
	}
	if s.Popularity < 0 || s.Popularity > 100 {
		return &InvalidInputError{ArtistID: artistID, Reason: "popularity outside 0-100"}
	}
	if s.Followers.Sign() < 0 {
		return &InvalidInputError{ArtistID: artistID, Reason: "negative follower count"}
	}
	return nil
}

func validateSocialSnapshot(artistID int64, s storage.SocialSnapshot) error {
	if s.CapturedAt.IsZero() {
		return &InvalidInputError{ArtistID: artistID, Reason: "social snapshot without timestamp"}
	}
	if s.Followers.Sign() < 0 {
		return &InvalidInputError{ArtistID: artistID, Reason: "negative social follower count"}
	}
	return nil
}

// computeDeltas reduces one artist's windowed snapshots to per-signal deltas.
// The policy is earliest-vs-latest available sample, which tolerates
// irregular scraping cadence. Fewer than two streaming snapshots means the
// artist has no signal yet and returns ErrInsufficientData. A social
// platform with missing or one-point data contributes exactly 0, which
// still participates in cohort distributions.
func computeDeltas(artistID int64, secondaries [3]SecondarySignal, snaps []storage.ArtistSnapshot, socials []storage.SocialSnapshot, from, to time.Time) (*signalDeltas, error) {
	for _, s := range snaps {
		if err := validateArtistSnapshot(artistID, s); err != nil {
			return nil, err
		}
	}
	for _, s := range socials {
		if err := validateSocialSnapshot(artistID, s); err != nil {
			return nil, err
		}
	}

	in := clipWindow(snaps, from, to)
	if len(in) < 2 {
		return nil, ErrInsufficientData
	}

	first, last := in[0], in[len(in)-1]
	d := &signalDeltas{
		popularity:        float64(last.Popularity - first.Popularity),
		primary:           growthPct(first.Followers, last.Followers),
		currentPopularity: last.Popularity,
		currentFollowers:  last.Followers,
		sparkline:         make([]int, 0, len(in)),
	}
	for _, s := range in {
		d.sparkline = append(d.sparkline, s.Popularity)
	}

	byPlatform := make(map[string][]storage.SocialSnapshot)
	for _, s := range clipSocialWindow(socials, from, to) {
		byPlatform[s.Platform] = append(byPlatform[s.Platform], s)
	}
	for i, sig := range secondaries {
		series := byPlatform[sig.Platform]
		if len(series) < 2 {
			continue
		}
		d.secondary[i] = growthPct(series[0].Followers, series[len(series)-1].Followers)
	}

	return d, nil
}
