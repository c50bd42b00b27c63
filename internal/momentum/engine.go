package momentum

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"artist-momentum/internal/storage"
)

// Config tunes the scoring engine. Secondaries is fixed at startup; the
// weights inside it pair with stored alert thresholds.
type Config struct {
	WindowDays          int
	IncludeSelfInCohort bool
	Workers             int
	Secondaries         [3]SecondarySignal
}

// Engine turns persisted snapshots into ranked momentum records.
// It is stateless: every call recomputes from the stores.
type Engine struct {
	snapshots storage.SnapshotStore
	artists   storage.ArtistStore
	cfg       Config
	logger    zerolog.Logger
}

// NewEngine constructs the scoring engine.
func NewEngine(snapshots storage.SnapshotStore, artists storage.ArtistStore, cfg Config, logger zerolog.Logger) *Engine {
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 14
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	empty := SecondarySignal{}
	if cfg.Secondaries[0] == empty {
		cfg.Secondaries = DefaultSecondaries()
	}
	return &Engine{
		snapshots: snapshots,
		artists:   artists,
		cfg:       cfg,
		logger:    logger.With().Str("component", "momentum").Logger(),
	}
}

type entry struct {
	artist storage.Artist
	deltas *signalDeltas
}

// Leaderboard computes the ranked, cohort-normalized momentum of every
// artist matching the genre filter. An empty filter means all tracked
// artists. With two or more qualifying artists each signal is z-scored
// against the cohort; a lone qualifying artist falls back to scaled raw
// deltas, which live on a different scale than cohort scores.
func (e *Engine) Leaderboard(ctx context.Context, genres []string, windowDays, limit int) ([]Record, error) {
	windowDays = e.window(windowDays)
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -windowDays)

	artists, err := e.artists.FindArtistsByGenres(ctx, genres)
	if err != nil {
		return nil, fmt.Errorf("load cohort: %w", err)
	}
	if len(artists) == 0 {
		return []Record{}, nil
	}

	snaps, socials, err := e.fetchWindow(ctx, artists, from, to)
	if err != nil {
		return nil, err
	}

	entries := e.buildEntries(artists, snaps, socials, from, to)
	scores := e.scoreEntries(entries)

	records := make([]Record, len(entries))
	for k := range entries {
		records[k] = e.newRecord(entries[k], scores[k])
	}

	// Aggregation barrier: concurrent per-artist computation never leaks
	// into ordering. Stable sort keeps input order on score ties.
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Score > records[j].Score
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// ArtistMomentum scores one artist against its actual peer cohort: every
// artist sharing at least one of its genres. With fewer than two peers
// the z-scores collapse to zero; that degraded result is still reported.
func (e *Engine) ArtistMomentum(ctx context.Context, artistID int64, windowDays int) (*Record, error) {
	windowDays = e.window(windowDays)
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -windowDays)

	artist, err := e.artists.GetArtist(ctx, artistID)
	if err != nil {
		return nil, fmt.Errorf("load artist: %w", err)
	}

	peers, err := e.artists.FindArtistsByGenres(ctx, artist.Genres)
	if err != nil {
		return nil, fmt.Errorf("load peer cohort: %w", err)
	}
	if !containsArtist(peers, artistID) {
		peers = append(peers, artist)
	}

	snaps, socials, err := e.fetchWindow(ctx, peers, from, to)
	if err != nil {
		return nil, err
	}

	self, err := computeDeltas(artist.ID, e.cfg.Secondaries, snaps[artistID], socials[artistID], from, to)
	if err != nil {
		return nil, err
	}

	cohort := peers
	if !e.cfg.IncludeSelfInCohort {
		cohort = make([]storage.Artist, 0, len(peers)-1)
		for _, p := range peers {
			if p.ID == artistID {
				continue
			}
			cohort = append(cohort, p)
		}
	}
	entries := e.buildEntries(cohort, snaps, socials, from, to)
	pops, prims, secs := collectArrays(entries)

	rec := e.newRecord(entry{artist: artist, deltas: self}, e.cohortScore(self, pops, prims, secs))
	return &rec, nil
}

func (e *Engine) window(days int) int {
	if days > 0 {
		return days
	}
	return e.cfg.WindowDays
}

func (e *Engine) fetchWindow(ctx context.Context, artists []storage.Artist, from, to time.Time) (map[int64][]storage.ArtistSnapshot, map[int64][]storage.SocialSnapshot, error) {
	ids := make([]int64, 0, len(artists))
	for _, a := range artists {
		ids = append(ids, a.ID)
	}

	snaps, err := e.snapshots.ListArtistSnapshotsBatch(ctx, ids, from, to)
	if err != nil {
		return nil, nil, fmt.Errorf("load artist snapshots: %w", err)
	}
	socials, err := e.snapshots.ListSocialSnapshotsBatch(ctx, ids, from, to)
	if err != nil {
		return nil, nil, fmt.Errorf("load social snapshots: %w", err)
	}
	return snaps, socials, nil
}

// buildEntries reduces each artist's windowed snapshots to deltas across a
// bounded worker pool. Artists without enough data or with invalid values
// are skipped, never aborting the batch. The compaction at the end runs in
// input order, so completion order cannot reorder the cohort.
func (e *Engine) buildEntries(artists []storage.Artist, snaps map[int64][]storage.ArtistSnapshot, socials map[int64][]storage.SocialSnapshot, from, to time.Time) []entry {
	results := make([]*signalDeltas, len(artists))
	sem := make(chan struct{}, e.cfg.Workers)
	var wg sync.WaitGroup

	for k := range artists {
		wg.Add(1)
		sem <- struct{}{}
		go func(k int) {
			defer wg.Done()
			defer func() { <-sem }()

			a := artists[k]
			d, err := computeDeltas(a.ID, e.cfg.Secondaries, snaps[a.ID], socials[a.ID], from, to)
			if err != nil {
				if errors.Is(err, ErrInsufficientData) {
					e.logger.Debug().Int64("artist_id", a.ID).Msg("artist has no momentum signal yet")
				} else {
					e.logger.Warn().Err(err).Int64("artist_id", a.ID).Msg("skipping artist with invalid snapshot data")
				}
				return
			}
			results[k] = d
		}(k)
	}
	wg.Wait()

	entries := make([]entry, 0, len(artists))
	for k, d := range results {
		if d == nil {
			continue
		}
		entries = append(entries, entry{artist: artists[k], deltas: d})
	}
	return entries
}

func (e *Engine) scoreEntries(entries []entry) []float64 {
	n := len(entries)
	scores := make([]float64, n)
	if n == 0 {
		return scores
	}
	if n == 1 {
		scores[0] = e.soloScore(entries[0].deltas)
		return scores
	}

	pops, prims, secs := collectArrays(entries)
	for k := range entries {
		popC, primC, secC := pops, prims, secs
		if !e.cfg.IncludeSelfInCohort {
			popC = excluding(pops, k)
			primC = excluding(prims, k)
			for i := range secC {
				secC[i] = excluding(secs[i], k)
			}
		}
		scores[k] = e.cohortScore(entries[k].deltas, popC, primC, secC)
	}
	return scores
}

// cohortScore is the fixed-weight composite over normalized signals:
// 40% streaming movement (popularity plus half-weighted spotify growth),
// 60% social growth split across the secondary platforms.
func (e *Engine) cohortScore(d *signalDeltas, pops, prims []float64, secs [3][]float64) float64 {
	zPop := zScore(d.popularity, pops)
	zPrimary := zScore(d.primary, prims)

	social := 0.0
	for i, sig := range e.cfg.Secondaries {
		social += sig.CohortWeight * zScore(d.secondary[i], secs[i])
	}
	return weightStreaming*(zPop+primaryZScale*zPrimary) + weightSocial*social
}

// soloScore scales raw deltas when there is no distribution to normalize
// against, so a lone tracked artist still gets a directionally sensible
// score. Not comparable with cohort-mode scores.
func (e *Engine) soloScore(d *signalDeltas) float64 {
	social := 0.0
	for i, sig := range e.cfg.Secondaries {
		social += sig.SoloScale * d.secondary[i]
	}
	return weightStreaming*(d.popularity/soloPopularityDiv+soloPrimaryScale*d.primary) + weightSocial*social
}

func (e *Engine) newRecord(en entry, score float64) Record {
	rec := Record{
		ArtistID:         en.artist.ID,
		Name:             en.artist.Name,
		Genres:           en.artist.Genres,
		Popularity:       en.deltas.currentPopularity,
		Followers:        en.deltas.currentFollowers,
		PopularityDelta:  en.deltas.popularity,
		SpotifyGrowthPct: en.deltas.primary,
		Score:            score,
		Sparkline:        en.deltas.sparkline,
	}
	for i, sig := range e.cfg.Secondaries {
		rec.Social[i] = PlatformDelta{Platform: sig.Platform, GrowthPct: en.deltas.secondary[i]}
	}
	return rec
}

func collectArrays(entries []entry) ([]float64, []float64, [3][]float64) {
	pops := make([]float64, len(entries))
	prims := make([]float64, len(entries))
	var secs [3][]float64
	for i := range secs {
		secs[i] = make([]float64, len(entries))
	}
	for k, en := range entries {
		pops[k] = en.deltas.popularity
		prims[k] = en.deltas.primary
		for i := range secs {
			secs[i][k] = en.deltas.secondary[i]
		}
	}
	return pops, prims, secs
}

func excluding(values []float64, k int) []float64 {
	out := make([]float64, 0, len(values)-1)
	out = append(out, values[:k]...)
	return append(out, values[k+1:]...)
}

func containsArtist(artists []storage.Artist, id int64) bool {
	for _, a := range artists {
		if a.ID == id {
			return true
		}
	}
	return false
}
