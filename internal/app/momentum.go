package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"artist-momentum/internal/momentum"
)

// Momentum prints one artist's cohort-normalized momentum.
func (a *App) Momentum(ctx context.Context, opts MomentumOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot compute momentum")
	}
	defer closeStore()

	engine := a.newEngine(store, store)
	rec, err := engine.ArtistMomentum(ctx, opts.ArtistID, opts.WindowDays)
	if errors.Is(err, momentum.ErrInsufficientData) {
		fmt.Fprintln(os.Stdout, "no momentum yet: fewer than two snapshots in the window")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "%s (genres: %s)\n", rec.Name, strings.Join(rec.Genres, ","))
	fmt.Fprintf(os.Stdout, "score:      %.3f\n", rec.Score)
	fmt.Fprintf(os.Stdout, "popularity: %d (Δ%+.0f)\n", rec.Popularity, rec.PopularityDelta)
	fmt.Fprintf(os.Stdout, "followers:  %s (%+.1f%%)\n", rec.Followers.String(), rec.SpotifyGrowthPct*100)
	for _, pd := range rec.Social {
		fmt.Fprintf(os.Stdout, "%-10s  %+.1f%%\n", pd.Platform+":", pd.GrowthPct*100)
	}
	fmt.Fprintf(os.Stdout, "sparkline:  %s\n", sparklineString(rec.Sparkline))
	return nil
}

func sparklineString(values []int) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, fmt.Sprintf("%d", v))
	}
	return strings.Join(parts, " ")
}
