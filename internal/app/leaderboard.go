package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
)

// Leaderboard prints the ranked cohort momentum.
func (a *App) Leaderboard(ctx context.Context, opts LeaderboardOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot compute leaderboard")
	}
	defer closeStore()

	engine := a.newEngine(store, store)
	records, err := engine.Leaderboard(ctx, opts.Genres, opts.WindowDays, opts.Limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no artists with momentum data")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Rank\tArtist\tGenres\tScore\tPop\tΔPop\tSpotify%\tInstagram%\tTikTok%\tYouTube%")

	for i, rec := range records {
		fmt.Fprintf(
			writer,
			"%d\t%s\t%s\t%.3f\t%d\t%+.0f\t%+.1f\t%+.1f\t%+.1f\t%+.1f\n",
			i+1,
			rec.Name,
			strings.Join(rec.Genres, ","),
			rec.Score,
			rec.Popularity,
			rec.PopularityDelta,
			rec.SpotifyGrowthPct*100,
			rec.Social[0].GrowthPct*100,
			rec.Social[1].GrowthPct*100,
			rec.Social[2].GrowthPct*100,
		)
	}

	writer.Flush()
	return nil
}
