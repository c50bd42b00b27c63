package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"artist-momentum/internal/app"
)

var (
	leaderboardGenres []string
	leaderboardWindow int
	leaderboardLimit  int
)

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Rank tracked artists by momentum",
	RunE: func(cmd *cobra.Command, args []string) error {
		if leaderboardLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.LeaderboardOptions{
			Genres:     leaderboardGenres,
			WindowDays: leaderboardWindow,
			Limit:      leaderboardLimit,
		}

		return getApp().Leaderboard(cmd.Context(), opts)
	},
}

func init() {
	leaderboardCmd.Flags().StringSliceVar(&leaderboardGenres, "genres", nil, "Genre filter; empty means all tracked artists")
	leaderboardCmd.Flags().IntVar(&leaderboardWindow, "window", 0, "Window in days (0 uses scoring.window_days)")
	leaderboardCmd.Flags().IntVar(&leaderboardLimit, "limit", 20, "Number of artists to display")
}
