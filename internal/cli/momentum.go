package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"artist-momentum/internal/app"
)

var (
	momentumArtistID int64
	momentumWindow   int
)

var momentumCmd = &cobra.Command{
	Use:   "momentum",
	Short: "Show one artist's cohort-normalized momentum",
	RunE: func(cmd *cobra.Command, args []string) error {
		if momentumArtistID <= 0 {
			return fmt.Errorf("--artist is required")
		}

		opts := app.MomentumOptions{
			ArtistID:   momentumArtistID,
			WindowDays: momentumWindow,
		}

		return getApp().Momentum(cmd.Context(), opts)
	},
}

func init() {
	momentumCmd.Flags().Int64Var(&momentumArtistID, "artist", 0, "Artist id")
	momentumCmd.Flags().IntVar(&momentumWindow, "window", 0, "Window in days (0 uses scoring.window_days)")
}
