package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"artist-momentum/internal/app"
)

var (
	exportArtistID  int64
	exportFrom      string
	exportTo        string
	exportPNGPath   string
	exportCSVPath   string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export an artist's popularity history as CSV and/or PNG",
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportArtistID <= 0 {
			return fmt.Errorf("--artist is required")
		}

		opts := app.ExportOptions{
			ArtistID:  exportArtistID,
			PNGPath:   exportPNGPath,
			CSVPath:   exportCSVPath,
			MaxPoints: exportMaxPoints,
		}

		if exportFrom != "" {
			ts, err := time.Parse(time.RFC3339, exportFrom)
			if err != nil {
				return fmt.Errorf("parse --from: %w", err)
			}
			opts.From = &ts
		}
		if exportTo != "" {
			ts, err := time.Parse(time.RFC3339, exportTo)
			if err != nil {
				return fmt.Errorf("parse --to: %w", err)
			}
			opts.To = &ts
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().Int64Var(&exportArtistID, "artist", 0, "Artist id")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "Window start (RFC3339)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "Window end (RFC3339, defaults to now)")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path for the PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path for the CSV file")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum data points (0 uses export.max_data_points)")
}
