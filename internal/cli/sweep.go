package cli

import (
	"time"

	"github.com/spf13/cobra"

	"artist-momentum/internal/app"
)

var sweepCoolDown time.Duration

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one threshold-alert batch and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.SweepOptions{
			CoolDown: sweepCoolDown,
		}
		return getApp().Sweep(cmd.Context(), opts)
	},
}

func init() {
	sweepCmd.Flags().DurationVar(&sweepCoolDown, "cooldown", 0, "Cool-down for this batch (0 uses alerting.batch_guard)")
}
