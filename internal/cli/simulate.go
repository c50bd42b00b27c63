package cli

import (
	"github.com/spf13/cobra"
)

var simulateThreshold float64

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Drive one alert evaluation over synthetic data to verify channels",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SimulateAlert(cmd.Context(), simulateThreshold)
	},
}

func init() {
	simulateCmd.Flags().Float64Var(&simulateThreshold, "threshold", 0.5, "Score threshold for the simulated subscription")
}
