package cli

import (
	"github.com/spf13/cobra"
)

func (a *App) fittingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fitting",
		Short: "Parse a ship fit and compute its aggregate stats",
	}
	cmd.AddCommand(a.fittingCalculateStatsCmd())
	return cmd
}

func (a *App) fittingCalculateStatsCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "calculate-stats",
		Short: "EHP, DPS, capacitor, and fitting-resource totals for a fit",
		Long:  "Reads the fit text from --file, or stdin when --file is omitted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fit, err := readInput(file)
			if err != nil {
				return err
			}
			return a.run(cmd, "fitting", map[string]any{
				"action": "calculate_stats", "fit": fit,
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "fit text file (default stdin)")
	return cmd
}
