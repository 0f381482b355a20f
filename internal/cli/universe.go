package cli

import (
	"github.com/spf13/cobra"
)

func (a *App) universeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "universe",
		Short: "Topology queries: routing, search, loops, live activity",
	}
	cmd.AddCommand(
		a.universeRouteCmd(),
		a.universeSystemsCmd(),
		a.universeBordersCmd(),
		a.universeSearchCmd(),
		a.universeLoopCmd(),
		a.universeAnalyzeCmd(),
		a.universeNearestCmd(),
		a.universeActivityCmd(),
		a.universeHotspotsCmd(),
		a.universeGatecampRiskCmd(),
		a.universeFWFrontlinesCmd(),
		a.universeLocalAreaCmd(),
	)
	return cmd
}

func (a *App) universeRouteCmd() *cobra.Command {
	var origin, destination, mode string
	cmd := &cobra.Command{
		Use:   "route",
		Short: "Plot a route between two systems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, "universe", map[string]any{
				"action": "route", "origin": origin, "destination": destination, "mode": mode,
			})
		},
	}
	cmd.Flags().StringVar(&origin, "origin", "", "origin system")
	cmd.Flags().StringVar(&destination, "destination", "", "destination system")
	cmd.Flags().StringVar(&mode, "mode", "shortest", "shortest, safe, or unsafe")
	cmd.MarkFlagRequired("origin")
	cmd.MarkFlagRequired("destination")
	return cmd
}

func (a *App) universeSystemsCmd() *cobra.Command {
	var systems []string
	cmd := &cobra.Command{
		Use:   "systems",
		Short: "Describe one or more systems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, "universe", map[string]any{"action": "systems", "systems": systems})
		},
	}
	cmd.Flags().StringSliceVar(&systems, "system", nil, "system name (repeatable)")
	cmd.MarkFlagRequired("system")
	return cmd
}

func (a *App) universeBordersCmd() *cobra.Command {
	var origin string
	var maxJumps, limit int
	cmd := &cobra.Command{
		Use:   "borders",
		Short: "Find border systems near an origin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, "universe", map[string]any{
				"action": "borders", "origin": origin, "max_jumps": maxJumps, "limit": limit,
			})
		},
	}
	cmd.Flags().StringVar(&origin, "origin", "", "origin system")
	cmd.Flags().IntVar(&maxJumps, "max-jumps", 0, "search radius in jumps")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results")
	cmd.MarkFlagRequired("origin")
	return cmd
}

func (a *App) universeSearchCmd() *cobra.Command {
	var origin, region string
	var maxJumps, limit int
	var secMin, secMax float64
	var borderOnly bool
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Filter systems by security, region, and distance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := map[string]any{"action": "search", "border_only": borderOnly, "limit": limit}
			if origin != "" {
				req["origin"] = origin
			}
			if region != "" {
				req["region"] = region
			}
			if maxJumps > 0 {
				req["max_jumps"] = maxJumps
			}
			if cmd.Flags().Changed("security-min") {
				req["security_min"] = secMin
			}
			if cmd.Flags().Changed("security-max") {
				req["security_max"] = secMax
			}
			return a.run(cmd, "universe", req)
		},
	}
	cmd.Flags().StringVar(&origin, "origin", "", "origin system (required with --max-jumps)")
	cmd.Flags().StringVar(&region, "region", "", "region name")
	cmd.Flags().IntVar(&maxJumps, "max-jumps", 0, "bound results by distance from origin")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results")
	cmd.Flags().Float64Var(&secMin, "security-min", 0, "minimum security (inclusive)")
	cmd.Flags().Float64Var(&secMax, "security-max", 0, "maximum security (inclusive)")
	cmd.Flags().BoolVar(&borderOnly, "border-only", false, "border systems only")
	return cmd
}

func (a *App) universeLoopCmd() *cobra.Command {
	var origin string
	var targetJumps, minBorders, maxBorders int
	cmd := &cobra.Command{
		Use:   "loop",
		Short: "Plan a circular patrol over diverse border systems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, "universe", map[string]any{
				"action": "loop", "origin": origin, "target_jumps": targetJumps,
				"min_borders": minBorders, "max_borders": maxBorders,
			})
		},
	}
	cmd.Flags().StringVar(&origin, "origin", "", "origin system")
	cmd.Flags().IntVar(&targetJumps, "target-jumps", 0, "approximate loop length")
	cmd.Flags().IntVar(&minBorders, "min-borders", 0, "minimum distinct border systems")
	cmd.Flags().IntVar(&maxBorders, "max-borders", 0, "maximum distinct border systems")
	cmd.MarkFlagRequired("origin")
	return cmd
}

func (a *App) universeAnalyzeCmd() *cobra.Command {
	var systems []string
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Risk-analyze an explicit gate-to-gate route",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, "universe", map[string]any{"action": "analyze", "systems": systems})
		},
	}
	cmd.Flags().StringSliceVar(&systems, "system", nil, "route system in order (repeatable)")
	cmd.MarkFlagRequired("system")
	return cmd
}

func (a *App) universeNearestCmd() *cobra.Command {
	var origin, class string
	var maxJumps, limit int
	cmd := &cobra.Command{
		Use:   "nearest",
		Short: "Find the nearest systems of a security class",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, "universe", map[string]any{
				"action": "nearest", "origin": origin, "security_class": class,
				"max_jumps": maxJumps, "limit": limit,
			})
		},
	}
	cmd.Flags().StringVar(&origin, "origin", "", "origin system")
	cmd.Flags().StringVar(&class, "class", "", "high, low, or null")
	cmd.Flags().IntVar(&maxJumps, "max-jumps", 0, "search radius in jumps")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results")
	cmd.MarkFlagRequired("origin")
	cmd.MarkFlagRequired("class")
	return cmd
}

func (a *App) universeActivityCmd() *cobra.Command {
	var systems []string
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Hourly kill and jump activity for named systems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, "universe", map[string]any{"action": "activity", "systems": systems})
		},
	}
	cmd.Flags().StringSliceVar(&systems, "system", nil, "system name (repeatable)")
	cmd.MarkFlagRequired("system")
	return cmd
}

func (a *App) universeHotspotsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "hotspots",
		Short: "Rank systems by player-kill activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, "universe", map[string]any{"action": "hotspots", "limit": limit})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results")
	return cmd
}

func (a *App) universeGatecampRiskCmd() *cobra.Command {
	var origin, destination, mode string
	cmd := &cobra.Command{
		Use:   "gatecamp-risk",
		Short: "Score gatecamp risk along a route",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, "universe", map[string]any{
				"action": "gatecamp_risk", "origin": origin, "destination": destination, "mode": mode,
			})
		},
	}
	cmd.Flags().StringVar(&origin, "origin", "", "origin system")
	cmd.Flags().StringVar(&destination, "destination", "", "destination system")
	cmd.Flags().StringVar(&mode, "mode", "shortest", "shortest, safe, or unsafe")
	cmd.MarkFlagRequired("origin")
	cmd.MarkFlagRequired("destination")
	return cmd
}

func (a *App) universeFWFrontlinesCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "fw-frontlines",
		Short: "List contested faction-warfare systems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, "universe", map[string]any{"action": "fw_frontlines", "limit": limit})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results")
	return cmd
}

func (a *App) universeLocalAreaCmd() *cobra.Command {
	var origin string
	var maxJumps int
	cmd := &cobra.Command{
		Use:   "local-area",
		Short: "Activity picture of everything within a few jumps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, "universe", map[string]any{
				"action": "local_area", "origin": origin, "max_jumps": maxJumps,
			})
		},
	}
	cmd.Flags().StringVar(&origin, "origin", "", "origin system")
	cmd.Flags().IntVar(&maxJumps, "max-jumps", 0, "radius in jumps")
	cmd.MarkFlagRequired("origin")
	return cmd
}
