package cli

import (
	"github.com/spf13/cobra"
)

func (a *App) sdeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sde",
		Short: "Static reference data: types, systems, regions",
	}
	cmd.AddCommand(
		a.sdeTypeInfoCmd(),
		a.sdeSystemInfoCmd(),
		a.sdeRegionInfoCmd(),
		a.sdeSearchTypesCmd(),
	)
	return cmd
}

func (a *App) sdeTypeInfoCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "type-info",
		Short: "Look up an item type by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, "sde", map[string]any{"action": "type_info", "name": name})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "item type name")
	cmd.MarkFlagRequired("name")
	return cmd
}

func (a *App) sdeSystemInfoCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "system-info",
		Short: "Look up a solar system by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, "sde", map[string]any{"action": "system_info", "name": name})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "system name")
	cmd.MarkFlagRequired("name")
	return cmd
}

func (a *App) sdeRegionInfoCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "region-info",
		Short: "Summarize a region: system counts by security class",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, "sde", map[string]any{"action": "region_info", "name": name})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "region name")
	cmd.MarkFlagRequired("name")
	return cmd
}

func (a *App) sdeSearchTypesCmd() *cobra.Command {
	var query string
	var limit int
	cmd := &cobra.Command{
		Use:   "search-types",
		Short: "Substring search over the item-type index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, "sde", map[string]any{
				"action": "search_types", "query": query, "limit": limit,
			})
		},
	}
	cmd.Flags().StringVar(&query, "query", "", "name fragment")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results")
	cmd.MarkFlagRequired("query")
	return cmd
}
