package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"eve-tactician/internal/errs"
)

func (a *App) marketCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "market",
		Short: "Market intelligence: prices, orders, valuation, spreads",
	}
	cmd.AddCommand(
		a.marketPricesCmd(),
		a.marketOrdersCmd(),
		a.marketValuationCmd(),
		a.marketSpreadCmd(),
		a.marketHistoryCmd(),
		a.marketFindNearbyCmd(),
	)
	return cmd
}

func (a *App) marketPricesCmd() *cobra.Command {
	var region string
	var items []string
	cmd := &cobra.Command{
		Use:   "prices",
		Short: "Buy/sell price summaries for one or more items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, "market", map[string]any{
				"action": "prices", "region": region, "items": items,
			})
		},
	}
	cmd.Flags().StringVar(&region, "region", "", "region or hub-system name")
	cmd.Flags().StringSliceVar(&items, "item", nil, "item name (repeatable)")
	cmd.MarkFlagRequired("region")
	cmd.MarkFlagRequired("item")
	return cmd
}

func (a *App) marketOrdersCmd() *cobra.Command {
	var region, item string
	var limit int
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Top live orders for an item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, "market", map[string]any{
				"action": "orders", "region": region, "item": item, "limit": limit,
			})
		},
	}
	cmd.Flags().StringVar(&region, "region", "", "region or hub-system name")
	cmd.Flags().StringVar(&item, "item", "", "item name")
	cmd.Flags().IntVar(&limit, "limit", 0, "orders per side")
	cmd.MarkFlagRequired("region")
	cmd.MarkFlagRequired("item")
	return cmd
}

func (a *App) marketValuationCmd() *cobra.Command {
	var region, side, file string
	cmd := &cobra.Command{
		Use:   "valuation",
		Short: "Value an item list pasted from the game client",
		Long:  "Reads the paste from --file, or stdin when --file is omitted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paste, err := readInput(file)
			if err != nil {
				return err
			}
			return a.run(cmd, "market", map[string]any{
				"action": "valuation", "region": region, "side": side, "paste": paste,
			})
		},
	}
	cmd.Flags().StringVar(&region, "region", "", "region or hub-system name")
	cmd.Flags().StringVar(&side, "side", "sell", "price side: buy or sell")
	cmd.Flags().StringVar(&file, "file", "", "paste file (default stdin)")
	cmd.MarkFlagRequired("region")
	return cmd
}

func (a *App) marketSpreadCmd() *cobra.Command {
	var region, item string
	cmd := &cobra.Command{
		Use:   "spread",
		Short: "Bid/ask spread for an item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, "market", map[string]any{
				"action": "spread", "region": region, "item": item,
			})
		},
	}
	cmd.Flags().StringVar(&region, "region", "", "region or hub-system name")
	cmd.Flags().StringVar(&item, "item", "", "item name")
	cmd.MarkFlagRequired("region")
	cmd.MarkFlagRequired("item")
	return cmd
}

func (a *App) marketHistoryCmd() *cobra.Command {
	var region, item string
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Daily price history for an item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, "market", map[string]any{
				"action": "history", "region": region, "item": item, "limit": limit,
			})
		},
	}
	cmd.Flags().StringVar(&region, "region", "", "region or hub-system name")
	cmd.Flags().StringVar(&item, "item", "", "item name")
	cmd.Flags().IntVar(&limit, "limit", 0, "most recent days to return")
	cmd.MarkFlagRequired("region")
	cmd.MarkFlagRequired("item")
	return cmd
}

func (a *App) marketFindNearbyCmd() *cobra.Command {
	var origin string
	cmd := &cobra.Command{
		Use:   "find-nearby",
		Short: "Rank trade hubs by jump distance from an origin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, "market", map[string]any{
				"action": "find_nearby", "origin": origin,
			})
		},
	}
	cmd.Flags().StringVar(&origin, "origin", "", "origin system")
	cmd.MarkFlagRequired("origin")
	return cmd
}

// readInput returns the contents of path, or stdin when path is empty.
func readInput(path string) (string, error) {
	if path == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", errs.Internal("read stdin: %v", err).Wrap(err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errs.InvalidParameter("file", fmt.Sprintf("cannot read %s: %v", path, err))
	}
	return string(data), nil
}
