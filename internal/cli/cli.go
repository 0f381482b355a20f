// Package cli is the command-line surface: one binary whose subcommands
// mirror the tool actions, writing the tool's JSON response to stdout.
// Exit codes: 0 success, 1 unrecoverable error, 2 upstream unavailable
// with no cached fallback, 3 integrity failure.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"eve-tactician/internal/api"
	"eve-tactician/internal/config"
	"eve-tactician/internal/errs"
	"eve-tactician/internal/logger"
	"eve-tactician/internal/store"
	"eve-tactician/internal/tools"
	"eve-tactician/internal/universe"
)

// App bundles what the commands need. Out defaults to stdout.
type App struct {
	Dispatcher *tools.Dispatcher
	Store      *store.Store
	Config     *config.Config
	Out        io.Writer
}

// ExitCode maps an error onto the documented process exit codes.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch errs.KindOf(err) {
	case errs.KindSourceUnavailable, errs.KindRateLimited:
		return 2
	case errs.KindIntegrity:
		return 3
	default:
		return 1
	}
}

// Execute runs the root command and returns the process exit code.
func (a *App) Execute(args []string) int {
	if a.Out == nil {
		a.Out = os.Stdout
	}
	root := a.Root()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		return ExitCode(err)
	}
	return 0
}

// Root assembles the command tree.
func (a *App) Root() *cobra.Command {
	root := &cobra.Command{
		Use:           "eve-tactician",
		Short:         "Read-only tactical data service: universe routing, market intelligence, activity caches",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		a.universeCmd(),
		a.marketCmd(),
		a.sdeCmd(),
		a.skillsCmd(),
		a.fittingCmd(),
		a.statusCmd(),
		a.buildCmd(),
		a.seedCmd(),
		a.serveCmd(),
	)
	return root
}

// run dispatches one tool call and prints the JSON response. Errors
// are printed in the wire shape and returned for the exit code.
func (a *App) run(cmd *cobra.Command, tool string, req map[string]any) error {
	params, err := json.Marshal(req)
	if err != nil {
		return errs.Internal("encode request: %v", err)
	}
	res, callErr := a.Dispatcher.Call(cmd.Context(), tool, params)
	if callErr != nil {
		fmt.Fprintln(a.Out, string(tools.EncodeError(callErr)))
		return callErr
	}
	return a.print(res)
}

func (a *App) print(v any) error {
	enc := json.NewEncoder(a.Out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errs.Internal("encode response: %v", err)
	}
	return nil
}

func (a *App) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report component health and cache ages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, "status", map[string]any{})
		},
	}
}

func (a *App) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP tool server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.Config.ListenAddr
			}
			if addr == "" {
				addr = ":8457"
			}
			srv := api.NewServer(a.Dispatcher)
			logger.Info("Serve", "tool server listening on "+addr)
			if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
				return errs.Internal("tool server: %v", err).Wrap(err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "bind address (default from TACTICIAN_LISTEN or :8457)")
	return cmd
}

func (a *App) buildCmd() *cobra.Command {
	var source, out string
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the universe graph snapshot from the source JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if source == "" {
				source = a.Config.GraphSourcePath
			}
			if out == "" {
				out = a.Config.GraphPath
			}
			g, err := universe.BuildFromJSON(source)
			if err != nil {
				return errs.Internal("graph build: %v", err).Wrap(err)
			}
			if err := g.Save(out); err != nil {
				return errs.Internal("graph save: %v", err).Wrap(err)
			}
			high, low, null := g.ClassCounts()
			return a.print(map[string]any{
				"systems":    g.VertexCount(),
				"borders":    g.BorderCount(),
				"high_count": high,
				"low_count":  low,
				"null_count": null,
				"snapshot":   out,
			})
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "graph source JSON (default from config)")
	cmd.Flags().StringVar(&out, "out", "", "snapshot output path (default from config)")
	return cmd
}

func (a *App) seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Bulk-load reference data into the persistent store",
	}
	cmd.AddCommand(a.seedAggregatesCmd(), a.seedTypesCmd())
	return cmd
}

// verifySeed checks the file against the pinned manifest before any
// row is applied.
func (a *App) verifySeed(path string) error {
	manifest, err := store.LoadManifest(a.Config.ManifestPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			manifest = store.Manifest{}
		} else {
			return errs.Internal("load manifest: %v", err).Wrap(err)
		}
	}
	return manifest.VerifyFile(path, a.Config.AllowUnpinnedData)
}

func (a *App) seedAggregatesCmd() *cobra.Command {
	var csvPath string
	cmd := &cobra.Command{
		Use:   "aggregates",
		Short: "Seed bulk price aggregates from CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.verifySeed(csvPath); err != nil {
				fmt.Fprintln(a.Out, string(tools.EncodeError(err)))
				return err
			}
			res, err := a.Store.SeedAggregatesCSV(cmd.Context(), csvPath)
			if err != nil {
				return errs.AsError(err)
			}
			return a.print(res)
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "aggregates CSV path")
	cmd.MarkFlagRequired("csv")
	return cmd
}

func (a *App) seedTypesCmd() *cobra.Command {
	var csvPath string
	cmd := &cobra.Command{
		Use:   "types",
		Short: "Seed the item-type index from CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.verifySeed(csvPath); err != nil {
				fmt.Fprintln(a.Out, string(tools.EncodeError(err)))
				return err
			}
			res, err := a.Store.SeedTypesCSV(cmd.Context(), csvPath)
			if err != nil {
				return errs.AsError(err)
			}
			return a.print(res)
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "types CSV path")
	cmd.MarkFlagRequired("csv")
	return cmd
}
