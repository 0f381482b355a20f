package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"eve-tactician/internal/cli"
	"eve-tactician/internal/config"
	"eve-tactician/internal/esi"
	"eve-tactician/internal/fitting"
	"eve-tactician/internal/logger"
	"eve-tactician/internal/market"
	"eve-tactician/internal/resolver"
	"eve-tactician/internal/store"
	"eve-tactician/internal/tools"
	"eve-tactician/internal/universe"
	"eve-tactician/internal/volatile"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.FromEnv()
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	logger.Banner(version)

	os.MkdirAll(cfg.DataDir, 0o755)

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		logger.Error("STORE", fmt.Sprintf("Failed to open database: %v", err))
		return 1
	}
	defer st.Close()

	// build and seed run before a graph exists; everything else needs it.
	graph, err := loadGraph(cfg)
	if err != nil {
		if !offlineCommand(os.Args[1:]) {
			logger.Error("GRAPH", fmt.Sprintf("Universe graph unavailable: %v", err))
			return 1
		}
		logger.Warn("GRAPH", fmt.Sprintf("Universe graph not loaded: %v", err))
	} else {
		logger.Stats("systems", graph.VertexCount())
		logger.Stats("borders", graph.BorderCount())
	}

	client := esi.NewClient(cfg.ESIBaseURL, cfg.UserAgent(), cfg.HTTPTimeout)

	engine := fitting.NewEngine(nil)
	attrPath := filepath.Join(cfg.DataDir, "type_attributes.json")
	if attrs, err := fitting.LoadAttributes(attrPath); err == nil {
		engine = fitting.NewEngine(attrs)
		logger.Info("FITTING", fmt.Sprintf("Loaded %d attribute entries", len(attrs)))
	} else if !errors.Is(err, os.ErrNotExist) {
		logger.Warn("FITTING", fmt.Sprintf("Attribute table unusable, stats degraded: %v", err))
	}

	dispatcher := tools.New(tools.Deps{
		Graph:    graph,
		Volatile: volatile.New(client, cfg.BulkTimeout),
		Market:   market.New(client, st, cfg.AggregatorBaseURL),
		Store:    st,
		Resolver: resolver.New(client, st),
		Fitting:  engine,
	})

	app := &cli.App{
		Dispatcher: dispatcher,
		Store:      st,
		Config:     cfg,
	}
	return app.Execute(os.Args[1:])
}

// offlineCommand reports whether the invoked subcommand works without
// a universe graph.
func offlineCommand(args []string) bool {
	for _, arg := range args {
		if len(arg) > 0 && arg[0] == '-' {
			continue
		}
		return arg == "build" || arg == "seed"
	}
	return true
}

// loadGraph prefers the binary snapshot and falls back to building from
// the source JSON, saving the result for next start.
func loadGraph(cfg *config.Config) (*universe.Graph, error) {
	g, err := universe.Load(cfg.GraphPath)
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		logger.Warn("GRAPH", fmt.Sprintf("Snapshot unreadable, rebuilding: %v", err))
	}

	g, buildErr := universe.BuildFromJSON(cfg.GraphSourcePath)
	if buildErr != nil {
		return nil, buildErr
	}
	if saveErr := g.Save(cfg.GraphPath); saveErr != nil {
		logger.Warn("GRAPH", fmt.Sprintf("Snapshot not saved: %v", saveErr))
	}
	return g, nil
}
