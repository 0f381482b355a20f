// Package config holds process configuration sourced from the environment.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all runtime settings. Values come from environment
// variables with documented defaults; nothing here is persisted.
type Config struct {
	// DataDir is the root for all on-disk state.
	DataDir string
	// DatabasePath is the embedded SQLite database file.
	DatabasePath string
	// GraphPath is the serialized universe graph snapshot.
	GraphPath string
	// GraphSourcePath is the JSON cache the graph is built from.
	GraphSourcePath string
	// ManifestPath lists pinned SHA-256 checksums for external blobs.
	ManifestPath string

	// ESIBaseURL is the upstream API root.
	ESIBaseURL string
	// AggregatorBaseURL is the pre-aggregated market statistics host.
	AggregatorBaseURL string
	// UserAgentContact is appended to the User-Agent header so upstream
	// operators can reach us.
	UserAgentContact string

	// AllowUnpinnedData permits seed loads without a manifest entry.
	// Development only; every use is logged at warning level.
	AllowUnpinnedData bool

	// LogLevel is one of debug, info, warn, error.
	LogLevel string
	// LogJSON switches from console to JSON log output.
	LogJSON bool

	// HTTPTimeout bounds a single upstream call including retries.
	HTTPTimeout time.Duration
	// BulkTimeout bounds galaxy-wide bulk calls (kills, jumps, faction warfare).
	BulkTimeout time.Duration

	// ListenAddr is the tool server bind address ("" disables the server).
	ListenAddr string
}

// FromEnv builds a Config from environment variables, applying defaults
// relative to the working directory.
func FromEnv() *Config {
	wd, _ := os.Getwd()
	dataDir := envOrDefault("TACTICIAN_DATA_DIR", filepath.Join(wd, "data"))

	return &Config{
		DataDir:           dataDir,
		DatabasePath:      envOrDefault("TACTICIAN_DB_PATH", filepath.Join(dataDir, "tactician.db")),
		GraphPath:         envOrDefault("TACTICIAN_GRAPH_PATH", filepath.Join(dataDir, "universe.graph")),
		GraphSourcePath:   envOrDefault("TACTICIAN_GRAPH_SOURCE", filepath.Join(dataDir, "universe.json")),
		ManifestPath:      envOrDefault("TACTICIAN_MANIFEST_PATH", filepath.Join(dataDir, "manifest.sha256")),
		ESIBaseURL:        envOrDefault("TACTICIAN_ESI_URL", "https://esi.evetech.net/latest"),
		AggregatorBaseURL: envOrDefault("TACTICIAN_AGGREGATOR_URL", "https://market.fuzzwork.co.uk"),
		UserAgentContact:  envOrDefault("TACTICIAN_CONTACT", "ops@localhost"),
		AllowUnpinnedData: envBool("TACTICIAN_ALLOW_UNPINNED", false),
		LogLevel:          envOrDefault("TACTICIAN_LOG_LEVEL", "info"),
		LogJSON:           envBool("TACTICIAN_LOG_JSON", false),
		HTTPTimeout:       envDuration("TACTICIAN_HTTP_TIMEOUT", 10*time.Second),
		BulkTimeout:       envDuration("TACTICIAN_BULK_TIMEOUT", 30*time.Second),
		ListenAddr:        envOrDefault("TACTICIAN_LISTEN", ""),
	}
}

// UserAgent builds the stable client identity sent with every upstream request.
func (c *Config) UserAgent() string {
	return "eve-tactician/1.0 (" + c.UserAgentContact + ")"
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
