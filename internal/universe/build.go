package universe

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"eve-tactician/internal/logger"
)

// sourceFile is the JSON cache the graph is built from. Systems carry
// their attributes; gates are unordered system-ID pairs.
type sourceFile struct {
	Version string         `json:"version"`
	Systems []sourceSystem `json:"systems"`
	Gates   [][2]int32     `json:"gates"`
}

type sourceSystem struct {
	ID                int32   `json:"id"`
	Name              string  `json:"name"`
	Security          float64 `json:"security"`
	ConstellationID   int32   `json:"constellation_id"`
	ConstellationName string  `json:"constellation_name"`
	RegionID          int32   `json:"region_id"`
	RegionName        string  `json:"region_name"`
}

// BuildFromJSON parses the source JSON cache and assembles the graph.
// Vertices are sorted by system ID, edges deduplicated by canonical
// (min,max) ordering, and all membership sets computed in one pass.
func BuildFromJSON(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph source: %w", err)
	}
	var src sourceFile
	if err := json.Unmarshal(data, &src); err != nil {
		return nil, fmt.Errorf("parse graph source: %w", err)
	}
	return build(&src)
}

func build(src *sourceFile) (*Graph, error) {
	if len(src.Systems) == 0 {
		return nil, fmt.Errorf("graph source has no systems")
	}

	systems := make([]sourceSystem, len(src.Systems))
	copy(systems, src.Systems)
	sort.Slice(systems, func(i, j int) bool { return systems[i].ID < systems[j].ID })

	n := len(systems)
	g := &Graph{
		Version:            src.Version,
		SystemIDs:          make([]int32, n),
		Names:              make([]string, n),
		Security:           make([]float64, n),
		ConstellationIDs:   make([]int32, n),
		RegionIDs:          make([]int32, n),
		Adj:                make([][]int32, n),
		ConstellationNames: make(map[int32]string),
		RegionNames:        make(map[int32]string),
	}
	if g.Version == "" {
		g.Version = "unversioned"
	}

	indexByID := make(map[int32]int32, n)
	for i, s := range systems {
		if s.Name == "" {
			return nil, fmt.Errorf("system %d has no name", s.ID)
		}
		if _, dup := indexByID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate system id %d", s.ID)
		}
		v := int32(i)
		indexByID[s.ID] = v
		g.SystemIDs[v] = s.ID
		g.Names[v] = s.Name
		g.Security[v] = s.Security
		g.ConstellationIDs[v] = s.ConstellationID
		g.RegionIDs[v] = s.RegionID
		if s.ConstellationName != "" {
			g.ConstellationNames[s.ConstellationID] = s.ConstellationName
		}
		if s.RegionName != "" {
			g.RegionNames[s.RegionID] = s.RegionName
		}
	}

	// Deduplicate gates by canonical (min,max) vertex ordering. Gates
	// referencing unknown systems are dropped with a warning; the source
	// sometimes carries wormhole-only connections we do not model.
	type edge struct{ a, b int32 }
	seen := make(map[edge]struct{}, len(src.Gates))
	dropped := 0
	for _, gate := range src.Gates {
		va, okA := indexByID[gate[0]]
		vb, okB := indexByID[gate[1]]
		if !okA || !okB || va == vb {
			dropped++
			continue
		}
		e := edge{min32(va, vb), max32(va, vb)}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
	}
	if dropped > 0 {
		logger.Warn("Universe", fmt.Sprintf("dropped %d gates referencing unknown systems", dropped))
	}

	for e := range seen {
		g.Adj[e.a] = append(g.Adj[e.a], e.b)
		g.Adj[e.b] = append(g.Adj[e.b], e.a)
	}
	// Fix neighbor order so routing ties break the same way every build.
	for v := range g.Adj {
		sort.Slice(g.Adj[v], func(i, j int) bool { return g.Adj[v][i] < g.Adj[v][j] })
	}

	g.buildIndexes()
	if err := g.Verify(); err != nil {
		return nil, fmt.Errorf("graph build verification: %w", err)
	}

	logger.Success("Universe", fmt.Sprintf("built graph: %d systems, %d gates, %d border",
		n, len(seen), len(g.borderSet)))
	return g, nil
}

func min32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}
