// Package universe holds the immutable in-memory graph of the game
// universe: systems as vertices, warp gates as edges, plus the
// attribute arrays and membership sets every topology query relies on.
// The graph is built once at startup and never mutated afterwards, so
// queries take no locks.
package universe

import (
	"fmt"
	"sort"
	"strings"
)

// SecurityClass partitions systems by security status.
type SecurityClass string

const (
	ClassHigh SecurityClass = "high"
	ClassLow  SecurityClass = "low"
	ClassNull SecurityClass = "null"

	// HighSecThreshold is the boundary between high and low security.
	HighSecThreshold = 0.45
)

// ClassOf maps a security status to its class: HIGH >= 0.45,
// LOW in (0, 0.45), NULL <= 0.
func ClassOf(security float64) SecurityClass {
	switch {
	case security >= HighSecThreshold:
		return ClassHigh
	case security > 0:
		return ClassLow
	default:
		return ClassNull
	}
}

// Graph is the immutable universe topology. Vertices are dense indices
// 0..N-1, ordered by ascending system ID so builds are reproducible.
type Graph struct {
	Version string

	// Vertex-indexed attribute arrays.
	SystemIDs        []int32
	Names            []string
	Security         []float64
	ConstellationIDs []int32
	RegionIDs        []int32

	// Adj is the dense adjacency list; neighbor order is the natural
	// (ascending vertex) order fixed at build time, which makes BFS
	// tie-breaking deterministic.
	Adj [][]int32

	// Name maps for constellation and region IDs.
	ConstellationNames map[int32]string
	RegionNames        map[int32]string

	// Derived indexes, computed in one pass at build time.
	indexByID     map[int32]int32
	indexByFolded map[string]int32
	canonByFolded map[string]string
	regionByName  map[string]int32

	// The three security sets partition all vertices; border is the
	// subset of high vertices with at least one non-high neighbor.
	highSet   map[int32]struct{}
	lowSet    map[int32]struct{}
	nullSet   map[int32]struct{}
	borderSet map[int32]struct{}

	regionVertices map[int32][]int32

	// Per-mode edge weights, cached on first use.
	weights weightCache
}

// VertexCount returns the number of systems in the graph.
func (g *Graph) VertexCount() int { return len(g.SystemIDs) }

// IndexOfID returns the vertex index for a system ID.
func (g *Graph) IndexOfID(systemID int32) (int32, bool) {
	v, ok := g.indexByID[systemID]
	return v, ok
}

// IndexOfName resolves a system name case-insensitively.
func (g *Graph) IndexOfName(name string) (int32, bool) {
	v, ok := g.indexByFolded[strings.ToLower(strings.TrimSpace(name))]
	return v, ok
}

// CanonicalName returns the case-preserved form of a system name.
func (g *Graph) CanonicalName(name string) (string, bool) {
	n, ok := g.canonByFolded[strings.ToLower(strings.TrimSpace(name))]
	return n, ok
}

// RegionIDByName resolves a region name case-insensitively.
func (g *Graph) RegionIDByName(name string) (int32, bool) {
	id, ok := g.regionByName[strings.ToLower(strings.TrimSpace(name))]
	return id, ok
}

// RegionVertices returns the vertex indices belonging to a region.
func (g *Graph) RegionVertices(regionID int32) []int32 {
	return g.regionVertices[regionID]
}

// ClassOfVertex returns the security class of a vertex.
func (g *Graph) ClassOfVertex(v int32) SecurityClass {
	return ClassOf(g.Security[v])
}

// IsBorder reports whether a vertex is a border system: high security
// with at least one non-high neighbor.
func (g *Graph) IsBorder(v int32) bool {
	_, ok := g.borderSet[v]
	return ok
}

// BorderCount returns the number of border systems.
func (g *Graph) BorderCount() int { return len(g.borderSet) }

// ClassCounts returns the sizes of the three security sets.
func (g *Graph) ClassCounts() (high, low, null int) {
	return len(g.highSet), len(g.lowSet), len(g.nullSet)
}

// Suggest returns up to limit canonical names whose folded form starts
// with, or failing that contains, the query. Prefix matches sort first;
// ties break on canonical name.
func (g *Graph) Suggest(query string, limit int) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || limit <= 0 {
		return nil
	}
	var prefix, contains []string
	for folded, canon := range g.canonByFolded {
		if strings.HasPrefix(folded, q) {
			prefix = append(prefix, canon)
		} else if strings.Contains(folded, q) {
			contains = append(contains, canon)
		}
	}
	sort.Strings(prefix)
	sort.Strings(contains)
	out := append(prefix, contains...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// NonHighNeighbors returns the names of a vertex's neighbors that are
// not high security.
func (g *Graph) NonHighNeighbors(v int32) []string {
	var out []string
	for _, n := range g.Adj[v] {
		if g.ClassOfVertex(n) != ClassHigh {
			out = append(out, g.Names[n])
		}
	}
	return out
}

// Verify checks the structural invariants established at build time.
// Called after deserializing a snapshot; a failure means the snapshot
// is corrupt or was produced by a buggy build.
func (g *Graph) Verify() error {
	n := g.VertexCount()
	if len(g.Names) != n || len(g.Security) != n || len(g.ConstellationIDs) != n ||
		len(g.RegionIDs) != n || len(g.Adj) != n {
		return fmt.Errorf("attribute array lengths disagree with %d vertices", n)
	}
	if len(g.highSet)+len(g.lowSet)+len(g.nullSet) != n {
		return fmt.Errorf("security sets do not partition %d vertices", n)
	}
	for v := int32(0); v < int32(n); v++ {
		var set map[int32]struct{}
		switch ClassOf(g.Security[v]) {
		case ClassHigh:
			set = g.highSet
		case ClassLow:
			set = g.lowSet
		default:
			set = g.nullSet
		}
		if _, ok := set[v]; !ok {
			return fmt.Errorf("vertex %d (%s) missing from its security set", v, g.Names[v])
		}
		for _, nb := range g.Adj[v] {
			if nb < 0 || nb >= int32(n) {
				return fmt.Errorf("vertex %d has out-of-range neighbor %d", v, nb)
			}
			if !containsVertex(g.Adj[nb], v) {
				return fmt.Errorf("edge %s->%s is not bidirectional", g.Names[v], g.Names[nb])
			}
		}
	}
	for v := range g.borderSet {
		if ClassOf(g.Security[v]) != ClassHigh {
			return fmt.Errorf("border vertex %s is not high security", g.Names[v])
		}
		hasNonHigh := false
		for _, nb := range g.Adj[v] {
			if ClassOf(g.Security[nb]) != ClassHigh {
				hasNonHigh = true
				break
			}
		}
		if !hasNonHigh {
			return fmt.Errorf("border vertex %s has no non-high neighbor", g.Names[v])
		}
	}
	for regionID, verts := range g.regionVertices {
		for _, v := range verts {
			if g.RegionIDs[v] != regionID {
				return fmt.Errorf("vertex %s listed under region %d but belongs to %d",
					g.Names[v], regionID, g.RegionIDs[v])
			}
		}
	}
	return nil
}

func containsVertex(list []int32, v int32) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// buildIndexes populates every derived index from the attribute arrays.
// Shared by the JSON build and the snapshot load.
func (g *Graph) buildIndexes() {
	n := len(g.SystemIDs)
	g.indexByID = make(map[int32]int32, n)
	g.indexByFolded = make(map[string]int32, n)
	g.canonByFolded = make(map[string]string, n)
	g.highSet = make(map[int32]struct{})
	g.lowSet = make(map[int32]struct{})
	g.nullSet = make(map[int32]struct{})
	g.borderSet = make(map[int32]struct{})
	g.regionVertices = make(map[int32][]int32)

	for v := int32(0); v < int32(n); v++ {
		g.indexByID[g.SystemIDs[v]] = v
		folded := strings.ToLower(g.Names[v])
		g.indexByFolded[folded] = v
		g.canonByFolded[folded] = g.Names[v]
		switch ClassOf(g.Security[v]) {
		case ClassHigh:
			g.highSet[v] = struct{}{}
		case ClassLow:
			g.lowSet[v] = struct{}{}
		default:
			g.nullSet[v] = struct{}{}
		}
		g.regionVertices[g.RegionIDs[v]] = append(g.regionVertices[g.RegionIDs[v]], v)
	}

	for v := range g.highSet {
		for _, nb := range g.Adj[v] {
			if ClassOf(g.Security[nb]) != ClassHigh {
				g.borderSet[v] = struct{}{}
				break
			}
		}
	}

	g.regionByName = make(map[string]int32, len(g.RegionNames))
	for id, name := range g.RegionNames {
		g.regionByName[strings.ToLower(name)] = id
	}
}
