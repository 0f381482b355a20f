package universe

import (
	"context"
	"sort"

	"eve-tactician/internal/errs"
)

// BorderHit is one border system found near an origin.
type BorderHit struct {
	Info            SystemInfo `json:"system"`
	JumpsFromOrigin int        `json:"jumps_from_origin"`
	AdjacentLowsec  []string   `json:"adjacent_lowsec"`
}

// BordersNear returns up to limit border systems within maxJumps of
// origin, sorted by distance ascending, ties broken by name. The origin
// itself qualifies at distance 0 when it is a border system.
func (g *Graph) BordersNear(ctx context.Context, origin int32, maxJumps, limit int) ([]BorderHit, error) {
	// Expand in distance order and collect 3x the requested count
	// before truncating: every candidate closer than the cut line is
	// guaranteed in, and the sorted tail stays stable.
	budget := 3 * limit
	var hits []BorderHit

	visited := map[int32]struct{}{origin: {}}
	queue := []int32{origin}
	depth := 0
	collect := func(v int32, d int) {
		if !g.IsBorder(v) {
			return
		}
		hits = append(hits, BorderHit{
			Info:            g.Info(v),
			JumpsFromOrigin: d,
			AdjacentLowsec:  g.NonHighNeighbors(v),
		})
	}
	collect(origin, 0)

	for len(queue) > 0 && len(hits) < budget && depth < maxJumps {
		if err := ctx.Err(); err != nil {
			return nil, errs.Cancelled("routing").Wrap(err)
		}
		depth++
		next := queue[:0:0]
		for _, v := range queue {
			for _, nb := range g.Adj[v] {
				if _, seen := visited[nb]; seen {
					continue
				}
				visited[nb] = struct{}{}
				collect(nb, depth)
				next = append(next, nb)
			}
		}
		queue = next
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].JumpsFromOrigin == hits[j].JumpsFromOrigin {
			return hits[i].Info.Name < hits[j].Info.Name
		}
		return hits[i].JumpsFromOrigin < hits[j].JumpsFromOrigin
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// SearchFilter selects systems by attribute. Zero values mean "no
// constraint" except SecurityMin/SecurityMax which use the Set flags.
type SearchFilter struct {
	SecurityMin    float64
	SecurityMinSet bool
	SecurityMax    float64
	SecurityMaxSet bool
	Region         string // case-insensitive region name
	BorderOnly     bool
	Origin         int32 // valid only when MaxJumps > 0
	MaxJumps       int
	Limit          int
}

// SearchHit is one system matched by Search.
type SearchHit struct {
	Info            SystemInfo `json:"system"`
	JumpsFromOrigin *int       `json:"jumps_from_origin,omitempty"`
}

// Search filters all systems by the given attributes. With MaxJumps set
// a bounded BFS from Origin supplies both the candidate set and the
// per-system distance; otherwise every vertex is a candidate.
func (g *Graph) Search(ctx context.Context, f SearchFilter) ([]SearchHit, error) {
	var regionID int32
	regionSet := false
	if f.Region != "" {
		id, ok := g.RegionIDByName(f.Region)
		if !ok {
			return nil, errs.InvalidParameter("region", "unknown region: "+f.Region)
		}
		regionID = id
		regionSet = true
	}

	var candidates []int32
	var distByVertex map[int32]int
	if f.MaxJumps > 0 {
		dist, err := g.Distances(ctx, f.Origin, f.MaxJumps)
		if err != nil {
			return nil, err
		}
		distByVertex = dist
		candidates = make([]int32, 0, len(dist))
		for v := range dist {
			candidates = append(candidates, v)
		}
	} else if regionSet {
		candidates = g.RegionVertices(regionID)
	} else {
		candidates = make([]int32, g.VertexCount())
		for v := range candidates {
			candidates[v] = int32(v)
		}
	}

	var hits []SearchHit
	for _, v := range candidates {
		if regionSet && g.RegionIDs[v] != regionID {
			continue
		}
		sec := g.Security[v]
		if f.SecurityMinSet && sec < f.SecurityMin {
			continue
		}
		if f.SecurityMaxSet && sec > f.SecurityMax {
			continue
		}
		if f.BorderOnly && !g.IsBorder(v) {
			continue
		}
		hit := SearchHit{Info: g.Info(v)}
		if distByVertex != nil {
			d := distByVertex[v]
			hit.JumpsFromOrigin = &d
		}
		hits = append(hits, hit)
	}

	sort.Slice(hits, func(i, j int) bool {
		di, dj := 0, 0
		if hits[i].JumpsFromOrigin != nil {
			di = *hits[i].JumpsFromOrigin
		}
		if hits[j].JumpsFromOrigin != nil {
			dj = *hits[j].JumpsFromOrigin
		}
		if di == dj {
			return hits[i].Info.Name < hits[j].Info.Name
		}
		return di < dj
	})
	if f.Limit > 0 && len(hits) > f.Limit {
		hits = hits[:f.Limit]
	}
	return hits, nil
}

// NearestHit is one system found by NearestOfClass.
type NearestHit struct {
	Info            SystemInfo `json:"system"`
	JumpsFromOrigin int        `json:"jumps_from_origin"`
}

// NearestOfClass expands a BFS from origin and returns the nearest
// systems of the wanted class, distance ascending then name.
func (g *Graph) NearestOfClass(ctx context.Context, origin int32, want SecurityClass, maxJumps, limit int) ([]NearestHit, error) {
	dist, err := g.Distances(ctx, origin, maxJumps)
	if err != nil {
		return nil, err
	}
	var hits []NearestHit
	for v, d := range dist {
		if g.ClassOfVertex(v) != want {
			continue
		}
		hits = append(hits, NearestHit{Info: g.Info(v), JumpsFromOrigin: d})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].JumpsFromOrigin == hits[j].JumpsFromOrigin {
			return hits[i].Info.Name < hits[j].Info.Name
		}
		return hits[i].JumpsFromOrigin < hits[j].JumpsFromOrigin
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}
