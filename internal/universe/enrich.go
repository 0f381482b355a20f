package universe

// NeighborInfo names an adjacent system and its security class.
type NeighborInfo struct {
	Name  string        `json:"name"`
	Class SecurityClass `json:"class"`
}

// SystemInfo is the full per-system description the tool layer expands
// route vertices into.
type SystemInfo struct {
	Name            string         `json:"name"`
	SystemID        int32          `json:"system_id"`
	Security        float64        `json:"security"`
	Class           SecurityClass  `json:"class"`
	Constellation   string         `json:"constellation"`
	Region          string         `json:"region"`
	Neighbors       []NeighborInfo `json:"neighbors"`
	Border          bool           `json:"border"`
	AdjacentNonHigh []string       `json:"adjacent_non_high,omitempty"`
}

// SecuritySummary totals a route by security class.
type SecuritySummary struct {
	HighCount         int     `json:"high_count"`
	LowCount          int     `json:"low_count"`
	NullCount         int     `json:"null_count"`
	MinSecurity       float64 `json:"min_security"`
	MinSecuritySystem string  `json:"min_security_system"`
}

// Chokepoint marks a security-class transition along a route.
type Chokepoint struct {
	System     string `json:"system"`
	Transition string `json:"transition"` // entering_danger | leaving_danger
	Position   int    `json:"position"`   // index into the route
}

// DangerZone is a maximal contiguous run of non-high systems.
type DangerZone struct {
	Start          string  `json:"start"`
	End            string  `json:"end"`
	Length         int     `json:"length"`
	LowestSecurity float64 `json:"lowest_security"`
}

// RouteWarnings is non-empty only for routes that touch non-high space.
type RouteWarnings struct {
	LowCount    int      `json:"low_count"`
	NullCount   int      `json:"null_count"`
	PipeSystems []string `json:"pipe_systems,omitempty"`
	Note        string   `json:"note,omitempty"`
}

// RouteAnalysis is the enriched view of a vertex sequence.
type RouteAnalysis struct {
	Systems     []SystemInfo    `json:"systems"`
	Summary     SecuritySummary `json:"security_summary"`
	Chokepoints []Chokepoint    `json:"chokepoints,omitempty"`
	DangerZones []DangerZone    `json:"danger_zones,omitempty"`
	Warnings    *RouteWarnings  `json:"warnings,omitempty"`
}

// Info expands one vertex to its full description.
func (g *Graph) Info(v int32) SystemInfo {
	neighbors := make([]NeighborInfo, len(g.Adj[v]))
	for i, nb := range g.Adj[v] {
		neighbors[i] = NeighborInfo{Name: g.Names[nb], Class: g.ClassOfVertex(nb)}
	}
	return SystemInfo{
		Name:            g.Names[v],
		SystemID:        g.SystemIDs[v],
		Security:        g.Security[v],
		Class:           g.ClassOfVertex(v),
		Constellation:   g.ConstellationNames[g.ConstellationIDs[v]],
		Region:          g.RegionNames[g.RegionIDs[v]],
		Neighbors:       neighbors,
		Border:          g.IsBorder(v),
		AdjacentNonHigh: g.NonHighNeighbors(v),
	}
}

// Analyze enriches a route: per-system info, security summary,
// chokepoints, danger zones, and warnings for dangerous routes.
// safeRequested adds a note when safe mode could not stay in high sec.
func (g *Graph) Analyze(path []int32, safeRequested bool) RouteAnalysis {
	out := RouteAnalysis{
		Systems: make([]SystemInfo, len(path)),
		Summary: SecuritySummary{MinSecurity: 1.1},
	}

	for i, v := range path {
		out.Systems[i] = g.Info(v)
		sec := g.Security[v]
		if sec < out.Summary.MinSecurity {
			out.Summary.MinSecurity = sec
			out.Summary.MinSecuritySystem = g.Names[v]
		}
		switch g.ClassOfVertex(v) {
		case ClassHigh:
			out.Summary.HighCount++
		case ClassLow:
			out.Summary.LowCount++
		default:
			out.Summary.NullCount++
		}
	}

	// Chokepoints: entering danger names the destination system,
	// leaving danger names the source system of the transition.
	for i := 1; i < len(path); i++ {
		prevHigh := g.ClassOfVertex(path[i-1]) == ClassHigh
		curHigh := g.ClassOfVertex(path[i]) == ClassHigh
		if prevHigh && !curHigh {
			out.Chokepoints = append(out.Chokepoints, Chokepoint{
				System:     g.Names[path[i]],
				Transition: "entering_danger",
				Position:   i,
			})
		} else if !prevHigh && curHigh {
			out.Chokepoints = append(out.Chokepoints, Chokepoint{
				System:     g.Names[path[i-1]],
				Transition: "leaving_danger",
				Position:   i - 1,
			})
		}
	}

	// Danger zones: maximal contiguous non-high runs.
	for i := 0; i < len(path); {
		if g.ClassOfVertex(path[i]) == ClassHigh {
			i++
			continue
		}
		j := i
		lowest := g.Security[path[i]]
		for j+1 < len(path) && g.ClassOfVertex(path[j+1]) != ClassHigh {
			j++
			if g.Security[path[j]] < lowest {
				lowest = g.Security[path[j]]
			}
		}
		out.DangerZones = append(out.DangerZones, DangerZone{
			Start:          g.Names[path[i]],
			End:            g.Names[path[j]],
			Length:         j - i + 1,
			LowestSecurity: lowest,
		})
		i = j + 1
	}

	dangerous := out.Summary.LowCount+out.Summary.NullCount > 0
	if dangerous {
		w := &RouteWarnings{
			LowCount:  out.Summary.LowCount,
			NullCount: out.Summary.NullCount,
		}
		for _, v := range path {
			if g.ClassOfVertex(v) != ClassHigh && len(g.Adj[v]) == 2 {
				// Pipe: only two gates, elevated gatecamp risk.
				w.PipeSystems = append(w.PipeSystems, g.Names[v])
			}
		}
		if safeRequested {
			w.Note = "no fully high-security route was available"
		}
		out.Warnings = w
	}

	if len(path) == 0 {
		out.Summary.MinSecurity = 0
	}
	return out
}
