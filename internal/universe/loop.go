package universe

import (
	"context"

	"eve-tactician/internal/errs"
)

// LoopPlan is a circular patrol route over a diverse set of border
// systems, starting and ending at the origin.
type LoopPlan struct {
	Path           []int32
	BorderSequence []int32
	TotalJumps     int
	UniqueSystems  int
	BacktrackJumps int
	Efficiency     float64
}

// PlanLoop builds a circular route of roughly targetJumps that visits
// between minBorders and maxBorders spatially diverse border systems.
func (g *Graph) PlanLoop(ctx context.Context, origin int32, targetJumps, minBorders, maxBorders int) (*LoopPlan, error) {
	// Step 1: border candidates within half the target length, in
	// distance order, up to 3x the wanted maximum.
	candidates, err := g.BordersNear(ctx, origin, targetJumps/2, 3*maxBorders)
	if err != nil {
		return nil, err
	}
	if len(candidates) < minBorders {
		return nil, errs.New(errs.KindRouteNotFound,
			"only %d border systems within %d jumps of %s, need at least %d",
			len(candidates), targetJumps/2, g.Names[origin], minBorders).
			With("origin", g.Names[origin]).
			With("found", len(candidates)).
			With("reason", "not_enough_borders").
			With("suggestion", "increase target_jumps or lower min_borders")
	}

	// Pairwise distances, computed lazily: one full BFS per vertex that
	// actually participates in a comparison.
	distFrom := make(map[int32]map[int32]int)
	distances := func(v int32) (map[int32]int, error) {
		if d, ok := distFrom[v]; ok {
			return d, nil
		}
		d, err := g.Distances(ctx, v, -1)
		if err != nil {
			return nil, err
		}
		distFrom[v] = d
		return d, nil
	}
	between := func(a, b int32) (int, error) {
		d, err := distances(a)
		if err != nil {
			return 0, err
		}
		j, ok := d[b]
		if !ok {
			return 1 << 20, nil
		}
		return j, nil
	}

	// Step 2: greedy diversity selection. Seed with the nearest border,
	// then repeatedly add the candidate whose minimum distance to the
	// already-selected set is largest.
	selected := []int32{g.vertexOf(candidates[0])}
	remaining := make([]int32, 0, len(candidates)-1)
	for _, c := range candidates[1:] {
		remaining = append(remaining, g.vertexOf(c))
	}
	for len(selected) < maxBorders && len(remaining) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, errs.Cancelled("routing").Wrap(err)
		}
		bestIdx := -1
		bestScore := -1
		for i, cand := range remaining {
			minDist := 1 << 20
			for _, sel := range selected {
				j, err := between(sel, cand)
				if err != nil {
					return nil, err
				}
				if j < minDist {
					minDist = j
				}
			}
			if minDist > bestScore {
				bestScore = minDist
				bestIdx = i
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	// Step 3: nearest-neighbor tour over origin plus the selection,
	// seeded at origin. Closure back to origin happens in expansion.
	tour := []int32{origin}
	unvisited := append([]int32(nil), selected...)
	cur := origin
	for len(unvisited) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, errs.Cancelled("routing").Wrap(err)
		}
		bestIdx := 0
		bestJumps := 1 << 20
		for i, cand := range unvisited {
			j, err := between(cur, cand)
			if err != nil {
				return nil, err
			}
			if j < bestJumps || (j == bestJumps && g.Names[cand] < g.Names[unvisited[bestIdx]]) {
				bestJumps = j
				bestIdx = i
			}
		}
		cur = unvisited[bestIdx]
		tour = append(tour, cur)
		unvisited = append(unvisited[:bestIdx], unvisited[bestIdx+1:]...)
	}

	// Step 4: expand the tour into a full route by concatenating
	// shortest paths, closing back to origin. Shared endpoints between
	// segments are not duplicated.
	path := []int32{origin}
	stops := append(tour[1:], origin)
	prev := origin
	for _, stop := range stops {
		seg, err := g.Route(ctx, prev, stop, ModeShortest)
		if err != nil {
			return nil, err
		}
		path = append(path, seg[1:]...)
		prev = stop
	}

	unique := make(map[int32]struct{}, len(path))
	for _, v := range path {
		unique[v] = struct{}{}
	}
	total := len(path) - 1
	plan := &LoopPlan{
		Path:           path,
		BorderSequence: selected,
		TotalJumps:     total,
		UniqueSystems:  len(unique),
		BacktrackJumps: total - len(unique),
	}
	if total > 0 {
		plan.Efficiency = float64(len(unique)) / float64(total)
	}
	return plan, nil
}

func (g *Graph) vertexOf(h BorderHit) int32 {
	v, _ := g.IndexOfID(h.Info.SystemID)
	return v
}
