package universe

import (
	"container/heap"
	"context"
	"sync"

	"eve-tactician/internal/errs"
)

// Mode selects the routing weight function.
type Mode string

const (
	ModeShortest Mode = "shortest"
	ModeSafe     Mode = "safe"
	ModeUnsafe   Mode = "unsafe"
)

// ValidMode reports whether s names a routing mode.
func ValidMode(s string) bool {
	switch Mode(s) {
	case ModeShortest, ModeSafe, ModeUnsafe:
		return true
	}
	return false
}

// Safe-mode weights are heuristic and empirically tuned; changing them
// requires a calibration exercise documented in release notes.
func safeWeight(src, dst SecurityClass) int {
	switch dst {
	case ClassHigh:
		return 1
	case ClassLow:
		if src == ClassHigh {
			return 50 // penalty for first entry into low
		}
		return 10
	default:
		return 100
	}
}

func unsafeWeight(_, dst SecurityClass) int {
	switch dst {
	case ClassNull:
		return 1
	case ClassLow:
		return 2
	default:
		return 10
	}
}

// weightCache holds the per-edge weights for each weighted mode,
// computed once per graph.
type weightCache struct {
	safeOnce   sync.Once
	unsafeOnce sync.Once
	safe       [][]int
	unsafe     [][]int
}

func (g *Graph) edgeWeights(mode Mode) [][]int {
	switch mode {
	case ModeSafe:
		g.weights.safeOnce.Do(func() {
			g.weights.safe = g.computeWeights(safeWeight)
		})
		return g.weights.safe
	case ModeUnsafe:
		g.weights.unsafeOnce.Do(func() {
			g.weights.unsafe = g.computeWeights(unsafeWeight)
		})
		return g.weights.unsafe
	}
	return nil
}

func (g *Graph) computeWeights(fn func(src, dst SecurityClass) int) [][]int {
	out := make([][]int, len(g.Adj))
	for v := range g.Adj {
		src := g.ClassOfVertex(int32(v))
		w := make([]int, len(g.Adj[v]))
		for i, nb := range g.Adj[v] {
			w[i] = fn(src, g.ClassOfVertex(nb))
		}
		out[v] = w
	}
	return out
}

// Route returns the vertex sequence from origin to destination under
// the given mode, origin and destination included. Unreachable pairs
// surface RouteNotFound.
func (g *Graph) Route(ctx context.Context, origin, destination int32, mode Mode) ([]int32, error) {
	if origin == destination {
		return []int32{origin}, nil
	}
	var path []int32
	var err error
	if mode == ModeShortest {
		path, err = g.bfsPath(ctx, origin, destination)
	} else {
		path, err = g.dijkstraPath(ctx, origin, destination, mode)
	}
	if err != nil {
		return nil, err
	}
	if path == nil {
		return nil, errs.RouteNotFound(g.Names[origin], g.Names[destination])
	}
	return path, nil
}

// bfsPath runs an unweighted BFS. Neighbor order is the build-time
// adjacency order, so ties resolve deterministically.
func (g *Graph) bfsPath(ctx context.Context, origin, destination int32) ([]int32, error) {
	parent := make(map[int32]int32, 256)
	parent[origin] = origin
	queue := []int32{origin}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, errs.Cancelled("routing").Wrap(err)
		}
		next := queue[:0:0]
		for _, v := range queue {
			for _, nb := range g.Adj[v] {
				if _, seen := parent[nb]; seen {
					continue
				}
				parent[nb] = v
				if nb == destination {
					return unwindPath(parent, origin, destination), nil
				}
				next = append(next, nb)
			}
		}
		queue = next
	}
	return nil, nil
}

// dijkstraPath runs a weighted shortest path with the mode's cached
// edge weights. Strict-improvement relaxation keeps paths deterministic.
func (g *Graph) dijkstraPath(ctx context.Context, origin, destination int32, mode Mode) ([]int32, error) {
	weights := g.edgeWeights(mode)
	if weights == nil {
		return nil, errs.Internal("no weights for mode %q", mode)
	}

	dist := make(map[int32]int, 256)
	parent := make(map[int32]int32, 256)
	dist[origin] = 0
	parent[origin] = origin

	pq := &vertexQueue{{vertex: origin, dist: 0}}
	heap.Init(pq)

	steps := 0
	for pq.Len() > 0 {
		item := heap.Pop(pq).(vertexItem)
		if item.vertex == destination {
			return unwindPath(parent, origin, destination), nil
		}
		if d, ok := dist[item.vertex]; ok && item.dist > d {
			continue
		}
		steps++
		if steps%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, errs.Cancelled("routing").Wrap(err)
			}
		}
		for i, nb := range g.Adj[item.vertex] {
			nd := item.dist + weights[item.vertex][i]
			if d, ok := dist[nb]; !ok || nd < d {
				dist[nb] = nd
				parent[nb] = item.vertex
				heap.Push(pq, vertexItem{vertex: nb, dist: nd})
			}
		}
	}
	return nil, nil
}

func unwindPath(parent map[int32]int32, origin, destination int32) []int32 {
	var rev []int32
	for v := destination; ; v = parent[v] {
		rev = append(rev, v)
		if v == origin {
			break
		}
	}
	path := make([]int32, len(rev))
	for i, v := range rev {
		path[len(rev)-1-i] = v
	}
	return path
}

// Distances returns BFS distances from origin, bounded by maxJumps
// (maxJumps < 0 means unbounded). Includes origin at distance 0.
func (g *Graph) Distances(ctx context.Context, origin int32, maxJumps int) (map[int32]int, error) {
	dist := map[int32]int{origin: 0}
	queue := []int32{origin}
	depth := 0

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, errs.Cancelled("routing").Wrap(err)
		}
		if maxJumps >= 0 && depth >= maxJumps {
			break
		}
		depth++
		next := queue[:0:0]
		for _, v := range queue {
			for _, nb := range g.Adj[v] {
				if _, seen := dist[nb]; seen {
					continue
				}
				dist[nb] = depth
				next = append(next, nb)
			}
		}
		queue = next
	}
	return dist, nil
}

// JumpsBetween returns the BFS jump count between two vertices,
// or -1 when disconnected.
func (g *Graph) JumpsBetween(ctx context.Context, a, b int32) (int, error) {
	if a == b {
		return 0, nil
	}
	path, err := g.bfsPath(ctx, a, b)
	if err != nil {
		return 0, err
	}
	if path == nil {
		return -1, nil
	}
	return len(path) - 1, nil
}

// Priority queue for Dijkstra. Ties break on lower vertex index so the
// pop order, and therefore the chosen path, is stable.
type vertexItem struct {
	vertex int32
	dist   int
}

type vertexQueue []vertexItem

func (pq vertexQueue) Len() int { return len(pq) }
func (pq vertexQueue) Less(i, j int) bool {
	if pq[i].dist == pq[j].dist {
		return pq[i].vertex < pq[j].vertex
	}
	return pq[i].dist < pq[j].dist
}
func (pq vertexQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *vertexQueue) Push(x interface{}) { *pq = append(*pq, x.(vertexItem)) }
func (pq *vertexQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}
