package universe

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eve-tactician/internal/errs"
)

// testGraph builds a small universe with every security class, two
// border systems (Ceru, Fyri) and one pipe (Gato):
//
//	Adra(0.9) - Bivo(0.8) - Ceru(0.5) - Dala(0.3) - Ezon(-0.1)
//	   |           |                                   |
//	Hesa(0.7) - Fyri(0.6) ---------- Gato(0.2) --------+
func testGraph(t *testing.T) *Graph {
	t.Helper()
	src := &sourceFile{
		Version: "test-1",
		Systems: []sourceSystem{
			{ID: 100, Name: "Adra", Security: 0.9, ConstellationID: 1, ConstellationName: "Kimo", RegionID: 10, RegionName: "Essence"},
			{ID: 101, Name: "Bivo", Security: 0.8, ConstellationID: 1, ConstellationName: "Kimo", RegionID: 10, RegionName: "Essence"},
			{ID: 102, Name: "Ceru", Security: 0.5, ConstellationID: 1, ConstellationName: "Kimo", RegionID: 10, RegionName: "Essence"},
			{ID: 103, Name: "Dala", Security: 0.3, ConstellationID: 2, ConstellationName: "Vale", RegionID: 11, RegionName: "Placid"},
			{ID: 104, Name: "Ezon", Security: -0.1, ConstellationID: 2, ConstellationName: "Vale", RegionID: 11, RegionName: "Placid"},
			{ID: 105, Name: "Fyri", Security: 0.6, ConstellationID: 1, ConstellationName: "Kimo", RegionID: 10, RegionName: "Essence"},
			{ID: 106, Name: "Gato", Security: 0.2, ConstellationID: 2, ConstellationName: "Vale", RegionID: 11, RegionName: "Placid"},
			{ID: 107, Name: "Hesa", Security: 0.7, ConstellationID: 1, ConstellationName: "Kimo", RegionID: 10, RegionName: "Essence"},
		},
		Gates: [][2]int32{
			{100, 101}, {101, 102}, {102, 103}, {103, 104},
			{101, 105}, {105, 106}, {106, 104},
			{100, 107}, {107, 105},
			{101, 100}, // duplicate, reversed: must deduplicate
		},
	}
	g, err := build(src)
	require.NoError(t, err)
	return g
}

func vtx(t *testing.T, g *Graph, name string) int32 {
	t.Helper()
	v, ok := g.IndexOfName(name)
	require.True(t, ok, "system %s", name)
	return v
}

func TestBuild_Invariants(t *testing.T) {
	g := testGraph(t)

	require.Equal(t, 8, g.VertexCount())
	high, low, null := g.ClassCounts()
	assert.Equal(t, g.VertexCount(), high+low+null, "security sets partition all vertices")
	assert.Equal(t, 5, high)
	assert.Equal(t, 2, low)
	assert.Equal(t, 1, null)

	// Duplicate gate deduplicated: Adra has exactly 2 neighbors.
	adra := vtx(t, g, "Adra")
	assert.Len(t, g.Adj[adra], 2)

	// Every edge bidirectional, checked by Verify.
	require.NoError(t, g.Verify())

	// Border systems: high with at least one non-high neighbor.
	assert.True(t, g.IsBorder(vtx(t, g, "Ceru")))
	assert.True(t, g.IsBorder(vtx(t, g, "Fyri")))
	assert.False(t, g.IsBorder(vtx(t, g, "Adra")))
	assert.False(t, g.IsBorder(vtx(t, g, "Dala")), "low sec is never border")
	assert.Equal(t, 2, g.BorderCount())
}

func TestBuild_VerticesSortedBySystemID(t *testing.T) {
	g := testGraph(t)
	for i := 1; i < g.VertexCount(); i++ {
		assert.Less(t, g.SystemIDs[i-1], g.SystemIDs[i])
	}
}

func TestNameResolution_CaseInsensitiveAndIdempotent(t *testing.T) {
	g := testGraph(t)

	v1, ok := g.IndexOfName("adra")
	require.True(t, ok)
	v2, ok := g.IndexOfName("ADRA")
	require.True(t, ok)
	assert.Equal(t, v1, v2)

	canon, ok := g.CanonicalName("  aDrA ")
	require.True(t, ok)
	assert.Equal(t, "Adra", canon)

	// resolve(resolve(n)) == resolve(n)
	again, ok := g.CanonicalName(canon)
	require.True(t, ok)
	assert.Equal(t, canon, again)
}

func TestSuggest_PrefixBeforeSubstring(t *testing.T) {
	g := testGraph(t)
	// "a" prefixes Adra; Dala, Gato and Hesa merely contain it.
	got := g.Suggest("a", 3)
	assert.Equal(t, []string{"Adra", "Dala", "Gato"}, got)

	assert.Empty(t, g.Suggest("zzz", 3))
	assert.Empty(t, g.Suggest("", 3))
}

func TestRoute_ShortestMatchesBFSDistance(t *testing.T) {
	g := testGraph(t)
	ctx := context.Background()
	adra, ezon := vtx(t, g, "Adra"), vtx(t, g, "Ezon")

	path, err := g.Route(ctx, adra, ezon, ModeShortest)
	require.NoError(t, err)

	jumps, err := g.JumpsBetween(ctx, adra, ezon)
	require.NoError(t, err)
	assert.Equal(t, jumps, len(path)-1)
	assert.Equal(t, adra, path[0])
	assert.Equal(t, ezon, path[len(path)-1])
}

func TestRoute_ReversedSameLength(t *testing.T) {
	g := testGraph(t)
	ctx := context.Background()
	for _, pair := range [][2]string{{"Adra", "Ezon"}, {"Ceru", "Gato"}, {"Hesa", "Dala"}} {
		a, b := vtx(t, g, pair[0]), vtx(t, g, pair[1])
		fwd, err := g.Route(ctx, a, b, ModeShortest)
		require.NoError(t, err)
		rev, err := g.Route(ctx, b, a, ModeShortest)
		require.NoError(t, err)
		assert.Equal(t, len(fwd), len(rev), "%s<->%s", pair[0], pair[1])
	}
}

func TestRoute_SafeStaysHighWhenPossible(t *testing.T) {
	g := testGraph(t)
	ctx := context.Background()
	// Adra -> Fyri has all-high routes; safe mode must pick one.
	path, err := g.Route(ctx, vtx(t, g, "Adra"), vtx(t, g, "Fyri"), ModeSafe)
	require.NoError(t, err)
	for _, v := range path {
		assert.Equal(t, ClassHigh, g.ClassOfVertex(v), "safe route went through %s", g.Names[v])
	}
}

func TestRoute_SafeWithinFourTimesShortest(t *testing.T) {
	g := testGraph(t)
	ctx := context.Background()
	names := []string{"Adra", "Bivo", "Ceru", "Dala", "Ezon", "Fyri", "Gato", "Hesa"}
	for _, from := range names {
		for _, to := range names {
			a, b := vtx(t, g, from), vtx(t, g, to)
			short, err := g.Route(ctx, a, b, ModeShortest)
			require.NoError(t, err)
			safe, err := g.Route(ctx, a, b, ModeSafe)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(short)-1, len(safe)-1)
			assert.LessOrEqual(t, len(safe)-1, 4*(len(short)-1)+1, "%s->%s", from, to)
		}
	}
}

func TestRoute_UnsafePrefersDanger(t *testing.T) {
	g := testGraph(t)
	ctx := context.Background()
	// Adra -> Ezon: unsafe should route through null/low space rather
	// than maximizing high-sec coverage.
	path, err := g.Route(ctx, vtx(t, g, "Adra"), vtx(t, g, "Ezon"), ModeUnsafe)
	require.NoError(t, err)
	nonHigh := 0
	for _, v := range path {
		if g.ClassOfVertex(v) != ClassHigh {
			nonHigh++
		}
	}
	assert.Greater(t, nonHigh, 0)
}

func TestRoute_Unreachable(t *testing.T) {
	src := &sourceFile{
		Systems: []sourceSystem{
			{ID: 1, Name: "Alpha", Security: 0.9, RegionID: 1, RegionName: "R"},
			{ID: 2, Name: "Beta", Security: 0.9, RegionID: 1, RegionName: "R"},
		},
		Gates: nil,
	}
	g, err := build(src)
	require.NoError(t, err)

	_, err = g.Route(context.Background(), 0, 1, ModeShortest)
	require.Error(t, err)
	assert.Equal(t, errs.KindRouteNotFound, errs.KindOf(err))
	var te *errs.Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "no_path", te.Data["reason"])
}

func TestRoute_Cancelled(t *testing.T) {
	g := testGraph(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Route(ctx, vtx(t, g, "Adra"), vtx(t, g, "Ezon"), ModeShortest)
	require.Error(t, err)
	assert.Equal(t, errs.KindCancelled, errs.KindOf(err))
}

func TestSnapshot_RoundTrip(t *testing.T) {
	g := testGraph(t)
	path := filepath.Join(t.TempDir(), "universe.graph")
	require.NoError(t, g.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, g.Version, loaded.Version)
	assert.Equal(t, g.SystemIDs, loaded.SystemIDs)
	assert.Equal(t, g.Names, loaded.Names)
	assert.Equal(t, g.Security, loaded.Security)
	assert.Equal(t, g.Adj, loaded.Adj)
	assert.Equal(t, g.RegionNames, loaded.RegionNames)
	assert.Equal(t, g.BorderCount(), loaded.BorderCount())
	require.NoError(t, loaded.Verify())
}

func TestSnapshot_RejectsUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.graph")
	// A gob-era snapshot starts with different bytes entirely.
	require.NoError(t, os.WriteFile(path, []byte("\x1f\x8b legacy gob payload"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "legacy")
}

func TestSnapshot_TruncatedFails(t *testing.T) {
	g := testGraph(t)
	path := filepath.Join(t.TempDir(), "universe.graph")
	require.NoError(t, g.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)/2], 0o644))

	_, err = Load(path)
	require.Error(t, err)
}
