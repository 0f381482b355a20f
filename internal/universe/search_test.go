package universe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eve-tactician/internal/errs"
)

func TestBordersNear_SortedByDistanceThenName(t *testing.T) {
	g := testGraph(t)
	hits, err := g.BordersNear(context.Background(), vtx(t, g, "Adra"), 3, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, "Ceru", hits[0].Info.Name)
	assert.Equal(t, 2, hits[0].JumpsFromOrigin)
	assert.Equal(t, []string{"Dala"}, hits[0].AdjacentLowsec)

	assert.Equal(t, "Fyri", hits[1].Info.Name)
	assert.Equal(t, 2, hits[1].JumpsFromOrigin)
	assert.Equal(t, []string{"Gato"}, hits[1].AdjacentLowsec)
}

func TestBordersNear_OriginIncludedAtZero(t *testing.T) {
	g := testGraph(t)
	hits, err := g.BordersNear(context.Background(), vtx(t, g, "Ceru"), 1, 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "Ceru", hits[0].Info.Name)
	assert.Equal(t, 0, hits[0].JumpsFromOrigin)
}

func TestBordersNear_LimitTruncates(t *testing.T) {
	g := testGraph(t)
	hits, err := g.BordersNear(context.Background(), vtx(t, g, "Adra"), 5, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Ceru", hits[0].Info.Name, "nearest border survives the cut")
}

func TestSearch_RegionFilter(t *testing.T) {
	g := testGraph(t)
	hits, err := g.Search(context.Background(), SearchFilter{Region: "placid"})
	require.NoError(t, err)
	names := hitNames(hits)
	assert.ElementsMatch(t, []string{"Dala", "Ezon", "Gato"}, names)
}

func TestSearch_UnknownRegion(t *testing.T) {
	g := testGraph(t)
	_, err := g.Search(context.Background(), SearchFilter{Region: "Nowhere"})
	require.Error(t, err)
	assert.Equal(t, errs.KindInvalidParameter, errs.KindOf(err))
}

func TestSearch_SecurityBandAndBorder(t *testing.T) {
	g := testGraph(t)
	ctx := context.Background()

	hits, err := g.Search(ctx, SearchFilter{SecurityMin: 0.5, SecurityMinSet: true})
	require.NoError(t, err)
	assert.Len(t, hits, 5)

	hits, err = g.Search(ctx, SearchFilter{BorderOnly: true})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Ceru", "Fyri"}, hitNames(hits))
}

func TestSearch_BoundedByOrigin(t *testing.T) {
	g := testGraph(t)
	hits, err := g.Search(context.Background(), SearchFilter{
		Origin:   vtx(t, g, "Adra"),
		MaxJumps: 2,
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Adra", "Bivo", "Hesa", "Ceru", "Fyri"}, hitNames(hits))
	for _, h := range hits {
		require.NotNil(t, h.JumpsFromOrigin)
		assert.LessOrEqual(t, *h.JumpsFromOrigin, 2)
	}
	// Distance ascending: origin first.
	assert.Equal(t, "Adra", hits[0].Info.Name)
}

func TestNearestOfClass(t *testing.T) {
	g := testGraph(t)
	hits, err := g.NearestOfClass(context.Background(), vtx(t, g, "Adra"), ClassNull, 10, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Ezon", hits[0].Info.Name)
	assert.Equal(t, 4, hits[0].JumpsFromOrigin)

	hits, err = g.NearestOfClass(context.Background(), vtx(t, g, "Adra"), ClassLow, 10, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 3, hits[0].JumpsFromOrigin)
}

func hitNames(hits []SearchHit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Info.Name
	}
	return out
}

func TestAnalyze_DangerousRoute(t *testing.T) {
	g := testGraph(t)
	path := []int32{
		vtx(t, g, "Adra"), vtx(t, g, "Bivo"), vtx(t, g, "Ceru"),
		vtx(t, g, "Dala"), vtx(t, g, "Ezon"),
	}
	a := g.Analyze(path, true)

	assert.Equal(t, 3, a.Summary.HighCount)
	assert.Equal(t, 1, a.Summary.LowCount)
	assert.Equal(t, 1, a.Summary.NullCount)
	assert.InDelta(t, -0.1, a.Summary.MinSecurity, 1e-9)
	assert.Equal(t, "Ezon", a.Summary.MinSecuritySystem)

	require.Len(t, a.Chokepoints, 1)
	assert.Equal(t, "Dala", a.Chokepoints[0].System)
	assert.Equal(t, "entering_danger", a.Chokepoints[0].Transition)
	assert.Equal(t, 3, a.Chokepoints[0].Position)

	require.Len(t, a.DangerZones, 1)
	assert.Equal(t, "Dala", a.DangerZones[0].Start)
	assert.Equal(t, "Ezon", a.DangerZones[0].End)
	assert.Equal(t, 2, a.DangerZones[0].Length)
	assert.InDelta(t, -0.1, a.DangerZones[0].LowestSecurity, 1e-9)

	require.NotNil(t, a.Warnings)
	assert.Equal(t, 1, a.Warnings.LowCount)
	assert.Equal(t, 1, a.Warnings.NullCount)
	assert.Contains(t, a.Warnings.PipeSystems, "Dala")
	assert.NotEmpty(t, a.Warnings.Note, "safe fallback is called out")
}

func TestAnalyze_AllHighRoute(t *testing.T) {
	g := testGraph(t)
	path := []int32{vtx(t, g, "Adra"), vtx(t, g, "Bivo"), vtx(t, g, "Ceru")}
	a := g.Analyze(path, false)

	assert.Equal(t, 3, a.Summary.HighCount)
	assert.Zero(t, a.Summary.LowCount)
	assert.Empty(t, a.Chokepoints)
	assert.Empty(t, a.DangerZones)
	assert.Nil(t, a.Warnings)
}

func TestAnalyze_LeavingDangerNamesSource(t *testing.T) {
	g := testGraph(t)
	path := []int32{vtx(t, g, "Dala"), vtx(t, g, "Ceru"), vtx(t, g, "Bivo")}
	a := g.Analyze(path, false)
	require.Len(t, a.Chokepoints, 1)
	assert.Equal(t, "Dala", a.Chokepoints[0].System)
	assert.Equal(t, "leaving_danger", a.Chokepoints[0].Transition)
	assert.Equal(t, 0, a.Chokepoints[0].Position)
}

func TestPlanLoop_ClosedAndAccounted(t *testing.T) {
	g := testGraph(t)
	origin := vtx(t, g, "Adra")
	plan, err := g.PlanLoop(context.Background(), origin, 10, 2, 3)
	require.NoError(t, err)

	require.NotEmpty(t, plan.Path)
	assert.Equal(t, origin, plan.Path[0])
	assert.Equal(t, origin, plan.Path[len(plan.Path)-1])

	assert.GreaterOrEqual(t, len(plan.BorderSequence), 2)
	assert.LessOrEqual(t, len(plan.BorderSequence), 3)
	for _, b := range plan.BorderSequence {
		assert.True(t, g.IsBorder(b))
		assert.Contains(t, plan.Path, b)
	}

	assert.Equal(t, len(plan.Path)-1, plan.TotalJumps)
	assert.Equal(t, plan.TotalJumps-plan.UniqueSystems, plan.BacktrackJumps)
	assert.InDelta(t, float64(plan.UniqueSystems)/float64(plan.TotalJumps), plan.Efficiency, 1e-9)
}

func TestPlanLoop_NotEnoughBorders(t *testing.T) {
	g := testGraph(t)
	_, err := g.PlanLoop(context.Background(), vtx(t, g, "Ezon"), 2, 2, 5)
	require.Error(t, err)
	assert.Equal(t, errs.KindRouteNotFound, errs.KindOf(err))
	var te *errs.Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "not_enough_borders", te.Data["reason"])
}
