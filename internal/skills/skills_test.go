package skills

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eve-tactician/internal/errs"
)

func TestCumulativeSP_Rank1Table(t *testing.T) {
	want := []int64{0, 250, 1415, 8000, 45255, 256000}
	for level, sp := range want {
		assert.Equal(t, sp, CumulativeSP(1, level), "level %d", level)
	}
}

func TestCumulativeSP_ScalesWithRank(t *testing.T) {
	assert.Equal(t, int64(1280000), CumulativeSP(5, 5))
	assert.Equal(t, int64(2000), CumulativeSP(8, 1))
}

func TestTrainingTime(t *testing.T) {
	res, err := TrainingTime(TrainingRequest{Skill: "Navigation", Rank: 1, CurrentLevel: 0, TargetLevel: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(250), res.SPRequired)
	assert.Equal(t, 30.0, res.SPPerMinute) // default 20/20 attributes
	assert.Equal(t, int64(500), res.Seconds)

	res, err = TrainingTime(TrainingRequest{Rank: 1, CurrentLevel: 4, TargetLevel: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(256000-45255), res.SPRequired)
	assert.Equal(t, int64(256000), res.SPTotal)
}

func TestTrainingTime_AttributesSpeedUp(t *testing.T) {
	slow, err := TrainingTime(TrainingRequest{Rank: 3, TargetLevel: 4, Attributes: Attributes{Primary: 17, Secondary: 17}})
	require.NoError(t, err)
	fast, err := TrainingTime(TrainingRequest{Rank: 3, TargetLevel: 4, Attributes: Attributes{Primary: 35, Secondary: 35}})
	require.NoError(t, err)
	assert.Less(t, fast.Seconds, slow.Seconds)
	assert.Equal(t, slow.SPRequired, fast.SPRequired)
}

func TestTrainingTime_Validation(t *testing.T) {
	cases := []struct {
		name  string
		req   TrainingRequest
		param string
	}{
		{"rank too low", TrainingRequest{Rank: 0, TargetLevel: 1}, "rank"},
		{"rank too high", TrainingRequest{Rank: 17, TargetLevel: 1}, "rank"},
		{"current at cap", TrainingRequest{Rank: 1, CurrentLevel: 5, TargetLevel: 5}, "current_level"},
		{"target below current", TrainingRequest{Rank: 1, CurrentLevel: 3, TargetLevel: 3}, "target_level"},
		{"target above cap", TrainingRequest{Rank: 1, TargetLevel: 6}, "target_level"},
		{"attribute out of range", TrainingRequest{Rank: 1, TargetLevel: 1, Attributes: Attributes{Primary: 50, Secondary: 20}}, "primary"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := TrainingTime(tc.req)
			require.Error(t, err)
			assert.Equal(t, errs.KindInvalidParameter, errs.KindOf(err))
			assert.Equal(t, tc.param, errs.AsError(err).Data["parameter"])
		})
	}
}

func TestPlan(t *testing.T) {
	res, err := Plan([]TrainingRequest{
		{Skill: "Navigation", Rank: 1, TargetLevel: 1},
		{Skill: "Evasive Maneuvering", Rank: 2, TargetLevel: 1},
	})
	require.NoError(t, err)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, int64(250+500), res.TotalSP)
	assert.Equal(t, res.Entries[0].Seconds+res.Entries[1].Seconds, res.TotalSeconds)
	assert.NotEmpty(t, res.TotalText)
}

func TestPlan_NamesFailingEntry(t *testing.T) {
	_, err := Plan([]TrainingRequest{
		{Skill: "Navigation", Rank: 1, TargetLevel: 1},
		{Skill: "Broken", Rank: 99, TargetLevel: 1},
	})
	require.Error(t, err)
	assert.Equal(t, 1, errs.AsError(err).Data["entry"])
}

func TestPlan_EmptyRejected(t *testing.T) {
	_, err := Plan(nil)
	require.Error(t, err)
	assert.Equal(t, errs.KindInvalidParameter, errs.KindOf(err))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "30s", FormatDuration(30*time.Second))
	assert.Equal(t, "8m", FormatDuration(8*time.Minute+20*time.Second))
	assert.Equal(t, "3h 5m", FormatDuration(3*time.Hour+5*time.Minute))
	assert.Equal(t, "2d 1h 0m", FormatDuration(49*time.Hour))
}
