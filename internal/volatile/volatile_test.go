package volatile

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eve-tactician/internal/esi"
)

func killsLayer(fetch func(ctx context.Context) (map[int32]esi.SystemKills, error)) *layer[esi.SystemKills] {
	return &layer[esi.SystemKills]{name: "kills", ttl: KillsTTL, fetch: fetch}
}

func TestLayer_FreshAfterRefresh(t *testing.T) {
	calls := 0
	l := killsLayer(func(ctx context.Context) (map[int32]esi.SystemKills, error) {
		calls++
		return map[int32]esi.SystemKills{1: {SystemID: 1, ShipKills: 3}}, nil
	})

	res, err := l.get(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Stale)
	assert.Less(t, res.Age, KillsTTL)
	assert.Equal(t, 3, res.Data[1].ShipKills)

	// A second read within the TTL serves from memory.
	_, err = l.get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestLayer_ConcurrentStaleReadsSingleFetch(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	l := killsLayer(func(ctx context.Context) (map[int32]esi.SystemKills, error) {
		calls.Add(1)
		<-release
		return map[int32]esi.SystemKills{}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.get(context.Background())
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "stale readers coalesce into one upstream call")
}

func TestLayer_StaleOnError(t *testing.T) {
	healthy := true
	l := killsLayer(func(ctx context.Context) (map[int32]esi.SystemKills, error) {
		if !healthy {
			return nil, errors.New("upstream down")
		}
		return map[int32]esi.SystemKills{1: {SystemID: 1, ShipKills: 5}}, nil
	})

	_, err := l.get(context.Background())
	require.NoError(t, err)

	// Age the cache past its TTL, then break the upstream.
	l.mu.Lock()
	l.fetchedAt = time.Now().Add(-KillsTTL - time.Minute)
	stamp := l.fetchedAt
	l.mu.Unlock()
	healthy = false

	res, err := l.get(context.Background())
	require.NoError(t, err, "stale data degrades, it does not fail")
	assert.True(t, res.Stale)
	assert.NotEmpty(t, res.Warning)
	assert.Equal(t, 5, res.Data[1].ShipKills, "previous map retained")

	l.mu.RLock()
	assert.Equal(t, stamp, l.fetchedAt, "failed refresh leaves the timestamp unchanged")
	l.mu.RUnlock()
}

func TestLayer_RefreshRunsUnderBulkCeiling(t *testing.T) {
	var deadline time.Time
	var hasDeadline bool
	l := killsLayer(func(ctx context.Context) (map[int32]esi.SystemKills, error) {
		deadline, hasDeadline = ctx.Deadline()
		return map[int32]esi.SystemKills{}, nil
	})
	l.bulkTimeout = 30 * time.Second

	// The triggering call carries a much tighter deadline; the
	// galaxy-wide fetch must not inherit it.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := l.get(ctx)
	require.NoError(t, err)
	require.True(t, hasDeadline)
	assert.Greater(t, time.Until(deadline), 10*time.Second)
}

func TestLayer_NoBulkTimeoutInheritsCaller(t *testing.T) {
	var deadline time.Time
	var hasDeadline bool
	l := killsLayer(func(ctx context.Context) (map[int32]esi.SystemKills, error) {
		deadline, hasDeadline = ctx.Deadline()
		return map[int32]esi.SystemKills{}, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	_, err := l.get(ctx)
	require.NoError(t, err)
	require.True(t, hasDeadline)
	assert.LessOrEqual(t, time.Until(deadline), time.Minute)
}

func TestNew_LayersCarryBulkTimeout(t *testing.T) {
	c := New(nil, 0)
	assert.Equal(t, DefaultBulkTimeout, c.kills.bulkTimeout)
	assert.Equal(t, DefaultBulkTimeout, c.jumps.bulkTimeout)
	assert.Equal(t, DefaultBulkTimeout, c.fw.bulkTimeout)

	c = New(nil, 12*time.Second)
	assert.Equal(t, 12*time.Second, c.fw.bulkTimeout)
}

func TestLayer_ColdStartErrorSurfaces(t *testing.T) {
	l := killsLayer(func(ctx context.Context) (map[int32]esi.SystemKills, error) {
		return nil, errors.New("upstream down")
	})
	_, err := l.get(context.Background())
	require.Error(t, err)
}

func TestLevelClassification(t *testing.T) {
	cases := []struct {
		ship, pod, jumps int
		want             string
	}{
		{0, 0, 0, "none"},
		{0, 0, 50, "low"},
		{1, 1, 0, "low"},
		{5, 2, 0, "medium"},
		{20, 5, 0, "high"},
		{40, 10, 0, "extreme"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Level(c.ship, c.pod, c.jumps),
			"ship=%d pod=%d jumps=%d", c.ship, c.pod, c.jumps)
	}
}

func testCache(kills map[int32]esi.SystemKills, jumps map[int32]esi.SystemJumps) *Cache {
	return &Cache{
		kills: killsLayer(func(ctx context.Context) (map[int32]esi.SystemKills, error) {
			return kills, nil
		}),
		jumps: &layer[esi.SystemJumps]{name: "jumps", ttl: JumpsTTL,
			fetch: func(ctx context.Context) (map[int32]esi.SystemJumps, error) {
				return jumps, nil
			}},
		fw: &layer[esi.FWSystem]{name: "faction_warfare", ttl: FWTTL,
			fetch: func(ctx context.Context) (map[int32]esi.FWSystem, error) {
				return map[int32]esi.FWSystem{}, nil
			}},
	}
}

func TestActivity_MergeAndAbsenceIsZero(t *testing.T) {
	c := testCache(
		map[int32]esi.SystemKills{100: {SystemID: 100, ShipKills: 4, PodKills: 1, NPCKills: 30}},
		map[int32]esi.SystemJumps{100: {SystemID: 100, ShipJumps: 220}},
	)

	recs, meta, err := c.Activity(context.Background(), []int32{100, 999})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.False(t, meta.Stale)

	assert.Equal(t, 4, recs[0].ShipKills)
	assert.Equal(t, 220, recs[0].ShipJumps)
	assert.Equal(t, "medium", recs[0].Level)

	assert.Zero(t, recs[1].ShipKills)
	assert.Zero(t, recs[1].ShipJumps)
	assert.Equal(t, "none", recs[1].Level)
}

func TestHotspots_RankedByPlayerKills(t *testing.T) {
	c := testCache(
		map[int32]esi.SystemKills{
			1: {SystemID: 1, ShipKills: 2},
			2: {SystemID: 2, ShipKills: 40, PodKills: 12},
			3: {SystemID: 3, ShipKills: 9},
			4: {SystemID: 4, NPCKills: 500}, // NPC-only systems are not hotspots
		},
		map[int32]esi.SystemJumps{},
	)

	recs, _, err := c.Hotspots(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, int32(2), recs[0].SystemID)
	assert.Equal(t, "extreme", recs[0].Level)
	assert.Equal(t, int32(3), recs[1].SystemID)
}

func TestStatus_NoIO(t *testing.T) {
	fetches := 0
	c := &Cache{
		kills: killsLayer(func(ctx context.Context) (map[int32]esi.SystemKills, error) {
			fetches++
			return map[int32]esi.SystemKills{1: {}, 2: {}}, nil
		}),
		jumps: &layer[esi.SystemJumps]{name: "jumps", ttl: JumpsTTL,
			fetch: func(ctx context.Context) (map[int32]esi.SystemJumps, error) {
				fetches++
				return nil, nil
			}},
		fw: &layer[esi.FWSystem]{name: "faction_warfare", ttl: FWTTL,
			fetch: func(ctx context.Context) (map[int32]esi.FWSystem, error) {
				fetches++
				return nil, nil
			}},
	}

	_, err := c.Kills(context.Background())
	require.NoError(t, err)
	before := fetches

	st := c.Status()
	require.Len(t, st, 3)
	assert.Equal(t, "kills", st[0].Name)
	assert.Equal(t, 2, st[0].Count)
	assert.False(t, st[0].Stale)
	assert.Equal(t, int(KillsTTL.Seconds()), st[0].TTLSeconds)

	assert.Equal(t, "jumps", st[1].Name)
	assert.True(t, st[1].Stale, "never-fetched layer reports stale")
	assert.Zero(t, st[1].Count)

	assert.Equal(t, before, fetches, "status issues no upstream calls")
}
