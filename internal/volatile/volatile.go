// Package volatile holds the in-memory TTL caches for galaxy-wide
// upstream aggregates: hourly activity (kills, jumps) and faction
// warfare status. Each layer refreshes independently; a slow kills
// refresh never blocks a jumps read. Refreshes within one staleness
// window coalesce into a single upstream call.
package volatile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"eve-tactician/internal/esi"
	"eve-tactician/internal/logger"
)

const (
	KillsTTL = 10 * time.Minute
	JumpsTTL = 10 * time.Minute
	FWTTL    = 30 * time.Minute

	// DefaultBulkTimeout bounds one galaxy-wide refresh fetch. These
	// responses cover every system, so they get a wider ceiling than an
	// ordinary tool call.
	DefaultBulkTimeout = 30 * time.Second
)

// Result is one cached read. Stale data is still returned; the age and
// warning let the caller decide what to do with it.
type Result[T any] struct {
	Data    map[int32]T
	Age     time.Duration
	Stale   bool
	Warning string
}

// layer is one independently-refreshed TTL cache. The lock guards the
// map/timestamp swap only; fetches run outside it through singleflight
// so concurrent stale readers trigger exactly one upstream call.
type layer[T any] struct {
	name        string
	ttl         time.Duration
	bulkTimeout time.Duration
	fetch       func(ctx context.Context) (map[int32]T, error)

	mu        sync.RWMutex
	data      map[int32]T
	fetchedAt time.Time
	sf        singleflight.Group
}

func (l *layer[T]) snapshot() (map[int32]T, time.Duration, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.data == nil {
		return nil, 0, false
	}
	return l.data, time.Since(l.fetchedAt), true
}

func (l *layer[T]) fresh() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.data != nil && time.Since(l.fetchedAt) < l.ttl
}

// get returns the layer's map, refreshing first when the TTL has
// elapsed. On refresh failure pre-existing data is returned unchanged,
// marked stale; with no previous data the upstream error surfaces.
func (l *layer[T]) get(ctx context.Context) (Result[T], error) {
	if data, age, ok := l.snapshot(); ok && age < l.ttl {
		return Result[T]{Data: data, Age: age}, nil
	}

	_, err, _ := l.sf.Do(l.name, func() (any, error) {
		// Another caller may have refreshed while we waited.
		if l.fresh() {
			return nil, nil
		}
		// The refresh serves every caller, so it runs under the bulk
		// ceiling rather than the triggering call's own deadline.
		fetchCtx := ctx
		if l.bulkTimeout > 0 {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), l.bulkTimeout)
			defer cancel()
		}
		fetched, err := l.fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.data = fetched
		l.fetchedAt = time.Now()
		l.mu.Unlock()
		return nil, nil
	})

	if err != nil {
		data, age, ok := l.snapshot()
		if !ok {
			return Result[T]{}, err
		}
		logger.Warn("CACHE", fmt.Sprintf("%s refresh failed, serving stale data (%s old): %v", l.name, age.Round(time.Second), err))
		return Result[T]{
			Data:    data,
			Age:     age,
			Stale:   true,
			Warning: fmt.Sprintf("%s refresh failed, data is %s old", l.name, age.Round(time.Second)),
		}, nil
	}

	data, age, _ := l.snapshot()
	return Result[T]{Data: data, Age: age, Stale: age >= l.ttl}, nil
}

// Cache bundles the three volatile layers.
type Cache struct {
	kills *layer[esi.SystemKills]
	jumps *layer[esi.SystemJumps]
	fw    *layer[esi.FWSystem]
}

// New wires the layers to the upstream client's galaxy-wide endpoints.
// A zero bulkTimeout uses DefaultBulkTimeout.
func New(client *esi.Client, bulkTimeout time.Duration) *Cache {
	if bulkTimeout == 0 {
		bulkTimeout = DefaultBulkTimeout
	}
	return &Cache{
		kills: &layer[esi.SystemKills]{
			name: "kills", ttl: KillsTTL, bulkTimeout: bulkTimeout,
			fetch: func(ctx context.Context) (map[int32]esi.SystemKills, error) {
				list, err := client.FetchSystemKills(ctx)
				if err != nil {
					return nil, err
				}
				m := make(map[int32]esi.SystemKills, len(list))
				for _, k := range list {
					m[k.SystemID] = k
				}
				return m, nil
			},
		},
		jumps: &layer[esi.SystemJumps]{
			name: "jumps", ttl: JumpsTTL, bulkTimeout: bulkTimeout,
			fetch: func(ctx context.Context) (map[int32]esi.SystemJumps, error) {
				list, err := client.FetchSystemJumps(ctx)
				if err != nil {
					return nil, err
				}
				m := make(map[int32]esi.SystemJumps, len(list))
				for _, j := range list {
					m[j.SystemID] = j
				}
				return m, nil
			},
		},
		fw: &layer[esi.FWSystem]{
			name: "faction_warfare", ttl: FWTTL, bulkTimeout: bulkTimeout,
			fetch: func(ctx context.Context) (map[int32]esi.FWSystem, error) {
				list, err := client.FetchFWSystems(ctx)
				if err != nil {
					return nil, err
				}
				m := make(map[int32]esi.FWSystem, len(list))
				for _, f := range list {
					m[f.SystemID] = f
				}
				return m, nil
			},
		},
	}
}

// Kills returns the galaxy-wide hourly kill map.
func (c *Cache) Kills(ctx context.Context) (Result[esi.SystemKills], error) {
	return c.kills.get(ctx)
}

// Jumps returns the galaxy-wide hourly jump map.
func (c *Cache) Jumps(ctx context.Context) (Result[esi.SystemJumps], error) {
	return c.jumps.get(ctx)
}

// FW returns the faction-warfare system map.
func (c *Cache) FW(ctx context.Context) (Result[esi.FWSystem], error) {
	return c.fw.get(ctx)
}

// LayerStatus is the no-I/O diagnostic view of one layer.
type LayerStatus struct {
	Name       string `json:"name"`
	Count      int    `json:"count"`
	AgeSeconds int    `json:"age_seconds"`
	TTLSeconds int    `json:"ttl_seconds"`
	Stale      bool   `json:"stale"`
}

func layerStatus[T any](l *layer[T]) LayerStatus {
	data, age, ok := l.snapshot()
	st := LayerStatus{
		Name:       l.name,
		TTLSeconds: int(l.ttl.Seconds()),
		Stale:      true,
	}
	if ok {
		st.Count = len(data)
		st.AgeSeconds = int(age.Seconds())
		st.Stale = age >= l.ttl
	}
	return st
}

// Status reports every layer without issuing I/O.
func (c *Cache) Status() []LayerStatus {
	return []LayerStatus{
		layerStatus(c.kills),
		layerStatus(c.jumps),
		layerStatus(c.fw),
	}
}
