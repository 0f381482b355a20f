// Package market serves price data through a documented fallback chain:
// pre-aggregated upstream statistics, raw order books aggregated on the
// fly, the bulk-seeded persistent store, and finally the last value any
// source ever produced. Every answer names its source and freshness.
package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"eve-tactician/internal/esi"
	"eve-tactician/internal/logger"
	"eve-tactician/internal/store"
)

const (
	PreaggTTL  = 15 * time.Minute
	OrdersTTL  = 5 * time.Minute
	HistoryTTL = time.Hour

	// persistentHistoryWindow is how old a stored history series may be
	// before the upstream is consulted again.
	persistentHistoryWindow = 24 * time.Hour
)

// Source names for price provenance.
const (
	SourcePreagg     = "pre-aggregated"
	SourceOrders     = "raw-orders"
	SourcePersistent = "persistent-store"
	SourceLastGood   = "last-known-good"
)

// Freshness classifies a cache age for a given source. Sources without
// a freshness table (persistent store, last known good) are always stale.
func Freshness(source string, age time.Duration) string {
	switch source {
	case SourcePreagg:
		switch {
		case age < 5*time.Minute:
			return "fresh"
		case age <= 15*time.Minute:
			return "recent"
		}
	case SourceOrders:
		switch {
		case age < 2*time.Minute:
			return "fresh"
		case age <= 5*time.Minute:
			return "recent"
		}
	}
	return "stale"
}

// keyedCache is a TTL cache with one timestamp per key. Refreshes for
// the same key coalesce; a failed refresh keeps the stale entry.
type keyedCache[T any] struct {
	name string
	ttl  time.Duration

	mu      sync.RWMutex
	entries map[string]keyedEntry[T]
	sf      singleflight.Group
}

type keyedEntry[T any] struct {
	val T
	at  time.Time
}

func newKeyedCache[T any](name string, ttl time.Duration) *keyedCache[T] {
	return &keyedCache[T]{name: name, ttl: ttl, entries: make(map[string]keyedEntry[T])}
}

func (c *keyedCache[T]) peek(key string) (T, time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		var zero T
		return zero, 0, false
	}
	return e.val, time.Since(e.at), true
}

func (c *keyedCache[T]) put(key string, val T) {
	c.mu.Lock()
	c.entries[key] = keyedEntry[T]{val: val, at: time.Now()}
	c.mu.Unlock()
}

// get returns the cached value, refreshing when the TTL has elapsed.
// Returns the value, its age, whether it is stale, and an error only
// when there is nothing at all to serve.
func (c *keyedCache[T]) get(ctx context.Context, key string, fetch func(context.Context) (T, error)) (T, time.Duration, bool, error) {
	if val, age, ok := c.peek(key); ok && age < c.ttl {
		return val, age, false, nil
	}

	_, err, _ := c.sf.Do(key, func() (any, error) {
		if _, age, ok := c.peek(key); ok && age < c.ttl {
			return nil, nil
		}
		val, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.put(key, val)
		return nil, nil
	})
	if err != nil {
		if val, age, ok := c.peek(key); ok {
			logger.Warn("MARKET", fmt.Sprintf("%s refresh for %s failed, serving %s-old data: %v",
				c.name, key, age.Round(time.Second), err))
			return val, age, true, nil
		}
		var zero T
		return zero, 0, true, err
	}
	val, age, _ := c.peek(key)
	return val, age, age >= c.ttl, nil
}

// Cache is the market data access layer.
type Cache struct {
	client        *esi.Client
	store         *store.Store
	aggregatorURL string

	preagg  *keyedCache[esi.AggregatePair]
	orders  *keyedCache[[]esi.MarketOrder]
	history *keyedCache[[]esi.HistoryEntry]

	lastGoodMu sync.RWMutex
	lastGood   map[string]lastGoodPrice
}

type lastGoodPrice struct {
	price Price
	at    time.Time
}

// New builds the market cache over the upstream client and the
// persistent store.
func New(client *esi.Client, st *store.Store, aggregatorURL string) *Cache {
	return &Cache{
		client:        client,
		store:         st,
		aggregatorURL: aggregatorURL,
		preagg:        newKeyedCache[esi.AggregatePair]("pre-aggregated", PreaggTTL),
		orders:        newKeyedCache[[]esi.MarketOrder]("raw-orders", OrdersTTL),
		history:       newKeyedCache[[]esi.HistoryEntry]("history", HistoryTTL),
		lastGood:      make(map[string]lastGoodPrice),
	}
}

func pairKey(regionID, typeID int32) string {
	return fmt.Sprintf("%d/%d", regionID, typeID)
}

func (c *keyedCache[T]) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Status reports the in-memory layer sizes without I/O.
func (c *Cache) Status() map[string]int {
	c.lastGoodMu.RLock()
	last := len(c.lastGood)
	c.lastGoodMu.RUnlock()
	return map[string]int{
		"preagg_entries":  c.preagg.size(),
		"order_snapshots": c.orders.size(),
		"history_series":  c.history.size(),
		"last_known_good": last,
	}
}
