package market

import (
	"context"
	"sort"
	"time"

	"eve-tactician/internal/esi"
)

// OrdersResult is a live order-book snapshot for one item in a region.
// Buys are sorted best-first (price descending), sells likewise
// (price ascending).
type OrdersResult struct {
	TypeID          int32             `json:"type_id"`
	RegionID        int32             `json:"region_id"`
	Buys            []esi.MarketOrder `json:"buys"`
	Sells           []esi.MarketOrder `json:"sells"`
	Source          string            `json:"source"`
	Freshness       string            `json:"freshness"`
	CacheAgeSeconds int               `json:"cache_age_seconds"`
	Warnings        []string          `json:"warnings,omitempty"`
}

// Orders returns the cached order book, refreshing per the raw-orders
// TTL. limit bounds each side separately; 0 means unbounded.
func (c *Cache) Orders(ctx context.Context, regionID, typeID int32, limit int) (OrdersResult, error) {
	snapshot, age, stale, err := c.orders.get(ctx, pairKey(regionID, typeID), func(ctx context.Context) ([]esi.MarketOrder, error) {
		return c.client.FetchRegionOrders(ctx, regionID, typeID)
	})
	if err != nil {
		return OrdersResult{}, err
	}

	res := OrdersResult{
		TypeID:          typeID,
		RegionID:        regionID,
		Source:          SourceOrders,
		CacheAgeSeconds: int(age.Seconds()),
		Freshness:       Freshness(SourceOrders, age),
	}
	if stale {
		res.Warnings = append(res.Warnings, "raw-order source unavailable, serving stale data")
	}
	for _, o := range snapshot {
		if o.IsBuyOrder {
			res.Buys = append(res.Buys, o)
		} else {
			res.Sells = append(res.Sells, o)
		}
	}
	sort.Slice(res.Buys, func(i, j int) bool { return res.Buys[i].Price > res.Buys[j].Price })
	sort.Slice(res.Sells, func(i, j int) bool { return res.Sells[i].Price < res.Sells[j].Price })
	if limit > 0 {
		if len(res.Buys) > limit {
			res.Buys = res.Buys[:limit]
		}
		if len(res.Sells) > limit {
			res.Sells = res.Sells[:limit]
		}
	}
	return res, nil
}

// SpreadResult describes the bid/ask gap for one item.
type SpreadResult struct {
	TypeID          int32    `json:"type_id"`
	RegionID        int32    `json:"region_id"`
	BuyMax          float64  `json:"buy_max"`
	SellMin         float64  `json:"sell_min"`
	SpreadISK       float64  `json:"spread_isk"`
	SpreadPercent   float64  `json:"spread_percent"`
	Source          string   `json:"source"`
	Freshness       string   `json:"freshness"`
	CacheAgeSeconds int      `json:"cache_age_seconds"`
	Warnings        []string `json:"warnings,omitempty"`
}

// Spread computes the bid/ask spread through the normal price chain.
func (c *Cache) Spread(ctx context.Context, regionID, typeID int32) (SpreadResult, error) {
	prices, err := c.Prices(ctx, regionID, []int32{typeID})
	if err != nil {
		return SpreadResult{}, err
	}
	p := prices[0]
	res := SpreadResult{
		TypeID:          typeID,
		RegionID:        regionID,
		SpreadISK:       p.SpreadISK,
		Source:          p.Source,
		Freshness:       p.Freshness,
		CacheAgeSeconds: p.CacheAgeSeconds,
		Warnings:        p.Warnings,
	}
	if p.Buy != nil {
		res.BuyMax = p.Buy.Max
	}
	if p.Sell != nil {
		res.SellMin = p.Sell.Min
	}
	if res.SellMin > 0 {
		res.SpreadPercent = res.SpreadISK / res.SellMin * 100
	}
	return res, nil
}

// HistoryResult is a daily price series with summary statistics.
type HistoryResult struct {
	TypeID          int32              `json:"type_id"`
	RegionID        int32              `json:"region_id"`
	Entries         []esi.HistoryEntry `json:"entries"`
	AverageDaily    float64            `json:"average_daily_volume"`
	WeekAverage     float64            `json:"week_average_price"`
	Freshness       string             `json:"freshness"`
	CacheAgeSeconds int                `json:"cache_age_seconds"`
	Warnings        []string           `json:"warnings,omitempty"`
}

// historyFreshness: the in-memory series refreshes hourly, so anything
// younger than a quarter of the TTL counts as fresh.
func historyFreshness(age time.Duration) string {
	switch {
	case age < 15*time.Minute:
		return "fresh"
	case age <= HistoryTTL:
		return "recent"
	default:
		return "stale"
	}
}

// History returns the daily series for one item, memory first, then the
// persistent store, then the upstream with write-through.
func (c *Cache) History(ctx context.Context, regionID, typeID int32) (HistoryResult, error) {
	entries, age, stale, err := c.history.get(ctx, pairKey(regionID, typeID), func(ctx context.Context) ([]esi.HistoryEntry, error) {
		if c.store != nil {
			if stored, _, ok := c.store.GetHistory(ctx, regionID, typeID, persistentHistoryWindow); ok {
				return stored, nil
			}
		}
		fetched, err := c.client.FetchRegionHistory(ctx, regionID, typeID)
		if err != nil {
			return nil, err
		}
		if c.store != nil {
			if err := c.store.SetHistory(ctx, regionID, typeID, fetched); err != nil {
				return fetched, nil // persistence is best-effort
			}
		}
		return fetched, nil
	})
	if err != nil {
		return HistoryResult{}, err
	}

	res := HistoryResult{
		TypeID:          typeID,
		RegionID:        regionID,
		Entries:         entries,
		Freshness:       historyFreshness(age),
		CacheAgeSeconds: int(age.Seconds()),
	}
	if stale {
		res.Freshness = "stale"
		res.Warnings = append(res.Warnings, "history source unavailable, serving stale data")
	}

	var totalVolume int64
	for _, e := range entries {
		totalVolume += e.Volume
	}
	if len(entries) > 0 {
		res.AverageDaily = float64(totalVolume) / float64(len(entries))
	}
	week := entries
	if len(week) > 7 {
		week = week[len(week)-7:]
	}
	var sum float64
	for _, e := range week {
		sum += e.Average
	}
	if len(week) > 0 {
		res.WeekAverage = sum / float64(len(week))
	}
	return res, nil
}
