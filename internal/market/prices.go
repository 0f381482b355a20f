package market

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"eve-tactician/internal/esi"
	"eve-tactician/internal/logger"
)

// Price is the answer for one item in one region, with provenance.
type Price struct {
	TypeID          int32          `json:"type_id"`
	Buy             *esi.SideStats `json:"buy,omitempty"`
	Sell            *esi.SideStats `json:"sell,omitempty"`
	SpreadISK       float64        `json:"spread_isk"`
	Source          string         `json:"source"`
	Freshness       string         `json:"freshness"`
	CacheAgeSeconds int            `json:"cache_age_seconds"`
	Warnings        []string       `json:"warnings,omitempty"`
}

func spreadISK(buy, sell *esi.SideStats) (float64, bool) {
	if buy == nil || sell == nil {
		return 0, false
	}
	spread := sell.Min - buy.Max
	if spread < 0 {
		return 0, true // crossed book, permitted but flagged
	}
	return spread, false
}

func finishPrice(p *Price) {
	spread, crossed := spreadISK(p.Buy, p.Sell)
	p.SpreadISK = spread
	if crossed {
		p.Warnings = append(p.Warnings, "crossed book: sell.min below buy.max")
	}
	p.Freshness = Freshness(p.Source, time.Duration(p.CacheAgeSeconds)*time.Second)
}

// Prices resolves prices for a set of items in one region through the
// fallback chain. Every requested item gets an entry; items no source
// could price carry a warning instead of aggregates. The error return
// is non-nil only when nothing could be answered at all.
func (c *Cache) Prices(ctx context.Context, regionID int32, typeIDs []int32) ([]Price, error) {
	if len(typeIDs) == 0 {
		return nil, nil
	}
	priced := make(map[int32]Price, len(typeIDs))

	remaining := c.pricesFromPreagg(ctx, regionID, typeIDs, priced)
	remaining = c.pricesFromOrders(ctx, regionID, remaining, priced)
	remaining = c.pricesFromStore(ctx, regionID, remaining, priced)
	for _, id := range remaining {
		if p, ok := c.lastGoodFor(regionID, id); ok {
			priced[id] = p
			continue
		}
		priced[id] = Price{
			TypeID:    id,
			Source:    "none",
			Freshness: "stale",
			Warnings:  []string{"no source could price this item"},
		}
	}

	out := make([]Price, 0, len(typeIDs))
	for _, id := range typeIDs {
		p := priced[id]
		if p.Buy != nil || p.Sell != nil {
			c.rememberLastGood(regionID, p)
		}
		out = append(out, p)
	}
	return out, nil
}

// pricesFromPreagg prices what it can from the aggregator layer and
// returns the ids it could not price.
func (c *Cache) pricesFromPreagg(ctx context.Context, regionID int32, typeIDs []int32, priced map[int32]Price) []int32 {
	var missing []int32
	var toFetch []int32

	for _, id := range typeIDs {
		if pair, age, ok := c.preagg.peek(pairKey(regionID, id)); ok && age < c.preagg.ttl {
			priced[id] = preaggPrice(id, pair, age)
		} else {
			toFetch = append(toFetch, id)
		}
	}
	if len(toFetch) == 0 {
		return nil
	}

	pairs, err := c.client.FetchMarketAggregates(ctx, c.aggregatorURL, regionID, toFetch)
	if err != nil {
		logger.Warn("MARKET", fmt.Sprintf("aggregator unavailable for region %d: %v", regionID, err))
		// Serve whatever stale entries exist; the rest fall through.
		for _, id := range toFetch {
			if pair, age, ok := c.preagg.peek(pairKey(regionID, id)); ok {
				p := preaggPrice(id, pair, age)
				p.Warnings = append(p.Warnings, "pre-aggregated source unavailable, serving stale data")
				priced[id] = p
			} else {
				missing = append(missing, id)
			}
		}
		return missing
	}

	for _, id := range toFetch {
		pair, ok := pairs[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		c.preagg.put(pairKey(regionID, id), pair)
		priced[id] = preaggPrice(id, pair, 0)
	}
	return missing
}

func preaggPrice(typeID int32, pair esi.AggregatePair, age time.Duration) Price {
	p := Price{
		TypeID:          typeID,
		Source:          SourcePreagg,
		CacheAgeSeconds: int(age.Seconds()),
	}
	if pair.Buy.OrderCount > 0 {
		buy := pair.Buy
		p.Buy = &buy
	}
	if pair.Sell.OrderCount > 0 {
		sell := pair.Sell
		p.Sell = &sell
	}
	finishPrice(&p)
	return p
}

// pricesFromOrders aggregates live order books on the fly for the ids
// the aggregator could not serve.
func (c *Cache) pricesFromOrders(ctx context.Context, regionID int32, typeIDs []int32, priced map[int32]Price) []int32 {
	var missing []int32
	for _, id := range typeIDs {
		snapshot, age, stale, err := c.orders.get(ctx, pairKey(regionID, id), func(ctx context.Context) ([]esi.MarketOrder, error) {
			return c.client.FetchRegionOrders(ctx, regionID, id)
		})
		if err != nil || len(snapshot) == 0 {
			missing = append(missing, id)
			continue
		}
		buy, sell := AggregateOrders(snapshot)
		p := Price{
			TypeID:          id,
			Buy:             buy,
			Sell:            sell,
			Source:          SourceOrders,
			CacheAgeSeconds: int(age.Seconds()),
		}
		if stale {
			p.Warnings = append(p.Warnings, "raw-order source unavailable, serving stale data")
		}
		finishPrice(&p)
		priced[id] = p
	}
	return missing
}

// pricesFromStore answers from the bulk-seeded aggregates.
func (c *Cache) pricesFromStore(ctx context.Context, regionID int32, typeIDs []int32, priced map[int32]Price) []int32 {
	if len(typeIDs) == 0 || c.store == nil {
		return typeIDs
	}
	rows, err := c.store.GetAggregates(ctx, regionID, typeIDs)
	if err != nil {
		logger.Warn("MARKET", fmt.Sprintf("persistent store read failed: %v", err))
		return typeIDs
	}
	byType := make(map[int32]*Price)
	for _, row := range rows {
		p, ok := byType[row.TypeID]
		if !ok {
			p = &Price{
				TypeID:          row.TypeID,
				Source:          SourcePersistent,
				CacheAgeSeconds: int(time.Since(row.UpdatedAt).Seconds()),
			}
			byType[row.TypeID] = p
		}
		stats := &esi.SideStats{
			WeightedAverage: row.WeightedAverage,
			Min:             row.Min,
			Max:             row.Max,
			Median:          row.Median,
			StdDev:          row.StdDev,
			Volume:          row.Volume,
			OrderCount:      row.OrderCount,
			Percentile:      row.Percentile,
		}
		if row.Side == "buy" {
			p.Buy = stats
		} else {
			p.Sell = stats
		}
	}

	var missing []int32
	for _, id := range typeIDs {
		p, ok := byType[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		finishPrice(p)
		priced[id] = *p
	}
	return missing
}

func (c *Cache) rememberLastGood(regionID int32, p Price) {
	if p.Source == SourceLastGood {
		return
	}
	c.lastGoodMu.Lock()
	c.lastGood[pairKey(regionID, p.TypeID)] = lastGoodPrice{price: p, at: time.Now()}
	c.lastGoodMu.Unlock()
}

func (c *Cache) lastGoodFor(regionID, typeID int32) (Price, bool) {
	c.lastGoodMu.RLock()
	lg, ok := c.lastGood[pairKey(regionID, typeID)]
	c.lastGoodMu.RUnlock()
	if !ok {
		return Price{}, false
	}
	p := lg.price
	p.Source = SourceLastGood
	p.CacheAgeSeconds = int(time.Since(lg.at).Seconds())
	p.Freshness = "stale"
	p.Warnings = []string{"all sources unavailable, serving last known good value"}
	return p, true
}

// AggregateOrders summarizes a raw order snapshot into per-side
// statistics. Nil is returned for a side with no orders.
func AggregateOrders(orders []esi.MarketOrder) (buy, sell *esi.SideStats) {
	var buyPrices, sellPrices []float64
	var buyVolumes, sellVolumes []int64
	for _, o := range orders {
		if o.IsBuyOrder {
			buyPrices = append(buyPrices, o.Price)
			buyVolumes = append(buyVolumes, int64(o.VolumeRemain))
		} else {
			sellPrices = append(sellPrices, o.Price)
			sellVolumes = append(sellVolumes, int64(o.VolumeRemain))
		}
	}
	if len(buyPrices) > 0 {
		buy = sideStats(buyPrices, buyVolumes, true)
	}
	if len(sellPrices) > 0 {
		sell = sideStats(sellPrices, sellVolumes, false)
	}
	return buy, sell
}

// sideStats computes the aggregate record for one side. The percentile
// is the volume-weighted 5th percentile price from the competitive end
// of the book: highest prices for buy, lowest for sell.
func sideStats(prices []float64, volumes []int64, buySide bool) *esi.SideStats {
	idx := make([]int, len(prices))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		if buySide {
			return prices[idx[a]] > prices[idx[b]]
		}
		return prices[idx[a]] < prices[idx[b]]
	})

	var stats esi.SideStats
	stats.Min = prices[0]
	stats.Max = prices[0]
	var totalVolume int64
	var weighted float64
	for i, p := range prices {
		if p < stats.Min {
			stats.Min = p
		}
		if p > stats.Max {
			stats.Max = p
		}
		weighted += p * float64(volumes[i])
		totalVolume += volumes[i]
	}
	stats.OrderCount = int64(len(prices))
	stats.Volume = totalVolume
	if totalVolume > 0 {
		stats.WeightedAverage = weighted / float64(totalVolume)
	}

	sorted := append([]float64(nil), prices...)
	sort.Float64s(sorted)
	stats.Median = median(sorted)
	stats.StdDev = stdDev(sorted, stats.WeightedAverage)

	// Walk the competitive end until 5% of volume is covered.
	target := totalVolume / 20
	var seen int64
	stats.Percentile = prices[idx[0]]
	for _, i := range idx {
		seen += volumes[i]
		stats.Percentile = prices[i]
		if seen >= target {
			break
		}
	}
	return &stats
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func stdDev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}
