package esi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"eve-tactician/internal/errs"
	"eve-tactician/internal/logger"
)

// SystemKills is the galaxy-wide hourly kill record for one system.
type SystemKills struct {
	SystemID  int32 `json:"system_id"`
	ShipKills int   `json:"ship_kills"`
	PodKills  int   `json:"pod_kills"`
	NPCKills  int   `json:"npc_kills"`
}

// SystemJumps is the galaxy-wide hourly jump record for one system.
type SystemJumps struct {
	SystemID  int32 `json:"system_id"`
	ShipJumps int   `json:"ship_jumps"`
}

// FWSystem is the faction-warfare status of one contested system.
type FWSystem struct {
	SystemID               int32  `json:"solar_system_id"`
	OwnerFactionID         int32  `json:"owner_faction_id"`
	OccupierFactionID      int32  `json:"occupier_faction_id"`
	Contested              string `json:"contested"` // uncontested | contested | vulnerable
	VictoryPoints          int    `json:"victory_points"`
	VictoryPointsThreshold int    `json:"victory_points_threshold"`
}

// MarketOrder mirrors one live order from the region order book.
type MarketOrder struct {
	OrderID      int64   `json:"order_id"`
	TypeID       int32   `json:"type_id"`
	LocationID   int64   `json:"location_id"`
	SystemID     int32   `json:"system_id"`
	Price        float64 `json:"price"`
	VolumeRemain int32   `json:"volume_remain"`
	VolumeTotal  int32   `json:"volume_total"`
	IsBuyOrder   bool    `json:"is_buy_order"`
	Range        string  `json:"range"`
	Duration     int     `json:"duration"`
	Issued       string  `json:"issued"`
}

// MarketPrice is the upstream pre-aggregated price for one item type.
type MarketPrice struct {
	TypeID        int32   `json:"type_id"`
	AveragePrice  float64 `json:"average_price"`
	AdjustedPrice float64 `json:"adjusted_price"`
}

// HistoryEntry is one day of regional market history for a type.
type HistoryEntry struct {
	Date       string  `json:"date"`
	Average    float64 `json:"average"`
	Highest    float64 `json:"highest"`
	Lowest     float64 `json:"lowest"`
	Volume     int64   `json:"volume"`
	OrderCount int64   `json:"order_count"`
}

var tranquility = url.Values{"datasource": {"tranquility"}}

// FetchSystemKills pulls the galaxy-wide hourly kill counts.
func (c *Client) FetchSystemKills(ctx context.Context) ([]SystemKills, error) {
	body, err := c.Get(ctx, "/universe/system_kills/", tranquility)
	if err != nil {
		return nil, err
	}
	var out []SystemKills
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, errs.Internal("parse system kills: %v", err).Wrap(err)
	}
	return out, nil
}

// FetchSystemJumps pulls the galaxy-wide hourly jump counts.
func (c *Client) FetchSystemJumps(ctx context.Context) ([]SystemJumps, error) {
	body, err := c.Get(ctx, "/universe/system_jumps/", tranquility)
	if err != nil {
		return nil, err
	}
	var out []SystemJumps
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, errs.Internal("parse system jumps: %v", err).Wrap(err)
	}
	return out, nil
}

// FetchFWSystems pulls the faction-warfare status of every contested system.
func (c *Client) FetchFWSystems(ctx context.Context) ([]FWSystem, error) {
	body, err := c.Get(ctx, "/fw/systems/", tranquility)
	if err != nil {
		return nil, err
	}
	var out []FWSystem
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, errs.Internal("parse fw systems: %v", err).Wrap(err)
	}
	return out, nil
}

// FetchMarketPrices pulls the galaxy-wide pre-aggregated price list.
func (c *Client) FetchMarketPrices(ctx context.Context) ([]MarketPrice, error) {
	body, err := c.Get(ctx, "/markets/prices/", tranquility)
	if err != nil {
		return nil, err
	}
	var out []MarketPrice
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, errs.Internal("parse market prices: %v", err).Wrap(err)
	}
	return out, nil
}

// SideStats is one side of an aggregated order book.
type SideStats struct {
	WeightedAverage float64 `json:"weighted_average"`
	Min             float64 `json:"min"`
	Max             float64 `json:"max"`
	Median          float64 `json:"median"`
	StdDev          float64 `json:"std_dev"`
	Volume          int64   `json:"volume"`
	OrderCount      int64   `json:"order_count"`
	Percentile      float64 `json:"percentile"`
}

// AggregatePair is the aggregator's buy/sell summary for one type.
type AggregatePair struct {
	Buy  SideStats `json:"buy"`
	Sell SideStats `json:"sell"`
}

// maxBatchItems bounds any batched upstream request.
const maxBatchItems = 100

// FetchMarketAggregates pulls pre-aggregated buy/sell statistics for a
// set of types in a region from the aggregator host. Requests are
// chunked to the documented batch ceiling.
func (c *Client) FetchMarketAggregates(ctx context.Context, aggregatorBase string, regionID int32, typeIDs []int32) (map[int32]AggregatePair, error) {
	out := make(map[int32]AggregatePair, len(typeIDs))
	for start := 0; start < len(typeIDs); start += maxBatchItems {
		end := start + maxBatchItems
		if end > len(typeIDs) {
			end = len(typeIDs)
		}
		ids := make([]string, 0, end-start)
		for _, id := range typeIDs[start:end] {
			ids = append(ids, fmt.Sprint(id))
		}
		q := url.Values{
			"region": {fmt.Sprint(regionID)},
			"types":  {strings.Join(ids, ",")},
		}
		body, err := c.GetURL(ctx, aggregatorBase+"/aggregates/", q)
		if err != nil {
			return nil, err
		}
		var page map[string]AggregatePair
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, errs.Internal("parse aggregates region=%d: %v", regionID, err).Wrap(err)
		}
		for key, pair := range page {
			id, err := strconv.ParseInt(key, 10, 32)
			if err != nil {
				logger.Warn("ESI", fmt.Sprintf("skipping aggregate with bad type key %q", key))
				continue
			}
			out[int32(id)] = pair
		}
	}
	return out, nil
}

// FetchRegionOrders pulls the full order book for one type in a region.
// Malformed items are skipped, not fatal.
func (c *Client) FetchRegionOrders(ctx context.Context, regionID, typeID int32) ([]MarketOrder, error) {
	q := url.Values{
		"datasource": {"tranquility"},
		"order_type": {"all"},
		"type_id":    {fmt.Sprint(typeID)},
	}
	raw, err := c.GetPaginated(ctx, fmt.Sprintf("/markets/%d/orders/", regionID), q)
	if err != nil {
		return nil, err
	}
	orders, _ := decodeItems[MarketOrder](raw, fmt.Sprintf("orders region=%d type=%d", regionID, typeID))
	return orders, nil
}

// FetchRegionHistory pulls daily market history for one type in a region.
func (c *Client) FetchRegionHistory(ctx context.Context, regionID, typeID int32) ([]HistoryEntry, error) {
	q := url.Values{
		"datasource": {"tranquility"},
		"type_id":    {fmt.Sprint(typeID)},
	}
	body, err := c.Get(ctx, fmt.Sprintf("/markets/%d/history/", regionID), q)
	if err != nil {
		return nil, err
	}
	var out []HistoryEntry
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, errs.Internal("parse history region=%d type=%d: %v", regionID, typeID, err).Wrap(err)
	}
	return out, nil
}

// SearchInventoryType resolves an item name to type IDs via the upstream
// search endpoint. Strict match first; the caller decides on fallback.
func (c *Client) SearchInventoryType(ctx context.Context, name string, strict bool) ([]int32, error) {
	q := url.Values{
		"datasource": {"tranquility"},
		"categories": {"inventory_type"},
		"search":     {name},
	}
	if strict {
		q.Set("strict", "true")
	}
	body, err := c.Get(ctx, "/search/", q)
	if err != nil {
		return nil, err
	}
	var out struct {
		InventoryType []int32 `json:"inventory_type"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, errs.Internal("parse search %q: %v", name, err).Wrap(err)
	}
	return out.InventoryType, nil
}

// TypeInfo is the upstream description of one item type.
type TypeInfo struct {
	TypeID        int32  `json:"type_id"`
	Name          string `json:"name"`
	GroupID       int32  `json:"group_id"`
	MarketGroupID int32  `json:"market_group_id"`
	Published     bool   `json:"published"`
}

// FetchTypeInfo pulls the description of one item type.
func (c *Client) FetchTypeInfo(ctx context.Context, typeID int32) (*TypeInfo, error) {
	body, err := c.Get(ctx, fmt.Sprintf("/universe/types/%d/", typeID), tranquility)
	if err != nil {
		return nil, err
	}
	var out TypeInfo
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, errs.Internal("parse type %d: %v", typeID, err).Wrap(err)
	}
	out.TypeID = typeID
	return &out, nil
}
