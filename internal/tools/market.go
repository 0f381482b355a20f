package tools

import (
	"context"
	"encoding/json"
	"sort"

	"eve-tactician/internal/errs"
	"eve-tactician/internal/market"
	"eve-tactician/internal/store"
)

var marketActions = []string{"prices", "orders", "valuation", "spread", "history", "find_nearby"}

type marketRequest struct {
	Action string   `json:"action"`
	Region string   `json:"region"`
	Item   string   `json:"item"`
	Items  []string `json:"items"`
	Limit  int      `json:"limit"`
	Side   string   `json:"side"`
	Paste  string   `json:"paste"`
	Lines  []struct {
		Name     string `json:"name"`
		Quantity int64  `json:"quantity"`
	} `json:"lines"`
	Origin string `json:"origin"`
}

func (d *Dispatcher) market(ctx context.Context, params json.RawMessage) (any, error) {
	var req marketRequest
	if err := decode(params, &req); err != nil {
		return nil, err
	}
	switch req.Action {
	case "prices":
		return d.marketPrices(ctx, req)
	case "orders":
		return d.marketOrders(ctx, req)
	case "valuation":
		return d.marketValuation(ctx, req)
	case "spread":
		return d.marketSpread(ctx, req)
	case "history":
		return d.marketHistory(ctx, req)
	case "find_nearby":
		return d.marketFindNearby(ctx, req)
	default:
		return nil, unknownAction(req.Action, marketActions)
	}
}

type priceEntry struct {
	Name string `json:"name"`
	market.Price
}

type pricesResponse struct {
	Region     string       `json:"region"`
	RegionID   int32        `json:"region_id"`
	Prices     []priceEntry `json:"prices"`
	TotalFound int          `json:"total_found"`
	Warnings   []string     `json:"warnings,omitempty"`
}

func (d *Dispatcher) marketPrices(ctx context.Context, req marketRequest) (any, error) {
	if len(req.Items) == 0 {
		return nil, errs.InvalidParameter("items", "must name at least one item")
	}
	regionID, regionName, err := d.resolveRegion(req.Region)
	if err != nil {
		return nil, err
	}
	resolved, failed := d.deps.Resolver.Types(ctx, req.Items)
	if len(resolved) == 0 {
		for _, ferr := range failed {
			return nil, ferr
		}
	}

	resp := pricesResponse{Region: regionName, RegionID: regionID}
	for name, ferr := range failed {
		resp.Warnings = append(resp.Warnings, name+": "+errs.AsError(ferr).Message)
	}
	sort.Strings(resp.Warnings)

	ids := make([]int32, 0, len(resolved))
	nameByID := make(map[int32]string, len(resolved))
	for _, name := range req.Items {
		t, ok := resolved[name]
		if !ok {
			continue
		}
		ids = append(ids, t.TypeID)
		nameByID[t.TypeID] = t.Name
	}
	prices, err := d.deps.Market.Prices(ctx, regionID, ids)
	if err != nil {
		return nil, err
	}
	for _, p := range prices {
		resp.Prices = append(resp.Prices, priceEntry{Name: nameByID[p.TypeID], Price: p})
	}
	resp.TotalFound = len(resp.Prices)
	return resp, nil
}

type ordersResponse struct {
	Item   string `json:"item"`
	Region string `json:"region"`
	market.OrdersResult
	TotalFound int `json:"total_found"`
}

func (d *Dispatcher) marketOrders(ctx context.Context, req marketRequest) (any, error) {
	regionID, regionName, err := d.resolveRegion(req.Region)
	if err != nil {
		return nil, err
	}
	item, err := d.deps.Resolver.Type(ctx, req.Item)
	if err != nil {
		return nil, err
	}
	limit, err := intInRange("limit", req.Limit, 10, 1, 100)
	if err != nil {
		return nil, err
	}
	res, err := d.deps.Market.Orders(ctx, regionID, item.TypeID, limit)
	if err != nil {
		return nil, err
	}
	return ordersResponse{
		Item:         item.Name,
		Region:       regionName,
		OrdersResult: res,
		TotalFound:   len(res.Buys) + len(res.Sells),
	}, nil
}

type valuationResponse struct {
	Region string `json:"region"`
	market.ValuationResult
	TotalFound int `json:"total_found"`
}

// marketValuation accepts either structured lines or a free-text paste.
func (d *Dispatcher) marketValuation(ctx context.Context, req marketRequest) (any, error) {
	regionID, regionName, err := d.resolveRegion(req.Region)
	if err != nil {
		return nil, err
	}
	side := req.Side
	if side == "" {
		side = "sell"
	}
	if side != "buy" && side != "sell" {
		return nil, errs.InvalidParameter("side", "must be buy or sell")
	}

	type wanted struct {
		Name     string
		Quantity int64
	}
	var items []wanted
	for _, l := range req.Lines {
		items = append(items, wanted{Name: l.Name, Quantity: l.Quantity})
	}
	if req.Paste != "" {
		for _, p := range market.ParsePaste(req.Paste) {
			items = append(items, wanted{Name: p.Name, Quantity: p.Quantity})
		}
	}

	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.Name
	}
	resolved, failed := d.deps.Resolver.Types(ctx, names)

	var inputs []market.ValuationInput
	var warnings []string
	anyMissing := false
	for _, it := range items {
		t, ok := resolved[it.Name]
		if !ok {
			anyMissing = true
			warnings = append(warnings, it.Name+": "+errs.AsError(failed[it.Name]).Message)
			continue
		}
		qty := it.Quantity
		if qty <= 0 {
			qty = 1
		}
		inputs = append(inputs, market.ValuationInput{TypeID: t.TypeID, Name: t.Name, Quantity: qty})
	}

	res, err := d.deps.Market.Valuate(ctx, regionID, side, inputs)
	if err != nil {
		return nil, err
	}
	res.Warnings = append(res.Warnings, warnings...)
	if anyMissing {
		res.Confidence = "low"
	}
	return valuationResponse{
		Region:          regionName,
		ValuationResult: res,
		TotalFound:      len(res.Lines),
	}, nil
}

type spreadResponse struct {
	Item   string `json:"item"`
	Region string `json:"region"`
	market.SpreadResult
}

func (d *Dispatcher) marketSpread(ctx context.Context, req marketRequest) (any, error) {
	regionID, regionName, err := d.resolveRegion(req.Region)
	if err != nil {
		return nil, err
	}
	item, err := d.deps.Resolver.Type(ctx, req.Item)
	if err != nil {
		return nil, err
	}
	res, err := d.deps.Market.Spread(ctx, regionID, item.TypeID)
	if err != nil {
		return nil, err
	}
	return spreadResponse{Item: item.Name, Region: regionName, SpreadResult: res}, nil
}

type historyResponse struct {
	Item   string `json:"item"`
	Region string `json:"region"`
	market.HistoryResult
	TotalFound int `json:"total_found"`
}

func (d *Dispatcher) marketHistory(ctx context.Context, req marketRequest) (any, error) {
	regionID, regionName, err := d.resolveRegion(req.Region)
	if err != nil {
		return nil, err
	}
	item, err := d.deps.Resolver.Type(ctx, req.Item)
	if err != nil {
		return nil, err
	}
	res, err := d.deps.Market.History(ctx, regionID, item.TypeID)
	if err != nil {
		return nil, err
	}
	return historyResponse{
		Item:          item.Name,
		Region:        regionName,
		HistoryResult: res,
		TotalFound:    len(res.Entries),
	}, nil
}

type nearbyHub struct {
	System   string `json:"system"`
	Region   string `json:"region"`
	RegionID int32  `json:"region_id"`
	Jumps    int    `json:"jumps"`
	Seeded   bool   `json:"seeded"`
}

type findNearbyResponse struct {
	Origin     string      `json:"origin"`
	Hubs       []nearbyHub `json:"hubs"`
	TotalFound int         `json:"total_found"`
}

// marketFindNearby ranks the major trade hubs by gate distance from the
// origin. Seeded reports whether the persistent store holds aggregates
// for the hub's region.
func (d *Dispatcher) marketFindNearby(ctx context.Context, req marketRequest) (any, error) {
	origin, err := d.resolveSystem(req.Origin)
	if err != nil {
		return nil, err
	}

	var hubs []nearbyHub
	for _, h := range market.Hubs {
		hv, ok := d.deps.Graph.IndexOfID(h.SystemID)
		if !ok {
			continue
		}
		jumps, err := d.deps.Graph.JumpsBetween(ctx, origin, hv)
		if err != nil {
			if errs.KindOf(err) == errs.KindCancelled {
				return nil, err
			}
			continue
		}
		if jumps < 0 {
			continue // unreachable hub
		}
		entry := nearbyHub{System: h.System, Region: h.Region, RegionID: h.RegionID, Jumps: jumps}
		if d.deps.Store != nil {
			_, entry.Seeded, _ = d.deps.Store.NewestUpdate(ctx, h.RegionID)
		}
		hubs = append(hubs, entry)
	}
	sort.Slice(hubs, func(i, j int) bool {
		if hubs[i].Jumps != hubs[j].Jumps {
			return hubs[i].Jumps < hubs[j].Jumps
		}
		return hubs[i].System < hubs[j].System
	})
	return findNearbyResponse{
		Origin:     d.deps.Graph.Names[origin],
		Hubs:       hubs,
		TotalFound: len(hubs),
	}, nil
}

// itemTypeView is the store record shaped for the wire.
type itemTypeView struct {
	TypeID        int32  `json:"type_id"`
	Name          string `json:"name"`
	GroupID       int32  `json:"group_id"`
	MarketGroupID int32  `json:"market_group_id"`
}

func viewOfType(t store.ItemType) itemTypeView {
	return itemTypeView{TypeID: t.TypeID, Name: t.Name, GroupID: t.GroupID, MarketGroupID: t.MarketGroupID}
}
