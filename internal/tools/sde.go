package tools

import (
	"context"
	"encoding/json"

	"eve-tactician/internal/errs"
	"eve-tactician/internal/universe"
)

var sdeActions = []string{"type_info", "system_info", "region_info", "search_types"}

type sdeRequest struct {
	Action string `json:"action"`
	Name   string `json:"name"`
	Query  string `json:"query"`
	Limit  int    `json:"limit"`
}

func (d *Dispatcher) sde(ctx context.Context, params json.RawMessage) (any, error) {
	var req sdeRequest
	if err := decode(params, &req); err != nil {
		return nil, err
	}
	switch req.Action {
	case "type_info":
		return d.sdeTypeInfo(ctx, req)
	case "system_info":
		return d.sdeSystemInfo(req)
	case "region_info":
		return d.sdeRegionInfo(req)
	case "search_types":
		return d.sdeSearchTypes(ctx, req)
	default:
		return nil, unknownAction(req.Action, sdeActions)
	}
}

func (d *Dispatcher) sdeTypeInfo(ctx context.Context, req sdeRequest) (any, error) {
	t, err := d.deps.Resolver.Type(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	return viewOfType(t), nil
}

func (d *Dispatcher) sdeSystemInfo(req sdeRequest) (any, error) {
	if req.Name == "" {
		return nil, errs.InvalidParameter("name", "system name must not be empty")
	}
	v, ok := d.deps.Graph.IndexOfName(req.Name)
	if !ok {
		return nil, errs.SystemNotFound(req.Name, d.deps.Graph.Suggest(req.Name, 3))
	}
	return d.deps.Graph.Info(v), nil
}

type regionInfoResponse struct {
	Region      string `json:"region"`
	RegionID    int32  `json:"region_id"`
	SystemCount int    `json:"system_count"`
	HighCount   int    `json:"high_count"`
	LowCount    int    `json:"low_count"`
	NullCount   int    `json:"null_count"`
	BorderCount int    `json:"border_count"`
	TotalFound  int    `json:"total_found"`
}

func (d *Dispatcher) sdeRegionInfo(req sdeRequest) (any, error) {
	if req.Name == "" {
		return nil, errs.InvalidParameter("name", "region name must not be empty")
	}
	id, ok := d.deps.Graph.RegionIDByName(req.Name)
	if !ok {
		return nil, errs.InvalidParameter("name", "unknown region: "+req.Name)
	}
	resp := regionInfoResponse{Region: d.deps.Graph.RegionNames[id], RegionID: id}
	for _, v := range d.deps.Graph.RegionVertices(id) {
		resp.SystemCount++
		switch d.deps.Graph.ClassOfVertex(v) {
		case universe.ClassHigh:
			resp.HighCount++
		case universe.ClassLow:
			resp.LowCount++
		default:
			resp.NullCount++
		}
		if d.deps.Graph.IsBorder(v) {
			resp.BorderCount++
		}
	}
	resp.TotalFound = resp.SystemCount
	return resp, nil
}

type searchTypesResponse struct {
	Types      []itemTypeView `json:"types"`
	TotalFound int            `json:"total_found"`
}

func (d *Dispatcher) sdeSearchTypes(ctx context.Context, req sdeRequest) (any, error) {
	if req.Query == "" {
		return nil, errs.InvalidParameter("query", "must not be empty")
	}
	limit, err := intInRange("limit", req.Limit, 10, 1, 100)
	if err != nil {
		return nil, err
	}
	types, err := d.deps.Store.SearchTypes(ctx, req.Query, limit)
	if err != nil {
		return nil, err
	}
	resp := searchTypesResponse{Types: make([]itemTypeView, 0, len(types))}
	for _, t := range types {
		resp.Types = append(resp.Types, viewOfType(t))
	}
	resp.TotalFound = len(resp.Types)
	return resp, nil
}
