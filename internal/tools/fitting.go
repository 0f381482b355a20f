package tools

import (
	"context"
	"encoding/json"

	"eve-tactician/internal/errs"
	"eve-tactician/internal/fitting"
)

var fittingActions = []string{"calculate_stats"}

type fittingRequest struct {
	Action string `json:"action"`
	Fit    string `json:"fit"`
}

type fittingResponse struct {
	Fit   *fitting.Fit  `json:"fit"`
	Stats fitting.Stats `json:"stats"`
}

func (d *Dispatcher) fitting(ctx context.Context, params json.RawMessage) (any, error) {
	var req fittingRequest
	if err := decode(params, &req); err != nil {
		return nil, err
	}
	switch req.Action {
	case "calculate_stats":
		return d.fittingCalculateStats(ctx, req)
	default:
		return nil, unknownAction(req.Action, fittingActions)
	}
}

func (d *Dispatcher) fittingCalculateStats(ctx context.Context, req fittingRequest) (any, error) {
	if req.Fit == "" {
		return nil, errs.InvalidParameter("fit", "must contain the fit text")
	}
	resolve := func(ctx context.Context, name string) (int32, bool) {
		t, err := d.deps.Resolver.Type(ctx, name)
		if err != nil {
			return 0, false
		}
		return t.TypeID, true
	}
	fit, err := fitting.Parse(ctx, req.Fit, resolve)
	if err != nil {
		return nil, err
	}
	return fittingResponse{Fit: fit, Stats: d.deps.Fitting.Stats(fit)}, nil
}
