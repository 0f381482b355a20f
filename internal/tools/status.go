package tools

import (
	"context"
	"time"

	"eve-tactician/internal/volatile"
)

type graphStatus struct {
	Systems int    `json:"systems"`
	Borders int    `json:"borders"`
	Regions int    `json:"regions"`
	Version string `json:"version"`
}

type storeStatus struct {
	Types int  `json:"types"`
	Open  bool `json:"open"`
}

type statusResponse struct {
	UptimeSeconds int                    `json:"uptime_seconds"`
	Graph         graphStatus            `json:"graph"`
	Volatile      []volatile.LayerStatus `json:"volatile"`
	Market        map[string]int         `json:"market"`
	Store         storeStatus            `json:"store"`
}

// status reports component health without issuing any I/O beyond a
// cheap store count.
func (d *Dispatcher) status(ctx context.Context) (any, error) {
	resp := statusResponse{
		UptimeSeconds: int(time.Since(d.started).Seconds()),
		Graph: graphStatus{
			Systems: d.deps.Graph.VertexCount(),
			Borders: d.deps.Graph.BorderCount(),
			Regions: len(d.deps.Graph.RegionNames),
			Version: d.deps.Graph.Version,
		},
		Volatile: d.deps.Volatile.Status(),
		Market:   d.deps.Market.Status(),
	}
	if d.deps.Store != nil {
		resp.Store.Open = true
		if n, err := d.deps.Store.TypeCount(ctx); err == nil {
			resp.Store.Types = n
		}
	}
	return resp, nil
}
