package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"eve-tactician/internal/errs"
	"eve-tactician/internal/universe"
	"eve-tactician/internal/volatile"
)

var universeActions = []string{
	"route", "systems", "borders", "search", "loop", "analyze", "nearest",
	"activity", "hotspots", "gatecamp_risk", "fw_frontlines", "local_area",
}

// universeRequest is the superset of parameters across universe actions;
// each action reads and validates its own subset.
type universeRequest struct {
	Action        string   `json:"action"`
	Origin        string   `json:"origin"`
	Destination   string   `json:"destination"`
	Mode          string   `json:"mode"`
	Systems       []string `json:"systems"`
	Region        string   `json:"region"`
	SecurityMin   *float64 `json:"security_min"`
	SecurityMax   *float64 `json:"security_max"`
	SecurityClass string   `json:"security_class"`
	BorderOnly    bool     `json:"border_only"`
	MaxJumps      int      `json:"max_jumps"`
	Limit         int      `json:"limit"`
	TargetJumps   int      `json:"target_jumps"`
	MinBorders    int      `json:"min_borders"`
	MaxBorders    int      `json:"max_borders"`
}

func (d *Dispatcher) universe(ctx context.Context, params json.RawMessage) (any, error) {
	var req universeRequest
	if err := decode(params, &req); err != nil {
		return nil, err
	}
	switch req.Action {
	case "route":
		return d.universeRoute(ctx, req)
	case "systems":
		return d.universeSystems(req)
	case "borders":
		return d.universeBorders(ctx, req)
	case "search":
		return d.universeSearch(ctx, req)
	case "loop":
		return d.universeLoop(ctx, req)
	case "analyze":
		return d.universeAnalyze(req)
	case "nearest":
		return d.universeNearest(ctx, req)
	case "activity":
		return d.universeActivity(ctx, req)
	case "hotspots":
		return d.universeHotspots(ctx, req)
	case "gatecamp_risk":
		return d.universeGatecampRisk(ctx, req)
	case "fw_frontlines":
		return d.universeFWFrontlines(ctx, req)
	case "local_area":
		return d.universeLocalArea(ctx, req)
	default:
		return nil, unknownAction(req.Action, universeActions)
	}
}

type routeResponse struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Mode        string `json:"mode"`
	Jumps       int    `json:"jumps"`
	universe.RouteAnalysis
	TotalFound int `json:"total_found"`
}

func (d *Dispatcher) universeRoute(ctx context.Context, req universeRequest) (any, error) {
	origin, err := d.resolveSystem(req.Origin)
	if err != nil {
		return nil, err
	}
	dest, err := d.resolveSystem(req.Destination)
	if err != nil {
		return nil, errs.AsError(err).With("parameter", "destination")
	}
	mode := req.Mode
	if mode == "" {
		mode = string(universe.ModeShortest)
	}
	if !universe.ValidMode(mode) {
		return nil, errs.InvalidParameter("mode", "must be one of shortest, safe, unsafe")
	}

	path, err := d.deps.Graph.Route(ctx, origin, dest, universe.Mode(mode))
	if err != nil {
		return nil, err
	}
	analysis := d.deps.Graph.Analyze(path, mode == string(universe.ModeSafe))
	return routeResponse{
		Origin:        d.deps.Graph.Names[origin],
		Destination:   d.deps.Graph.Names[dest],
		Mode:          mode,
		Jumps:         len(path) - 1,
		RouteAnalysis: analysis,
		TotalFound:    len(path),
	}, nil
}

type systemsResponse struct {
	Systems    []universe.SystemInfo `json:"systems"`
	TotalFound int                   `json:"total_found"`
	Warnings   []string              `json:"warnings,omitempty"`
}

func (d *Dispatcher) universeSystems(req universeRequest) (any, error) {
	if len(req.Systems) == 0 {
		return nil, errs.InvalidParameter("systems", "must name at least one system")
	}
	var resp systemsResponse
	for _, name := range req.Systems {
		v, err := d.resolveSystem(name)
		if err != nil {
			// Batch policy: the failing item is omitted and recorded.
			resp.Warnings = append(resp.Warnings, errs.AsError(err).Message)
			continue
		}
		resp.Systems = append(resp.Systems, d.deps.Graph.Info(v))
	}
	if len(resp.Systems) == 0 {
		return nil, errs.SystemNotFound(req.Systems[0], d.deps.Graph.Suggest(req.Systems[0], 3))
	}
	resp.TotalFound = len(resp.Systems)
	return resp, nil
}

type bordersResponse struct {
	Origin     string               `json:"origin"`
	Borders    []universe.BorderHit `json:"borders"`
	TotalFound int                  `json:"total_found"`
}

func (d *Dispatcher) universeBorders(ctx context.Context, req universeRequest) (any, error) {
	origin, err := d.resolveSystem(req.Origin)
	if err != nil {
		return nil, err
	}
	maxJumps, err := intInRange("max_jumps", req.MaxJumps, 10, 1, 50)
	if err != nil {
		return nil, err
	}
	limit, err := intInRange("limit", req.Limit, 5, 1, 100)
	if err != nil {
		return nil, err
	}
	hits, err := d.deps.Graph.BordersNear(ctx, origin, maxJumps, limit)
	if err != nil {
		return nil, err
	}
	return bordersResponse{
		Origin:     d.deps.Graph.Names[origin],
		Borders:    hits,
		TotalFound: len(hits),
	}, nil
}

type searchResponse struct {
	Systems    []universe.SearchHit `json:"systems"`
	TotalFound int                  `json:"total_found"`
}

func (d *Dispatcher) universeSearch(ctx context.Context, req universeRequest) (any, error) {
	limit, err := intInRange("limit", req.Limit, 50, 1, 100)
	if err != nil {
		return nil, err
	}
	filter := universe.SearchFilter{
		Region:     req.Region,
		BorderOnly: req.BorderOnly,
		Limit:      limit,
	}
	if req.SecurityMin != nil {
		filter.SecurityMin, filter.SecurityMinSet = *req.SecurityMin, true
	}
	if req.SecurityMax != nil {
		filter.SecurityMax, filter.SecurityMaxSet = *req.SecurityMax, true
	}
	if req.MaxJumps > 0 {
		if req.Origin == "" {
			return nil, errs.InvalidParameter("origin", "required when max_jumps is set")
		}
		origin, err := d.resolveSystem(req.Origin)
		if err != nil {
			return nil, err
		}
		maxJumps, err := intInRange("max_jumps", req.MaxJumps, 0, 1, 50)
		if err != nil {
			return nil, err
		}
		filter.Origin, filter.MaxJumps = origin, maxJumps
	}
	hits, err := d.deps.Graph.Search(ctx, filter)
	if err != nil {
		return nil, err
	}
	return searchResponse{Systems: hits, TotalFound: len(hits)}, nil
}

type loopResponse struct {
	Origin               string   `json:"origin"`
	Systems              []string `json:"systems"`
	BorderSystemsVisited []string `json:"border_systems_visited"`
	TotalJumps           int      `json:"total_jumps"`
	UniqueSystems        int      `json:"unique_systems"`
	BacktrackJumps       int      `json:"backtrack_jumps"`
	Efficiency           float64  `json:"efficiency"`
	TotalFound           int      `json:"total_found"`
}

func (d *Dispatcher) universeLoop(ctx context.Context, req universeRequest) (any, error) {
	origin, err := d.resolveSystem(req.Origin)
	if err != nil {
		return nil, err
	}
	targetJumps, err := intInRange("target_jumps", req.TargetJumps, 25, 10, 100)
	if err != nil {
		return nil, err
	}
	minBorders, err := intInRange("min_borders", req.MinBorders, 4, 2, 10)
	if err != nil {
		return nil, err
	}
	maxBorders, err := intInRange("max_borders", req.MaxBorders, 8, minBorders, 15)
	if err != nil {
		return nil, err
	}

	plan, err := d.deps.Graph.PlanLoop(ctx, origin, targetJumps, minBorders, maxBorders)
	if err != nil {
		return nil, err
	}
	resp := loopResponse{
		Origin:         d.deps.Graph.Names[origin],
		TotalJumps:     plan.TotalJumps,
		UniqueSystems:  plan.UniqueSystems,
		BacktrackJumps: plan.BacktrackJumps,
		Efficiency:     plan.Efficiency,
		TotalFound:     len(plan.Path),
	}
	for _, v := range plan.Path {
		resp.Systems = append(resp.Systems, d.deps.Graph.Names[v])
	}
	for _, v := range plan.BorderSequence {
		resp.BorderSystemsVisited = append(resp.BorderSystemsVisited, d.deps.Graph.Names[v])
	}
	return resp, nil
}

type analyzeResponse struct {
	Jumps int `json:"jumps"`
	universe.RouteAnalysis
	TotalFound int `json:"total_found"`
}

// universeAnalyze enriches a caller-supplied route. Consecutive systems
// must share a gate.
func (d *Dispatcher) universeAnalyze(req universeRequest) (any, error) {
	if len(req.Systems) < 2 {
		return nil, errs.InvalidParameter("systems", "must name at least two systems")
	}
	path := make([]int32, len(req.Systems))
	for i, name := range req.Systems {
		v, err := d.resolveSystem(name)
		if err != nil {
			return nil, err
		}
		path[i] = v
	}
	for i := 1; i < len(path); i++ {
		adjacent := false
		for _, nb := range d.deps.Graph.Adj[path[i-1]] {
			if nb == path[i] {
				adjacent = true
				break
			}
		}
		if !adjacent {
			return nil, errs.InvalidParameter("systems",
				req.Systems[i-1]+" and "+req.Systems[i]+" are not connected by a gate")
		}
	}
	analysis := d.deps.Graph.Analyze(path, false)
	return analyzeResponse{
		Jumps:         len(path) - 1,
		RouteAnalysis: analysis,
		TotalFound:    len(path),
	}, nil
}

type nearestResponse struct {
	Origin     string                `json:"origin"`
	Class      string                `json:"security_class"`
	Systems    []universe.NearestHit `json:"systems"`
	TotalFound int                   `json:"total_found"`
}

func (d *Dispatcher) universeNearest(ctx context.Context, req universeRequest) (any, error) {
	origin, err := d.resolveSystem(req.Origin)
	if err != nil {
		return nil, err
	}
	var want universe.SecurityClass
	switch req.SecurityClass {
	case "high":
		want = universe.ClassHigh
	case "low":
		want = universe.ClassLow
	case "null":
		want = universe.ClassNull
	default:
		return nil, errs.InvalidParameter("security_class", "must be one of high, low, null")
	}
	maxJumps, err := intInRange("max_jumps", req.MaxJumps, 20, 1, 50)
	if err != nil {
		return nil, err
	}
	limit, err := intInRange("limit", req.Limit, 5, 1, 100)
	if err != nil {
		return nil, err
	}
	hits, err := d.deps.Graph.NearestOfClass(ctx, origin, want, maxJumps, limit)
	if err != nil {
		return nil, err
	}
	return nearestResponse{
		Origin:     d.deps.Graph.Names[origin],
		Class:      req.SecurityClass,
		Systems:    hits,
		TotalFound: len(hits),
	}, nil
}

type activityEntry struct {
	System string `json:"system"`
	volatile.ActivityRecord
}

type activityResponse struct {
	Entries         []activityEntry `json:"entries"`
	TotalFound      int             `json:"total_found"`
	CacheAgeSeconds int             `json:"cache_age_seconds"`
	Freshness       string          `json:"freshness"`
	Warnings        []string        `json:"warnings,omitempty"`
}

func (d *Dispatcher) universeActivity(ctx context.Context, req universeRequest) (any, error) {
	if len(req.Systems) == 0 {
		return nil, errs.InvalidParameter("systems", "must name at least one system")
	}
	ids := make([]int32, 0, len(req.Systems))
	var warnings []string
	for _, name := range req.Systems {
		v, err := d.resolveSystem(name)
		if err != nil {
			warnings = append(warnings, errs.AsError(err).Message)
			continue
		}
		ids = append(ids, d.deps.Graph.SystemIDs[v])
	}
	if len(ids) == 0 {
		return nil, errs.SystemNotFound(req.Systems[0], d.deps.Graph.Suggest(req.Systems[0], 3))
	}

	records, meta, err := d.deps.Volatile.Activity(ctx, ids)
	if err != nil {
		return nil, err
	}
	resp := activityResponse{
		TotalFound:      len(records),
		CacheAgeSeconds: int(meta.Age.Seconds()),
		Freshness:       volatileFreshness(meta.Age, volatile.KillsTTL, meta.Stale),
		Warnings:        append(warnings, meta.Warnings...),
	}
	for _, r := range records {
		resp.Entries = append(resp.Entries, activityEntry{System: d.nameOfSystemID(r.SystemID), ActivityRecord: r})
	}
	return resp, nil
}

func (d *Dispatcher) universeHotspots(ctx context.Context, req universeRequest) (any, error) {
	limit, err := intInRange("limit", req.Limit, 10, 1, 100)
	if err != nil {
		return nil, err
	}
	records, meta, err := d.deps.Volatile.Hotspots(ctx, limit)
	if err != nil {
		return nil, err
	}
	resp := activityResponse{
		TotalFound:      len(records),
		CacheAgeSeconds: int(meta.Age.Seconds()),
		Freshness:       volatileFreshness(meta.Age, volatile.KillsTTL, meta.Stale),
		Warnings:        meta.Warnings,
	}
	for _, r := range records {
		resp.Entries = append(resp.Entries, activityEntry{System: d.nameOfSystemID(r.SystemID), ActivityRecord: r})
	}
	return resp, nil
}

type campEntry struct {
	System     string  `json:"system"`
	Security   float64 `json:"security"`
	Class      string  `json:"class"`
	Pipe       bool    `json:"pipe"`
	Chokepoint bool    `json:"chokepoint"`
	ShipKills  int     `json:"ship_kills"`
	PodKills   int     `json:"pod_kills"`
	Risk       string  `json:"risk"`
}

type gatecampResponse struct {
	Origin          string      `json:"origin"`
	Destination     string      `json:"destination"`
	Mode            string      `json:"mode"`
	Jumps           int         `json:"jumps"`
	OverallRisk     string      `json:"overall_risk"`
	Camps           []campEntry `json:"camps"`
	TotalFound      int         `json:"total_found"`
	CacheAgeSeconds int         `json:"cache_age_seconds"`
	Freshness       string      `json:"freshness"`
	Warnings        []string    `json:"warnings,omitempty"`
}

var riskOrder = map[string]int{"minimal": 0, "low": 1, "medium": 2, "high": 3}

// campRisk scores one route system for gatecamp likelihood: pipes and
// chokepoints concentrate traffic, pod kills are the strongest live
// signal that a camp is active.
func campRisk(pipe, chokepoint bool, shipKills, podKills int) string {
	score := 0
	if pipe {
		score += 2
	}
	if chokepoint {
		score += 2
	}
	switch {
	case podKills >= 5:
		score += 3
	case podKills >= 1:
		score += 2
	}
	switch {
	case shipKills >= 20:
		score += 2
	case shipKills >= 5:
		score++
	}
	switch {
	case score >= 6:
		return "high"
	case score >= 4:
		return "medium"
	case score >= 2:
		return "low"
	default:
		return "minimal"
	}
}

func (d *Dispatcher) universeGatecampRisk(ctx context.Context, req universeRequest) (any, error) {
	origin, err := d.resolveSystem(req.Origin)
	if err != nil {
		return nil, err
	}
	dest, err := d.resolveSystem(req.Destination)
	if err != nil {
		return nil, errs.AsError(err).With("parameter", "destination")
	}
	mode := req.Mode
	if mode == "" {
		mode = string(universe.ModeShortest)
	}
	if !universe.ValidMode(mode) {
		return nil, errs.InvalidParameter("mode", "must be one of shortest, safe, unsafe")
	}
	path, err := d.deps.Graph.Route(ctx, origin, dest, universe.Mode(mode))
	if err != nil {
		return nil, err
	}

	ids := make([]int32, len(path))
	for i, v := range path {
		ids[i] = d.deps.Graph.SystemIDs[v]
	}
	records, meta, err := d.deps.Volatile.Activity(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int32]volatile.ActivityRecord, len(records))
	for _, r := range records {
		byID[r.SystemID] = r
	}

	analysis := d.deps.Graph.Analyze(path, false)
	chokes := make(map[string]bool, len(analysis.Chokepoints))
	for _, c := range analysis.Chokepoints {
		chokes[c.System] = true
	}

	resp := gatecampResponse{
		Origin:          d.deps.Graph.Names[origin],
		Destination:     d.deps.Graph.Names[dest],
		Mode:            mode,
		Jumps:           len(path) - 1,
		OverallRisk:     "minimal",
		CacheAgeSeconds: int(meta.Age.Seconds()),
		Freshness:       volatileFreshness(meta.Age, volatile.KillsTTL, meta.Stale),
		Warnings:        meta.Warnings,
	}
	for _, v := range path {
		name := d.deps.Graph.Names[v]
		nonHigh := d.deps.Graph.ClassOfVertex(v) != universe.ClassHigh
		if !nonHigh && !chokes[name] {
			continue
		}
		rec := byID[d.deps.Graph.SystemIDs[v]]
		pipe := nonHigh && len(d.deps.Graph.Adj[v]) == 2
		entry := campEntry{
			System:     name,
			Security:   d.deps.Graph.Security[v],
			Class:      string(d.deps.Graph.ClassOfVertex(v)),
			Pipe:       pipe,
			Chokepoint: chokes[name],
			ShipKills:  rec.ShipKills,
			PodKills:   rec.PodKills,
			Risk:       campRisk(pipe, chokes[name], rec.ShipKills, rec.PodKills),
		}
		resp.Camps = append(resp.Camps, entry)
		if riskOrder[entry.Risk] > riskOrder[resp.OverallRisk] {
			resp.OverallRisk = entry.Risk
		}
	}
	resp.TotalFound = len(resp.Camps)
	return resp, nil
}

// factionNames covers the four empire militias in faction warfare.
var factionNames = map[int32]string{
	500001: "Caldari State",
	500002: "Minmatar Republic",
	500003: "Amarr Empire",
	500004: "Gallente Federation",
}

func factionName(id int32) string {
	if name, ok := factionNames[id]; ok {
		return name
	}
	return fmt.Sprintf("faction-%d", id)
}

type frontlineEntry struct {
	System         string  `json:"system"`
	SystemID       int32   `json:"system_id"`
	Owner          string  `json:"owner"`
	Occupier       string  `json:"occupier"`
	Contested      string  `json:"contested"`
	VictoryPoints  int     `json:"victory_points"`
	VPThreshold    int     `json:"victory_points_threshold"`
	ContestPercent float64 `json:"contest_percent"`
}

type frontlinesResponse struct {
	Frontlines      []frontlineEntry `json:"frontlines"`
	TotalFound      int              `json:"total_found"`
	CacheAgeSeconds int              `json:"cache_age_seconds"`
	Freshness       string           `json:"freshness"`
	Warnings        []string         `json:"warnings,omitempty"`
}

// universeFWFrontlines lists contested faction-warfare systems, most
// contested first.
func (d *Dispatcher) universeFWFrontlines(ctx context.Context, req universeRequest) (any, error) {
	limit, err := intInRange("limit", req.Limit, 20, 1, 100)
	if err != nil {
		return nil, err
	}
	fw, err := d.deps.Volatile.FW(ctx)
	if err != nil {
		return nil, err
	}

	var entries []frontlineEntry
	for id, sys := range fw.Data {
		if sys.Contested == "uncontested" {
			continue
		}
		e := frontlineEntry{
			System:        d.nameOfSystemID(id),
			SystemID:      id,
			Owner:         factionName(sys.OwnerFactionID),
			Occupier:      factionName(sys.OccupierFactionID),
			Contested:     sys.Contested,
			VictoryPoints: sys.VictoryPoints,
			VPThreshold:   sys.VictoryPointsThreshold,
		}
		if sys.VictoryPointsThreshold > 0 {
			e.ContestPercent = 100 * float64(sys.VictoryPoints) / float64(sys.VictoryPointsThreshold)
		}
		entries = append(entries, e)
	}
	// Vulnerable systems outrank merely contested ones; within a state,
	// higher contest percentage first.
	stateOrder := map[string]int{"vulnerable": 0, "contested": 1}
	sort.Slice(entries, func(i, j int) bool {
		if stateOrder[entries[i].Contested] != stateOrder[entries[j].Contested] {
			return stateOrder[entries[i].Contested] < stateOrder[entries[j].Contested]
		}
		if entries[i].ContestPercent != entries[j].ContestPercent {
			return entries[i].ContestPercent > entries[j].ContestPercent
		}
		return entries[i].System < entries[j].System
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}

	resp := frontlinesResponse{
		Frontlines:      entries,
		TotalFound:      len(entries),
		CacheAgeSeconds: int(fw.Age.Seconds()),
		Freshness:       volatileFreshness(fw.Age, volatile.FWTTL, fw.Stale),
	}
	if fw.Warning != "" {
		resp.Warnings = append(resp.Warnings, fw.Warning)
	}
	return resp, nil
}

type localAreaEntry struct {
	System        string  `json:"system"`
	Jumps         int     `json:"jumps"`
	Security      float64 `json:"security"`
	Class         string  `json:"class"`
	ShipKills     int     `json:"ship_kills"`
	PodKills      int     `json:"pod_kills"`
	NPCKills      int     `json:"npc_kills"`
	ShipJumps     int     `json:"ship_jumps"`
	ActivityLevel string  `json:"activity_level"`
}

type localAreaResponse struct {
	Origin          string           `json:"origin"`
	Entries         []localAreaEntry `json:"entries"`
	TotalFound      int              `json:"total_found"`
	CacheAgeSeconds int              `json:"cache_age_seconds"`
	Freshness       string           `json:"freshness"`
	Warnings        []string         `json:"warnings,omitempty"`
}

// universeLocalArea joins the surrounding topology with live activity:
// everything within max_jumps, distance order.
func (d *Dispatcher) universeLocalArea(ctx context.Context, req universeRequest) (any, error) {
	origin, err := d.resolveSystem(req.Origin)
	if err != nil {
		return nil, err
	}
	maxJumps, err := intInRange("max_jumps", req.MaxJumps, 5, 1, 50)
	if err != nil {
		return nil, err
	}
	dist, err := d.deps.Graph.Distances(ctx, origin, maxJumps)
	if err != nil {
		return nil, err
	}

	ids := make([]int32, 0, len(dist))
	for v := range dist {
		ids = append(ids, d.deps.Graph.SystemIDs[v])
	}
	records, meta, err := d.deps.Volatile.Activity(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int32]volatile.ActivityRecord, len(records))
	for _, r := range records {
		byID[r.SystemID] = r
	}

	resp := localAreaResponse{
		Origin:          d.deps.Graph.Names[origin],
		CacheAgeSeconds: int(meta.Age.Seconds()),
		Freshness:       volatileFreshness(meta.Age, volatile.KillsTTL, meta.Stale),
		Warnings:        meta.Warnings,
	}
	for v, jumps := range dist {
		rec := byID[d.deps.Graph.SystemIDs[v]]
		resp.Entries = append(resp.Entries, localAreaEntry{
			System:        d.deps.Graph.Names[v],
			Jumps:         jumps,
			Security:      d.deps.Graph.Security[v],
			Class:         string(d.deps.Graph.ClassOfVertex(v)),
			ShipKills:     rec.ShipKills,
			PodKills:      rec.PodKills,
			NPCKills:      rec.NPCKills,
			ShipJumps:     rec.ShipJumps,
			ActivityLevel: rec.Level,
		})
	}
	sort.Slice(resp.Entries, func(i, j int) bool {
		if resp.Entries[i].Jumps != resp.Entries[j].Jumps {
			return resp.Entries[i].Jumps < resp.Entries[j].Jumps
		}
		return resp.Entries[i].System < resp.Entries[j].System
	})
	resp.TotalFound = len(resp.Entries)
	return resp, nil
}
