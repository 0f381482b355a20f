// Package tools is the dispatch surface external callers invoke. Each
// tool accepts a JSON object with an "action" field plus action-specific
// parameters, validates them against documented ranges, routes to the
// owning component, and serializes the result. Errors follow the wire
// shape {"error": {"code", "message", "data"}}.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"eve-tactician/internal/errs"
	"eve-tactician/internal/fitting"
	"eve-tactician/internal/market"
	"eve-tactician/internal/resolver"
	"eve-tactician/internal/store"
	"eve-tactician/internal/universe"
	"eve-tactician/internal/volatile"
)

// DefaultTimeout bounds a single dispatcher call including retries.
const DefaultTimeout = 10 * time.Second

// Deps are the components the dispatcher routes into. The dispatcher
// owns no state of its own beyond these references, so it is safe for
// concurrent use as long as each dependency is.
type Deps struct {
	Graph    *universe.Graph
	Volatile *volatile.Cache
	Market   *market.Cache
	Store    *store.Store
	Resolver *resolver.Resolver
	Fitting  *fitting.Engine
	Timeout  time.Duration
}

// Dispatcher validates, routes, and serializes tool calls.
type Dispatcher struct {
	deps    Deps
	started time.Time
}

// New builds a dispatcher. A zero Timeout uses DefaultTimeout.
func New(deps Deps) *Dispatcher {
	if deps.Timeout == 0 {
		deps.Timeout = DefaultTimeout
	}
	if deps.Fitting == nil {
		deps.Fitting = fitting.NewEngine(nil)
	}
	return &Dispatcher{deps: deps, started: time.Now()}
}

var toolNames = []string{"universe", "market", "sde", "skills", "fitting", "status"}

// Call routes one tool invocation and returns the result value.
// Callers that need the wire format use Dispatch instead.
func (d *Dispatcher) Call(ctx context.Context, tool string, params json.RawMessage) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, d.deps.Timeout)
	defer cancel()

	if len(params) == 0 {
		params = json.RawMessage("{}")
	}
	switch tool {
	case "universe":
		return d.universe(ctx, params)
	case "market":
		return d.market(ctx, params)
	case "sde":
		return d.sde(ctx, params)
	case "skills":
		return d.skills(ctx, params)
	case "fitting":
		return d.fitting(ctx, params)
	case "status":
		return d.status(ctx)
	default:
		return nil, errs.InvalidParameter("tool", fmt.Sprintf("unknown tool %q", tool)).
			With("valid", toolNames)
	}
}

// Dispatch runs Call and renders the wire JSON: the result object on
// success, {"error": ...} on failure.
func (d *Dispatcher) Dispatch(ctx context.Context, tool string, params json.RawMessage) []byte {
	res, err := d.Call(ctx, tool, params)
	if err != nil {
		return EncodeError(err)
	}
	b, err := json.Marshal(res)
	if err != nil {
		return EncodeError(errs.Internal("encode response: %v", err).Wrap(err))
	}
	return b
}

// EncodeError renders any error in the wire shape.
func EncodeError(err error) []byte {
	b, mErr := json.Marshal(map[string]*errs.Error{"error": errs.AsError(err)})
	if mErr != nil {
		return []byte(`{"error":{"code":"Internal","message":"error encoding failed"}}`)
	}
	return b
}

// decode unmarshals an action request, mapping malformed JSON to
// InvalidParameter rather than Internal.
func decode(params json.RawMessage, into any) error {
	if err := json.Unmarshal(params, into); err != nil {
		return errs.InvalidParameter("params", "malformed request: "+err.Error()).Wrap(err)
	}
	return nil
}

func unknownAction(action string, valid []string) error {
	return errs.InvalidParameter("action", fmt.Sprintf("unknown action %q", action)).
		With("valid", valid)
}

// intInRange applies a default for the zero value and validates the
// documented range.
func intInRange(name string, v, def, lo, hi int) (int, error) {
	if v == 0 {
		v = def
	}
	if v < lo || v > hi {
		return 0, errs.InvalidParameter(name, fmt.Sprintf("must be in [%d,%d]", lo, hi))
	}
	return v, nil
}

// resolveSystem maps a system name to its graph vertex, with
// suggestions on a miss.
func (d *Dispatcher) resolveSystem(name string) (int32, error) {
	if name == "" {
		return 0, errs.InvalidParameter("origin", "system name must not be empty")
	}
	v, ok := d.deps.Graph.IndexOfName(name)
	if !ok {
		return 0, errs.SystemNotFound(name, d.deps.Graph.Suggest(name, 3))
	}
	return v, nil
}

// resolveRegion accepts a region name or a trade-hub system name
// ("jita" selects The Forge), case-insensitively.
func (d *Dispatcher) resolveRegion(name string) (int32, string, error) {
	if name == "" {
		return 0, "", errs.InvalidParameter("region", "region name must not be empty")
	}
	if v, ok := d.deps.Graph.IndexOfName(name); ok {
		id := d.deps.Graph.RegionIDs[v]
		return id, d.deps.Graph.RegionNames[id], nil
	}
	if id, ok := d.deps.Graph.RegionIDByName(name); ok {
		return id, d.deps.Graph.RegionNames[id], nil
	}
	return 0, "", errs.SystemNotFound(name, d.deps.Graph.Suggest(name, 3)).
		With("reason", "region_or_system_expected")
}

// nameOfSystemID maps an upstream system id back to a name; unknown
// ids (wormhole space absent from the graph) keep a numeric label.
func (d *Dispatcher) nameOfSystemID(id int32) string {
	if v, ok := d.deps.Graph.IndexOfID(id); ok {
		return d.deps.Graph.Names[v]
	}
	return fmt.Sprintf("system-%d", id)
}

// volatileFreshness classifies a volatile-layer age against its TTL.
func volatileFreshness(age, ttl time.Duration, stale bool) string {
	switch {
	case stale || age > ttl:
		return "stale"
	case age < ttl/2:
		return "fresh"
	default:
		return "recent"
	}
}
