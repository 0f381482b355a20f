// Package resolver maps item names to stable type ids through a hybrid
// pipeline: process-local memory, the persistent store, then the
// upstream search endpoint. Upstream hits are written through to both
// lower stages so a name is resolved remotely at most once.
package resolver

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"eve-tactician/internal/errs"
	"eve-tactician/internal/esi"
	"eve-tactician/internal/logger"
	"eve-tactician/internal/store"
)

// Resolver is safe for concurrent use.
type Resolver struct {
	client *esi.Client
	store  *store.Store

	mu     sync.RWMutex
	byName map[string]store.ItemType
	sf     singleflight.Group
}

// New builds a resolver over the store and upstream client. Either may
// be nil; absent stages are skipped.
func New(client *esi.Client, st *store.Store) *Resolver {
	return &Resolver{
		client: client,
		store:  st,
		byName: make(map[string]store.ItemType),
	}
}

func fold(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (r *Resolver) fromMemory(name string) (store.ItemType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[fold(name)]
	return t, ok
}

func (r *Resolver) remember(t store.ItemType) {
	r.mu.Lock()
	r.byName[fold(t.Name)] = t
	r.mu.Unlock()
}

// Type resolves one item name. Misses everywhere produce TypeNotFound
// with up to three substring suggestions from the persistent store.
func (r *Resolver) Type(ctx context.Context, name string) (store.ItemType, error) {
	if fold(name) == "" {
		return store.ItemType{}, errs.InvalidParameter("name", "must not be empty")
	}
	if t, ok := r.fromMemory(name); ok {
		return t, nil
	}

	v, err, _ := r.sf.Do(fold(name), func() (any, error) {
		if t, ok := r.fromMemory(name); ok {
			return t, nil
		}
		if r.store != nil {
			t, ok, err := r.store.TypeByName(ctx, name)
			if err != nil {
				return store.ItemType{}, err
			}
			if ok {
				r.remember(t)
				return t, nil
			}
		}
		return r.fromUpstream(ctx, name)
	})
	if err != nil {
		return store.ItemType{}, err
	}
	return v.(store.ItemType), nil
}

// fromUpstream searches the upstream and writes the answer through to
// memory and the persistent store.
func (r *Resolver) fromUpstream(ctx context.Context, name string) (store.ItemType, error) {
	if r.client == nil {
		return store.ItemType{}, r.notFound(ctx, name)
	}
	ids, err := r.client.SearchInventoryType(ctx, name, true)
	if err != nil {
		return store.ItemType{}, err
	}
	if len(ids) == 0 {
		return store.ItemType{}, r.notFound(ctx, name)
	}

	info, err := r.client.FetchTypeInfo(ctx, ids[0])
	if err != nil {
		return store.ItemType{}, err
	}
	t := store.ItemType{
		TypeID:        info.TypeID,
		Name:          info.Name,
		GroupID:       info.GroupID,
		MarketGroupID: info.MarketGroupID,
	}
	r.remember(t)
	if r.store != nil {
		if err := r.store.UpsertTypes(ctx, []store.ItemType{t}); err != nil {
			// Memory still has it; the store catches up next process.
			logger.Warn("RESOLVER", fmt.Sprintf("write-through for %s failed: %v", t.Name, err))
		}
	}
	return t, nil
}

func (r *Resolver) notFound(ctx context.Context, name string) error {
	var suggestions []string
	if r.store != nil {
		suggestions, _ = r.store.SuggestTypes(ctx, name, 3)
	}
	return errs.TypeNotFound(name, suggestions)
}

// Types resolves a batch, partitioning the names across the pipeline
// stages. The resolved map is keyed by the input name; names that
// failed map to their error in failed. The caller decides whether
// partial input is acceptable.
func (r *Resolver) Types(ctx context.Context, names []string) (resolved map[string]store.ItemType, failed map[string]error) {
	resolved = make(map[string]store.ItemType, len(names))
	failed = make(map[string]error)

	var residual []string
	for _, name := range names {
		if t, ok := r.fromMemory(name); ok {
			resolved[name] = t
		} else {
			residual = append(residual, name)
		}
	}

	if r.store != nil && len(residual) > 0 {
		still := residual[:0]
		for _, name := range residual {
			t, ok, err := r.store.TypeByName(ctx, name)
			if err == nil && ok {
				r.remember(t)
				resolved[name] = t
				continue
			}
			still = append(still, name)
		}
		residual = still
	}

	for _, name := range residual {
		t, err := r.Type(ctx, name)
		if err != nil {
			failed[name] = err
			continue
		}
		resolved[name] = t
	}
	return resolved, failed
}
