package resolver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eve-tactician/internal/errs"
	"eve-tactician/internal/esi"
	"eve-tactician/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "resolver.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

// typeServer answers the search and type-info endpoints for a single
// known item and counts every request it sees.
func typeServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch {
		case strings.HasPrefix(r.URL.Path, "/search/"):
			if r.URL.Query().Get("search") == "Tritanium" {
				fmt.Fprint(w, `{"inventory_type":[34]}`)
			} else {
				fmt.Fprint(w, `{"inventory_type":[]}`)
			}
		case strings.HasPrefix(r.URL.Path, "/universe/types/34/"):
			fmt.Fprint(w, `{"name":"Tritanium","group_id":18,"market_group_id":1857,"published":true}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestType_StoreHitSkipsUpstream(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.UpsertTypes(context.Background(), []store.ItemType{
		{TypeID: 34, Name: "Tritanium", GroupID: 18, MarketGroupID: 1857},
	}))

	var calls atomic.Int32
	client := esi.NewClient(typeServer(t, &calls).URL, "test-agent", time.Second)
	r := New(client, st)

	got, err := r.Type(context.Background(), "  tritanium ")
	require.NoError(t, err)
	assert.Equal(t, int32(34), got.TypeID)
	assert.Equal(t, "Tritanium", got.Name)
	assert.Equal(t, int32(0), calls.Load())
}

func TestType_UpstreamWritesThrough(t *testing.T) {
	st := openTestStore(t)
	var calls atomic.Int32
	client := esi.NewClient(typeServer(t, &calls).URL, "test-agent", time.Second)
	r := New(client, st)

	got, err := r.Type(context.Background(), "Tritanium")
	require.NoError(t, err)
	assert.Equal(t, int32(34), got.TypeID)
	assert.Equal(t, int32(2), calls.Load()) // search + type info

	// Write-through landed in the store.
	stored, ok, err := st.TypeByName(context.Background(), "Tritanium")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int32(18), stored.GroupID)

	// Second lookup is a memory hit.
	_, err = r.Type(context.Background(), "TRITANIUM")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestType_MissCarriesSuggestions(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.UpsertTypes(context.Background(), []store.ItemType{
		{TypeID: 34, Name: "Tritanium"},
		{TypeID: 35, Name: "Pyerite"},
	}))

	var calls atomic.Int32
	client := esi.NewClient(typeServer(t, &calls).URL, "test-agent", time.Second)
	r := New(client, st)

	_, err := r.Type(context.Background(), "Trit")
	require.Error(t, err)
	assert.Equal(t, errs.KindTypeNotFound, errs.KindOf(err))
	var te *errs.Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, []string{"Tritanium"}, te.Data["suggestions"])
}

func TestType_EmptyNameRejected(t *testing.T) {
	r := New(nil, nil)
	_, err := r.Type(context.Background(), "   ")
	require.Error(t, err)
	assert.Equal(t, errs.KindInvalidParameter, errs.KindOf(err))
}

func TestTypes_PartitionsAcrossStages(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.UpsertTypes(context.Background(), []store.ItemType{
		{TypeID: 35, Name: "Pyerite", GroupID: 18},
	}))

	var calls atomic.Int32
	client := esi.NewClient(typeServer(t, &calls).URL, "test-agent", time.Second)
	r := New(client, st)

	resolved, failed := r.Types(context.Background(), []string{"Pyerite", "Tritanium", "Notanium"})
	assert.Len(t, resolved, 2)
	assert.Equal(t, int32(35), resolved["Pyerite"].TypeID)
	assert.Equal(t, int32(34), resolved["Tritanium"].TypeID)
	require.Len(t, failed, 1)
	assert.Equal(t, errs.KindTypeNotFound, errs.KindOf(failed["Notanium"]))
}
