package market

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eve-tactician/internal/esi"
	"eve-tactician/internal/store"
)

func TestFreshnessTable(t *testing.T) {
	cases := []struct {
		source string
		age    time.Duration
		want   string
	}{
		{SourcePreagg, time.Minute, "fresh"},
		{SourcePreagg, 10 * time.Minute, "recent"},
		{SourcePreagg, 20 * time.Minute, "stale"},
		{SourceOrders, time.Minute, "fresh"},
		{SourceOrders, 3 * time.Minute, "recent"},
		{SourceOrders, 6 * time.Minute, "stale"},
		{SourcePersistent, 0, "stale"},
		{SourceLastGood, 0, "stale"},
		{"unknown", 0, "stale"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Freshness(c.source, c.age), "%s at %s", c.source, c.age)
	}
}

func TestAggregateOrders(t *testing.T) {
	orders := []esi.MarketOrder{
		{Price: 10, VolumeRemain: 100, IsBuyOrder: true},
		{Price: 12, VolumeRemain: 50, IsBuyOrder: true},
		{Price: 15, VolumeRemain: 200, IsBuyOrder: false},
		{Price: 14, VolumeRemain: 100, IsBuyOrder: false},
		{Price: 20, VolumeRemain: 10, IsBuyOrder: false},
	}
	buy, sell := AggregateOrders(orders)

	require.NotNil(t, buy)
	assert.InDelta(t, 12, buy.Max, 1e-9)
	assert.InDelta(t, 10, buy.Min, 1e-9)
	assert.Equal(t, int64(2), buy.OrderCount)
	assert.Equal(t, int64(150), buy.Volume)
	assert.InDelta(t, (10*100.0+12*50)/150, buy.WeightedAverage, 1e-9)
	assert.InDelta(t, 11, buy.Median, 1e-9)

	require.NotNil(t, sell)
	assert.InDelta(t, 14, sell.Min, 1e-9)
	assert.InDelta(t, 20, sell.Max, 1e-9)
	assert.Equal(t, int64(310), sell.Volume)
	// 5% of 310 volume is covered by the cheapest sell order alone.
	assert.InDelta(t, 14, sell.Percentile, 1e-9)
}

func TestAggregateOrders_OneSideEmpty(t *testing.T) {
	buy, sell := AggregateOrders([]esi.MarketOrder{
		{Price: 5, VolumeRemain: 1, IsBuyOrder: false},
	})
	assert.Nil(t, buy)
	require.NotNil(t, sell)
	assert.Equal(t, int64(1), sell.OrderCount)
}

func TestParsePaste_Shapes(t *testing.T) {
	text := "Tritanium\t1,000\n" +
		"Pyerite    Quantity: 2,500\n" +
		"Mexallon x3\n" +
		"Isogen\n" +
		"\n" +
		"Tritanium\t500\n"
	items := ParsePaste(text)
	require.Len(t, items, 4)
	assert.Equal(t, ParsedItem{Name: "Tritanium", Quantity: 1500}, items[0], "duplicate lines merge")
	assert.Equal(t, ParsedItem{Name: "Pyerite", Quantity: 2500}, items[1])
	assert.Equal(t, ParsedItem{Name: "Mexallon", Quantity: 3}, items[2])
	assert.Equal(t, ParsedItem{Name: "Isogen", Quantity: 1}, items[3], "bare name is quantity 1")
}

func TestParsePaste_Empty(t *testing.T) {
	assert.Empty(t, ParsePaste(""))
	assert.Empty(t, ParsePaste("\n\n  \n"))
}

func TestKeyedCache_StaleOnError(t *testing.T) {
	healthy := true
	cache := newKeyedCache[int]("test", time.Minute)
	fetch := func(ctx context.Context) (int, error) {
		if !healthy {
			return 0, errors.New("down")
		}
		return 42, nil
	}

	v, _, stale, err := cache.get(context.Background(), "k", fetch)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.False(t, stale)

	// Age the entry out, break the fetch: stale value still served.
	cache.mu.Lock()
	e := cache.entries["k"]
	e.at = time.Now().Add(-2 * time.Minute)
	cache.entries["k"] = e
	cache.mu.Unlock()
	healthy = false

	v, age, stale, err := cache.get(context.Background(), "k", fetch)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.True(t, stale)
	assert.Greater(t, age, time.Minute)

	// Cold key with a broken fetch surfaces the error.
	_, _, _, err = cache.get(context.Background(), "other", fetch)
	require.Error(t, err)
}

func TestKeyedCache_ConcurrentRefreshCoalesces(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	cache := newKeyedCache[int]("test", time.Minute)
	fetch := func(ctx context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 1, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cache.get(context.Background(), "k", fetch)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func aggregatorServer(t *testing.T, hits *atomic.Int32, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func notFoundServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPrices_PreaggServesAndCaches(t *testing.T) {
	var hits atomic.Int32
	agg := aggregatorServer(t, &hits, `{
		"34": {
			"buy":  {"weighted_average": 4.0, "min": 3.9, "max": 4.1, "order_count": 5, "volume": 100},
			"sell": {"weighted_average": 4.9, "min": 4.7, "max": 5.3, "order_count": 7, "volume": 80}
		}
	}`)
	client := esi.NewClient(notFoundServer(t).URL, "test-agent", time.Second)
	c := New(client, nil, agg.URL)

	prices, err := c.Prices(context.Background(), 10000002, []int32{34})
	require.NoError(t, err)
	require.Len(t, prices, 1)
	p := prices[0]
	assert.Equal(t, SourcePreagg, p.Source)
	assert.Equal(t, "fresh", p.Freshness)
	require.NotNil(t, p.Buy)
	require.NotNil(t, p.Sell)
	assert.InDelta(t, 4.7-4.1, p.SpreadISK, 1e-9)

	// Second read comes from the cache.
	_, err = c.Prices(context.Background(), 10000002, []int32{34})
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestPrices_FallsBackToStore(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.UpsertAggregates(context.Background(), []store.Aggregate{
		{RegionID: 1, TypeID: 34, Side: "buy", Max: 4.0, WeightedAverage: 3.9, OrderCount: 2},
		{RegionID: 1, TypeID: 34, Side: "sell", Min: 4.5, WeightedAverage: 4.8, OrderCount: 3},
	}))

	client := esi.NewClient(notFoundServer(t).URL, "test-agent", time.Second)
	c := New(client, st, notFoundServer(t).URL)

	prices, err := c.Prices(context.Background(), 1, []int32{34})
	require.NoError(t, err)
	require.Len(t, prices, 1)
	p := prices[0]
	assert.Equal(t, SourcePersistent, p.Source)
	assert.Equal(t, "stale", p.Freshness)
	require.NotNil(t, p.Buy)
	require.NotNil(t, p.Sell)
	assert.InDelta(t, 0.5, p.SpreadISK, 1e-9)
}

func TestPrices_UnpricedItemCarriesWarning(t *testing.T) {
	client := esi.NewClient(notFoundServer(t).URL, "test-agent", time.Second)
	c := New(client, nil, notFoundServer(t).URL)

	prices, err := c.Prices(context.Background(), 1, []int32{99})
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.Nil(t, prices[0].Buy)
	assert.NotEmpty(t, prices[0].Warnings)
}

func TestLastKnownGood(t *testing.T) {
	c := New(nil, nil, "")
	buy := &esi.SideStats{Max: 4.0, OrderCount: 1}
	c.rememberLastGood(1, Price{TypeID: 34, Buy: buy, Source: SourcePreagg, Freshness: "fresh"})

	p, ok := c.lastGoodFor(1, 34)
	require.True(t, ok)
	assert.Equal(t, SourceLastGood, p.Source)
	assert.Equal(t, "stale", p.Freshness)
	assert.NotEmpty(t, p.Warnings)
	require.NotNil(t, p.Buy)

	_, ok = c.lastGoodFor(1, 99)
	assert.False(t, ok)
}

func TestValuate_EmptyList(t *testing.T) {
	c := New(nil, nil, "")
	res, err := c.Valuate(context.Background(), 1, "sell", nil)
	require.NoError(t, err)
	assert.Zero(t, res.TotalISK)
	assert.Empty(t, res.Lines)
	assert.Equal(t, "high", res.Confidence)
}

func TestValuate_TotalsAndConfidence(t *testing.T) {
	var hits atomic.Int32
	agg := aggregatorServer(t, &hits, `{
		"34": {
			"buy":  {"max": 4.0, "order_count": 1},
			"sell": {"min": 5.0, "order_count": 1}
		}
	}`)
	client := esi.NewClient(notFoundServer(t).URL, "test-agent", time.Second)
	c := New(client, nil, agg.URL)

	res, err := c.Valuate(context.Background(), 1, "sell", []ValuationInput{
		{TypeID: 34, Name: "Tritanium", Quantity: 100},
	})
	require.NoError(t, err)
	assert.InDelta(t, 500, res.TotalISK, 1e-9)
	assert.Equal(t, "high", res.Confidence)

	// An unpriceable item degrades confidence and warns.
	res, err = c.Valuate(context.Background(), 1, "sell", []ValuationInput{
		{TypeID: 34, Name: "Tritanium", Quantity: 10},
		{TypeID: 99, Name: "Unknownium", Quantity: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, "low", res.Confidence)
	assert.InDelta(t, 50, res.TotalISK, 1e-9)
	require.Len(t, res.Lines, 2)
	assert.True(t, res.Lines[1].Missing)
	assert.NotEmpty(t, res.Warnings)
}

func TestSpread(t *testing.T) {
	var hits atomic.Int32
	agg := aggregatorServer(t, &hits, `{
		"34": {
			"buy":  {"max": 4.0, "order_count": 1},
			"sell": {"min": 5.0, "order_count": 1}
		}
	}`)
	client := esi.NewClient(notFoundServer(t).URL, "test-agent", time.Second)
	c := New(client, nil, agg.URL)

	res, err := c.Spread(context.Background(), 1, 34)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, res.BuyMax, 1e-9)
	assert.InDelta(t, 5.0, res.SellMin, 1e-9)
	assert.InDelta(t, 1.0, res.SpreadISK, 1e-9)
	assert.InDelta(t, 20.0, res.SpreadPercent, 1e-9)
}

func TestHistory_PersistentFallbackAvoidsUpstream(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.SetHistory(context.Background(), 1, 34, []esi.HistoryEntry{
		{Date: "2026-08-20", Average: 5.0, Volume: 100},
		{Date: "2026-08-21", Average: 6.0, Volume: 200},
	}))

	down := notFoundServer(t)
	client := esi.NewClient(down.URL, "test-agent", time.Second)
	c := New(client, st, down.URL)

	res, err := c.History(context.Background(), 1, 34)
	require.NoError(t, err)
	assert.Len(t, res.Entries, 2)
	assert.Equal(t, "fresh", res.Freshness)
	assert.InDelta(t, 150, res.AverageDaily, 1e-9)
	assert.InDelta(t, 5.5, res.WeekAverage, 1e-9)
}

func TestHubs(t *testing.T) {
	h, ok := HubByRegion(10000002)
	require.True(t, ok)
	assert.Equal(t, "Jita", h.System)
	_, ok = HubByRegion(42)
	assert.False(t, ok)
}
