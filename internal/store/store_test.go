package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eve-tactician/internal/errs"
	"eve-tactician/internal/esi"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_MigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Reopening an already-migrated database must not fail.
	s, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestAggregates_UpsertAndLookup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	aggs := []Aggregate{
		{RegionID: 10000002, TypeID: 34, Side: "buy", WeightedAverage: 4.1, Min: 3.9, Max: 4.5, Volume: 1000, OrderCount: 12},
		{RegionID: 10000002, TypeID: 34, Side: "sell", WeightedAverage: 4.8, Min: 4.6, Max: 5.2, Volume: 900, OrderCount: 8},
		{RegionID: 10000002, TypeID: 35, Side: "sell", WeightedAverage: 9.0, Min: 8.5, Max: 9.9, Volume: 400, OrderCount: 3},
	}
	require.NoError(t, s.UpsertAggregates(ctx, aggs))

	a, ok, err := s.GetAggregate(ctx, 10000002, 34, "sell")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 4.6, a.Min, 1e-9)
	assert.False(t, a.UpdatedAt.IsZero())

	_, ok, err = s.GetAggregate(ctx, 10000002, 34, "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	// Upsert replaces in place, no duplicate rows.
	aggs[0].WeightedAverage = 4.2
	require.NoError(t, s.UpsertAggregates(ctx, aggs[:1]))
	a, ok, err = s.GetAggregate(ctx, 10000002, 34, "buy")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 4.2, a.WeightedAverage, 1e-9)
}

func TestAggregates_MultiKeyLookup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertAggregates(ctx, []Aggregate{
		{RegionID: 1, TypeID: 34, Side: "buy"},
		{RegionID: 1, TypeID: 34, Side: "sell"},
		{RegionID: 1, TypeID: 35, Side: "sell"},
		{RegionID: 2, TypeID: 34, Side: "sell"},
	}))

	got, err := s.GetAggregates(ctx, 1, []int32{34, 35, 36})
	require.NoError(t, err)
	assert.Len(t, got, 3, "both sides of 34, one of 35, nothing for 36 or other regions")

	got, err = s.GetAggregates(ctx, 1, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAggregates_NewestUpdate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, ok, err := s.NewestUpdate(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok, "empty region has no freshness")

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, s.UpsertAggregates(ctx, []Aggregate{
		{RegionID: 1, TypeID: 34, Side: "buy", UpdatedAt: old},
		{RegionID: 1, TypeID: 35, Side: "buy"},
	}))
	ts, ok, err := s.NewestUpdate(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now(), ts, time.Minute, "newest timestamp wins")
}

func TestTypes_LookupAndSuggest(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertTypes(ctx, []ItemType{
		{TypeID: 34, Name: "Tritanium", GroupID: 18},
		{TypeID: 35, Name: "Pyerite", GroupID: 18},
		{TypeID: 36, Name: "Mexallon", GroupID: 18},
	}))

	typ, ok, err := s.TypeByName(ctx, "  tritanium ")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int32(34), typ.TypeID)
	assert.Equal(t, "Tritanium", typ.Name)

	_, ok, err = s.TypeByName(ctx, "Veldspar")
	require.NoError(t, err)
	assert.False(t, ok)

	sugg, err := s.SuggestTypes(ctx, "ite", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"Pyerite"}, sugg)

	typ, ok, err = s.TypeByID(ctx, 36)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Mexallon", typ.Name)

	n, err := s.TypeCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestHistory_RoundTripAndFreshness(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	entries := []esi.HistoryEntry{
		{Date: time.Now().AddDate(0, 0, -2).Format("2006-01-02"), Average: 5.0, Volume: 100},
		{Date: time.Now().AddDate(0, 0, -1).Format("2006-01-02"), Average: 5.2, Volume: 120},
	}
	require.NoError(t, s.SetHistory(ctx, 1, 34, entries))

	got, age, ok := s.GetHistory(ctx, 1, 34, time.Hour)
	require.True(t, ok)
	assert.Len(t, got, 2)
	assert.Less(t, age, time.Minute)

	// A zero freshness window always misses.
	_, _, ok = s.GetHistory(ctx, 1, 34, 0)
	assert.False(t, ok)

	_, _, ok = s.GetHistory(ctx, 1, 99, time.Hour)
	assert.False(t, ok)
}

func TestMetadata_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, _, ok, err := s.GetMeta(ctx, "seed_version")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetMeta(ctx, "seed_version", "2026-08-01"))
	v, ts, ok, err := s.GetMeta(ctx, "seed_version")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2026-08-01", v)
	assert.WithinDuration(t, time.Now(), ts, time.Minute)
}

func TestManifest_Verify(t *testing.T) {
	dir := t.TempDir()
	blob := filepath.Join(dir, "aggregates.csv")
	require.NoError(t, os.WriteFile(blob, []byte("region_id,type_id\n"), 0o644))

	sum := sha256.Sum256([]byte("region_id,type_id\n"))
	manifestPath := filepath.Join(dir, "MANIFEST.sha256")
	content := fmt.Sprintf("# reference blobs\n%s  aggregates.csv\n", hex.EncodeToString(sum[:]))
	require.NoError(t, os.WriteFile(manifestPath, []byte(content), 0o644))

	m, err := LoadManifest(manifestPath)
	require.NoError(t, err)
	require.NoError(t, m.VerifyFile(blob, false))

	// Tampering fails with the checksum pair in the payload.
	require.NoError(t, os.WriteFile(blob, []byte("tampered\n"), 0o644))
	err = m.VerifyFile(blob, false)
	require.Error(t, err)
	assert.Equal(t, errs.KindIntegrity, errs.KindOf(err))
	var te *errs.Error
	require.ErrorAs(t, err, &te)
	assert.NotEmpty(t, te.Data["expected_sha256"])
	assert.NotEmpty(t, te.Data["actual_sha256"])

	// Unpinned blobs fail unless the development override is set.
	other := filepath.Join(dir, "unpinned.csv")
	require.NoError(t, os.WriteFile(other, []byte("x"), 0o644))
	err = m.VerifyFile(other, false)
	require.Error(t, err)
	assert.Equal(t, errs.KindIntegrity, errs.KindOf(err))
	assert.NoError(t, m.VerifyFile(other, true))
}

func TestManifest_MalformedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "MANIFEST.sha256")
	require.NoError(t, os.WriteFile(path, []byte("deadbeef aggregates.csv\n"), 0o644))
	_, err := LoadManifest(path)
	require.Error(t, err)
}

func TestSeedAggregatesCSV(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	csvPath := filepath.Join(t.TempDir(), "aggregates.csv")
	content := "region_id,type_id,side,weighted_average,min,max,median,std_dev,volume,order_count,percentile\n" +
		"10000002,34,buy,4.1,3.9,4.5,4.0,0.2,1000,12,4.05\n" +
		"10000002,34,sell,4.8,4.6,5.2,4.7,0.3,900,8,4.65\n" +
		"10000002,bad,sell,1,1,1,1,1,1,1,1\n" +
		"10000002,35,short,row,x,x,x,x,x,x,x\n"
	require.NoError(t, os.WriteFile(csvPath, []byte(content), 0o644))

	res, err := s.SeedAggregatesCSV(ctx, csvPath)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Aggregates)
	assert.Equal(t, 2, res.Skipped)

	a, ok, err := s.GetAggregate(ctx, 10000002, 34, "buy")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 4.1, a.WeightedAverage, 1e-9)
}

func TestSeedTypesCSV(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	csvPath := filepath.Join(t.TempDir(), "types.csv")
	content := "type_id,name,group_id,market_group_id\n" +
		"34,Tritanium,18,1857\n" +
		"35,Pyerite,18,1857\n" +
		"oops,Broken,1,1\n"
	require.NoError(t, os.WriteFile(csvPath, []byte(content), 0o644))

	res, err := s.SeedTypesCSV(ctx, csvPath)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Types)
	assert.Equal(t, 1, res.Skipped)

	typ, ok, err := s.TypeByName(ctx, "pyerite")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int32(35), typ.TypeID)
}
