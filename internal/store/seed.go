package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"eve-tactician/internal/logger"
)

// seedBatchSize rows go into one transaction; a bad row fails only
// its own batch.
const seedBatchSize = 1000

// SeedResult summarizes a bulk seed.
type SeedResult struct {
	Aggregates int `json:"aggregates"`
	Types      int `json:"types"`
	Skipped    int `json:"skipped"`
}

// SeedAggregatesCSV bulk-loads price aggregates from a CSV export.
// Expected header: region_id,type_id,side,weighted_average,min,max,
// median,std_dev,volume,order_count,percentile. Malformed rows are
// skipped and counted, not fatal.
func (s *Store) SeedAggregatesCSV(ctx context.Context, path string) (SeedResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return SeedResult{}, fmt.Errorf("open seed csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 11
	if _, err := r.Read(); err != nil { // header
		return SeedResult{}, fmt.Errorf("read seed header: %w", err)
	}

	var res SeedResult
	now := time.Now().UTC()
	batch := make([]Aggregate, 0, seedBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.UpsertAggregates(ctx, batch); err != nil {
			return err
		}
		res.Aggregates += len(batch)
		batch = batch[:0]
		return nil
	}

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			res.Skipped++
			continue
		}
		a, ok := parseAggregateRow(rec, now)
		if !ok {
			res.Skipped++
			continue
		}
		batch = append(batch, a)
		if len(batch) >= seedBatchSize {
			if err := flush(); err != nil {
				return res, err
			}
		}
	}
	if err := flush(); err != nil {
		return res, err
	}
	if res.Skipped > 0 {
		logger.Warn("SEED", fmt.Sprintf("Skipped %d malformed aggregate rows", res.Skipped))
	}
	logger.Success("SEED", fmt.Sprintf("Loaded %d aggregates from %s", res.Aggregates, path))
	return res, nil
}

func parseAggregateRow(rec []string, now time.Time) (Aggregate, bool) {
	region, err1 := strconv.ParseInt(rec[0], 10, 32)
	typ, err2 := strconv.ParseInt(rec[1], 10, 32)
	side := rec[2]
	if err1 != nil || err2 != nil || (side != "buy" && side != "sell") {
		return Aggregate{}, false
	}
	floats := make([]float64, 6)
	for i, idx := range []int{3, 4, 5, 6, 7, 10} {
		v, err := strconv.ParseFloat(rec[idx], 64)
		if err != nil {
			return Aggregate{}, false
		}
		floats[i] = v
	}
	volume, err1 := strconv.ParseInt(rec[8], 10, 64)
	orders, err2 := strconv.ParseInt(rec[9], 10, 64)
	if err1 != nil || err2 != nil {
		return Aggregate{}, false
	}
	return Aggregate{
		RegionID:        int32(region),
		TypeID:          int32(typ),
		Side:            side,
		WeightedAverage: floats[0],
		Min:             floats[1],
		Max:             floats[2],
		Median:          floats[3],
		StdDev:          floats[4],
		Percentile:      floats[5],
		Volume:          volume,
		OrderCount:      orders,
		UpdatedAt:       now,
	}, true
}

// SeedTypesCSV bulk-loads the item-name index from a CSV export.
// Expected header: type_id,name,group_id,market_group_id.
func (s *Store) SeedTypesCSV(ctx context.Context, path string) (SeedResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return SeedResult{}, fmt.Errorf("open types csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 4
	if _, err := r.Read(); err != nil {
		return SeedResult{}, fmt.Errorf("read types header: %w", err)
	}

	var res SeedResult
	batch := make([]ItemType, 0, seedBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.UpsertTypes(ctx, batch); err != nil {
			return err
		}
		res.Types += len(batch)
		batch = batch[:0]
		return nil
	}

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			res.Skipped++
			continue
		}
		id, err1 := strconv.ParseInt(rec[0], 10, 32)
		group, err2 := strconv.ParseInt(rec[2], 10, 32)
		market, err3 := strconv.ParseInt(rec[3], 10, 32)
		if err1 != nil || err2 != nil || err3 != nil || rec[1] == "" {
			res.Skipped++
			continue
		}
		batch = append(batch, ItemType{
			TypeID:        int32(id),
			Name:          rec[1],
			GroupID:       int32(group),
			MarketGroupID: int32(market),
		})
		if len(batch) >= seedBatchSize {
			if err := flush(); err != nil {
				return res, err
			}
		}
	}
	if err := flush(); err != nil {
		return res, err
	}
	if res.Skipped > 0 {
		logger.Warn("SEED", fmt.Sprintf("Skipped %d malformed type rows", res.Skipped))
	}
	logger.Success("SEED", fmt.Sprintf("Loaded %d item types from %s", res.Types, path))
	return res, nil
}
