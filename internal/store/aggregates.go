package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Aggregate is one side of the order book for a (region, item) pair,
// summarized. Primary key is (RegionID, TypeID, Side).
type Aggregate struct {
	RegionID        int32   `json:"region_id"`
	TypeID          int32   `json:"type_id"`
	Side            string  `json:"side"` // buy | sell
	WeightedAverage float64 `json:"weighted_average"`
	Min             float64 `json:"min"`
	Max             float64 `json:"max"`
	Median          float64 `json:"median"`
	StdDev          float64 `json:"std_dev"`
	Volume          int64   `json:"volume"`
	OrderCount      int64   `json:"order_count"`
	Percentile      float64 `json:"percentile"`
	UpdatedAt       time.Time
}

// UpsertAggregates writes a batch in one transaction. Any row failing
// rolls back the whole batch.
func (s *Store) UpsertAggregates(ctx context.Context, aggs []Aggregate) error {
	if len(aggs) == 0 {
		return nil
	}
	s.aggMu.Lock()
	defer s.aggMu.Unlock()

	tx, err := s.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin aggregates batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO aggregates
			(region_id, type_id, side, weighted_average, min_price, max_price,
			 median, std_dev, volume, order_count, percentile, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare aggregates upsert: %w", err)
	}
	defer stmt.Close()

	for _, a := range aggs {
		ts := a.UpdatedAt
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx,
			a.RegionID, a.TypeID, a.Side, a.WeightedAverage, a.Min, a.Max,
			a.Median, a.StdDev, a.Volume, a.OrderCount, a.Percentile,
			ts.UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("upsert aggregate %d/%d/%s: %w", a.RegionID, a.TypeID, a.Side, err)
		}
	}
	return tx.Commit()
}

const aggregateColumns = `region_id, type_id, side, weighted_average, min_price,
	max_price, median, std_dev, volume, order_count, percentile, updated_at`

func scanAggregate(scan func(dest ...any) error) (Aggregate, error) {
	var a Aggregate
	var ts string
	err := scan(&a.RegionID, &a.TypeID, &a.Side, &a.WeightedAverage, &a.Min,
		&a.Max, &a.Median, &a.StdDev, &a.Volume, &a.OrderCount, &a.Percentile, &ts)
	if err != nil {
		return a, err
	}
	a.UpdatedAt, _ = time.Parse(time.RFC3339, ts)
	return a, nil
}

// GetAggregate returns one side of the book for a (region, item) pair.
func (s *Store) GetAggregate(ctx context.Context, regionID, typeID int32, side string) (Aggregate, bool, error) {
	row := s.sql.QueryRowContext(ctx,
		"SELECT "+aggregateColumns+" FROM aggregates WHERE region_id=? AND type_id=? AND side=?",
		regionID, typeID, side)
	a, err := scanAggregate(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Aggregate{}, false, nil
		}
		return Aggregate{}, false, fmt.Errorf("get aggregate: %w", err)
	}
	return a, true, nil
}

// GetAggregates returns both sides for every requested item in a region,
// in one query. Items with no stored data are simply absent.
func (s *Store) GetAggregates(ctx context.Context, regionID int32, typeIDs []int32) ([]Aggregate, error) {
	if len(typeIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(typeIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(typeIDs)+1)
	args = append(args, regionID)
	for _, id := range typeIDs {
		args = append(args, id)
	}

	rows, err := s.sql.QueryContext(ctx,
		"SELECT "+aggregateColumns+" FROM aggregates WHERE region_id=? AND type_id IN ("+placeholders+")",
		args...)
	if err != nil {
		return nil, fmt.Errorf("get aggregates: %w", err)
	}
	defer rows.Close()

	var out []Aggregate
	for rows.Next() {
		a, err := scanAggregate(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// NewestUpdate returns the most recent aggregate timestamp for a region,
// or false when the region has no stored aggregates at all.
func (s *Store) NewestUpdate(ctx context.Context, regionID int32) (time.Time, bool, error) {
	var ts sql.NullString
	row := s.sql.QueryRowContext(ctx,
		"SELECT MAX(updated_at) FROM aggregates WHERE region_id=?", regionID)
	if err := row.Scan(&ts); err != nil {
		return time.Time{}, false, fmt.Errorf("newest update: %w", err)
	}
	if !ts.Valid || ts.String == "" {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.RFC3339, ts.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("newest update timestamp: %w", err)
	}
	return t, true, nil
}
