package store

import (
	"context"
	"fmt"
	"time"

	"eve-tactician/internal/esi"
	"eve-tactician/internal/logger"
)

// historyRetention bounds database growth; older rows are pruned.
const historyRetention = 90 * 24 * time.Hour

// GetHistory returns cached market history for a (region, item) pair
// and the age of the cached series. Returns false when nothing is
// cached or the cached series is older than maxAge.
func (s *Store) GetHistory(ctx context.Context, regionID, typeID int32, maxAge time.Duration) ([]esi.HistoryEntry, time.Duration, bool) {
	var updatedAt string
	err := s.sql.QueryRowContext(ctx,
		"SELECT updated_at FROM market_history_meta WHERE region_id=? AND type_id=?",
		regionID, typeID,
	).Scan(&updatedAt)
	if err != nil {
		return nil, 0, false
	}
	t, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil || time.Since(t) > maxAge {
		return nil, 0, false
	}

	rows, err := s.sql.QueryContext(ctx,
		"SELECT date, average, highest, lowest, volume, order_count FROM market_history WHERE region_id=? AND type_id=? ORDER BY date",
		regionID, typeID,
	)
	if err != nil {
		return nil, 0, false
	}
	defer rows.Close()

	var entries []esi.HistoryEntry
	for rows.Next() {
		var e esi.HistoryEntry
		if err := rows.Scan(&e.Date, &e.Average, &e.Highest, &e.Lowest, &e.Volume, &e.OrderCount); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if len(entries) == 0 {
		return nil, 0, false
	}
	return entries, time.Since(t), true
}

// SetHistory replaces the cached series for a (region, item) pair.
// Only entries within the retention window are stored.
func (s *Store) SetHistory(ctx context.Context, regionID, typeID int32, entries []esi.HistoryEntry) error {
	s.histMu.Lock()
	defer s.histMu.Unlock()

	tx, err := s.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history write: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM market_history WHERE region_id=? AND type_id=?", regionID, typeID); err != nil {
		return fmt.Errorf("clear history %d/%d: %w", regionID, typeID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO market_history (region_id, type_id, date, average, highest, lowest, volume, order_count) VALUES (?,?,?,?,?,?,?,?)")
	if err != nil {
		return fmt.Errorf("prepare history insert: %w", err)
	}
	defer stmt.Close()

	cutoff := time.Now().Add(-historyRetention).Format("2006-01-02")
	for _, e := range entries {
		if e.Date < cutoff {
			continue
		}
		if _, err := stmt.ExecContext(ctx, regionID, typeID,
			e.Date, e.Average, e.Highest, e.Lowest, e.Volume, e.OrderCount); err != nil {
			return fmt.Errorf("insert history row %s: %w", e.Date, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO market_history_meta (region_id, type_id, updated_at) VALUES (?,?,?)",
		regionID, typeID, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("update history meta: %w", err)
	}
	return tx.Commit()
}

// CleanupHistory prunes rows outside the retention window and meta
// entries that have not been refreshed in 30 days. Call on startup.
func (s *Store) CleanupHistory(ctx context.Context) {
	s.histMu.Lock()
	defer s.histMu.Unlock()

	cutoffDate := time.Now().Add(-historyRetention).Format("2006-01-02")
	cutoffMeta := time.Now().AddDate(0, 0, -30).Format(time.RFC3339)

	if res, err := s.sql.ExecContext(ctx,
		"DELETE FROM market_history WHERE date < ?", cutoffDate); err == nil {
		if n, _ := res.RowsAffected(); n > 0 {
			logger.Info("DB", fmt.Sprintf("Pruned %d old history rows", n))
		}
	}
	if res, err := s.sql.ExecContext(ctx,
		"DELETE FROM market_history_meta WHERE updated_at < ?", cutoffMeta); err == nil {
		if n, _ := res.RowsAffected(); n > 0 {
			logger.Info("DB", fmt.Sprintf("Pruned %d stale history meta entries", n))
		}
	}
}
