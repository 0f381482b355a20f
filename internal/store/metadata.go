package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SetMeta stores a bookkeeping value with its update timestamp.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	_, err := s.sql.ExecContext(ctx,
		"INSERT OR REPLACE INTO metadata (key, value, updated_at) VALUES (?,?,?)",
		key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("set meta %s: %w", key, err)
	}
	return nil
}

// GetMeta returns a bookkeeping value and when it was last written.
func (s *Store) GetMeta(ctx context.Context, key string) (string, time.Time, bool, error) {
	var value, ts string
	row := s.sql.QueryRowContext(ctx,
		"SELECT value, updated_at FROM metadata WHERE key=?", key)
	if err := row.Scan(&value, &ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", time.Time{}, false, nil
		}
		return "", time.Time{}, false, fmt.Errorf("get meta %s: %w", key, err)
	}
	t, _ := time.Parse(time.RFC3339, ts)
	return value, t, true, nil
}
