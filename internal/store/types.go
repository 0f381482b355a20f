package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ItemType is one row of the item-name index. NameLower backs the
// case-insensitive lookup index.
type ItemType struct {
	TypeID        int32  `json:"type_id"`
	Name          string `json:"name"`
	GroupID       int32  `json:"group_id"`
	MarketGroupID int32  `json:"market_group_id"`
}

// UpsertTypes writes a batch of item types in one transaction.
func (s *Store) UpsertTypes(ctx context.Context, types []ItemType) error {
	if len(types) == 0 {
		return nil
	}
	s.typeMu.Lock()
	defer s.typeMu.Unlock()

	tx, err := s.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin types batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO types (type_id, name, name_lower, group_id, market_group_id)
		VALUES (?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare types upsert: %w", err)
	}
	defer stmt.Close()

	for _, t := range types {
		if _, err := stmt.ExecContext(ctx,
			t.TypeID, t.Name, strings.ToLower(t.Name), t.GroupID, t.MarketGroupID,
		); err != nil {
			return fmt.Errorf("upsert type %d: %w", t.TypeID, err)
		}
	}
	return tx.Commit()
}

// TypeByName resolves an item name case-insensitively.
func (s *Store) TypeByName(ctx context.Context, name string) (ItemType, bool, error) {
	row := s.sql.QueryRowContext(ctx,
		"SELECT type_id, name, group_id, market_group_id FROM types WHERE name_lower=?",
		strings.ToLower(strings.TrimSpace(name)))
	var t ItemType
	if err := row.Scan(&t.TypeID, &t.Name, &t.GroupID, &t.MarketGroupID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ItemType{}, false, nil
		}
		return ItemType{}, false, fmt.Errorf("type by name: %w", err)
	}
	return t, true, nil
}

// TypeByID returns the item type for a stable id.
func (s *Store) TypeByID(ctx context.Context, typeID int32) (ItemType, bool, error) {
	row := s.sql.QueryRowContext(ctx,
		"SELECT type_id, name, group_id, market_group_id FROM types WHERE type_id=?", typeID)
	var t ItemType
	if err := row.Scan(&t.TypeID, &t.Name, &t.GroupID, &t.MarketGroupID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ItemType{}, false, nil
		}
		return ItemType{}, false, fmt.Errorf("type by id: %w", err)
	}
	return t, true, nil
}

// SuggestTypes returns up to limit canonical item names containing the
// query, for not-found suggestions.
func (s *Store) SuggestTypes(ctx context.Context, query string, limit int) ([]string, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || limit <= 0 {
		return nil, nil
	}
	rows, err := s.sql.QueryContext(ctx,
		"SELECT name FROM types WHERE name_lower LIKE ? ORDER BY name LIMIT ?",
		"%"+q+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("suggest types: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// SearchTypes returns full type rows matching a substring, name order.
func (s *Store) SearchTypes(ctx context.Context, query string, limit int) ([]ItemType, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || limit <= 0 {
		return nil, nil
	}
	rows, err := s.sql.QueryContext(ctx,
		"SELECT type_id, name, group_id, market_group_id FROM types WHERE name_lower LIKE ? ORDER BY name LIMIT ?",
		"%"+q+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("search types: %w", err)
	}
	defer rows.Close()

	var out []ItemType
	for rows.Next() {
		var t ItemType
		if err := rows.Scan(&t.TypeID, &t.Name, &t.GroupID, &t.MarketGroupID); err != nil {
			return nil, fmt.Errorf("scan type: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// TypeCount returns the number of indexed item types.
func (s *Store) TypeCount(ctx context.Context) (int, error) {
	var n int
	if err := s.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM types").Scan(&n); err != nil {
		return 0, fmt.Errorf("type count: %w", err)
	}
	return n, nil
}
