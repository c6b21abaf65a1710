package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const DefaultMaxArenaBytes = 1 << 20 // 1 MiB per arena

// Store keeps one JSON object per arena in the arena_state table.
type Store struct {
	db            *sql.DB
	maxArenaBytes int
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:            db,
		maxArenaBytes: DefaultMaxArenaBytes,
	}
}

// Get returns the stored object for an arena, or {} if missing.
func (s *Store) Get(ctx context.Context, arena string) (json.RawMessage, error) {
	if arena == "" {
		return nil, fmt.Errorf("arena name is empty")
	}

	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT data FROM arena_state WHERE arena_name = ?;", arena).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return json.RawMessage(`{}`), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read arena state: %w", err)
	}
	if !json.Valid([]byte(raw)) {
		return nil, fmt.Errorf("stored arena state is invalid JSON for arena=%q", arena)
	}
	return json.RawMessage(raw), nil
}

// All returns every stored arena object keyed by arena name.
func (s *Store) All(ctx context.Context) (map[string]json.RawMessage, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT arena_name, data FROM arena_state ORDER BY arena_name;")
	if err != nil {
		return nil, fmt.Errorf("list arena state: %w", err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, fmt.Errorf("scan arena state: %w", err)
		}
		if !json.Valid([]byte(raw)) {
			return nil, fmt.Errorf("stored arena state is invalid JSON for arena=%q", name)
		}
		out[name] = json.RawMessage(raw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate arena state: %w", err)
	}
	return out, nil
}

// ReplaceAll swaps the whole table for arenas in one transaction. Rows for
// arenas not present in the map are removed.
func (s *Store) ReplaceAll(ctx context.Context, arenas map[string]json.RawMessage) error {
	for name, raw := range arenas {
		if name == "" {
			return fmt.Errorf("arena name is empty")
		}
		if !json.Valid(raw) {
			return fmt.Errorf("arena %q: invalid JSON", name)
		}
		if len(raw) > s.maxArenaBytes {
			return fmt.Errorf("arena %q state exceeds max size (%d bytes)", name, s.maxArenaBytes)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM arena_state;"); err != nil {
		return fmt.Errorf("clear arena state: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for name, raw := range arenas {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO arena_state(arena_name, data, updated_at)
VALUES(?, ?, ?);
`, name, string(raw), now); err != nil {
			return fmt.Errorf("insert arena state %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
