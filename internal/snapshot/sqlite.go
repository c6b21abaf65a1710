package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/mattjoyce/arenakernel/internal/state"
	"github.com/mattjoyce/arenakernel/internal/storage"
)

// SQLiteStore keeps a snapshot as one arena_state row per arena.
type SQLiteStore struct {
	db     *sql.DB
	store  *state.Store
	ownsDB bool
}

// OpenSQLiteStore opens the database at path and owns it until Close.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := storage.OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	s := NewSQLiteStore(db)
	s.ownsDB = true
	return s, nil
}

// NewSQLiteStore wraps an already-open database; Close leaves it open.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, store: state.NewStore(db)}
}

func (s *SQLiteStore) Save(ctx context.Context, snap Snapshot) error {
	rows := make(map[string]json.RawMessage, len(snap))
	for name, data := range snap {
		raw, err := encodeArena(name, data)
		if err != nil {
			return err
		}
		rows[name] = raw
	}
	if err := s.store.ReplaceAll(ctx, rows); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context) (Snapshot, error) {
	rows, err := s.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	snap := make(Snapshot, len(rows))
	for name, raw := range rows {
		data, err := decodeArena(name, raw)
		if err != nil {
			return nil, err
		}
		snap[name] = data
	}
	return snap, nil
}

func (s *SQLiteStore) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}
