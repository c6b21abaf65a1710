package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks github.com/mattjoyce/arenakernel/internal/snapshot Store

// Snapshot maps arena name to that arena's local data.
type Snapshot map[string]map[string]any

// ErrChecksumMismatch is returned when a snapshot file does not match its digest.
var ErrChecksumMismatch = errors.New("snapshot checksum mismatch")

// Store persists and restores a whole Snapshot. Save replaces whatever the
// store held before; there is no incremental format.
//
// Values travel as JSON. On Load, whole numbers come back as int64 and other
// numbers as float64, so an int saved as 3 loads as int64(3). Other integer
// kinds and structs come back as their JSON shape.
type Store interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context) (Snapshot, error)
	Close() error
}

// Open resolves a location to a Store:
//
//	redis://host:port/db?namespace=name  Redis hash
//	sqlite:///path/to/file.db            SQLite arena_state table
//	/path/to/file.db | .sqlite           SQLite arena_state table
//	anything else                        flat JSON file
func Open(ctx context.Context, location string) (Store, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, fmt.Errorf("snapshot location is empty")
	}

	switch {
	case strings.HasPrefix(location, "redis://"), strings.HasPrefix(location, "rediss://"):
		return OpenRedisStore(location)
	case strings.HasPrefix(location, "sqlite://"):
		return OpenSQLiteStore(ctx, strings.TrimPrefix(location, "sqlite://"))
	}

	switch strings.ToLower(filepath.Ext(location)) {
	case ".db", ".sqlite", ".sqlite3":
		return OpenSQLiteStore(ctx, location)
	}
	return NewFileStore(location), nil
}

// Kind names the backend a location resolves to, for display.
func Kind(location string) string {
	switch {
	case strings.HasPrefix(location, "redis://"), strings.HasPrefix(location, "rediss://"):
		return "redis"
	case strings.HasPrefix(location, "sqlite://"):
		return "sqlite"
	}
	switch strings.ToLower(filepath.Ext(location)) {
	case ".db", ".sqlite", ".sqlite3":
		return "sqlite"
	}
	return "file"
}

func encodeArena(name string, data map[string]any) (json.RawMessage, error) {
	if data == nil {
		data = map[string]any{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode arena %q: %w", name, err)
	}
	return raw, nil
}

func decodeArena(name string, raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("decode arena %q: %w", name, err)
	}
	if data == nil {
		return map[string]any{}, nil
	}
	for k, v := range data {
		data[k] = normalizeNumbers(v)
	}
	return data, nil
}

// normalizeNumbers turns json.Number into int64 when the literal is a whole
// number that fits, float64 otherwise, at any depth.
func normalizeNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case map[string]any:
		for k, e := range x {
			x[k] = normalizeNumbers(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = normalizeNumbers(e)
		}
		return x
	default:
		return v
	}
}
