package snapshot

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"
)

// DigestSuffix is appended to a snapshot path to name its BLAKE3 sidecar.
const DigestSuffix = ".b3"

// FileStore writes the snapshot as one JSON document. Each save also writes a
// BLAKE3 digest next to it, which Load verifies when present.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Save(_ context.Context, snap Snapshot) error {
	doc := make(map[string]json.RawMessage, len(snap))
	for name, data := range snap {
		raw, err := encodeArena(name, data)
		if err != nil {
			return err
		}
		doc[name] = raw
	}
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot directory: %w", err)
		}
	}
	if err := writeAtomic(s.path, body); err != nil {
		return err
	}
	if err := writeAtomic(s.path+DigestSuffix, []byte(Digest(body)+"\n")); err != nil {
		return fmt.Errorf("write digest: %w", err)
	}
	return nil
}

func (s *FileStore) Load(_ context.Context) (Snapshot, error) {
	body, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if err := s.verify(body); err != nil {
		return nil, err
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	snap := make(Snapshot, len(doc))
	for name, raw := range doc {
		data, err := decodeArena(name, raw)
		if err != nil {
			return nil, err
		}
		snap[name] = data
	}
	return snap, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) verify(body []byte) error {
	want, err := os.ReadFile(s.path + DigestSuffix)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read digest: %w", err)
	}
	if got := Digest(body); got != strings.TrimSpace(string(want)) {
		return fmt.Errorf("%w: %s (expected %s, got %s)", ErrChecksumMismatch, filepath.Base(s.path), strings.TrimSpace(string(want)), got)
	}
	return nil
}

// Digest returns the hex BLAKE3-256 of data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// writeAtomic writes data to a temp file and renames it over path.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
