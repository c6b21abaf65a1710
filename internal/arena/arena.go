package arena

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/mattjoyce/arenakernel/internal/log"
)

// CurrentTaskKey holds the task a worker is executing for exactly the
// duration of that execution.
const CurrentTaskKey = "current_task"

// Arena is a named, lock-protected scratch store owned by one worker.
type Arena struct {
	name   string
	logger *slog.Logger

	mu   sync.Mutex
	data map[string]any
}

// New creates an empty arena. A nil logger falls back to slog.Default().
func New(name string, logger *slog.Logger) *Arena {
	if logger == nil {
		logger = slog.Default()
	}
	return &Arena{
		name:   name,
		logger: logger.With(log.ArenaAttr(name)),
		data:   make(map[string]any),
	}
}

func (a *Arena) Name() string { return a.name }

// Allocate inserts or overwrites key.
func (a *Arena) Allocate(key string, value any) {
	a.mu.Lock()
	a.data[key] = value
	a.mu.Unlock()
	a.logger.Debug("allocated", "key", key)
}

// Deallocate removes key and returns the removed value. Removing an absent
// key is a no-op that reports false.
func (a *Arena) Deallocate(key string) (any, bool) {
	a.mu.Lock()
	v, ok := a.data[key]
	delete(a.data, key)
	a.mu.Unlock()
	a.logger.Debug("deallocated", "key", key, "present", ok)
	return v, ok
}

// Get reads key.
func (a *Arena) Get(key string) (any, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.data[key]
	return v, ok
}

// Clear empties the arena and returns how many keys were dropped.
func (a *Arena) Clear() int {
	a.mu.Lock()
	n := len(a.data)
	clear(a.data)
	a.mu.Unlock()
	return n
}

// Snapshot returns a shallow copy of the arena contents.
func (a *Arena) Snapshot() map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return maps.Clone(a.data)
}

// Replace swaps the arena contents for a copy of data.
func (a *Arena) Replace(data map[string]any) {
	next := make(map[string]any, len(data))
	maps.Copy(next, data)
	a.mu.Lock()
	a.data = next
	a.mu.Unlock()
}

func (a *Arena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.data)
}

// Keys returns the present keys in sorted order.
func (a *Arena) Keys() []string {
	a.mu.Lock()
	keys := slices.Collect(maps.Keys(a.data))
	a.mu.Unlock()
	slices.Sort(keys)
	return keys
}

type ctxKey struct{}

// NewContext returns a context carrying the executing arena.
func NewContext(ctx context.Context, a *Arena) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// FromContext returns the arena executing the current work, if any.
func FromContext(ctx context.Context) (*Arena, bool) {
	a, ok := ctx.Value(ctxKey{}).(*Arena)
	return a, ok
}
