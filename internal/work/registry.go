// Package work names Work functions so tasks can be submitted as data,
// from the CLI or the HTTP API, instead of as in-process closures.
package work

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/mattjoyce/arenakernel/internal/task"
)

// ErrUnknownCommand is returned when a command name has no registration.
var ErrUnknownCommand = errors.New("unknown command")

// Command is a serializable request to run a registered Work.
type Command struct {
	Name   string         `json:"command" yaml:"command"`
	Args   []any          `json:"args,omitempty" yaml:"args,omitempty"`
	Kwargs map[string]any `json:"kwargs,omitempty" yaml:"kwargs,omitempty"`
}

// Registry maps command names to Work.
type Registry struct {
	mu    sync.RWMutex
	works map[string]task.Work
}

func NewRegistry() *Registry {
	return &Registry{works: make(map[string]task.Work)}
}

// Register adds or replaces the Work for name.
func (r *Registry) Register(name string, w task.Work) error {
	if name == "" {
		return fmt.Errorf("command name is empty")
	}
	if w == nil {
		return fmt.Errorf("command %q: work is nil", name)
	}
	r.mu.Lock()
	r.works[name] = w
	r.mu.Unlock()
	return nil
}

// Resolve returns the Work registered for name.
func (r *Registry) Resolve(name string) (task.Work, error) {
	r.mu.RLock()
	w, ok := r.works[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
	return w, nil
}

// Names returns registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.works))
	for name := range r.works {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
