package kernel

import (
	"fmt"
	"slices"

	"github.com/mattjoyce/arenakernel/internal/arena"
	"github.com/mattjoyce/arenakernel/internal/events"
	"github.com/mattjoyce/arenakernel/internal/task"
)

// ArenaView describes one arena for display.
type ArenaView struct {
	Index       int      `json:"index"`
	Name        string   `json:"name"`
	Keys        []string `json:"keys"`
	Busy        bool     `json:"busy"`
	CurrentTask *int64   `json:"current_task,omitempty"`
}

func (k *Kernel) arena(index int) (*arena.Arena, error) {
	if index < 0 || index >= len(k.arenas) {
		return nil, fmt.Errorf("%w: index %d (have %d)", ErrNoSuchArena, index, len(k.arenas))
	}
	return k.arenas[index], nil
}

// Arenas lists every arena with its keys, excluding current_task.
func (k *Kernel) Arenas() []ArenaView {
	out := make([]ArenaView, 0, len(k.arenas))
	for i, a := range k.arenas {
		v := ArenaView{Index: i, Name: a.Name()}
		keys := a.Keys()
		if cur, ok := a.Get(arena.CurrentTaskKey); ok {
			v.Busy = true
			if t, ok := cur.(*task.Task); ok {
				id := t.ID()
				v.CurrentTask = &id
			}
			keys = slices.DeleteFunc(keys, func(key string) bool { return key == arena.CurrentTaskKey })
		}
		v.Keys = keys
		out = append(out, v)
	}
	return out
}

// AllocateInArena stores value under key in the arena at index.
func (k *Kernel) AllocateInArena(index int, key string, value any) error {
	a, err := k.arena(index)
	if err != nil {
		return err
	}
	a.Allocate(key, value)
	return nil
}

// DeallocateInArena removes key from the arena at index. A missing key is not an error.
func (k *Kernel) DeallocateInArena(index int, key string) error {
	a, err := k.arena(index)
	if err != nil {
		return err
	}
	a.Deallocate(key)
	return nil
}

// GetFromArena reads key from the arena at index.
func (k *Kernel) GetFromArena(index int, key string) (any, bool, error) {
	a, err := k.arena(index)
	if err != nil {
		return nil, false, err
	}
	v, ok := a.Get(key)
	return v, ok, nil
}

// HandleFailState clears every key of the arena at index under its lock
// and publishes arena_reset. Other arenas are untouched.
func (k *Kernel) HandleFailState(index int) error {
	a, err := k.arena(index)
	if err != nil {
		return err
	}
	n := a.Clear()
	k.logger.Warn("arena reset", "arena", a.Name(), "cleared", n)
	k.bus.Publish(events.ArenaReset, events.ArenaResetPayload{Index: index, Arena: a.Name(), Cleared: n})
	return nil
}
