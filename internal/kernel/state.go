package kernel

import (
	"context"
	"fmt"

	"github.com/mattjoyce/arenakernel/internal/arena"
	"github.com/mattjoyce/arenakernel/internal/snapshot"
)

// Snapshot copies every arena's data, leaving out current_task.
func (k *Kernel) Snapshot() snapshot.Snapshot {
	snap := make(snapshot.Snapshot, len(k.arenas))
	for _, a := range k.arenas {
		data := a.Snapshot()
		delete(data, arena.CurrentTaskKey)
		snap[a.Name()] = data
	}
	return snap
}

// SaveState writes a snapshot to location. See snapshot.Open for the
// accepted forms.
func (k *Kernel) SaveState(ctx context.Context, location string) error {
	store, err := snapshot.Open(ctx, location)
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}
	defer func() { _ = store.Close() }()
	if err := k.SaveTo(ctx, store); err != nil {
		return err
	}
	k.logger.Info("state saved", "location", location, "backend", snapshot.Kind(location))
	return nil
}

func (k *Kernel) SaveTo(ctx context.Context, store snapshot.Store) error {
	if err := store.Save(ctx, k.Snapshot()); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// LoadState replaces every arena's data with the snapshot at location.
// It fails with ErrRunning unless the kernel is stopped.
func (k *Kernel) LoadState(ctx context.Context, location string) error {
	if !k.idle() {
		return ErrRunning
	}
	store, err := snapshot.Open(ctx, location)
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}
	defer func() { _ = store.Close() }()
	if err := k.LoadFrom(ctx, store); err != nil {
		return err
	}
	k.logger.Info("state loaded", "location", location, "backend", snapshot.Kind(location))
	return nil
}

// LoadFrom replaces every arena wholesale from store. Arenas missing from
// the snapshot end up empty. Nothing is applied when the snapshot names an
// arena this kernel does not have.
func (k *Kernel) LoadFrom(ctx context.Context, store snapshot.Store) error {
	if !k.idle() {
		return ErrRunning
	}
	snap, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	return k.Restore(snap)
}

// Restore applies snap to a stopped kernel.
func (k *Kernel) Restore(snap snapshot.Snapshot) error {
	if !k.idle() {
		return ErrRunning
	}
	known := make(map[string]*arena.Arena, len(k.arenas))
	for _, a := range k.arenas {
		known[a.Name()] = a
	}
	for name := range snap {
		if _, ok := known[name]; !ok {
			return fmt.Errorf("%w: %q (kernel has %d arenas)", ErrUnknownArena, name, len(k.arenas))
		}
	}

	for _, a := range k.arenas {
		data := snap[a.Name()]
		if _, ok := data[arena.CurrentTaskKey]; ok {
			k.logger.Warn("dropping current_task from snapshot", "arena", a.Name())
			delete(data, arena.CurrentTaskKey)
		}
		a.Replace(data)
	}
	return nil
}
