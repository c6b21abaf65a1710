package arena

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/arenakernel/internal/log"
)

func newTestArena(name string) *Arena {
	return New(name, log.Discard())
}

func TestAllocateGetDeallocate(t *testing.T) {
	a := newTestArena("Arena_0")

	a.Allocate("k", 1)
	v, ok := a.Get("k")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	a.Allocate("k", 2)
	v, _ = a.Get("k")
	assert.Equal(t, 2, v, "allocate overwrites")

	removed, ok := a.Deallocate("k")
	assert.True(t, ok)
	assert.Equal(t, 2, removed)

	_, ok = a.Get("k")
	assert.False(t, ok)
}

func TestDeallocateIsIdempotent(t *testing.T) {
	a := newTestArena("Arena_0")
	a.Allocate("other", "x")
	a.Allocate("k", 1)

	_, ok := a.Deallocate("k")
	assert.True(t, ok)
	before := a.Snapshot()

	v, ok := a.Deallocate("k")
	assert.False(t, ok)
	assert.Nil(t, v)
	assert.Equal(t, before, a.Snapshot())
}

func TestClear(t *testing.T) {
	a := newTestArena("Arena_0")
	for i := range 3 {
		a.Allocate(fmt.Sprintf("k%d", i), i)
	}

	assert.Equal(t, 3, a.Clear())
	assert.Equal(t, 0, a.Len())
	for i := range 3 {
		_, ok := a.Get(fmt.Sprintf("k%d", i))
		assert.False(t, ok)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	a := newTestArena("Arena_0")
	a.Allocate("a", 1)

	snap := a.Snapshot()
	snap["b"] = 2

	_, ok := a.Get("b")
	assert.False(t, ok)
}

func TestReplaceIsWholesale(t *testing.T) {
	a := newTestArena("Arena_0")
	a.Allocate("stale", true)

	src := map[string]any{"a": 1}
	a.Replace(src)
	src["mutated"] = true

	assert.Equal(t, map[string]any{"a": 1}, a.Snapshot())
	assert.Equal(t, []string{"a"}, a.Keys())
}

func TestKeysSorted(t *testing.T) {
	a := newTestArena("Arena_0")
	a.Allocate("c", 0)
	a.Allocate("a", 0)
	a.Allocate("b", 0)
	assert.Equal(t, []string{"a", "b", "c"}, a.Keys())
}

func TestConcurrentAccess(t *testing.T) {
	a := newTestArena("Arena_0")
	var wg sync.WaitGroup
	for g := range 8 {
		wg.Go(func() {
			for i := range 200 {
				key := fmt.Sprintf("g%d-%d", g, i)
				a.Allocate(key, i)
				a.Get(key)
				a.Deallocate(key)
			}
		})
	}
	wg.Wait()
	assert.Equal(t, 0, a.Len())
}

func TestContextRoundTrip(t *testing.T) {
	a := newTestArena("Arena_2")
	ctx := NewContext(context.Background(), a)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, a, got)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}
