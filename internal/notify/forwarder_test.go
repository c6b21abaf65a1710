package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/arenakernel/internal/events"
	"github.com/mattjoyce/arenakernel/internal/log"
)

func setup(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestForwardPublishesMessage(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, rdb := setup(t)

	f := NewRedisForwarder(rdb, "ns", "inst-1", log.Discard())
	assert.Equal(t, "arenakernel:ns:task_events", f.Channel())

	sub := rdb.Subscribe(ctx, f.Channel())
	defer func() { _ = sub.Close() }()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	bus := events.NewBus(log.Discard(), 8)
	f.Attach(bus)
	bus.Publish(events.ArenaReset, events.ArenaResetPayload{Index: 1, Arena: "Arena_1", Cleared: 3})

	select {
	case m := <-sub.Channel():
		var msg Message
		require.NoError(t, json.Unmarshal([]byte(m.Payload), &msg))
		assert.Equal(t, events.ArenaReset, msg.Type)
		assert.Equal(t, "inst-1", msg.InstanceID)
		assert.JSONEq(t, `{"index":1,"arena":"Arena_1","cleared":3}`, string(msg.Data))
	case <-ctx.Done():
		t.Fatal("no message received")
	}

	f.Detach()
	assert.Zero(t, bus.SubscriptionCount(events.Wildcard))
}

func TestForwardReportsRedisFailure(t *testing.T) {
	mr, rdb := setup(t)
	f := NewRedisForwarder(rdb, "", "inst-1", log.Discard())
	mr.Close()

	err := f.Forward(context.Background(), events.Event{ID: 1, Type: events.TaskSubmitted, At: time.Now()})
	assert.Error(t, err)
}

func TestForwardRejectsUnencodablePayload(t *testing.T) {
	_, rdb := setup(t)
	f := NewRedisForwarder(rdb, "", "inst-1", log.Discard())
	err := f.Forward(context.Background(), events.Event{ID: 1, Type: "x", Payload: make(chan int)})
	assert.Error(t, err)
}
