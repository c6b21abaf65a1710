package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/arenakernel/internal/task"
)

// Wildcard subscribes a handler to every event type.
const Wildcard = "*"

// Event is what handlers receive.
type Event struct {
	ID      int64
	Type    string
	At      time.Time
	Payload any
}

// Task returns the payload when the event carries a task.
func (e Event) Task() (*task.Task, bool) {
	t, ok := e.Payload.(*task.Task)
	return t, ok
}

// Handler reacts to an event. A returned error or a panic is logged by the
// bus and affects nothing else.
type Handler func(ctx context.Context, ev Event) error

type subscription struct {
	id      string
	handler Handler
}

// Bus is an in-process publish/subscribe registry. Publish never waits for
// handlers: every invocation runs on its own goroutine.
type Bus struct {
	logger *slog.Logger
	nextID atomic.Int64

	mu   sync.RWMutex
	subs map[string][]subscription

	hub *hub

	flightMu sync.Mutex
	inflight int
	idle     chan struct{}
}

// NewBus creates a bus retaining the last capacity records for late readers.
func NewBus(logger *slog.Logger, capacity int) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	idle := make(chan struct{})
	close(idle)
	return &Bus{
		logger: logger.With(slog.String("component", "events")),
		subs:   make(map[string][]subscription),
		hub:    newHub(capacity),
		idle:   idle,
	}
}

// Subscribe registers handler for eventType and returns the registration id.
// Registering the same handler twice creates two independent registrations.
func (b *Bus) Subscribe(eventType string, handler Handler) string {
	id := uuid.NewString()
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], subscription{id: id, handler: handler})
	b.mu.Unlock()
	return id
}

// Unsubscribe removes the registration with the given id from eventType.
// It reports whether a registration was removed.
func (b *Bus) Unsubscribe(eventType, id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[eventType]
	for i, s := range subs {
		if s.id == id {
			b.subs[eventType] = append(subs[:i:i], subs[i+1:]...)
			if len(b.subs[eventType]) == 0 {
				delete(b.subs, eventType)
			}
			return true
		}
	}
	return false
}

// SubscriptionCount returns the number of registrations for eventType.
func (b *Bus) SubscriptionCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[eventType])
}

// Publish records the event and schedules every handler registered for
// eventType, followed by wildcard handlers, in subscription order.
func (b *Bus) Publish(eventType string, payload any) {
	ev := Event{
		ID:      b.nextID.Add(1),
		Type:    eventType,
		At:      time.Now().UTC(),
		Payload: payload,
	}
	b.hub.push(recordOf(ev))

	b.mu.RLock()
	targets := make([]subscription, 0, len(b.subs[eventType])+len(b.subs[Wildcard]))
	targets = append(targets, b.subs[eventType]...)
	if eventType != Wildcard {
		targets = append(targets, b.subs[Wildcard]...)
	}
	b.mu.RUnlock()

	for _, s := range targets {
		b.begin()
		go func() {
			defer b.end()
			b.safeCall(s, ev)
		}()
	}
}

func (b *Bus) safeCall(s subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"event_type", ev.Type, "subscription", s.id, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
	}()
	if err := s.handler(context.Background(), ev); err != nil {
		b.logger.Warn("event handler failed", "event_type", ev.Type, "subscription", s.id, "error", err)
	}
}

func (b *Bus) begin() {
	b.flightMu.Lock()
	if b.inflight == 0 {
		b.idle = make(chan struct{})
	}
	b.inflight++
	b.flightMu.Unlock()
}

func (b *Bus) end() {
	b.flightMu.Lock()
	b.inflight--
	if b.inflight == 0 {
		close(b.idle)
	}
	b.flightMu.Unlock()
}

// Wait blocks until no handler invocation is in flight or ctx is done.
func (b *Bus) Wait(ctx context.Context) error {
	b.flightMu.Lock()
	idle := b.idle
	b.flightMu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Since returns retained records newer than lastID (all of them for 0).
func (b *Bus) Since(lastID int64) []Record {
	return b.hub.since(lastID)
}

// Watch streams records as they are published. Slow readers miss records
// rather than stall publishers. Call cancel to stop watching.
func (b *Bus) Watch() (<-chan Record, func()) {
	return b.hub.watch()
}

func recordOf(ev Event) Record {
	payload := []byte("{}")
	if ev.Payload != nil {
		if raw, err := json.Marshal(ev.Payload); err == nil {
			payload = raw
		}
	}
	return Record{ID: ev.ID, Type: ev.Type, At: ev.At, Data: payload}
}
