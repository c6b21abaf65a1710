// Package notify forwards kernel events to Redis pub/sub so processes
// outside the kernel can follow task progress.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mattjoyce/arenakernel/internal/events"
)

// EventsChannel returns the pub/sub channel for a namespace.
// Pattern: arenakernel:{namespace}:task_events
func EventsChannel(namespace string) string {
	return fmt.Sprintf("arenakernel:%s:task_events", namespace)
}

// Message is the JSON body published for each event.
type Message struct {
	ID         int64           `json:"id"`
	Type       string          `json:"type"`
	At         time.Time       `json:"at"`
	InstanceID string          `json:"instance_id"`
	Data       json.RawMessage `json:"data"`
}

// RedisForwarder publishes every bus event it sees.
type RedisForwarder struct {
	rdb        *redis.Client
	channel    string
	instanceID string
	timeout    time.Duration
	logger     *slog.Logger

	bus   *events.Bus
	subID string
}

func NewRedisForwarder(rdb *redis.Client, namespace, instanceID string, logger *slog.Logger) *RedisForwarder {
	if logger == nil {
		logger = slog.Default()
	}
	if namespace == "" {
		namespace = "default"
	}
	return &RedisForwarder{
		rdb:        rdb,
		channel:    EventsChannel(namespace),
		instanceID: instanceID,
		timeout:    2 * time.Second,
		logger:     logger.With(slog.String("component", "notify")),
	}
}

func (f *RedisForwarder) Channel() string { return f.channel }

// Attach subscribes the forwarder to every event type on bus.
func (f *RedisForwarder) Attach(bus *events.Bus) {
	f.bus = bus
	f.subID = bus.Subscribe(events.Wildcard, f.Forward)
	f.logger.Info("forwarding events", "channel", f.channel)
}

func (f *RedisForwarder) Detach() {
	if f.bus == nil {
		return
	}
	f.bus.Unsubscribe(events.Wildcard, f.subID)
	f.bus = nil
}

// Forward publishes one event. It is an events.Handler.
func (f *RedisForwarder) Forward(ctx context.Context, ev events.Event) error {
	data := json.RawMessage("{}")
	if ev.Payload != nil {
		raw, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", ev.Type, err)
		}
		data = raw
	}
	body, err := json.Marshal(Message{
		ID:         ev.ID,
		Type:       ev.Type,
		At:         ev.At,
		InstanceID: f.instanceID,
		Data:       data,
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	if err := f.rdb.Publish(pctx, f.channel, body).Err(); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", ev.Type, err)
	}
	return nil
}
