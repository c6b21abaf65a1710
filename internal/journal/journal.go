// Package journal keeps a durable record of every task that reached a
// terminal status, one task_log row per task.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mattjoyce/arenakernel/internal/events"
	"github.com/mattjoyce/arenakernel/internal/task"
)

const maxResultBytes = 64 * 1024

// ErrNotFound is returned by Get when no row matches.
var ErrNotFound = errors.New("journal entry not found")

// timeLayout is fixed width so text comparison in ORDER BY and Prune
// matches time order. RFC3339Nano trims trailing zeros and does not.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry is one task_log row.
type Entry struct {
	InstanceID  string          `json:"instance_id"`
	TaskID      int64           `json:"task_id"`
	Arena       string          `json:"arena"`
	Status      task.Status     `json:"status"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt time.Time       `json:"completed_at"`
}

type registration struct {
	eventType string
	id        string
}

// Recorder writes terminal tasks to task_log.
type Recorder struct {
	db         *sql.DB
	instanceID string
	logger     *slog.Logger

	mu   sync.Mutex
	bus  *events.Bus
	regs []registration
}

func NewRecorder(db *sql.DB, instanceID string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		db:         db,
		instanceID: instanceID,
		logger:     logger.With(slog.String("component", "journal")),
	}
}

// Attach subscribes the recorder to task_complete and task_failed.
func (r *Recorder) Attach(bus *events.Bus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bus = bus
	for _, typ := range []string{events.TaskComplete, events.TaskFailed} {
		id := bus.Subscribe(typ, r.handle)
		r.regs = append(r.regs, registration{eventType: typ, id: id})
	}
}

// Detach removes the recorder's subscriptions.
func (r *Recorder) Detach() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bus == nil {
		return
	}
	for _, reg := range r.regs {
		r.bus.Unsubscribe(reg.eventType, reg.id)
	}
	r.regs = nil
	r.bus = nil
}

func (r *Recorder) handle(ctx context.Context, ev events.Event) error {
	t, ok := ev.Task()
	if !ok {
		return fmt.Errorf("event %s carries %T, not a task", ev.Type, ev.Payload)
	}
	return r.Record(ctx, t.View())
}

// Record appends a row for a terminal task view.
func (r *Recorder) Record(ctx context.Context, v task.View) error {
	if !v.Status.Terminal() {
		return fmt.Errorf("task %d is %s, not terminal", v.ID, v.Status)
	}

	var result any
	if v.Result != nil {
		raw, err := json.Marshal(v.Result)
		if err != nil {
			raw, _ = json.Marshal(fmt.Sprint(v.Result))
		}
		if len(raw) > maxResultBytes {
			raw, _ = json.Marshal(fmt.Sprintf("<result truncated: %d bytes>", len(raw)))
		}
		result = string(raw)
	}
	var errText any
	if v.Error != "" {
		errText = v.Error
	}
	var startedAt any
	if v.StartedAt != nil {
		startedAt = v.StartedAt.UTC().Format(timeLayout)
	}
	completedAt := time.Now().UTC()
	if v.CompletedAt != nil {
		completedAt = v.CompletedAt.UTC()
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO task_log(instance_id, task_id, arena, status, result, error, created_at, started_at, completed_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(instance_id, task_id) DO UPDATE SET
  arena = excluded.arena,
  status = excluded.status,
  result = excluded.result,
  error = excluded.error,
  started_at = excluded.started_at,
  completed_at = excluded.completed_at;
`, r.instanceID, v.ID, v.Arena, string(v.Status), result, errText,
		v.CreatedAt.UTC().Format(timeLayout), startedAt, completedAt.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert task_log: %w", err)
	}
	r.logger.Debug("task journaled", "task_id", v.ID, "status", v.Status)
	return nil
}

// Recent returns up to limit rows, newest first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT instance_id, task_id, arena, status, result, error, created_at, started_at, completed_at
FROM task_log
ORDER BY completed_at DESC, task_id DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query task_log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task_log: %w", err)
	}
	return out, nil
}

// Get returns the row for one task of one kernel instance.
func (r *Recorder) Get(ctx context.Context, instanceID string, taskID int64) (*Entry, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT instance_id, task_id, arena, status, result, error, created_at, started_at, completed_at
FROM task_log
WHERE instance_id = ? AND task_id = ?;
`, instanceID, taskID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// Prune deletes rows completed more than olderThan ago and returns how many went.
func (r *Recorder) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().Add(-olderThan).Format(timeLayout)
	res, err := r.db.ExecContext(ctx, `DELETE FROM task_log WHERE completed_at < ?;`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune task_log: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune task_log rows affected: %w", err)
	}
	if n > 0 {
		r.logger.Info("pruned task_log", "rows", n, "older_than", olderThan.String())
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*Entry, error) {
	var (
		e           Entry
		status      string
		result      sql.NullString
		errText     sql.NullString
		createdAt   string
		startedAt   sql.NullString
		completedAt string
	)
	if err := s.Scan(&e.InstanceID, &e.TaskID, &e.Arena, &status, &result, &errText, &createdAt, &startedAt, &completedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan task_log: %w", err)
	}
	e.Status = task.Status(status)
	if result.Valid {
		e.Result = json.RawMessage(result.String)
	}
	e.Error = errText.String

	var err error
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if e.CompletedAt, err = time.Parse(time.RFC3339Nano, completedAt); err != nil {
		return nil, fmt.Errorf("parse completed_at: %w", err)
	}
	if startedAt.Valid {
		ts, err := time.Parse(time.RFC3339Nano, startedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		e.StartedAt = &ts
	}
	return &e, nil
}
