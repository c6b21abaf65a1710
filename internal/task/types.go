package task

import (
	"context"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Work is the unit of computation a Task wraps. The kernel never inspects it.
type Work func(ctx context.Context, args []any, kwargs map[string]any) (any, error)

// Result is what Run produces: exactly one of Value or Err is meaningful.
type Result struct {
	Value any
	Err   error
}

// View is the serializable projection of a Task used by the journal, the
// event stream and snapshots.
type View struct {
	ID          int64      `json:"id"`
	Status      Status     `json:"status"`
	Arena       string     `json:"arena,omitempty"`
	Result      any        `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
