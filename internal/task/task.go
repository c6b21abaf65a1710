package task

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"
)

// Task is one submitted unit of work. Its identity and work are fixed at
// construction; status and result are written only by the worker running it.
type Task struct {
	id     int64
	work   Work
	args   []any
	kwargs map[string]any

	mu          sync.Mutex
	status      Status
	result      Result
	arena       string
	createdAt   time.Time
	startedAt   *time.Time
	completedAt *time.Time
	done        chan struct{}
}

// New creates a pending task. args and kwargs may be nil.
func New(id int64, work Work, args []any, kwargs map[string]any) *Task {
	if args == nil {
		args = []any{}
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	return &Task{
		id:        id,
		work:      work,
		args:      args,
		kwargs:    kwargs,
		status:    StatusPending,
		createdAt: time.Now().UTC(),
		done:      make(chan struct{}),
	}
}

func (t *Task) ID() int64 { return t.id }

// Status returns the current lifecycle state.
func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Result returns the stored result. It is the zero Result until the task is terminal.
func (t *Task) Result() Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

// Arena returns the name of the arena that ran the task, if any.
func (t *Task) Arena() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.arena
}

// BindArena records the arena executing the task.
func (t *Task) BindArena(name string) {
	t.mu.Lock()
	t.arena = name
	t.mu.Unlock()
}

// Done is closed once the task reaches a terminal status.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Run executes the work. Errors and panics from the work are captured as a
// failed result and never propagate to the caller. A task runs at most once;
// calling Run again returns the stored result.
func (t *Task) Run(ctx context.Context) Result {
	t.mu.Lock()
	if t.status != StatusPending {
		res := t.result
		t.mu.Unlock()
		return res
	}
	now := time.Now().UTC()
	t.status = StatusRunning
	t.startedAt = &now
	t.mu.Unlock()

	value, err := t.invoke(ctx)

	t.mu.Lock()
	end := time.Now().UTC()
	t.completedAt = &end
	if err != nil {
		t.status = StatusFailed
		t.result = Result{Err: err}
	} else {
		t.status = StatusCompleted
		t.result = Result{Value: value}
	}
	res := t.result
	t.mu.Unlock()
	close(t.done)
	return res
}

func (t *Task) invoke(ctx context.Context) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	if t.work == nil {
		return nil, fmt.Errorf("task %d has no work", t.id)
	}
	return t.work(ctx, t.args, t.kwargs)
}

// View returns a consistent copy of the task's observable state.
func (t *Task) View() View {
	t.mu.Lock()
	defer t.mu.Unlock()
	v := View{
		ID:          t.id,
		Status:      t.status,
		Arena:       t.arena,
		Result:      t.result.Value,
		CreatedAt:   t.createdAt,
		StartedAt:   t.startedAt,
		CompletedAt: t.completedAt,
	}
	if t.result.Err != nil {
		v.Error = t.result.Err.Error()
	}
	return v
}

func (t *Task) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.View())
}

func (t *Task) String() string {
	return fmt.Sprintf("task %d (%s)", t.id, t.Status())
}

// PanicError wraps a value recovered from a panicking Work.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("work panicked: %v", e.Value)
}
