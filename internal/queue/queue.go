package queue

import (
	"context"
	"sync"
	"time"

	"github.com/mattjoyce/arenakernel/internal/task"
)

// Queue is an unbounded FIFO of pending tasks shared by many producers and
// the kernel's workers. A task handed out by Pop is owned by that caller.
type Queue struct {
	mu    sync.Mutex
	items []*task.Task
	ready chan struct{}
}

func New() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

// Push appends t and wakes at most one blocked popper.
func (q *Queue) Push(t *task.Task) {
	q.mu.Lock()
	q.items = append(q.items, t)
	q.mu.Unlock()
	q.signal()
}

// Pop removes and returns the head. When the queue stays empty for timeout, or
// ctx is done first, it returns (nil, false) so the caller can re-check its
// own state and try again.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (*task.Task, bool) {
	var timer *time.Timer
	for {
		if t, ok := q.tryPop(); ok {
			return t, true
		}
		if timer == nil {
			timer = time.NewTimer(timeout)
			defer timer.Stop()
		}
		select {
		case <-q.ready:
		case <-timer.C:
			return q.tryPop()
		case <-ctx.Done():
			return nil, false
		}
	}
}

func (q *Queue) tryPop() (*task.Task, bool) {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return nil, false
	}
	t := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	more := len(q.items) > 0
	q.mu.Unlock()
	// Pass the wake-up on so a second sleeper can take the next item.
	if more {
		q.signal()
	}
	return t, true
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
