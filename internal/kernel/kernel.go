package kernel

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/arenakernel/internal/arena"
	"github.com/mattjoyce/arenakernel/internal/events"
	"github.com/mattjoyce/arenakernel/internal/log"
	"github.com/mattjoyce/arenakernel/internal/queue"
	"github.com/mattjoyce/arenakernel/internal/task"
)

const (
	// DefaultPollInterval bounds how long an idle worker waits before
	// re-checking whether the kernel is still running.
	DefaultPollInterval = time.Second

	// DefaultRetain is how many terminal tasks stay addressable by id.
	DefaultRetain = 10000
)

// Options configures a Kernel.
type Options struct {
	Arenas       int
	PollInterval time.Duration
	// Retain caps how many terminal tasks Task can still look up.
	Retain int
	Logger *slog.Logger
	// Bus receives task and arena events. A private bus is created when nil.
	Bus *events.Bus
}

// Kernel owns the arenas, the queue and the worker pool.
type Kernel struct {
	id     string
	logger *slog.Logger
	bus    *events.Bus
	queue  *queue.Queue
	arenas []*arena.Arena
	poll   time.Duration
	retain int

	nextID    atomic.Int64
	running   atomic.Bool
	pending   atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64

	mu         sync.Mutex
	cancelPop  context.CancelFunc
	workerDone chan struct{}
	tasks      map[int64]*task.Task
	terminal   []int64
}

// New builds a stopped kernel with opts.Arenas arenas named Arena_0..Arena_N-1.
func New(opts Options) (*Kernel, error) {
	if opts.Arenas <= 0 {
		return nil, fmt.Errorf("arena count must be positive, got %d", opts.Arenas)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Retain <= 0 {
		opts.Retain = DefaultRetain
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	bus := opts.Bus
	if bus == nil {
		bus = events.NewBus(logger, 0)
	}

	id := uuid.NewString()
	k := &Kernel{
		id:     id,
		logger: logger.With(slog.String("component", "kernel"), slog.String("instance_id", id)),
		bus:    bus,
		queue:  queue.New(),
		arenas: make([]*arena.Arena, opts.Arenas),
		poll:   opts.PollInterval,
		retain: opts.Retain,
		tasks:  make(map[int64]*task.Task),
	}
	for i := range k.arenas {
		k.arenas[i] = arena.New(ArenaName(i), logger)
	}
	return k, nil
}

// ArenaName returns the name of the arena at index i.
func ArenaName(i int) string {
	return "Arena_" + strconv.Itoa(i)
}

func (k *Kernel) InstanceID() string   { return k.id }
func (k *Kernel) Bus() *events.Bus     { return k.bus }
func (k *Kernel) Running() bool        { return k.running.Load() }
func (k *Kernel) ArenaCount() int      { return len(k.arenas) }
func (k *Kernel) Logger() *slog.Logger { return k.logger }

// Submit queues a task and returns its id without waiting for it to run.
// Tasks submitted while stopped wait in the queue for the next Run.
func (k *Kernel) Submit(work task.Work, args []any, kwargs map[string]any) int64 {
	id := k.nextID.Add(1) - 1
	t := task.New(id, work, args, kwargs)

	k.mu.Lock()
	k.tasks[id] = t
	k.mu.Unlock()

	k.pending.Add(1)
	k.queue.Push(t)
	k.logger.Debug("task submitted", log.TaskAttr(id), "queue_depth", k.queue.Len())
	k.bus.Publish(events.TaskSubmitted, t)
	return id
}

// Run starts one worker per arena and returns immediately.
func (k *Kernel) Run() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.running.Load() {
		return ErrAlreadyRunning
	}
	if k.workerDone != nil {
		select {
		case <-k.workerDone:
		default:
			return ErrStopping
		}
	}

	popCtx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}
	done := make(chan struct{})
	k.cancelPop = cancel
	k.workerDone = done
	k.running.Store(true)

	for i, a := range k.arenas {
		wg.Go(func() { k.worker(popCtx, i, a) })
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	k.logger.Info("kernel running", "arenas", len(k.arenas), "poll_interval", k.poll.String())
	return nil
}

// Stop clears the running flag and waits, bounded by ctx, for workers to
// finish their current task and exit, then for in-flight event handlers.
// Stopping a stopped kernel is a no-op.
func (k *Kernel) Stop(ctx context.Context) error {
	k.mu.Lock()
	if !k.running.CompareAndSwap(true, false) {
		k.mu.Unlock()
		return nil
	}
	k.cancelPop()
	done := k.workerDone
	k.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("wait for workers: %w", ctx.Err())
	}
	if err := k.bus.Wait(ctx); err != nil {
		return fmt.Errorf("wait for event handlers: %w", err)
	}
	k.logger.Info("kernel stopped", "queued", k.queue.Len())
	return nil
}

// Drain blocks until every submitted task is terminal or ctx is done.
// On a stopped kernel with queued tasks it waits for ctx.
func (k *Kernel) Drain(ctx context.Context) error {
	if k.pending.Load() == 0 {
		return nil
	}
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("drain: %d tasks outstanding: %w", k.pending.Load(), ctx.Err())
		case <-ticker.C:
			if k.pending.Load() == 0 {
				return nil
			}
		}
	}
}

// idle reports whether no worker goroutine is alive.
func (k *Kernel) idle() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.running.Load() {
		return false
	}
	if k.workerDone == nil {
		return true
	}
	select {
	case <-k.workerDone:
		return true
	default:
		return false
	}
}

func (k *Kernel) worker(popCtx context.Context, index int, a *arena.Arena) {
	logger := k.logger.With(log.ArenaAttr(a.Name()), slog.Int("worker", index))
	logger.Debug("worker started")
	defer logger.Debug("worker stopped")

	for k.running.Load() {
		t, ok := k.queue.Pop(popCtx, k.poll)
		if !ok {
			continue
		}
		k.execute(a, t, logger)
	}
}

func (k *Kernel) execute(a *arena.Arena, t *task.Task, logger *slog.Logger) {
	a.Allocate(arena.CurrentTaskKey, t)
	defer a.Deallocate(arena.CurrentTaskKey)

	t.BindArena(a.Name())
	res := t.Run(arena.NewContext(context.Background(), a))

	taskLogger := logger.With(log.TaskAttr(t.ID()))
	if res.Err != nil {
		taskLogger.Warn("task failed", "error", res.Err)
		k.failed.Add(1)
		k.bus.Publish(events.TaskFailed, t)
	} else {
		taskLogger.Debug("task completed")
		k.completed.Add(1)
		k.bus.Publish(events.TaskComplete, t)
	}
	k.retire(t)
}

// retire marks t terminal and evicts the oldest terminal tasks past the
// retention cap.
func (k *Kernel) retire(t *task.Task) {
	k.mu.Lock()
	k.terminal = append(k.terminal, t.ID())
	for len(k.terminal) > k.retain {
		delete(k.tasks, k.terminal[0])
		k.terminal = k.terminal[1:]
	}
	k.mu.Unlock()
	k.pending.Add(-1)
}

// Task returns a submitted task by id.
func (k *Kernel) Task(id int64) (*task.Task, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	t, ok := k.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoSuchTask, id)
	}
	return t, nil
}

// Stats is a point-in-time view of kernel counters.
type Stats struct {
	InstanceID string `json:"instance_id"`
	Running    bool   `json:"running"`
	Arenas     int    `json:"arenas"`
	Submitted  int64  `json:"submitted"`
	Queued     int    `json:"queued"`
	Pending    int64  `json:"pending"`
	Completed  int64  `json:"completed"`
	Failed     int64  `json:"failed"`
}

func (k *Kernel) Stats() Stats {
	return Stats{
		InstanceID: k.id,
		Running:    k.running.Load(),
		Arenas:     len(k.arenas),
		Submitted:  k.nextID.Load(),
		Queued:     k.queue.Len(),
		Pending:    k.pending.Load(),
		Completed:  k.completed.Load(),
		Failed:     k.failed.Load(),
	}
}
