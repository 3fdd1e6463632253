package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Kind names a maintenance task the runner knows how to handle.
type Kind string

// KindNotificationPrune sweeps read notifications past their retention.
const KindNotificationPrune Kind = "notification_prune"

// Task is one unit of background maintenance work.
type Task struct {
	Kind     Kind
	Attempt  int
	Enqueued time.Time
}

// Handler executes a task.
type Handler func(context.Context, Task) error

// RunnerConfig configures the worker pool.
type RunnerConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Runner dispatches maintenance tasks to a pool of goroutines, retrying
// transient failures with a delay.
type Runner struct {
	name    string
	handler Handler

	workers    int
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger

	tasks   chan Task
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewRunner builds a runner around the handler.
func NewRunner(name string, handler Handler, cfg RunnerConfig) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Runner{
		name:       name,
		handler:    handler,
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
		tasks:      make(chan Task, cfg.BufferSize),
	}
}

// Start begins worker consumption. Safe to call once.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	r.started = true
	r.logger.Sugar().Infow("maintenance runner started", "runner", r.name, "workers", r.workers)
}

// Stop cancels workers and waits for them to exit.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.cancel()
	r.mu.Unlock()
	r.wg.Wait()
	r.logger.Sugar().Infow("maintenance runner stopped", "runner", r.name)
}

// Enqueue pushes a task onto the runner.
func (r *Runner) Enqueue(task Task) error {
	r.mu.Lock()
	ctx := r.ctx
	started := r.started
	r.mu.Unlock()

	if !started {
		return fmt.Errorf("runner %s not started", r.name)
	}
	if task.Enqueued.IsZero() {
		task.Enqueued = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("runner %s stopped: %w", r.name, ctx.Err())
	case r.tasks <- task:
		return nil
	}
}

// RunEvery enqueues a task of the given kind on a fixed interval until the
// runner's context is cancelled. Call after Start.
func (r *Runner) RunEvery(interval time.Duration, kind Kind) {
	r.mu.Lock()
	ctx := r.ctx
	started := r.started
	r.mu.Unlock()
	if !started {
		r.logger.Sugar().Warnw("RunEvery called before Start", "runner", r.name, "kind", kind)
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.Enqueue(Task{Kind: kind}); err != nil {
					r.logger.Sugar().Warnw("failed to enqueue scheduled task", "runner", r.name, "kind", kind, "error", err)
				}
			}
		}
	}()
}

func (r *Runner) worker() {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		case task := <-r.tasks:
			if err := r.handler(r.ctx, task); err != nil {
				r.handleFailure(task, err)
			}
		}
	}
}

func (r *Runner) handleFailure(task Task, err error) {
	task.Attempt++
	if task.Attempt > r.maxRetries {
		r.logger.Sugar().Errorw("task exceeded retries", "runner", r.name, "kind", task.Kind, "error", err)
		return
	}
	r.logger.Sugar().Warnw("task failed, retrying", "runner", r.name, "kind", task.Kind, "attempt", task.Attempt, "error", err)

	go func(t Task) {
		timer := time.NewTimer(r.retryDelay)
		defer timer.Stop()
		select {
		case <-r.ctx.Done():
			return
		case <-timer.C:
			if err := r.Enqueue(t); err != nil {
				r.logger.Sugar().Errorw("failed to requeue task", "runner", r.name, "kind", t.Kind, "error", err)
			}
		}
	}(task)
}
