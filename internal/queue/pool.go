package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultWorkers      = 2
	DefaultMaxAttempts  = 3
	DefaultRetryBackoff = 2 * time.Second

	maxRetryBackoff    = time.Minute
	retrySubmitTimeout = 5 * time.Second
	receiveBackoff     = time.Second
)

// Handler processes one task. A returned error schedules a retry until the task has been
// attempted MaxAttempts times.
type Handler func(ctx context.Context, task Task) error

type PoolConfig struct {
	Workers     int
	MaxAttempts int

	// RetryBackoff is the delay before the first retry. Attempt n waits n times as long,
	// capped at one minute.
	RetryBackoff time.Duration
}

// Pool runs a fixed number of workers that receive tasks and dispatch them by name.
type Pool struct {
	logger      *zap.Logger
	queue       Queue
	workers      int
	maxAttempts  int
	retryBackoff time.Duration

	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewPool(logger *zap.Logger, queue Queue, cfg PoolConfig) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	retryBackoff := cfg.RetryBackoff
	if retryBackoff <= 0 {
		retryBackoff = DefaultRetryBackoff
	}

	return &Pool{
		logger:       logger,
		queue:        queue,
		workers:      workers,
		maxAttempts:  maxAttempts,
		retryBackoff: retryBackoff,
		handlers:     make(map[string]Handler),
	}
}

// Handle registers the handler for a task name, replacing any previous one.
func (p *Pool) Handle(name string, handler Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[name] = handler
}

func (p *Pool) handler(name string) (Handler, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	h, ok := p.handlers[name]
	return h, ok
}

// Run blocks until ctx is done or the queue is closed and every worker has returned.
func (p *Pool) Run(ctx context.Context) error {
	p.logger.Info("starting workers", zap.Int("workers", p.workers), zap.Int("max_attempts", p.maxAttempts))

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go p.worker(ctx, i, &wg)
	}
	wg.Wait()

	p.logger.Info("workers stopped")
	return nil
}

func (p *Pool) worker(ctx context.Context, workerID int, wg *sync.WaitGroup) {
	defer wg.Done()
	logger := p.logger.With(zap.Int("worker_id", workerID))

	for {
		if ctx.Err() != nil {
			return
		}

		task, err := p.queue.Receive(ctx)
		if err != nil {
			if errors.Is(err, ErrClosed) || ctx.Err() != nil {
				return
			}
			logger.Error("failed to receive task", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(receiveBackoff):
			}
			continue
		}

		p.process(ctx, logger, task)
	}
}

func (p *Pool) process(ctx context.Context, logger *zap.Logger, task Task) {
	logger = logger.With(
		zap.String("task_id", task.ID),
		zap.String("task_name", task.Name),
		zap.String("session_id", task.SessionID),
		zap.Int("attempt", task.Attempt),
	)

	handler, ok := p.handler(task.Name)
	if !ok {
		logger.Warn("dropping task with no registered handler")
		return
	}

	start := time.Now()
	err := p.call(ctx, handler, task)
	if err == nil {
		logger.Info("task completed", zap.Duration("duration", time.Since(start)))
		return
	}

	if task.Attempt >= p.maxAttempts {
		logger.Error("task failed, giving up", zap.Error(err))
		return
	}

	delay := p.backoff(task.Attempt)
	logger.Warn("task failed, retrying", zap.Error(err), zap.Duration("delay", delay))

	// resubmit at once when stopping
	timer := time.NewTimer(delay)
	select {
	case <-ctx.Done():
		timer.Stop()
	case <-timer.C:
	}

	retry := task
	retry.Attempt++

	submitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), retrySubmitTimeout)
	defer cancel()
	if err := p.queue.Submit(submitCtx, retry); err != nil {
		logger.Error("failed to resubmit task", zap.Error(err))
	}
}

// backoff returns the delay before retrying a task whose attempt just failed.
func (p *Pool) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.retryBackoff * time.Duration(attempt)
	if delay > maxRetryBackoff || delay <= 0 {
		return maxRetryBackoff
	}
	return delay
}

func (p *Pool) call(ctx context.Context, handler Handler, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(ctx, task)
}
