package queue

import (
	"context"
	"sync"
)

const DefaultMemoryCapacity = 64

// MemoryQueue is an in-process queue backed by a buffered channel. Tasks still buffered when
// the queue is closed are handed out before Receive reports ErrClosed.
type MemoryQueue struct {
	tasks chan Task
	done  chan struct{}
	once  sync.Once
}

func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryQueue{
		tasks: make(chan Task, capacity),
		done:  make(chan struct{}),
	}
}

func (q *MemoryQueue) Submit(ctx context.Context, task Task) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}

	select {
	case q.tasks <- task:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Receive(ctx context.Context) (Task, error) {
	select {
	case task := <-q.tasks:
		return task, nil
	default:
	}

	select {
	case task := <-q.tasks:
		return task, nil
	case <-q.done:
		return Task{}, ErrClosed
	case <-ctx.Done():
		return Task{}, ctx.Err()
	}
}

// Len returns the number of buffered tasks.
func (q *MemoryQueue) Len() int {
	return len(q.tasks)
}

func (q *MemoryQueue) Close() error {
	q.once.Do(func() {
		close(q.done)
	})
	return nil
}

// HealthCheck fails once the queue is closed.
func (q *MemoryQueue) HealthCheck(context.Context) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
		return nil
	}
}

func (q *MemoryQueue) Shutdown(context.Context) error {
	return q.Close()
}
