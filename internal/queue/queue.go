// Package queue carries compress-and-deliver tasks from the HTTP layer to background workers.
package queue

import (
	"context"
	"errors"
	"time"
)

var ErrClosed = errors.New("queue closed")

// Task is one unit of background work for a session. Attempt starts at 1.
type Task struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	SessionID   string    `json:"session_id"`
	Attempt     int       `json:"attempt"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Queue delivers each submitted task to at least one receiver. Receive blocks until a task is
// available, the context is done or the queue is closed (ErrClosed).
type Queue interface {
	Submit(ctx context.Context, task Task) error
	Receive(ctx context.Context) (Task, error)
	Close() error
}
