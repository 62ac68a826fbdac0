package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Dispatcher submits named tasks for a session. The caller does not wait for the outcome.
type Dispatcher struct {
	logger *zap.Logger
	queue  Queue
	now    func() time.Time
}

func NewDispatcher(logger *zap.Logger, queue Queue) *Dispatcher {
	return &Dispatcher{
		logger: logger,
		queue:  queue,
		now:    time.Now,
	}
}

func (d *Dispatcher) Submit(ctx context.Context, name, sessionID string) error {
	if name == "" {
		return fmt.Errorf("task name is required")
	}
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}

	task := Task{
		ID:          uuid.NewString(),
		Name:        name,
		SessionID:   sessionID,
		Attempt:     1,
		SubmittedAt: d.now().UTC(),
	}

	if err := d.queue.Submit(ctx, task); err != nil {
		return fmt.Errorf("failed to submit task %s: %w", name, err)
	}

	d.logger.Info("submitted task",
		zap.String("task_id", task.ID),
		zap.String("task_name", task.Name),
		zap.String("session_id", task.SessionID),
	)
	return nil
}
