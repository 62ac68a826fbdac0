package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultRedisKey = "pdfebc:tasks"

	defaultPollInterval = time.Second
)

// RedisQueue stores tasks as JSON in a Redis list: LPUSH to submit, BRPOP to receive, so
// several worker processes can share one list.
type RedisQueue struct {
	client       *redis.Client
	key          string
	pollInterval time.Duration
	owned        bool
	closed       atomic.Bool
}

type RedisOption func(*RedisQueue)

// WithPollInterval sets how long one BRPOP waits before the closed flag and the context are
// checked again. Redis rounds it up to whole seconds.
func WithPollInterval(d time.Duration) RedisOption {
	return func(q *RedisQueue) {
		q.pollInterval = d
	}
}

// NewRedisQueue uses an existing client. The caller keeps ownership of the client.
func NewRedisQueue(client *redis.Client, key string, opts ...RedisOption) *RedisQueue {
	if key == "" {
		key = DefaultRedisKey
	}
	q := &RedisQueue{
		client:       client,
		key:          key,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// NewRedisQueueFromURL connects to the server at url (redis://...) and checks it with PING.
// Close releases the connection.
func NewRedisQueueFromURL(ctx context.Context, url, key string, opts ...RedisOption) (*RedisQueue, error) {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	q := NewRedisQueue(client, key, opts...)
	q.owned = true
	return q, nil
}

func (q *RedisQueue) Key() string {
	return q.key
}

func (q *RedisQueue) Submit(ctx context.Context, task Task) error {
	if q.closed.Load() {
		return ErrClosed
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("failed to push task: %w", err)
	}

	return nil
}

func (q *RedisQueue) Receive(ctx context.Context) (Task, error) {
	for {
		if q.closed.Load() {
			return Task{}, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return Task{}, err
		}

		res, err := q.client.BRPop(ctx, q.pollInterval, q.key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if q.closed.Load() {
				return Task{}, ErrClosed
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Task{}, ctxErr
			}
			return Task{}, fmt.Errorf("failed to pop task: %w", err)
		}

		// BRPOP replies with [key, value].
		if len(res) != 2 {
			return Task{}, fmt.Errorf("unexpected BRPOP reply of %d elements", len(res))
		}

		var task Task
		if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
			return Task{}, fmt.Errorf("failed to unmarshal task: %w", err)
		}
		return task, nil
	}
}

func (q *RedisQueue) Close() error {
	if q.closed.Swap(true) {
		return nil
	}
	if q.owned {
		return q.client.Close()
	}
	return nil
}

// HealthCheck pings the Redis server.
func (q *RedisQueue) HealthCheck(ctx context.Context) error {
	if q.closed.Load() {
		return ErrClosed
	}
	if err := q.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

func (q *RedisQueue) Shutdown(context.Context) error {
	return q.Close()
}
