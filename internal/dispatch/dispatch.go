// Package dispatch wakes the worker pool when items become ready. The store
// remains the source of truth; wake-ups are hints, and workers still poll on a
// ticker so a lost notification only delays pickup.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Notifier signals that a queue item may be ready for pickup.
type Notifier interface {
	Notify(ctx context.Context, itemID uuid.UUID) error
}

// Waiter blocks until a wake-up arrives or the timeout elapses.
type Waiter interface {
	Wait(ctx context.Context, timeout time.Duration) error
}

// RedisDispatch implements both sides over a Redis list.
type RedisDispatch struct {
	client *redis.Client
	queue  string
}

// NewRedisDispatch connects to Redis and uses the given list as the wake-up
// channel.
func NewRedisDispatch(addr, password, queue string) *RedisDispatch {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisDispatch{client: rdb, queue: queue}
}

// Notify pushes the item ID onto the wake-up list.
func (d *RedisDispatch) Notify(ctx context.Context, itemID uuid.UUID) error {
	if err := d.client.LPush(ctx, d.queue, itemID.String()).Err(); err != nil {
		return fmt.Errorf("failed to push wake-up: %w", err)
	}
	return nil
}

// Wait blocks on the list until a wake-up arrives or the timeout elapses.
// A timeout is not an error; it is the poll fallback firing.
func (d *RedisDispatch) Wait(ctx context.Context, timeout time.Duration) error {
	_, err := d.client.BRPop(ctx, timeout, d.queue).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to wait for wake-up: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (d *RedisDispatch) Close() error {
	return d.client.Close()
}

// Noop is the dispatcher used when Redis is not configured. Notify drops the
// signal and Wait just sleeps out the poll interval.
type Noop struct{}

// Notify is a no-op.
func (Noop) Notify(context.Context, uuid.UUID) error {
	return nil
}

// Wait sleeps until the timeout or context cancellation.
func (Noop) Wait(ctx context.Context, timeout time.Duration) error {
	select {
	case <-time.After(timeout):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
