package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Queue appends JSON jobs to a Redis list consumed by a worker.
type Queue interface {
	Enqueue(ctx context.Context, queue string, v any) error
}

// RedisQueue is the Redis-list implementation of Queue.
type RedisQueue struct {
	rdb *redis.Client
}

// NewRedisQueue creates a new RedisQueue.
func NewRedisQueue(rdb *redis.Client) *RedisQueue {
	return &RedisQueue{rdb: rdb}
}

// Enqueue marshals v and pushes it to the tail of queue.
func (q *RedisQueue) Enqueue(ctx context.Context, queue string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	return q.rdb.RPush(ctx, queue, raw).Err()
}
