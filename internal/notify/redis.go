package notify

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisDispatcher appends events to a Redis stream consumed by the mailer.
type RedisDispatcher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisDispatcher(ctx context.Context, url, stream string) (*RedisDispatcher, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedisDispatcherFromClient(client, stream), nil
}

func NewRedisDispatcherFromClient(client *redis.Client, stream string) *RedisDispatcher {
	return &RedisDispatcher{client: client, stream: stream, maxLen: 100000}
}

func (d *RedisDispatcher) Dispatch(ctx context.Context, ev Event) error {
	payload, err := ev.Encode()
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	err = d.client.XAdd(ctx, &redis.XAddArgs{
		Stream: d.stream,
		MaxLen: d.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"id":       ev.ID,
			"type":     string(ev.Type),
			"coach_id": ev.CoachID,
			"payload":  payload,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd notification: %w", err)
	}
	return nil
}

func (d *RedisDispatcher) Close() error {
	return d.client.Close()
}
