package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher fans events out over Redis pub/sub on "<prefix>.<type>".
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: prefix}
}

func (p *RedisPublisher) Channel(eventType string) string {
	return p.prefix + "." + eventType
}

func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := ev.Encode()
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.Type, err)
	}
	if err := p.client.Publish(ctx, p.Channel(ev.Type), body).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// Close is a no-op, the client is owned by the caller.
func (p *RedisPublisher) Close() error { return nil }
