package syncbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultRedisChannel = "cnw:entitlement:sync"

// RedisOption configures a RedisBus.
type RedisOption func(*RedisBus)

// WithChannel sets the pub/sub channel. Default: "cnw:entitlement:sync".
func WithChannel(channel string) RedisOption {
	return func(b *RedisBus) {
		b.channel = channel
	}
}

// WithRedisLogger sets the logger used for undecodable messages.
func WithRedisLogger(l *zap.Logger) RedisOption {
	return func(b *RedisBus) {
		b.logger = l
	}
}

// RedisBus implements Bus over Redis pub/sub.
type RedisBus struct {
	client  redis.UniversalClient
	channel string
	logger  *zap.Logger
}

// NewRedisBus creates a bus publishing on a Redis channel.
func NewRedisBus(client redis.UniversalClient, opts ...RedisOption) *RedisBus {
	b := &RedisBus{
		client:  client,
		channel: defaultRedisChannel,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *RedisBus) Publish(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish sync: %w", err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, h Handler) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	// Wait for the subscription to be confirmed.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg Message
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				b.logger.Warn("drop undecodable sync message", zap.Error(err))
				continue
			}
			h(ctx, msg)
		}
	}
}

func (b *RedisBus) Close() error {
	return nil // user manages the redis client lifecycle
}
