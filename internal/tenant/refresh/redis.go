package refresh

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the pub/sub subset of a go-redis client.
type RedisClient interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// RedisBus broadcasts refreshes over a Redis pub/sub channel.
type RedisBus struct {
	client   RedisClient
	channel  string
	listener *Listener
	logger   *slog.Logger
}

// NewRedisBus returns a bus on channel. The listener's origin tags outgoing messages.
func NewRedisBus(client RedisClient, channel string, listener *Listener, logger *slog.Logger) *RedisBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisBus{client: client, channel: channel, listener: listener, logger: logger}
}

// Publish broadcasts keys to every subscribed node.
func (b *RedisBus) Publish(ctx context.Context, keys []string) error {
	payload, err := encode(Message{Origin: b.listener.Origin(), Keys: keys})
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish refresh to redis: %w", err)
	}
	return nil
}

// Run subscribes to the channel and applies messages until ctx is cancelled.
func (b *RedisBus) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", b.channel, err)
	}
	b.logger.InfoContext(ctx, "tenant_refresh_subscribed", "transport", "redis", "channel", b.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := b.listener.Handle(ctx, []byte(msg.Payload)); err != nil {
				b.logger.ErrorContext(ctx, "tenant_refresh_apply_failed", "transport", "redis", "error", err)
			}
		}
	}
}
