package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Pub/Sub channel cart changes are announced on.
const DefaultChannel = "cart.changed"

// RedisNotifier announces changes over Redis Pub/Sub, reaching every
// process that shares the Redis instance.
type RedisNotifier struct {
	hub
	client  redis.UniversalClient
	channel string
	logger  *slog.Logger
	ready   chan struct{}
}

// NewRedisNotifier creates a notifier on channel. Call Run to start
// receiving.
func NewRedisNotifier(client redis.UniversalClient, channel string, logger *slog.Logger) *RedisNotifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisNotifier{
		client:  client,
		channel: channel,
		logger:  logger,
		ready:   make(chan struct{}),
	}
}

// Publish sends c on the channel.
func (n *RedisNotifier) Publish(ctx context.Context, c Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		notificationsTotal.WithLabelValues("redis", "failed").Inc()
		return fmt.Errorf("redis publish %s: %w", n.channel, err)
	}
	notificationsTotal.WithLabelValues("redis", "published").Inc()
	return nil
}

// Ready is closed once Run holds an active subscription.
func (n *RedisNotifier) Ready() <-chan struct{} {
	return n.ready
}

// Run subscribes to the channel and dispatches messages until ctx is
// canceled. It must be called at most once.
func (n *RedisNotifier) Run(ctx context.Context) error {
	sub := n.client.Subscribe(ctx, n.channel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("redis subscribe %s: %w", n.channel, err)
	}
	close(n.ready)
	n.logger.Info("change subscription started", slog.String("channel", n.channel))

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			n.logger.Info("change subscription stopping", slog.String("channel", n.channel))
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var c Change
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				n.logger.Warn("dropping malformed change notification",
					slog.String("channel", n.channel),
					slog.String("error", err.Error()),
				)
				continue
			}
			notificationsTotal.WithLabelValues("redis", "received").Inc()
			n.dispatch(ctx, c)
		}
	}
}
