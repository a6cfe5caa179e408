package event

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suivie/storefront/pkg/logger"
)

func setupRedisNotifier(t *testing.T) (*RedisNotifier, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisNotifier(client, "", logger.Discard()), mr
}

// runNotifier starts Run and waits for the subscription to be active.
func runNotifier(t *testing.T, n *RedisNotifier) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	select {
	case <-n.Ready():
	case err := <-done:
		cancel()
		t.Fatalf("Run returned before subscribing: %v", err)
	case <-time.After(2 * time.Second):
		cancel()
		t.Fatal("subscription not ready")
	}

	return func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("Run did not stop")
		}
	}
}

func TestRedisNotifier_RoundTrip(t *testing.T) {
	n, _ := setupRedisNotifier(t)
	var r recorder
	n.Subscribe(r.handle)

	stop := runNotifier(t, n)
	defer stop()

	require.NoError(t, n.Publish(context.Background(), sampleChange()))

	require.Eventually(t, func() bool { return len(r.changes()) == 1 }, 2*time.Second, 10*time.Millisecond)
	got := r.changes()[0]
	assert.Equal(t, "suivie_cart_v1", got.Key)
	assert.Equal(t, "store-a", got.Origin)
	assert.True(t, sampleChange().At.Equal(got.At))
}

func TestRedisNotifier_PublishesJSON(t *testing.T) {
	n, mr := setupRedisNotifier(t)
	sub := mr.NewSubscriber()
	defer sub.Close()
	sub.Subscribe(DefaultChannel)

	require.NoError(t, n.Publish(context.Background(), sampleChange()))

	select {
	case msg := <-sub.Messages():
		assert.Equal(t, DefaultChannel, msg.Channel)
		assert.JSONEq(t, `{"key":"suivie_cart_v1","origin":"store-a","at":"2024-07-01T12:00:00Z"}`, msg.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("no message published")
	}
}

func TestRedisNotifier_DropsMalformedPayload(t *testing.T) {
	n, mr := setupRedisNotifier(t)
	var r recorder
	n.Subscribe(r.handle)

	stop := runNotifier(t, n)
	defer stop()

	mr.Publish(DefaultChannel, "{{not-json")
	require.NoError(t, n.Publish(context.Background(), sampleChange()))

	require.Eventually(t, func() bool { return len(r.changes()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "store-a", r.changes()[0].Origin)
}

func TestRedisNotifier_PublishServerDown(t *testing.T) {
	n, mr := setupRedisNotifier(t)
	mr.Close()

	err := n.Publish(context.Background(), sampleChange())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis publish cart.changed")
}
