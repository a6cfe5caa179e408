package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects delivered changes.
type recorder struct {
	mu  sync.Mutex
	got []Change
}

func (r *recorder) handle(_ context.Context, c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, c)
}

func (r *recorder) changes() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Change(nil), r.got...)
}

func sampleChange() Change {
	return Change{Key: "suivie_cart_v1", Origin: "store-a", At: time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)}
}

func TestBus_DeliversToAllSubscribers(t *testing.T) {
	bus := NewBus()
	var a, b recorder
	bus.Subscribe(a.handle)
	bus.Subscribe(b.handle)

	require.NoError(t, bus.Publish(context.Background(), sampleChange()))

	assert.Equal(t, []Change{sampleChange()}, a.changes())
	assert.Equal(t, []Change{sampleChange()}, b.changes())
}

func TestBus_CancelStopsDelivery(t *testing.T) {
	bus := NewBus()
	var r recorder
	cancel := bus.Subscribe(r.handle)
	assert.Equal(t, 1, bus.Subscribers())

	cancel()
	cancel()
	assert.Equal(t, 0, bus.Subscribers())

	require.NoError(t, bus.Publish(context.Background(), sampleChange()))
	assert.Empty(t, r.changes())
}

func TestBus_SubscriptionOrder(t *testing.T) {
	bus := NewBus()
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		bus.Subscribe(func(context.Context, Change) { order = append(order, i) })
	}

	require.NoError(t, bus.Publish(context.Background(), sampleChange()))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestBus_HandlerMayUnsubscribe(t *testing.T) {
	bus := NewBus()
	var cancel func()
	calls := 0
	cancel = bus.Subscribe(func(context.Context, Change) {
		calls++
		cancel()
	})

	require.NoError(t, bus.Publish(context.Background(), sampleChange()))
	require.NoError(t, bus.Publish(context.Background(), sampleChange()))
	assert.Equal(t, 1, calls)
}

type failingNotifier struct {
	hub
	err error
}

func (f *failingNotifier) Publish(context.Context, Change) error { return f.err }

func TestFanout_PublishesEverywhere(t *testing.T) {
	a, b := NewBus(), NewBus()
	var ra, rb recorder
	a.Subscribe(ra.handle)
	b.Subscribe(rb.handle)

	require.NoError(t, Fanout{a, b}.Publish(context.Background(), sampleChange()))
	assert.Len(t, ra.changes(), 1)
	assert.Len(t, rb.changes(), 1)
}

func TestFanout_JoinsErrors(t *testing.T) {
	boom := errors.New("broker down")
	bus := NewBus()
	var r recorder
	bus.Subscribe(r.handle)

	err := Fanout{&failingNotifier{err: boom}, bus}.Publish(context.Background(), sampleChange())
	assert.ErrorIs(t, err, boom)
	assert.Len(t, r.changes(), 1, "a failing transport must not block the others")
}

func TestFanout_SubscribeAndCancel(t *testing.T) {
	a, b := NewBus(), NewBus()
	var r recorder
	cancel := Fanout{a, b}.Subscribe(r.handle)

	require.NoError(t, a.Publish(context.Background(), sampleChange()))
	require.NoError(t, b.Publish(context.Background(), sampleChange()))
	assert.Len(t, r.changes(), 2)

	cancel()
	assert.Equal(t, 0, a.Subscribers())
	assert.Equal(t, 0, b.Subscribers())
}
