// Package event carries "the cart slot changed" notifications between
// execution contexts. Receivers always re-read the slot, so a Change only
// says which slot moved and who moved it.
package event

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Change announces that the slot identified by Key was overwritten by the
// store whose origin id is Origin.
type Change struct {
	Key    string    `json:"key"`
	Origin string    `json:"origin"`
	At     time.Time `json:"at"`
}

// Handler reacts to a change notification.
type Handler func(ctx context.Context, c Change)

// Notifier publishes changes and delivers them to subscribers.
type Notifier interface {
	Publish(ctx context.Context, c Change) error
	// Subscribe registers h and returns a function that removes it.
	Subscribe(h Handler) (cancel func())
}

// hub is the subscriber set shared by every notifier implementation.
type hub struct {
	mu       sync.RWMutex
	next     int
	handlers map[int]Handler
}

func (h *hub) Subscribe(fn Handler) func() {
	h.mu.Lock()
	if h.handlers == nil {
		h.handlers = make(map[int]Handler)
	}
	id := h.next
	h.next++
	h.handlers[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.handlers, id)
			h.mu.Unlock()
		})
	}
}

// dispatch calls every handler outside the lock, in subscription order, so
// a handler may itself subscribe or cancel.
func (h *hub) dispatch(ctx context.Context, c Change) {
	h.mu.RLock()
	ids := make([]int, 0, len(h.handlers))
	for id := range h.handlers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]Handler, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, h.handlers[id])
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(ctx, c)
	}
}

func (h *hub) size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.handlers)
}

// Bus is the in-process notifier: Publish calls every subscriber
// synchronously before returning.
type Bus struct {
	hub
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Publish delivers c to all current subscribers.
func (b *Bus) Publish(ctx context.Context, c Change) error {
	notificationsTotal.WithLabelValues("memory", "published").Inc()
	b.dispatch(ctx, c)
	return nil
}

// Subscribers returns the number of registered handlers.
func (b *Bus) Subscribers() int {
	return b.size()
}
