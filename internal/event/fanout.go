package event

import (
	"context"
	"errors"
)

// Fanout publishes to every notifier and subscribes a handler to all of
// them. A change seen through several transports reaches the handler once
// per transport.
type Fanout []Notifier

// Publish publishes c on every notifier and joins their errors.
func (f Fanout) Publish(ctx context.Context, c Change) error {
	var errs []error
	for _, n := range f {
		if err := n.Publish(ctx, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Subscribe registers h on every notifier.
func (f Fanout) Subscribe(h Handler) func() {
	cancels := make([]func(), 0, len(f))
	for _, n := range f {
		cancels = append(cancels, n.Subscribe(h))
	}
	return func() {
		for _, cancel := range cancels {
			cancel()
		}
	}
}
