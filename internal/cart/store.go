// Package cart holds the cart store: the in-memory view of one persisted
// cart slot, kept in step with other stores on the same slot through change
// notifications.
package cart

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/suivie/storefront/internal/domain"
	"github.com/suivie/storefront/internal/event"
	"github.com/suivie/storefront/internal/repository"
	"github.com/suivie/storefront/pkg/logger"
)

// Operation labels used in metrics and logs.
const (
	opAdd         = "add"
	opRemove      = "remove"
	opSetQuantity = "set_quantity"
	opClear       = "clear"
	opLoad        = "load"
	opPublish     = "publish"
)

// Store is one execution context's view of a cart slot. No method returns an
// error: an unreadable slot reads as empty and a failed write keeps the
// mutation in memory only.
type Store struct {
	repo     repository.CartRepository
	notifier event.Notifier
	logger   *slog.Logger
	origin   string
	now      func() time.Time

	unsubscribe func()

	mu     sync.Mutex
	lines  domain.Lines
	loaded bool
}

// Option configures a Store.
type Option func(*Store)

// WithOrigin fixes the origin id instead of generating one.
func WithOrigin(origin string) Option {
	return func(s *Store) { s.origin = origin }
}

// WithClock replaces time.Now for change timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a store over repo and subscribes it to notifier. The slot
// is not read until the first operation.
func NewStore(repo repository.CartRepository, notifier event.Notifier, l *slog.Logger, opts ...Option) *Store {
	s := &Store{
		repo:     repo,
		notifier: notifier,
		origin:   uuid.NewString(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = l.With(slog.String("cart_key", repo.Key()), slog.String("origin", s.origin))
	s.unsubscribe = notifier.Subscribe(s.onChange)
	return s
}

// Origin returns the id stamped on this store's change notifications.
func (s *Store) Origin() string { return s.origin }

// Key returns the slot key.
func (s *Store) Key() string { return s.repo.Key() }

// Items returns a copy of the current lines in insertion order.
func (s *Store) Items(ctx context.Context) []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)
	return s.lines.Clone()
}

// Count returns the sum of line quantities.
func (s *Store) Count(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)
	return s.lines.Count()
}

// TotalAmount returns the sum of quantity x unit price. Amounts in different
// currencies are added as they are; Total carries the currency label.
func (s *Store) TotalAmount(ctx context.Context) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)
	return s.lines.TotalAmount()
}

// Total returns the cart total labelled with the first line's currency.
func (s *Store) Total(ctx context.Context) domain.Money {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)
	return s.lines.Total()
}

// LinesForCheckout projects the cart to merchandise id and quantity pairs.
func (s *Store) LinesForCheckout(ctx context.Context) []domain.CheckoutLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)
	return s.lines.ForCheckout()
}

// Snapshot returns lines, count and total read under one lock.
func (s *Store) Snapshot(ctx context.Context) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)
	return Snapshot{
		Items:         s.lines.Clone(),
		Count:         s.lines.Count(),
		Total:         s.lines.Total(),
		CheckoutLines: s.lines.ForCheckout(),
	}
}

// Snapshot is a consistent read of the cart and its derived values.
type Snapshot struct {
	Items         domain.Lines
	Count         int
	Total         domain.Money
	CheckoutLines []domain.CheckoutLine
}

// Add adds one unit of line.
func (s *Store) Add(ctx context.Context, line domain.NewLine) {
	s.AddItem(ctx, line, 1)
}

// AddItem adds quantity units. An existing line keeps its descriptive fields
// and only accumulates quantity.
func (s *Store) AddItem(ctx context.Context, line domain.NewLine, quantity int) {
	s.mutate(ctx, opAdd, func(lines domain.Lines) domain.Lines {
		if i := lines.Find(line.MerchandiseID); i >= 0 {
			lines[i].Quantity += quantity
			return lines
		}
		return append(lines, domain.NewCartLine(line, quantity))
	})
}

// RemoveItem deletes the line with the given id. Removing an absent id still
// persists and notifies.
func (s *Store) RemoveItem(ctx context.Context, merchandiseID string) {
	s.mutate(ctx, opRemove, func(lines domain.Lines) domain.Lines {
		out := lines[:0]
		for _, l := range lines {
			if l.MerchandiseID != merchandiseID {
				out = append(out, l)
			}
		}
		return out
	})
}

// SetQuantity overwrites the quantity of an existing line as given, zero and
// negative values included. Unknown ids leave the lines unchanged.
func (s *Store) SetQuantity(ctx context.Context, merchandiseID string, quantity int) {
	s.mutate(ctx, opSetQuantity, func(lines domain.Lines) domain.Lines {
		if i := lines.Find(merchandiseID); i >= 0 {
			lines[i].Quantity = quantity
		}
		return lines
	})
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) {
	s.mutate(ctx, opClear, func(domain.Lines) domain.Lines {
		return domain.Lines{}
	})
}

// Reload replaces the in-memory lines with the persisted snapshot.
func (s *Store) Reload(ctx context.Context) {
	s.reload(ctx, "manual")
}

// Close unsubscribes the store from change notifications.
func (s *Store) Close() {
	s.unsubscribe()
}

// mutate applies fn to a copy of the lines, saves the result and, if the
// save succeeded, announces it. The in-memory lines take the result either
// way.
func (s *Store) mutate(ctx context.Context, op string, fn func(domain.Lines) domain.Lines) {
	s.mu.Lock()
	s.ensureLoaded(ctx)
	next := fn(s.lines.Clone())
	s.lines = next
	err := s.repo.Save(ctx, next)
	s.mu.Unlock()

	mutationsTotal.WithLabelValues(op).Inc()
	if err != nil {
		persistenceFailures.WithLabelValues(op).Inc()
		logger.WithContext(ctx, s.logger).Warn("cart save failed, change kept in memory only",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		return
	}
	s.publish(ctx)
}

func (s *Store) publish(ctx context.Context) {
	c := event.Change{Key: s.repo.Key(), Origin: s.origin, At: s.now().UTC()}
	if err := s.notifier.Publish(ctx, c); err != nil {
		persistenceFailures.WithLabelValues(opPublish).Inc()
		logger.WithContext(ctx, s.logger).Warn("cart change notification failed",
			slog.String("error", err.Error()),
		)
	}
}

func (s *Store) onChange(ctx context.Context, c event.Change) {
	if c.Origin == s.origin || c.Key != s.repo.Key() {
		return
	}
	s.reload(ctx, "remote")
}

func (s *Store) reload(ctx context.Context, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = s.load(ctx)
	s.loaded = true
	reloadsTotal.WithLabelValues(reason).Inc()
}

// ensureLoaded must be called with s.mu held.
func (s *Store) ensureLoaded(ctx context.Context) {
	if s.loaded {
		return
	}
	s.lines = s.load(ctx)
	s.loaded = true
	reloadsTotal.WithLabelValues("initial").Inc()
}

func (s *Store) load(ctx context.Context) domain.Lines {
	lines, err := s.repo.Load(ctx)
	if err != nil {
		persistenceFailures.WithLabelValues(opLoad).Inc()
		msg := "cart load failed, starting empty"
		if errors.Is(err, repository.ErrCorrupt) {
			msg = "cart snapshot unreadable, starting empty"
		}
		logger.WithContext(ctx, s.logger).Warn(msg, slog.String("error", err.Error()))
		return domain.Lines{}
	}
	return domain.Lines(lines).Clone()
}
