package cart

import (
	"log/slog"
	"sync"
	"time"

	"github.com/suivie/storefront/internal/event"
	"github.com/suivie/storefront/internal/repository"
)

const (
	// DefaultIdleTTL is how long a store may go unrequested before the
	// registry drops it.
	DefaultIdleTTL = 30 * time.Minute
	// DefaultMaxStores caps the live stores of one registry.
	DefaultMaxStores = 10000
)

// Registry hands out one Store per browser profile. Stores nobody asked
// for within the idle TTL are closed and forgotten; the persisted slot
// survives and the next request for the profile loads it again.
type Registry struct {
	factory  repository.Factory
	notifier event.Notifier
	logger   *slog.Logger
	baseKey  string
	idleTTL  time.Duration
	max      int
	now      func() time.Time

	mu        sync.Mutex
	stores    map[string]*entry
	lastSweep time.Time
}

type entry struct {
	store    *Store
	lastSeen time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithIdleTTL sets how long an unused store is kept. Zero keeps stores
// until Close.
func WithIdleTTL(d time.Duration) RegistryOption {
	return func(r *Registry) { r.idleTTL = d }
}

// WithMaxStores caps the live stores; the least recently used one is
// dropped to make room. Zero means no cap.
func WithMaxStores(n int) RegistryOption {
	return func(r *Registry) { r.max = n }
}

// WithRegistryClock replaces time.Now for idle tracking.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates a registry. An empty baseKey means repository.DefaultKey.
func NewRegistry(factory repository.Factory, notifier event.Notifier, baseKey string, logger *slog.Logger, opts ...RegistryOption) *Registry {
	if baseKey == "" {
		baseKey = repository.DefaultKey
	}
	r := &Registry{
		factory:  factory,
		notifier: notifier,
		logger:   logger,
		baseKey:  baseKey,
		idleTTL:  DefaultIdleTTL,
		max:      DefaultMaxStores,
		now:      time.Now,
		stores:   make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.lastSweep = r.now()
	return r
}

// Key returns the slot key of profile: the base key for the default
// (empty) profile, "<base>:<profile>" otherwise.
func (r *Registry) Key(profile string) string {
	if profile == "" {
		return r.baseKey
	}
	return r.baseKey + ":" + profile
}

// Store returns the store for profile, creating it on first use.
func (r *Registry) Store(profile string) *Store {
	key := r.Key(profile)
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.stores[key]; ok {
		e.lastSeen = now
		return e.store
	}

	if r.idleTTL > 0 && now.Sub(r.lastSweep) >= r.idleTTL/2 {
		r.sweepLocked(now)
	}
	if r.max > 0 && len(r.stores) >= r.max {
		r.evictOldestLocked()
	}

	s := NewStore(r.factory(key), r.notifier, r.logger)
	r.stores[key] = &entry{store: s, lastSeen: now}
	liveStores.Set(float64(len(r.stores)))
	return s
}

// Sweep drops every store idle for at least the idle TTL and returns how
// many it dropped.
func (r *Registry) Sweep() int {
	if r.idleTTL <= 0 {
		return 0
	}
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.sweepLocked(now)
	liveStores.Set(float64(len(r.stores)))
	return n
}

func (r *Registry) sweepLocked(now time.Time) int {
	r.lastSweep = now
	n := 0
	for key, e := range r.stores {
		if now.Sub(e.lastSeen) < r.idleTTL {
			continue
		}
		e.store.Close()
		delete(r.stores, key)
		n++
	}
	if n > 0 {
		storeEvictions.WithLabelValues("idle").Add(float64(n))
		r.logger.Debug("dropped idle cart stores", slog.Int("count", n), slog.Int("live", len(r.stores)))
	}
	return n
}

func (r *Registry) evictOldestLocked() {
	var (
		oldestKey string
		oldest    *entry
	)
	for key, e := range r.stores {
		if oldest == nil || e.lastSeen.Before(oldest.lastSeen) {
			oldestKey, oldest = key, e
		}
	}
	if oldest == nil {
		return
	}
	oldest.store.Close()
	delete(r.stores, oldestKey)
	storeEvictions.WithLabelValues("capacity").Inc()
}

// Len returns the number of live stores.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

// Close unsubscribes and forgets every store.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, e := range r.stores {
		e.store.Close()
		delete(r.stores, key)
	}
	liveStores.Set(0)
}
