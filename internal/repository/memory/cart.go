package memory

import (
	"context"
	"sync"

	"github.com/suivie/storefront/internal/domain"
	"github.com/suivie/storefront/internal/repository"
)

// Slots is an in-process key-value table of encoded cart snapshots. Every
// repository obtained from the same Slots shares its content, which makes it
// usable both as the local backend and as a test fake.
type Slots struct {
	mu      sync.RWMutex
	data    map[string][]byte
	saveErr error
	loadErr error
	saves   int
}

// NewSlots creates an empty slot table.
func NewSlots() *Slots {
	return &Slots{data: make(map[string][]byte)}
}

// Repository returns a repository bound to key.
func (s *Slots) Repository(key string) repository.CartRepository {
	return &CartRepository{slots: s, key: key}
}

// Factory adapts Slots to repository.Factory.
func (s *Slots) Factory() repository.Factory {
	return s.Repository
}

// SetRaw stores raw bytes under key, bypassing the codec.
func (s *Slots) SetRaw(key string, raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), raw...)
}

// Raw returns the bytes stored under key.
func (s *Slots) Raw(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.data[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), raw...), true
}

// FailSaves makes every subsequent Save return err. Pass nil to restore.
func (s *Slots) FailSaves(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

// FailLoads makes every subsequent Load return err. Pass nil to restore.
func (s *Slots) FailLoads(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadErr = err
}

// Saves returns the number of successful writes across all keys.
func (s *Slots) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// CartRepository implements repository.CartRepository over Slots.
type CartRepository struct {
	slots *Slots
	key   string
}

// Key returns the slot key.
func (r *CartRepository) Key() string { return r.key }

// Load decodes the snapshot stored under the repository key.
func (r *CartRepository) Load(ctx context.Context) ([]domain.CartLine, error) {
	r.slots.mu.RLock()
	defer r.slots.mu.RUnlock()

	if r.slots.loadErr != nil {
		return nil, r.slots.loadErr
	}
	raw, ok := r.slots.data[r.key]
	if !ok {
		return nil, nil
	}
	return repository.Decode(raw)
}

// Save encodes lines and overwrites the slot.
func (r *CartRepository) Save(ctx context.Context, lines []domain.CartLine) error {
	data, err := repository.Encode(lines)
	if err != nil {
		return err
	}

	r.slots.mu.Lock()
	defer r.slots.mu.Unlock()

	if r.slots.saveErr != nil {
		return r.slots.saveErr
	}
	r.slots.data[r.key] = data
	r.slots.saves++
	return nil
}
