package repository

import (
	"context"
	"errors"

	"github.com/suivie/storefront/internal/domain"
)

// DefaultKey is the durable slot holding the cart of the default profile.
const DefaultKey = "suivie_cart_v1"

// ErrCorrupt is returned by Load when the slot content cannot be decoded.
var ErrCorrupt = errors.New("corrupt cart snapshot")

// CartRepository is the durable key-value slot a cart is persisted to.
// Each implementation is bound to a single slot key.
type CartRepository interface {
	// Load returns the persisted lines. A missing slot yields nil lines and
	// a nil error.
	Load(ctx context.Context) ([]domain.CartLine, error)

	// Save overwrites the slot with the given lines as a single snapshot.
	Save(ctx context.Context, lines []domain.CartLine) error

	// Key returns the slot key this repository reads and writes.
	Key() string
}

// Factory returns a repository bound to the given slot key.
type Factory func(key string) CartRepository
