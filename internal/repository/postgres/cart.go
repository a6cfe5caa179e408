package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/suivie/storefront/internal/domain"
	"github.com/suivie/storefront/internal/repository"
	"github.com/suivie/storefront/pkg/database"
)

const (
	loadQuery = `SELECT payload FROM cart_slots WHERE key = $1`
	saveQuery = `
		INSERT INTO cart_slots (key, payload, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE
		SET payload = EXCLUDED.payload, updated_at = NOW()`
)

// CartRepository implements repository.CartRepository on one row of the
// cart_slots table.
type CartRepository struct {
	pool database.DBTX
	key  string
}

// NewCartRepository creates a PostgreSQL-backed cart slot.
func NewCartRepository(pool database.DBTX, key string) *CartRepository {
	return &CartRepository{pool: pool, key: key}
}

// Factory returns a repository.Factory producing slots on pool.
func Factory(pool database.DBTX) repository.Factory {
	return func(key string) repository.CartRepository {
		return NewCartRepository(pool, key)
	}
}

// Key returns the slot key.
func (r *CartRepository) Key() string { return r.key }

// Load reads and decodes the snapshot.
func (r *CartRepository) Load(ctx context.Context) (lines []domain.CartLine, err error) {
	ctx, end := database.TraceOp(ctx, database.Op{System: database.SystemPostgres, Name: "LoadCart", Statement: loadQuery, Key: r.key})
	defer func() { end(err) }()

	var payload []byte
	if err := r.pool.QueryRow(ctx, loadQuery, r.key).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select cart slot: %w", err)
	}

	lines, err = repository.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("decode cart %s: %w", r.key, err)
	}
	return lines, nil
}

// Save upserts the encoded snapshot.
func (r *CartRepository) Save(ctx context.Context, lines []domain.CartLine) (err error) {
	ctx, end := database.TraceOp(ctx, database.Op{System: database.SystemPostgres, Name: "SaveCart", Statement: saveQuery, Key: r.key})
	defer func() { end(err) }()

	payload, err := repository.Encode(lines)
	if err != nil {
		return err
	}

	if _, err := r.pool.Exec(ctx, saveQuery, r.key, payload); err != nil {
		return fmt.Errorf("upsert cart slot: %w", err)
	}
	return nil
}
