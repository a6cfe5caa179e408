package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/suivie/storefront/internal/domain"
	"github.com/suivie/storefront/internal/repository"
	"github.com/suivie/storefront/pkg/database"
)

// CartRepository implements repository.CartRepository on a single Redis key.
type CartRepository struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// NewCartRepository creates a Redis-backed cart slot. A zero ttl keeps the
// slot until it is overwritten.
func NewCartRepository(client redis.UniversalClient, key string, ttl time.Duration) *CartRepository {
	return &CartRepository{
		client: client,
		key:    key,
		ttl:    ttl,
	}
}

// Factory returns a repository.Factory producing slots on client.
func Factory(client redis.UniversalClient, ttl time.Duration) repository.Factory {
	return func(key string) repository.CartRepository {
		return NewCartRepository(client, key, ttl)
	}
}

// Key returns the Redis key of the slot.
func (r *CartRepository) Key() string { return r.key }

// Load reads and decodes the snapshot.
func (r *CartRepository) Load(ctx context.Context) (lines []domain.CartLine, err error) {
	ctx, end := database.TraceOp(ctx, database.Op{System: database.SystemRedis, Name: "GET", Key: r.key})
	defer func() { end(err) }()

	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get cart: %w", err)
	}

	lines, err = repository.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode cart %s: %w", r.key, err)
	}
	return lines, nil
}

// Save overwrites the slot with the encoded snapshot, refreshing the TTL.
func (r *CartRepository) Save(ctx context.Context, lines []domain.CartLine) (err error) {
	ctx, end := database.TraceOp(ctx, database.Op{System: database.SystemRedis, Name: "SET", Key: r.key})
	defer func() { end(err) }()

	data, err := repository.Encode(lines)
	if err != nil {
		return err
	}

	if err := r.client.Set(ctx, r.key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set cart: %w", err)
	}
	return nil
}
