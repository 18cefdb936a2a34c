package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/cartstore/internal/domain"
	apperrors "github.com/utafrali/cartstore/pkg/errors"
)

const keyPrefix = "cart:session:"

// CartRepository implements repository.CartRepository using Redis.
type CartRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCartRepository creates a new Redis-backed cart repository.
func NewCartRepository(client *redis.Client, ttl time.Duration) *CartRepository {
	return &CartRepository{
		client: client,
		ttl:    ttl,
	}
}

func key(sessionID string) string {
	return keyPrefix + sessionID
}

// Get retrieves the cart snapshot for a session.
func (r *CartRepository) Get(ctx context.Context, sessionID string) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("cart", sessionID)
		}
		return nil, fmt.Errorf("redis get cart: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	return &cart, nil
}

// SaveIfVersion writes the snapshot inside WATCH/MULTI so a concurrent writer
// makes the transaction fail instead of being overwritten.
func (r *CartRepository) SaveIfVersion(ctx context.Context, cart *domain.Cart, expectedVersion int) (bool, error) {
	k := key(cart.SessionID)
	saved := false

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := storedVersion(ctx, tx, k)
		if err != nil {
			return err
		}
		if current != expectedVersion {
			return nil
		}

		next := *cart
		next.Version = expectedVersion + 1
		next.ExpiresAt = time.Now().UTC().Add(r.ttl)
		data, err := json.Marshal(&next)
		if err != nil {
			return fmt.Errorf("marshal cart: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, data, r.ttl)
			return nil
		})
		if err != nil {
			return err
		}

		cart.Version = next.Version
		cart.ExpiresAt = next.ExpiresAt
		saved = true
		return nil
	}, k)

	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis save cart: %w", err)
	}
	return saved, nil
}

func storedVersion(ctx context.Context, tx *redis.Tx, k string) (int, error) {
	data, err := tx.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get cart: %w", err)
	}

	var stored struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(data, &stored); err != nil {
		return 0, fmt.Errorf("unmarshal cart version: %w", err)
	}
	return stored.Version, nil
}

// Delete removes a session's cart snapshot.
func (r *CartRepository) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, key(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis del cart: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (r *CartRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
