// Package memory is a process-local cart repository for single-instance
// deployments and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/utafrali/cartstore/internal/domain"
	apperrors "github.com/utafrali/cartstore/pkg/errors"
)

type record struct {
	data      []byte
	version   int
	expiresAt time.Time
}

// CartRepository implements repository.CartRepository with an in-memory map.
// Snapshots are stored serialized so callers never share slices with the map.
type CartRepository struct {
	mu    sync.Mutex
	carts map[string]record
	ttl   time.Duration
	now   func() time.Time
}

// NewCartRepository creates an empty repository whose snapshots live for ttl.
func NewCartRepository(ttl time.Duration) *CartRepository {
	return &CartRepository{
		carts: make(map[string]record),
		ttl:   ttl,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Get returns the session's snapshot unless it is missing or expired.
func (r *CartRepository) Get(_ context.Context, sessionID string) (*domain.Cart, error) {
	r.mu.Lock()
	rec, ok := r.lookup(sessionID)
	r.mu.Unlock()
	if !ok {
		return nil, apperrors.NotFound("cart", sessionID)
	}

	var cart domain.Cart
	if err := json.Unmarshal(rec.data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	return &cart, nil
}

// SaveIfVersion stores cart when the current version matches expectedVersion.
func (r *CartRepository) SaveIfVersion(_ context.Context, cart *domain.Cart, expectedVersion int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := 0
	if rec, ok := r.lookup(cart.SessionID); ok {
		current = rec.version
	}
	if current != expectedVersion {
		return false, nil
	}

	next := *cart
	next.Version = expectedVersion + 1
	next.ExpiresAt = r.now().Add(r.ttl)
	data, err := json.Marshal(&next)
	if err != nil {
		return false, fmt.Errorf("marshal cart: %w", err)
	}

	r.carts[cart.SessionID] = record{data: data, version: next.Version, expiresAt: next.ExpiresAt}
	cart.Version = next.Version
	cart.ExpiresAt = next.ExpiresAt
	return true, nil
}

// Delete removes a session's snapshot.
func (r *CartRepository) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	delete(r.carts, sessionID)
	r.mu.Unlock()
	return nil
}

// Ping always succeeds.
func (r *CartRepository) Ping(context.Context) error { return nil }

// Len returns the number of live snapshots.
func (r *CartRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	now := r.now()
	for _, rec := range r.carts {
		if now.Before(rec.expiresAt) {
			n++
		}
	}
	return n
}

// Sweep deletes expired snapshots and returns how many were removed.
func (r *CartRepository) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	removed := 0
	for id, rec := range r.carts {
		if !now.Before(rec.expiresAt) {
			delete(r.carts, id)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (r *CartRepository) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// lookup must be called with mu held. Expired records are dropped.
func (r *CartRepository) lookup(sessionID string) (record, bool) {
	rec, ok := r.carts[sessionID]
	if !ok {
		return record{}, false
	}
	if !r.now().Before(rec.expiresAt) {
		delete(r.carts, sessionID)
		return record{}, false
	}
	return rec, true
}
