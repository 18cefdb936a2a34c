package repository

import (
	"context"

	"github.com/utafrali/cartstore/internal/domain"
)

// CartRepository stores one cart snapshot per session. Snapshots expire after
// the session TTL measured from their last save.
type CartRepository interface {
	// Get returns the snapshot for sessionID, or an error wrapping
	// apperrors.ErrNotFound when there is none.
	Get(ctx context.Context, sessionID string) (*domain.Cart, error)

	// SaveIfVersion writes cart only if the stored version equals
	// expectedVersion (0 when nothing is stored). On success it sets
	// cart.Version to expectedVersion+1 and refreshes cart.ExpiresAt.
	// A version mismatch returns false and a nil error.
	SaveIfVersion(ctx context.Context, cart *domain.Cart, expectedVersion int) (bool, error)

	// Delete removes the snapshot for sessionID. Deleting a missing
	// snapshot is not an error.
	Delete(ctx context.Context, sessionID string) error

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}
