// Package store persists cart snapshots keyed by user id. The primary
// implementation is redis; a process-local fallback takes over when redis is
// unreachable.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/storefront/cart-service/internal/domain"
)

// ErrUnavailable marks operational failures of the primary store so the
// two-tier wrapper can degrade instead of failing the request.
var ErrUnavailable = errors.New("cart store unavailable")

// CartStore is the persistence contract of the cart engine. Load returns an
// empty cart when the user has none; Delete reports whether an entry
// existed.
type CartStore interface {
	Load(ctx context.Context, userID int64) (*domain.Cart, error)
	Save(ctx context.Context, cart *domain.Cart) error
	Delete(ctx context.Context, userID int64) (bool, error)
	All(ctx context.Context) ([]*domain.Cart, error)
}

func Key(userID int64) string {
	return fmt.Sprintf("cart:%d", userID)
}
