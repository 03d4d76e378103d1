// Package validation layers the per-concern result caches and the business
// rules on top of the raw remote clients.
package validation

import (
	"context"
	"log"
	"time"

	"github.com/storefront/cart-service/internal/apperr"
	"github.com/storefront/cart-service/internal/cache"
	"github.com/storefront/cart-service/internal/domain"
)

// Freshness windows per concern. Security-sensitive and fast-changing data
// gets shorter windows.
const (
	identityWindow      = 3 * time.Minute
	userDetailWindow    = 5 * time.Minute
	productDetailWindow = 10 * time.Minute
	priceWindow         = 5 * time.Minute
	stockWindow         = 2 * time.Minute
)

// UserAPI is the slice of the user client this package consumes.
type UserAPI interface {
	ValidateUser(ctx context.Context, token string) (*domain.User, error)
}

// UserValidator resolves and validates identities with bounded-staleness
// caching keyed by the raw token.
type UserValidator struct {
	client   UserAPI
	identity *cache.TTLCache[string, *domain.User]
	details  *cache.TTLCache[string, *domain.User]
}

func NewUserValidator(client UserAPI) *UserValidator {
	return &UserValidator{
		client:   client,
		identity: cache.New[string, *domain.User](),
		details:  cache.New[string, *domain.User](),
	}
}

// StartSweepers launches the background eviction loops, one per concern.
func (v *UserValidator) StartSweepers(ctx context.Context) {
	v.identity.StartSweeper(ctx, "userValidation", identityWindow)
	v.details.StartSweeper(ctx, "userDetails", userDetailWindow)
}

// ValidateToken resolves the token to a user, trusting a cached result for
// up to three minutes.
func (v *UserValidator) ValidateToken(ctx context.Context, token string) (*domain.User, error) {
	return v.identity.GetOrFetch(ctx, token, identityWindow, func(ctx context.Context) (*domain.User, error) {
		user, err := v.client.ValidateUser(ctx, token)
		if err != nil {
			log.Printf("user validation failed: %v", err)
			return nil, err
		}
		return user, nil
	})
}

// UserDetails returns the profile snapshot under the longer detail window.
func (v *UserValidator) UserDetails(ctx context.Context, token string) (*domain.User, error) {
	return v.details.GetOrFetch(ctx, token, userDetailWindow, func(ctx context.Context) (*domain.User, error) {
		return v.client.ValidateUser(ctx, token)
	})
}

// ValidateUserOrFail resolves the token and requires an active account.
// Critical mutations call this instead of ValidateToken.
func (v *UserValidator) ValidateUserOrFail(ctx context.Context, token string) (*domain.User, error) {
	user, err := v.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if !user.IsActive() {
		return nil, apperr.Newf(apperr.AccessDenied, "user is not eligible for cart operations: %s", user.Status)
	}
	return user, nil
}

// UserID is the lighter-weight identity resolution used by reads and
// removals.
func (v *UserValidator) UserID(ctx context.Context, token string) (int64, error) {
	user, err := v.ValidateToken(ctx, token)
	if err != nil {
		return 0, err
	}
	return user.ID, nil
}

// RequireAdmin fails with AccessDenied unless the token resolves to an
// administrator.
func (v *UserValidator) RequireAdmin(ctx context.Context, token string) error {
	user, err := v.ValidateToken(ctx, token)
	if err != nil {
		return err
	}
	if !user.IsAdmin() {
		return apperr.New(apperr.AccessDenied, "admin access required")
	}
	return nil
}

// RequireOwner rejects any operation whose target cart does not belong to
// the token's identity, before any store access happens.
func (v *UserValidator) RequireOwner(ctx context.Context, token string, cartUserID int64) error {
	user, err := v.ValidateToken(ctx, token)
	if err != nil {
		return err
	}
	if user.ID != cartUserID {
		log.Printf("user %d attempted to access cart belonging to user %d", user.ID, cartUserID)
		return apperr.New(apperr.AccessDenied, "cart belongs to another user")
	}
	return nil
}
