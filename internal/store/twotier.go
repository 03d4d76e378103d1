package store

import (
	"context"
	"log"

	"github.com/storefront/cart-service/internal/domain"
)

// Primary is a CartStore that can also report its own health.
type Primary interface {
	CartStore
	Healthy(ctx context.Context) error
}

// TwoTierStore probes the primary before every operation and degrades to the
// in-process fallback when the probe or the operation fails. Degradation is
// logged, not surfaced: callers only see an error when the fallback itself
// fails.
//
// Saves are whole-cart snapshots with no version stamp; concurrent mutations
// of the same cart resolve last-writer-wins.
type TwoTierStore struct {
	primary  Primary
	fallback *FallbackStore
}

func NewTwoTierStore(primary Primary) *TwoTierStore {
	return &TwoTierStore{
		primary:  primary,
		fallback: NewFallbackStore(),
	}
}

// Degraded reports whether the primary store is currently unreachable.
func (s *TwoTierStore) Degraded(ctx context.Context) bool {
	return s.primary.Healthy(ctx) != nil
}

func (s *TwoTierStore) Load(ctx context.Context, userID int64) (*domain.Cart, error) {
	if err := s.primary.Healthy(ctx); err != nil {
		log.Printf("primary store unavailable, loading cart %d from fallback: %v", userID, err)
		return s.fallback.Load(ctx, userID)
	}

	cart, err := s.primary.Load(ctx, userID)
	if err != nil {
		log.Printf("primary store load failed, using fallback for cart %d: %v", userID, err)
		return s.fallback.Load(ctx, userID)
	}
	return cart, nil
}

func (s *TwoTierStore) Save(ctx context.Context, cart *domain.Cart) error {
	if err := s.primary.Healthy(ctx); err != nil {
		log.Printf("primary store unavailable, saving cart %d to fallback: %v", cart.UserID, err)
		return s.fallback.Save(ctx, cart)
	}

	if err := s.primary.Save(ctx, cart); err != nil {
		log.Printf("primary store save failed, using fallback for cart %d: %v", cart.UserID, err)
		return s.fallback.Save(ctx, cart)
	}
	return nil
}

func (s *TwoTierStore) Delete(ctx context.Context, userID int64) (bool, error) {
	if err := s.primary.Healthy(ctx); err != nil {
		log.Printf("primary store unavailable, deleting cart %d from fallback: %v", userID, err)
		return s.fallback.Delete(ctx, userID)
	}

	existed, err := s.primary.Delete(ctx, userID)
	if err != nil {
		log.Printf("primary store delete failed, using fallback for cart %d: %v", userID, err)
		return s.fallback.Delete(ctx, userID)
	}
	// The fallback may hold a stale copy from a previous degraded window.
	fallbackExisted, _ := s.fallback.Delete(ctx, userID)
	return existed || fallbackExisted, nil
}

func (s *TwoTierStore) All(ctx context.Context) ([]*domain.Cart, error) {
	if err := s.primary.Healthy(ctx); err != nil {
		log.Printf("primary store unavailable, listing carts from fallback: %v", err)
		return s.fallback.All(ctx)
	}

	carts, err := s.primary.All(ctx)
	if err != nil {
		log.Printf("primary store listing failed, using fallback: %v", err)
		return s.fallback.All(ctx)
	}
	return carts, nil
}
