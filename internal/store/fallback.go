package store

import (
	"context"
	"sync"

	"github.com/storefront/cart-service/internal/domain"
)

// FallbackStore is the in-process degraded substitute for the primary store.
// Its contents live only as long as the process: carts written here are lost
// on restart. That is the documented limitation of degraded mode.
type FallbackStore struct {
	mu    sync.RWMutex
	carts map[int64]*domain.Cart
}

func NewFallbackStore() *FallbackStore {
	return &FallbackStore{carts: make(map[int64]*domain.Cart)}
}

func (s *FallbackStore) Load(_ context.Context, userID int64) (*domain.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cart, ok := s.carts[userID]
	if !ok {
		return domain.NewCart(userID), nil
	}
	return cart.Clone(), nil
}

func (s *FallbackStore) Save(_ context.Context, cart *domain.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[cart.UserID] = cart.Clone()
	return nil
}

func (s *FallbackStore) Delete(_ context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.carts[userID]
	delete(s.carts, userID)
	return existed, nil
}

func (s *FallbackStore) All(_ context.Context) ([]*domain.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	carts := make([]*domain.Cart, 0, len(s.carts))
	for _, cart := range s.carts {
		carts = append(carts, cart.Clone())
	}
	return carts, nil
}
