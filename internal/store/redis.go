package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/storefront/cart-service/internal/domain"
)

// RedisStore keeps one record per user under "cart:<userId>", the full cart
// snapshot serialized as JSON. No TTL is set: carts are only deleted
// explicitly.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Healthy probes the connection; the two-tier store calls it before every
// operation.
func (s *RedisStore) Healthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, userID int64) (*domain.Cart, error) {
	data, err := s.client.Get(ctx, Key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.NewCart(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: redis get failed: %v", ErrUnavailable, err)
	}

	var cart domain.Cart
	if errUnmarshal := json.Unmarshal(data, &cart); errUnmarshal != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", errUnmarshal)
	}
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	return &cart, nil
}

func (s *RedisStore) Save(ctx context.Context, cart *domain.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	if errSet := s.client.Set(ctx, Key(cart.UserID), data, 0).Err(); errSet != nil {
		return fmt.Errorf("%w: redis set failed: %v", ErrUnavailable, errSet)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, userID int64) (bool, error) {
	deleted, err := s.client.Del(ctx, Key(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: redis delete failed: %v", ErrUnavailable, err)
	}
	return deleted > 0, nil
}

// All scans every "cart:*" key. There are no secondary indexes; this is the
// admin listing path only.
func (s *RedisStore) All(ctx context.Context) ([]*domain.Cart, error) {
	keys, err := s.client.Keys(ctx, "cart:*").Result()
	if err != nil {
		return nil, fmt.Errorf("%w: redis keys failed: %v", ErrUnavailable, err)
	}

	carts := make([]*domain.Cart, 0, len(keys))
	for _, key := range keys {
		data, errGet := s.client.Get(ctx, key).Bytes()
		if errors.Is(errGet, redis.Nil) {
			continue
		}
		if errGet != nil {
			return nil, fmt.Errorf("%w: redis get failed: %v", ErrUnavailable, errGet)
		}
		var cart domain.Cart
		if errUnmarshal := json.Unmarshal(data, &cart); errUnmarshal != nil {
			return nil, fmt.Errorf("unmarshal cart failed: %w", errUnmarshal)
		}
		carts = append(carts, &cart)
	}
	return carts, nil
}
