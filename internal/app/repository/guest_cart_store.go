package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ikkim/marketplace-backend/internal/app/model"
	"github.com/ikkim/marketplace-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const DefaultGuestCartTTL = 7 * 24 * time.Hour

// GuestCartStore persists guest carts between requests. It only loads and
// stores whole values; all cart rules live on model.GuestCart.
type GuestCartStore interface {
	Load(ctx context.Context, sessionKey string) (model.GuestCart, error)
	Save(ctx context.Context, cart model.GuestCart) error
	Delete(ctx context.Context, sessionKey string) error
}

type redisGuestCartStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewGuestCartStore(client *redis.Client, ttl time.Duration) GuestCartStore {
	if ttl <= 0 {
		ttl = DefaultGuestCartTTL
	}
	return &redisGuestCartStore{client: client, ttl: ttl}
}

func guestCartKey(sessionKey string) string {
	return fmt.Sprintf("guest_cart:%s", sessionKey)
}

// Load returns an empty cart for unknown or expired sessions
func (s *redisGuestCartStore) Load(ctx context.Context, sessionKey string) (model.GuestCart, error) {
	data, err := s.client.Get(ctx, guestCartKey(sessionKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.NewGuestCart(sessionKey), nil
	}
	if err != nil {
		logger.Error("Failed to load guest cart", err, map[string]interface{}{
			"session_key": sessionKey,
		})
		return model.GuestCart{}, fmt.Errorf("redis get failed: %w", err)
	}

	var cart model.GuestCart
	if err := json.Unmarshal(data, &cart); err != nil {
		logger.Warn("Discarding unreadable guest cart", map[string]interface{}{
			"session_key": sessionKey,
			"error":       err.Error(),
		})
		return model.NewGuestCart(sessionKey), nil
	}
	cart.SessionKey = sessionKey
	if cart.Lines == nil {
		cart.Lines = []model.CartLine{}
	}
	return cart, nil
}

func (s *redisGuestCartStore) Save(ctx context.Context, cart model.GuestCart) error {
	if cart.IsEmpty() {
		return s.Delete(ctx, cart.SessionKey)
	}

	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal guest cart failed: %w", err)
	}

	if err := s.client.Set(ctx, guestCartKey(cart.SessionKey), data, s.ttl).Err(); err != nil {
		logger.Error("Failed to save guest cart", err, map[string]interface{}{
			"session_key": cart.SessionKey,
		})
		return fmt.Errorf("redis set failed: %w", err)
	}

	logger.Debug("Guest cart saved", map[string]interface{}{
		"session_key": cart.SessionKey,
		"lines":       len(cart.Lines),
	})
	return nil
}

func (s *redisGuestCartStore) Delete(ctx context.Context, sessionKey string) error {
	if err := s.client.Del(ctx, guestCartKey(sessionKey)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}
