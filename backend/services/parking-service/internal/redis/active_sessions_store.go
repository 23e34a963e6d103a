package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"parkcard/backend/services/parking-service/internal/models"
)

const defaultTTL = 12 * time.Hour

// Store caches the ACTIVE parking session of each card. A miss is reported as redis.Nil.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore returns redis-backed store.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{client: client, ttl: ttl}
}

func (s *Store) key(cardID string) string {
	return fmt.Sprintf("parking:active:%s", cardID)
}

// Save caches session under its card.
func (s *Store) Save(ctx context.Context, cardID string, session models.ParkingSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(cardID), data, s.ttl).Err()
}

// Get returns the cached session of a card.
func (s *Store) Get(ctx context.Context, cardID string) (*models.ParkingSession, error) {
	result, err := s.client.Get(ctx, s.key(cardID)).Bytes()
	if err != nil {
		return nil, err
	}
	var session models.ParkingSession
	if err := json.Unmarshal(result, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Delete removes the cached session of a card.
func (s *Store) Delete(ctx context.Context, cardID string) error {
	return s.client.Del(ctx, s.key(cardID)).Err()
}
