package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/bazaar-backend/pkg/redis"
)

// Manager remembers which outbox events a publisher already handed to the broker,
// so a crash between publish and the published_at update does not notify twice.
// Keys follow `bazaar:idempotency:evt:published:<publisher>:<event_id>`.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{store: store, ttl: ttl}, nil
}

// Claim returns true when the caller is the first to publish eventID.
func (m *Manager) Claim(ctx context.Context, publisher string, eventID uuid.UUID) (bool, error) {
	key, err := m.publishedKey(publisher, eventID)
	if err != nil {
		return false, err
	}
	return m.store.SetNX(ctx, key, "1", m.ttl)
}

// Release forgets a claim after a failed publish so the next attempt may retry.
func (m *Manager) Release(ctx context.Context, publisher string, eventID uuid.UUID) error {
	key, err := m.publishedKey(publisher, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) publishedKey(publisher string, eventID uuid.UUID) (string, error) {
	if publisher == "" {
		return "", errors.New("publisher name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	scope := fmt.Sprintf("evt:published:%s", publisher)
	return m.store.IdempotencyKey(scope, eventID.String()), nil
}
