package cron

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type memoryStore struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *memoryStore) LockKey(name string) string { return "bazaar:lock:" + name }

func TestRedisLockIsPerJob(t *testing.T) {
	store := newMemoryStore()
	lock, err := NewRedisLock(store, 0)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	ctx := context.Background()

	ok, err := lock.Acquire(ctx, "order-settlement")
	if err != nil || !ok {
		t.Fatalf("expected first acquire to succeed: %v %v", ok, err)
	}
	if store.ttls["bazaar:lock:order-settlement"] != defaultLockTTL {
		t.Fatalf("expected default ttl, got %s", store.ttls["bazaar:lock:order-settlement"])
	}
	ok, err = lock.Acquire(ctx, "outbox-retention")
	if err != nil || !ok {
		t.Fatalf("expected other job lock to be independent: %v %v", ok, err)
	}

	other, _ := NewRedisLock(store, time.Minute)
	if ok, _ := other.Acquire(ctx, "order-settlement"); ok {
		t.Fatal("second instance must not acquire a held lock")
	}

	if err := lock.Release(ctx, "order-settlement"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, held := store.values["bazaar:lock:order-settlement"]; held {
		t.Fatal("expected lock key deleted")
	}
	if ok, _ := other.Acquire(ctx, "order-settlement"); !ok {
		t.Fatal("expected lock to be free after release")
	}
}

func TestRedisLockKeepsForeignOwner(t *testing.T) {
	store := newMemoryStore()
	lock, _ := NewRedisLock(store, time.Minute)
	ctx := context.Background()

	if ok, _ := lock.Acquire(ctx, "job"); !ok {
		t.Fatal("expected acquire")
	}
	// the TTL lapsed and another instance took over
	store.values["bazaar:lock:job"] = "someone-else"

	if err := lock.Release(ctx, "job"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if store.values["bazaar:lock:job"] != "someone-else" {
		t.Fatal("release must not delete a lock owned by another instance")
	}
	if err := lock.Release(ctx, "never-acquired"); err != nil {
		t.Fatalf("release without ownership should be a no-op: %v", err)
	}
}
