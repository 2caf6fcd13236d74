// Package lock provides short-lived named locks shared between replicas.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "tankwatch:lock:"

// Locker hands out named locks that expire after ttl.
type Locker interface {
	// Acquire returns false, nil when another holder has the lock.
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name string) error
}

// RedisLocker implements Locker using Redis SET NX EX
type RedisLocker struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{rdb: rdb}
}

func (l *RedisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, keyPrefix+name, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis SetNX: %w", err)
	}
	return ok, nil
}

func (l *RedisLocker) Release(ctx context.Context, name string) error {
	return l.rdb.Del(ctx, keyPrefix+name).Err()
}

// MockLocker is an in-memory locker for testing. Expiry is honoured so
// tests can exercise lock hand-over.
type MockLocker struct {
	mu    sync.Mutex
	locks map[string]time.Time
	now   func() time.Time
}

func NewMock() *MockLocker {
	return &MockLocker{locks: make(map[string]time.Time), now: time.Now}
}

func (m *MockLocker) Acquire(_ context.Context, name string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if exp, ok := m.locks[name]; ok && m.now().Before(exp) {
		return false, nil
	}
	m.locks[name] = m.now().Add(ttl)
	return true, nil
}

func (m *MockLocker) Release(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, name)
	return nil
}
