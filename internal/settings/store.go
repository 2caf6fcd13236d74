// Package settings stores the threshold configuration of each owner.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/shawn/tankwatch/internal/threshold"
)

const keyPrefix = "tankwatch:thresholds:"

// Store holds one threshold.Config per owner. Get never fails because a
// config is absent; it creates the defaults instead.
type Store interface {
	Get(ctx context.Context, owner string) (threshold.Config, error)
	Update(ctx context.Context, owner string, cfg threshold.Config) (threshold.Config, error)
}

// RedisStore keeps each owner's config as a single JSON value, so an
// update is one SET and readers never see half of it.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedis(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, owner string) (threshold.Config, error) {
	key := keyPrefix + owner
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		def := threshold.Defaults()
		b, _ := json.Marshal(def)
		// another replica may have won the race; either way the value is
		// re-read so both agree
		if err := s.rdb.SetNX(ctx, key, b, 0).Err(); err != nil {
			return threshold.Config{}, fmt.Errorf("redis SetNX: %w", err)
		}
		raw, err = s.rdb.Get(ctx, key).Bytes()
	}
	if err != nil {
		return threshold.Config{}, fmt.Errorf("redis Get: %w", err)
	}
	var cfg threshold.Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return threshold.Config{}, fmt.Errorf("decode thresholds for %s: %w", owner, err)
	}
	return cfg, nil
}

func (s *RedisStore) Update(ctx context.Context, owner string, cfg threshold.Config) (threshold.Config, error) {
	if err := cfg.Validate(); err != nil {
		return threshold.Config{}, err
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return threshold.Config{}, fmt.Errorf("marshal thresholds: %w", err)
	}
	if err := s.rdb.Set(ctx, keyPrefix+owner, b, 0).Err(); err != nil {
		return threshold.Config{}, fmt.Errorf("redis Set: %w", err)
	}
	return cfg, nil
}

// MockStore is an in-memory store for testing
type MockStore struct {
	mu      sync.RWMutex
	configs map[string]threshold.Config
}

func NewMock() *MockStore {
	return &MockStore{configs: make(map[string]threshold.Config)}
}

func (m *MockStore) Get(_ context.Context, owner string) (threshold.Config, error) {
	m.mu.RLock()
	cfg, ok := m.configs[owner]
	m.mu.RUnlock()
	if ok {
		return cfg, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if cfg, ok := m.configs[owner]; ok {
		return cfg, nil
	}
	m.configs[owner] = threshold.Defaults()
	return m.configs[owner], nil
}

func (m *MockStore) Update(_ context.Context, owner string, cfg threshold.Config) (threshold.Config, error) {
	if err := cfg.Validate(); err != nil {
		return threshold.Config{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[owner] = cfg
	return cfg, nil
}
