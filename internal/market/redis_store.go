package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"pump-agent/internal/domain"
	"pump-agent/internal/storage"
)

// RedisConfig holds connection parameters for the snapshot cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects and pings.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return rdb, nil
}

// RedisSnapshotStore implements storage.SnapshotStore with one hash per
// mint, shared between agent processes.
//
// Key schema:
//
//	snapshot:{mint} - hash with field "data" containing JSON
type RedisSnapshotStore struct {
	rdb *redis.Client
}

// NewRedisSnapshotStore creates a store on rdb.
func NewRedisSnapshotStore(rdb *redis.Client) *RedisSnapshotStore {
	return &RedisSnapshotStore{rdb: rdb}
}

var _ storage.SnapshotStore = (*RedisSnapshotStore)(nil)

func snapshotKey(mint string) string { return "snapshot:" + mint }

// Get returns the snapshot for mint.
func (s *RedisSnapshotStore) Get(ctx context.Context, mint string) (*domain.MarketSnapshot, error) {
	data, err := s.rdb.HGet(ctx, snapshotKey(mint), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get snapshot %s: %w", mint, err)
	}

	var snap domain.MarketSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("redis: unmarshal snapshot %s: %w", mint, err)
	}
	return &snap, nil
}

// Put stores snap unless the mint already has one.
func (s *RedisSnapshotStore) Put(ctx context.Context, snap *domain.MarketSnapshot) error {
	if snap == nil || snap.Mint == "" {
		return storage.ErrInvalidInput
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal snapshot %s: %w", snap.Mint, err)
	}
	if err := s.rdb.HSetNX(ctx, snapshotKey(snap.Mint), "data", data).Err(); err != nil {
		return fmt.Errorf("redis: set snapshot %s: %w", snap.Mint, err)
	}
	return nil
}
