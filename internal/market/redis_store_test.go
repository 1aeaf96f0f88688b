package market

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"pump-agent/internal/domain"
	"pump-agent/internal/storage"
)

func setupRedis(t *testing.T) *RedisSnapshotStore {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rdb, err := NewRedisClient(ctx, RedisConfig{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	return NewRedisSnapshotStore(rdb)
}

func TestRedisSnapshotStore(t *testing.T) {
	store := setupRedis(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "MintA")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	snap := &domain.MarketSnapshot{Mint: "MintA", Symbol: "ALP", Price: 0.01, Liquidity: 2.5, CreatedAt: 1_700_000_000_000}
	require.NoError(t, store.Put(ctx, snap))
	require.NoError(t, store.Put(ctx, &domain.MarketSnapshot{Mint: "MintA", Price: 9}))

	got, err := store.Get(ctx, "MintA")
	require.NoError(t, err)
	assert.Equal(t, *snap, *got)

	assert.ErrorIs(t, store.Put(ctx, nil), storage.ErrInvalidInput)
}
