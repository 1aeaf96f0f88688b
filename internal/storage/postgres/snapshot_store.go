package postgres

import (
	"context"
	"fmt"

	"pump-agent/internal/domain"
	"pump-agent/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore on the tokens table.
type SnapshotStore struct {
	pool *Pool
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(pool *Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Get returns the snapshot for mint.
func (s *SnapshotStore) Get(ctx context.Context, mint string) (*domain.MarketSnapshot, error) {
	query := `
		SELECT mint, name, symbol, creator, created_at, price, volume, liquidity,
			market_cap, last_trade_at, twitter, telegram, website, fetched_at
		FROM tokens
		WHERE mint = $1
	`

	var m domain.MarketSnapshot
	err := s.pool.QueryRow(ctx, query, mint).Scan(
		&m.Mint, &m.Name, &m.Symbol, &m.Creator, &m.CreatedAt, &m.Price, &m.Volume, &m.Liquidity,
		&m.MarketCap, &m.LastTradeAt, &m.Twitter, &m.Telegram, &m.Website, &m.FetchedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return &m, nil
}

// Put stores m; an existing row for the mint is kept.
func (s *SnapshotStore) Put(ctx context.Context, m *domain.MarketSnapshot) error {
	if m == nil || m.Mint == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO tokens (
			mint, name, symbol, creator, created_at, price, volume, liquidity,
			market_cap, last_trade_at, twitter, telegram, website, fetched_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (mint) DO NOTHING
	`

	_, err := s.pool.Exec(ctx, query,
		m.Mint, m.Name, m.Symbol, m.Creator, m.CreatedAt, m.Price, m.Volume, m.Liquidity,
		m.MarketCap, m.LastTradeAt, m.Twitter, m.Telegram, m.Website, m.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}
