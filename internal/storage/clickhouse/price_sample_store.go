package clickhouse

import (
	"context"
	"fmt"
	"time"

	"pump-agent/internal/domain"
	"pump-agent/internal/storage"
)

// PriceSampleStore implements storage.PriceSampleStore using ClickHouse.
type PriceSampleStore struct {
	conn *Conn
}

// NewPriceSampleStore creates a new PriceSampleStore.
func NewPriceSampleStore(conn *Conn) *PriceSampleStore {
	return &PriceSampleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceSampleStore = (*PriceSampleStore)(nil)

// InsertBulk adds multiple samples. Fails entire batch on duplicate (trade_uuid, timestamp_ms).
func (s *PriceSampleStore) InsertBulk(ctx context.Context, samples []*domain.PriceSample) (err error) {
	if len(samples) == 0 {
		return nil
	}
	defer observe("samples_insert", time.Now(), &err)

	type key struct {
		tradeUUID   string
		timestampMs int64
	}
	seen := make(map[key]struct{}, len(samples))
	for _, p := range samples {
		if p == nil || p.TradeUUID == "" {
			return storage.ErrInvalidInput
		}
		k := key{p.TradeUUID, p.TimestampMs}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// MergeTree has no unique keys, so existing rows are checked first.
	for _, p := range samples {
		exists, err := s.exists(ctx, p.TradeUUID, p.TimestampMs)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_samples (
			trade_uuid, mint, timestamp_ms, price, variation
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range samples {
		if err := batch.Append(p.TradeUUID, p.Mint, p.TimestampMs, p.Price, p.Variation); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByTrade retrieves all samples of a trade, ordered by timestamp ASC.
func (s *PriceSampleStore) GetByTrade(ctx context.Context, tradeUUID string) ([]*domain.PriceSample, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT trade_uuid, mint, timestamp_ms, price, variation
		FROM price_samples
		WHERE trade_uuid = ?
		ORDER BY timestamp_ms ASC
	`, tradeUUID)
	if err != nil {
		return nil, fmt.Errorf("query by trade: %w", err)
	}
	defer rows.Close()

	return scanPriceSamples(rows)
}

func (s *PriceSampleStore) exists(ctx context.Context, tradeUUID string, timestampMs int64) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `
		SELECT count(*) FROM price_samples
		WHERE trade_uuid = ? AND timestamp_ms = ?
	`, tradeUUID, timestampMs).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// chRows is the subset of driver.Rows the scanners need.
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanPriceSamples(rows chRows) ([]*domain.PriceSample, error) {
	var samples []*domain.PriceSample
	for rows.Next() {
		var p domain.PriceSample
		if err := rows.Scan(&p.TradeUUID, &p.Mint, &p.TimestampMs, &p.Price, &p.Variation); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		samples = append(samples, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return samples, nil
}
