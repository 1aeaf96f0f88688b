package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"pump-agent/internal/domain"
	"pump-agent/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
// The wallet is the single row id=1 of the wallet table; every trade write
// moves it in the same transaction.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const tradeColumns = `
	uuid, mint, bot, open_signature, close_signature,
	opened_at, closed_at, duration_ms,
	open_price, close_price, amount, total, profit, ratio, status
`

// InitWallet seeds the wallet row if absent.
func (s *TradeStore) InitWallet(ctx context.Context, balance decimal.Decimal) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO wallet (id, balance) VALUES (1, $1::text::numeric) ON CONFLICT (id) DO NOTHING`,
		balance.String(),
	)
	if err != nil {
		return fmt.Errorf("init wallet: %w", err)
	}
	return nil
}

// OpenTrade inserts an OPEN trade and debits its total.
func (s *TradeStore) OpenTrade(ctx context.Context, t *domain.Trade) (err error) {
	defer observe("open_trade", time.Now(), &err)
	if t == nil || t.UUID == "" || t.Mint == "" {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := adjustWallet(ctx, tx, decimal.NewFromFloat(t.Total).Neg()); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO trades (
			uuid, mint, bot, open_signature, opened_at,
			open_price, amount, total, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		t.UUID, t.Mint, t.BotName, t.OpenSignature, t.OpenedAt,
		t.OpenPrice, t.Amount, t.Total, string(domain.TradeStatusOpen),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// CloseTrade closes an OPEN trade and credits the proceeds.
func (s *TradeStore) CloseTrade(ctx context.Context, req storage.CloseRequest) (_ domain.CloseOutcome, err error) {
	defer observe("close_trade", time.Now(), &err)
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.CloseOutcome{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+tradeColumns+` FROM trades WHERE uuid = $1 FOR UPDATE`, req.UUID)
	t, err := scanTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return domain.CloseOutcome{}, storage.ErrNotFound
		}
		return domain.CloseOutcome{}, fmt.Errorf("select trade: %w", err)
	}
	if t.Status == domain.TradeStatusClosed {
		return domain.CloseOutcome{}, storage.ErrTradeClosed
	}

	out := storage.CloseOutcome(t, req.ClosePrice, req.ClosedAt)

	_, err = tx.Exec(ctx, `
		UPDATE trades SET
			close_signature = $2, closed_at = $3, duration_ms = $4,
			close_price = $5, profit = $6, ratio = $7, status = $8
		WHERE uuid = $1 AND status = 'OPEN'
	`,
		req.UUID, req.Signature, req.ClosedAt, out.DurationMs,
		req.ClosePrice, out.Profit, out.Ratio, string(domain.TradeStatusClosed),
	)
	if err != nil {
		return domain.CloseOutcome{}, fmt.Errorf("update trade: %w", err)
	}

	if err := adjustWallet(ctx, tx, storage.Proceeds(t, req.ClosePrice)); err != nil {
		return domain.CloseOutcome{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.CloseOutcome{}, fmt.Errorf("commit tx: %w", err)
	}
	return out, nil
}

// GetTrade retrieves a trade by UUID.
func (s *TradeStore) GetTrade(ctx context.Context, uuid string) (*domain.Trade, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+tradeColumns+` FROM trades WHERE uuid = $1`, uuid)
	t, err := scanTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade: %w", err)
	}
	return t, nil
}

// CountOpenTrades returns the number of OPEN trades.
func (s *TradeStore) CountOpenTrades(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM trades WHERE status = 'OPEN'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count open trades: %w", err)
	}
	return n, nil
}

// GetWalletBalance returns the ledger balance.
func (s *TradeStore) GetWalletBalance(ctx context.Context) (decimal.Decimal, error) {
	var raw string
	err := s.pool.QueryRow(ctx, `SELECT balance::text FROM wallet WHERE id = 1`).Scan(&raw)
	if err != nil {
		if isNotFoundError(err) {
			return decimal.Zero, storage.ErrWalletMissing
		}
		return decimal.Zero, fmt.Errorf("get wallet balance: %w", err)
	}
	balance, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse wallet balance %q: %w", raw, err)
	}
	return balance, nil
}

// AdjustWalletBalance adds delta to the balance.
func (s *TradeStore) AdjustWalletBalance(ctx context.Context, delta decimal.Decimal) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := adjustWallet(ctx, tx, delta); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func adjustWallet(ctx context.Context, tx pgx.Tx, delta decimal.Decimal) error {
	tag, err := tx.Exec(ctx, `UPDATE wallet SET balance = balance + $1::text::numeric WHERE id = 1`, delta.String())
	if err != nil {
		return fmt.Errorf("update wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrWalletMissing
	}
	return nil
}

func scanTrade(row pgx.Row) (*domain.Trade, error) {
	var (
		t      domain.Trade
		status string
	)
	err := row.Scan(
		&t.UUID, &t.Mint, &t.BotName, &t.OpenSignature, &t.CloseSignature,
		&t.OpenedAt, &t.ClosedAt, &t.DurationMs,
		&t.OpenPrice, &t.ClosePrice, &t.Amount, &t.Total, &t.Profit, &t.Ratio, &status,
	)
	if err != nil {
		return nil, err
	}
	t.Status = domain.TradeStatus(status)
	return &t, nil
}
