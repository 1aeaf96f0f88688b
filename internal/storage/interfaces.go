package storage

import (
	"context"

	"github.com/shopspring/decimal"

	"pump-agent/internal/domain"
)

// TradeStore persists trades and the sandbox wallet ledger.
// Every method is one unit of work: a trade row and the wallet balance it
// moves commit together or not at all.
type TradeStore interface {
	// InitWallet seeds the wallet row with balance if absent. Existing
	// balances are kept.
	InitWallet(ctx context.Context, balance decimal.Decimal) error

	// OpenTrade inserts t as OPEN and debits t.Total from the wallet.
	// Returns ErrDuplicateKey if t.UUID exists, ErrWalletMissing if the
	// wallet was never seeded.
	OpenTrade(ctx context.Context, t *domain.Trade) error

	// CloseTrade marks the trade CLOSED, records profit, ratio and duration,
	// and credits closePrice*amount to the wallet.
	// Returns ErrNotFound for an unknown UUID and ErrTradeClosed if the trade
	// was already closed.
	CloseTrade(ctx context.Context, req CloseRequest) (domain.CloseOutcome, error)

	// GetTrade retrieves a trade by UUID. Returns ErrNotFound if not exists.
	GetTrade(ctx context.Context, uuid string) (*domain.Trade, error)

	// CountOpenTrades returns the number of OPEN trades.
	CountOpenTrades(ctx context.Context) (int, error)

	// GetWalletBalance returns the ledger balance in SOL.
	GetWalletBalance(ctx context.Context) (decimal.Decimal, error)

	// AdjustWalletBalance adds delta (may be negative) to the balance.
	AdjustWalletBalance(ctx context.Context, delta decimal.Decimal) error
}

// CloseRequest carries the sell side of a trade.
type CloseRequest struct {
	UUID       string
	ClosePrice float64
	Signature  string
	ClosedAt   int64 // ms
}

// SnapshotStore caches market snapshots per mint. Entries never expire.
type SnapshotStore interface {
	// Get returns the snapshot for mint. Returns ErrNotFound if not cached.
	Get(ctx context.Context, mint string) (*domain.MarketSnapshot, error)

	// Put stores s unless a snapshot for the mint exists; the first write wins.
	Put(ctx context.Context, s *domain.MarketSnapshot) error
}

// PriceSampleStore keeps the curve prices observed while positions are
// monitored.
type PriceSampleStore interface {
	// InsertBulk adds samples. Fails the entire batch with ErrDuplicateKey
	// if any (trade_uuid, timestamp_ms) exists or repeats within the batch.
	InsertBulk(ctx context.Context, samples []*domain.PriceSample) error

	// GetByTrade returns the samples of one trade, ordered by timestamp ASC.
	GetByTrade(ctx context.Context, tradeUUID string) ([]*domain.PriceSample, error)
}

// TradeJournal is an append-only log of buy and sell attempts.
type TradeJournal interface {
	Record(ctx context.Context, e *JournalEntry) error
}

// JournalEntry is one executed or failed order.
type JournalEntry struct {
	TradeUUID string
	Mint      string
	BotName   string
	Side      domain.TradeSide
	Success   bool
	Signature string
	Error     string
	Price     float64
	Amount    float64
	Total     float64
	Sandbox   bool
	Timestamp int64 // ms
}
