package memory

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"pump-agent/internal/domain"
	"pump-agent/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu     sync.Mutex
	trades map[string]*domain.Trade // keyed by uuid
	wallet *decimal.Decimal         // nil until seeded
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		trades: make(map[string]*domain.Trade),
	}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// InitWallet seeds the wallet if absent.
func (s *TradeStore) InitWallet(_ context.Context, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.wallet == nil {
		s.wallet = &balance
	}
	return nil
}

// OpenTrade inserts an OPEN trade and debits its total.
func (s *TradeStore) OpenTrade(_ context.Context, t *domain.Trade) error {
	if t == nil || t.UUID == "" || t.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.wallet == nil {
		return storage.ErrWalletMissing
	}
	if _, exists := s.trades[t.UUID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *t
	cp.Status = domain.TradeStatusOpen
	s.trades[t.UUID] = &cp

	balance := s.wallet.Sub(decimal.NewFromFloat(t.Total))
	s.wallet = &balance
	return nil
}

// CloseTrade closes an OPEN trade and credits the proceeds.
func (s *TradeStore) CloseTrade(_ context.Context, req storage.CloseRequest) (domain.CloseOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trades[req.UUID]
	if !ok {
		return domain.CloseOutcome{}, storage.ErrNotFound
	}
	if t.Status == domain.TradeStatusClosed {
		return domain.CloseOutcome{}, storage.ErrTradeClosed
	}
	if s.wallet == nil {
		return domain.CloseOutcome{}, storage.ErrWalletMissing
	}

	out := storage.CloseOutcome(t, req.ClosePrice, req.ClosedAt)
	balance := s.wallet.Add(storage.Proceeds(t, req.ClosePrice))

	updated := *t
	storage.ApplyClose(&updated, req, out)
	s.trades[req.UUID] = &updated
	s.wallet = &balance
	return out, nil
}

// GetTrade retrieves a trade by UUID.
func (s *TradeStore) GetTrade(_ context.Context, uuid string) (*domain.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trades[uuid]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// CountOpenTrades returns the number of OPEN trades.
func (s *TradeStore) CountOpenTrades(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, t := range s.trades {
		if t.Status == domain.TradeStatusOpen {
			n++
		}
	}
	return n, nil
}

// GetWalletBalance returns the ledger balance.
func (s *TradeStore) GetWalletBalance(_ context.Context) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.wallet == nil {
		return decimal.Zero, storage.ErrWalletMissing
	}
	return *s.wallet, nil
}

// AdjustWalletBalance adds delta to the balance.
func (s *TradeStore) AdjustWalletBalance(_ context.Context, delta decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.wallet == nil {
		return storage.ErrWalletMissing
	}
	balance := s.wallet.Add(delta)
	s.wallet = &balance
	return nil
}
