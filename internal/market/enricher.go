package market

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"pump-agent/internal/domain"
	"pump-agent/internal/storage"
	"pump-agent/internal/wire"
)

// MissTTL is how long a failed lookup is remembered. Tokens are far past
// any age window by then.
const MissTTL = 10 * time.Minute

// Enricher looks up a market snapshot per mint. Each mint is fetched from
// the network at most once; hits are kept in the snapshot store and misses
// are remembered in memory for MissTTL.
type Enricher struct {
	pump   *PumpClient
	store  storage.SnapshotStore
	oracle *Oracle // optional, converts USD market caps to SOL
	logger *log.Logger

	mu        sync.Mutex
	attempted map[string]time.Time
	lastPrune time.Time

	now func() time.Time
}

// NewEnricher creates an Enricher. oracle may be nil.
func NewEnricher(pump *PumpClient, store storage.SnapshotStore, oracle *Oracle, logger *log.Logger) *Enricher {
	if logger == nil {
		logger = log.Default()
	}
	return &Enricher{
		pump:      pump,
		store:     store,
		oracle:    oracle,
		logger:    logger,
		attempted: make(map[string]time.Time),
		lastPrune: time.Now(),
		now:       time.Now,
	}
}

// Enrich returns the snapshot for mint or nil when none is available.
func (e *Enricher) Enrich(ctx context.Context, mint string) *domain.MarketSnapshot {
	snap, err := e.store.Get(ctx, mint)
	if err == nil {
		return snap
	}
	if !errors.Is(err, storage.ErrNotFound) {
		e.logger.Printf("[market] Snapshot cache read failed for %s: %v", mint, err)
	}

	now := e.now()
	e.mu.Lock()
	if now.Sub(e.lastPrune) >= MissTTL {
		e.pruneLocked(now)
	}
	if at, seen := e.attempted[mint]; seen && now.Sub(at) < MissTTL {
		e.mu.Unlock()
		return nil
	}
	e.attempted[mint] = now
	e.mu.Unlock()

	snap = e.fetch(ctx, mint)
	if snap == nil {
		return nil
	}
	if err := e.store.Put(ctx, snap); err != nil {
		e.logger.Printf("[market] Failed to cache snapshot for %s: %v", mint, err)
	}
	return snap
}

// Prune forgets lookups older than MissTTL and returns how many were
// dropped. Enrich also prunes once per MissTTL.
func (e *Enricher) Prune() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pruneLocked(e.now())
}

func (e *Enricher) pruneLocked(now time.Time) int {
	n := 0
	for mint, at := range e.attempted {
		if now.Sub(at) >= MissTTL {
			delete(e.attempted, mint)
			n++
		}
	}
	e.lastPrune = now
	return n
}

func (e *Enricher) fetch(ctx context.Context, mint string) *domain.MarketSnapshot {
	candle, err := e.pump.LatestCandle(ctx, mint)
	if err != nil || candle == nil {
		e.logger.Printf("[market] Skipping %s: failed to retrieve token price: %v", mint, err)
		return nil
	}
	coin, err := e.pump.Coin(ctx, mint)
	if err != nil {
		e.logger.Printf("[market] Skipping %s: failed to retrieve token metadata: %v", mint, err)
		return nil
	}
	if coin.RealSolReserves == 0 {
		e.logger.Printf("[market] Skipping %s: no liquidity", mint)
		return nil
	}

	marketCap := coin.MarketCap
	if marketCap == 0 && coin.USDMarketCap > 0 && e.oracle != nil {
		if solusd, err := e.oracle.SOLUSD(ctx); err == nil {
			marketCap = coin.USDMarketCap / solusd
		}
	}

	return &domain.MarketSnapshot{
		Mint:        mint,
		Name:        coin.Name,
		Symbol:      coin.Symbol,
		Creator:     coin.Creator,
		CreatedAt:   coin.CreatedTimestamp,
		Price:       candle.Close,
		Volume:      candle.Volume,
		Liquidity:   float64(coin.RealSolReserves) / wire.LamportsPerSOL,
		MarketCap:   marketCap,
		LastTradeAt: coin.LastTradeTimestamp,
		Twitter:     coin.Twitter,
		Telegram:    coin.Telegram,
		Website:     coin.Website,
		FetchedAt:   e.now().UnixMilli(),
	}
}
