package market

import (
	"context"
	"log"

	"github.com/shopspring/decimal"
)

// BalanceSource returns an account's lamports.
type BalanceSource interface {
	Balance(ctx context.Context, account string) (uint64, error)
}

// HolderLookup answers holder questions on a best-effort basis: transport
// errors yield empty or absent results, never errors.
type HolderLookup struct {
	pump     *PumpClient
	balances BalanceSource
	logger   *log.Logger
}

// NewHolderLookup creates a HolderLookup.
func NewHolderLookup(pump *PumpClient, balances BalanceSource, logger *log.Logger) *HolderLookup {
	if logger == nil {
		logger = log.Default()
	}
	return &HolderLookup{pump: pump, balances: balances, logger: logger}
}

// TopHolders returns holder addresses, empty on failure.
func (h *HolderLookup) TopHolders(ctx context.Context, mint string) []string {
	holders, err := h.pump.TopHolders(ctx, mint)
	if err != nil {
		h.logger.Printf("[market] Holder lookup failed for %s: %v", mint, err)
		return nil
	}
	return holders
}

// BalanceOf returns an address's SOL balance, false on failure.
func (h *HolderLookup) BalanceOf(ctx context.Context, address string) (decimal.Decimal, bool) {
	lamports, err := h.balances.Balance(ctx, address)
	if err != nil {
		h.logger.Printf("[market] Balance lookup failed for %s: %v", address, err)
		return decimal.Zero, false
	}
	return decimal.NewFromUint64(lamports).Shift(-9), true
}
