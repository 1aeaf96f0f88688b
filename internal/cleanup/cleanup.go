// Package cleanup reclaims the rent of token accounts left behind by trades.
package cleanup

import (
	"context"
	"fmt"
	"log"
	"time"

	"pump-agent/internal/chain"
	"pump-agent/internal/config"
	"pump-agent/internal/domain"
	"pump-agent/internal/observability"
	"pump-agent/internal/solana"
	"pump-agent/internal/wire"
)

// DefaultSettle is the wait for the RPC node to catch up with the last
// trade before the account is inspected.
const DefaultSettle = 15 * time.Second

// Chain is what cleanup needs from the chain client.
type Chain interface {
	AccountInfo(ctx context.Context, account wire.PublicKey) (*solana.AccountInfo, error)
	TokenBalance(ctx context.Context, account wire.PublicKey) (uint64, error)
	BuildAndSendTransaction(ctx context.Context, instructions []wire.Instruction, signer *chain.Keypair, maxRetries int, priorityFee *uint64) (string, error)
	ConfirmTransaction(ctx context.Context, signature string) bool
}

// FeeSource returns a priority fee for accounts, or nil.
type FeeSource interface {
	PriorityFee(ctx context.Context, accounts []string) *uint64
}

// Outcomes of one reclamation.
const (
	OutcomeClosed  = "closed"
	OutcomeAbsent  = "absent"
	OutcomeSkipped = "skipped_balance"
	OutcomeFailed  = "failed"
)

// Options configures a Handler.
type Options struct {
	Mode       domain.CleanupMode
	ForceBurn  bool
	UseFee     bool
	Settle     time.Duration
	MaxRetries int
}

// OptionsFromConfig maps the wipe group.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Mode:       domain.CleanupMode(cfg.Wipe.Clean),
		ForceBurn:  cfg.Wipe.Burn,
		UseFee:     cfg.Wipe.Rate,
		Settle:     DefaultSettle,
		MaxRetries: cfg.Retries.Attempts,
	}
}

// Handler closes the signer's associated token accounts when the active
// mode matches the trigger. Errors are logged, never returned.
type Handler struct {
	chain  Chain
	fees   FeeSource
	signer *chain.Keypair
	opts   Options
	logger *log.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a Handler. A nil signer disables reclamation, as in sandbox
// mode where no accounts exist.
func New(c Chain, fees FeeSource, signer *chain.Keypair, opts Options, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	if opts.Mode == "" {
		opts.Mode = domain.CleanupDisabled
	}
	return &Handler{
		chain:  c,
		fees:   fees,
		signer: signer,
		opts:   opts,
		logger: logger,
		sleep:  sleepCtx,
	}
}

// Mode returns the active mode.
func (h *Handler) Mode() domain.CleanupMode {
	return h.opts.Mode
}

// AfterFailure reclaims mint's account after a failed buy, in on_fail mode.
func (h *Handler) AfterFailure(ctx context.Context, mint string) {
	if h.opts.Mode != domain.CleanupOnFail {
		return
	}
	h.logger.Printf("[cleanup] Triggered by failed buy transaction")
	h.reclaim(ctx, mint)
}

// AfterSell reclaims mint's account after a sell, in after_sell mode.
func (h *Handler) AfterSell(ctx context.Context, mint string) {
	if h.opts.Mode != domain.CleanupAfterSell {
		return
	}
	h.logger.Printf("[cleanup] Triggered after token sell")
	h.reclaim(ctx, mint)
}

// PostSession reclaims every bought mint in turn, in post_session mode.
func (h *Handler) PostSession(ctx context.Context, mints []string) {
	if h.opts.Mode != domain.CleanupPostSession || len(mints) == 0 {
		return
	}
	h.logger.Printf("[cleanup] Triggered after session ends for %d mints", len(mints))
	for _, mint := range mints {
		if ctx.Err() != nil {
			return
		}
		h.reclaim(ctx, mint)
	}
}

func (h *Handler) reclaim(ctx context.Context, mint string) {
	outcome, err := h.Reclaim(ctx, mint)
	if err != nil {
		h.logger.Printf("[cleanup] Cleanup failed for %s: %v", mint, err)
	}
	observability.RecordCleanup(string(h.opts.Mode), outcome)
}

// Reclaim closes the signer's token account for mint, burning a leftover
// balance first when ForceBurn is set. A nonzero balance without ForceBurn
// leaves the account in place.
func (h *Handler) Reclaim(ctx context.Context, mint string) (string, error) {
	if h.signer == nil {
		return OutcomeSkipped, fmt.Errorf("no signing key")
	}
	mintKey, err := wire.ParsePublicKey(mint)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("mint: %w", err)
	}
	owner := h.signer.PublicKey()
	ata, err := wire.AssociatedTokenAddress(owner, mintKey)
	if err != nil {
		return OutcomeFailed, err
	}

	var fee *uint64
	if h.opts.UseFee && h.fees != nil {
		fee = h.fees.PriorityFee(ctx, []string{ata.String()})
	}

	h.logger.Printf("[cleanup] Waiting %v for RPC node to synchronize", h.opts.Settle)
	if err := h.sleep(ctx, h.opts.Settle); err != nil {
		return OutcomeFailed, err
	}

	info, err := h.chain.AccountInfo(ctx, ata)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("account info: %w", err)
	}
	if info == nil {
		h.logger.Printf("[cleanup] Account %s does not exist or is already closed", ata)
		return OutcomeAbsent, nil
	}

	balance, err := h.chain.TokenBalance(ctx, ata)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("token balance: %w", err)
	}

	var ixs []wire.Instruction
	if balance > 0 {
		if !h.opts.ForceBurn {
			h.logger.Printf("[cleanup] Skipping %s with nonzero balance %d, force burn is disabled", ata, balance)
			return OutcomeSkipped, nil
		}
		h.logger.Printf("[cleanup] Burning %d tokens from %s (mint %s)", balance, ata, mint)
		ixs = append(ixs, wire.BurnInstruction(ata, mintKey, owner, balance))
	}
	ixs = append(ixs, wire.CloseAccountInstruction(ata, owner, owner))

	sig, err := h.chain.BuildAndSendTransaction(ctx, ixs, h.signer, h.opts.MaxRetries, fee)
	if err != nil {
		return OutcomeFailed, err
	}
	if !h.chain.ConfirmTransaction(ctx, sig) {
		return OutcomeFailed, fmt.Errorf("close transaction %s not confirmed", sig)
	}
	h.logger.Printf("[cleanup] Closed %s", ata)
	return OutcomeClosed, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
