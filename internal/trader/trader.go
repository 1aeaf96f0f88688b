// Package trader builds, submits and confirms pump.fun buy and sell orders.
// Every failure is reported as an unsuccessful domain.TradeResult; nothing
// here returns an error to the caller.
package trader

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"time"

	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"

	"pump-agent/internal/chain"
	"pump-agent/internal/config"
	"pump-agent/internal/domain"
	"pump-agent/internal/wire"
)

// DefaultSandboxDelay stands in for network latency in sandbox mode.
const DefaultSandboxDelay = 2 * time.Second

// Sender submits and confirms transactions and reads token balances.
// *chain.Client implements it.
type Sender interface {
	BuildAndSendTransaction(ctx context.Context, instructions []wire.Instruction, signer *chain.Keypair, maxRetries int, priorityFee *uint64) (string, error)
	ConfirmTransaction(ctx context.Context, signature string) bool
	TokenBalance(ctx context.Context, account wire.PublicKey) (uint64, error)
}

// CurveReader fetches bonding curve state. *chain.Client implements it.
type CurveReader interface {
	CurveState(ctx context.Context, curve wire.PublicKey) (*wire.CurveState, error)
}

// FeeSource returns the priority fee for a transaction touching accounts,
// or nil. *fees.Estimator implements it.
type FeeSource interface {
	PriorityFee(ctx context.Context, accounts []string) *uint64
}

// Options configures order sizing and mode.
type Options struct {
	Sandbox      bool
	Amount       float64 // SOL per buy
	BuySlippage  float64
	SellSlippage float64
	FastMode     bool
	FastTokens   uint64
	MaxRetries   int
	SandboxDelay time.Duration
}

// OptionsFromConfig maps the trade settings.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Sandbox:      cfg.Main.Sandbox,
		Amount:       cfg.Trade.BuyAmount,
		BuySlippage:  cfg.Trade.BuySlippage,
		SellSlippage: cfg.Trade.SellSlippage,
		FastMode:     cfg.Trade.FastMode,
		FastTokens:   cfg.Trade.FastTokens,
		MaxRetries:   cfg.Retries.Attempts,
		SandboxDelay: DefaultSandboxDelay,
	}
}

// base holds what Buyer and Seller share.
type base struct {
	sender Sender
	curves CurveReader
	fees   FeeSource
	signer *chain.Keypair
	opts   Options
	logger *log.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func newBase(sender Sender, curves CurveReader, fees FeeSource, signer *chain.Keypair, opts Options, logger *log.Logger) base {
	if logger == nil {
		logger = log.Default()
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	return base{
		sender: sender,
		curves: curves,
		fees:   fees,
		signer: signer,
		opts:   opts,
		logger: logger,
		sleep:  sleepCtx,
	}
}

// accounts resolves the per-token addresses of a trade.
func (b *base) accounts(tok *domain.TokenInfo) (wire.TradeAccounts, error) {
	var a wire.TradeAccounts
	var err error
	if a.Mint, err = wire.ParsePublicKey(tok.Mint); err != nil {
		return a, fmt.Errorf("mint: %w", err)
	}
	if a.BondingCurve, err = wire.ParsePublicKey(tok.BondingCurve); err != nil {
		return a, fmt.Errorf("bonding curve: %w", err)
	}
	if a.AssociatedBondingCurve, err = wire.ParsePublicKey(tok.AssociatedBondingCurve); err != nil {
		return a, fmt.Errorf("base curve: %w", err)
	}
	if b.signer == nil {
		return a, fmt.Errorf("no signing key")
	}
	a.User = b.signer.PublicKey()
	if a.AssociatedUser, err = wire.AssociatedTokenAddress(a.User, a.Mint); err != nil {
		return a, fmt.Errorf("associated token account: %w", err)
	}
	return a, nil
}

// priorityFee samples the fee over the accounts a trade contends on.
func (b *base) priorityFee(ctx context.Context, a wire.TradeAccounts) *uint64 {
	if b.fees == nil {
		return nil
	}
	return b.fees.PriorityFee(ctx, []string{
		a.Mint.String(),
		a.BondingCurve.String(),
		wire.PumpProgramID,
		wire.PumpFeeRecipientID,
	})
}

// submit sends and confirms instructions, returning the signature.
func (b *base) submit(ctx context.Context, ixs []wire.Instruction, fee *uint64) (string, error) {
	sig, err := b.sender.BuildAndSendTransaction(ctx, ixs, b.signer, b.opts.MaxRetries, fee)
	if err != nil {
		return "", err
	}
	if !b.sender.ConfirmTransaction(ctx, sig) {
		return "", fmt.Errorf("transaction failed to confirm: %s", sig)
	}
	return sig, nil
}

// sandboxSignature waits out the simulated latency and returns a random
// signature-shaped string.
func (b *base) sandboxSignature(ctx context.Context) (string, error) {
	if err := b.sleep(ctx, b.opts.SandboxDelay); err != nil {
		return "", err
	}
	var buf [wire.SignatureLength]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return base58.Encode(buf[:]), nil
}

// CurvePrice reads the curve at address and returns SOL per token.
func CurvePrice(ctx context.Context, r CurveReader, curve string) (float64, error) {
	pk, err := wire.ParsePublicKey(curve)
	if err != nil {
		return 0, fmt.Errorf("bonding curve: %w", err)
	}
	state, err := r.CurveState(ctx, pk)
	if err != nil {
		return 0, err
	}
	return state.Price()
}

// lamports converts SOL to lamports, truncating.
func lamports(sol decimal.Decimal) uint64 {
	return uint64(sol.Shift(9).IntPart())
}

// rawTokens converts whole tokens to raw units, truncating.
func rawTokens(tokens decimal.Decimal) uint64 {
	return uint64(tokens.Shift(wire.TokenDecimals).IntPart())
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
