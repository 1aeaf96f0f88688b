package trader

import (
	"context"
	"errors"
	"log"

	"github.com/shopspring/decimal"

	"pump-agent/internal/chain"
	"pump-agent/internal/domain"
	"pump-agent/internal/observability"
	"pump-agent/internal/wire"
)

// Buyer places buy orders of a fixed SOL amount.
type Buyer struct {
	base
}

// NewBuyer creates a Buyer. signer may be nil only in sandbox mode.
func NewBuyer(sender Sender, curves CurveReader, fees FeeSource, signer *chain.Keypair, opts Options, logger *log.Logger) *Buyer {
	return &Buyer{base: newBase(sender, curves, fees, signer, opts, logger)}
}

// BuyQuote is the sizing of one buy.
type BuyQuote struct {
	Tokens      decimal.Decimal // whole tokens
	Price       float64         // SOL per token
	MaxLamports uint64          // spend bound including slippage
}

// Quote sizes a buy of the configured amount at price, or at the fixed token
// count when fast mode is on and price is ignored.
func (b *Buyer) Quote(price float64) (BuyQuote, error) {
	amount := decimal.NewFromFloat(b.opts.Amount)
	var q BuyQuote
	if b.opts.FastMode {
		if b.opts.FastTokens == 0 {
			return q, errors.New("fast mode token amount is zero")
		}
		q.Tokens = decimal.NewFromInt(int64(b.opts.FastTokens))
		q.Price, _ = amount.Div(q.Tokens).Float64()
	} else {
		if price <= 0 {
			return q, errors.New("non-positive token price")
		}
		q.Price = price
		q.Tokens = amount.Div(decimal.NewFromFloat(price))
	}
	slip := decimal.NewFromInt(1).Add(decimal.NewFromFloat(b.opts.BuySlippage))
	q.MaxLamports = lamports(amount.Mul(slip))
	return q, nil
}

// Buy buys tok. Fast mode skips the curve read.
func (b *Buyer) Buy(ctx context.Context, tok *domain.TokenInfo) (res domain.TradeResult) {
	defer func() {
		observability.RecordTrade(string(domain.SideBuy), res.Success)
		if !res.Success {
			b.logger.Printf("[trader] Buy operation failed for %s: %s", tok.Mint, res.Error)
		}
	}()

	var price float64
	if !b.opts.FastMode {
		var err error
		if price, err = CurvePrice(ctx, b.curves, tok.BondingCurve); err != nil {
			return domain.FailedTrade(err.Error())
		}
	}
	q, err := b.Quote(price)
	if err != nil {
		return domain.FailedTrade(err.Error())
	}
	tokens, _ := q.Tokens.Float64()
	total := decimal.NewFromInt(int64(q.MaxLamports)).Shift(-9).InexactFloat64()

	b.logger.Printf("[trader] Buying %.6f tokens of %s at %.10f SOL per token (max %.6f SOL)", tokens, tok.Mint, q.Price, total)

	var sig string
	if b.opts.Sandbox {
		if sig, err = b.sandboxSignature(ctx); err != nil {
			return domain.FailedTrade(err.Error())
		}
		b.logger.Printf("[trader] Buy transaction confirmed in sandbox mode")
	} else {
		if sig, err = b.send(ctx, tok, q); err != nil {
			return domain.FailedTrade(err.Error())
		}
		b.logger.Printf("[trader] Buy transaction confirmed: %s", sig)
	}
	return domain.TradeResult{
		Success:   true,
		Signature: sig,
		Amount:    tokens,
		Total:     total,
		Price:     q.Price,
	}
}

func (b *Buyer) send(ctx context.Context, tok *domain.TokenInfo, q BuyQuote) (string, error) {
	a, err := b.accounts(tok)
	if err != nil {
		return "", err
	}
	ata, err := wire.CreateAssociatedTokenAccountIdempotent(a.User, a.User, a.Mint)
	if err != nil {
		return "", err
	}
	buy := wire.BuyInstruction(a, rawTokens(q.Tokens), q.MaxLamports)
	return b.submit(ctx, []wire.Instruction{ata, buy}, b.priorityFee(ctx, a))
}
