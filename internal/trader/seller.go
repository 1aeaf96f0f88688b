package trader

import (
	"context"
	"log"

	"github.com/shopspring/decimal"

	"pump-agent/internal/chain"
	"pump-agent/internal/domain"
	"pump-agent/internal/observability"
	"pump-agent/internal/wire"
)

// NoTokensMessage is the error text of a sell with nothing to sell.
const NoTokensMessage = "No tokens to sell"

// Seller sells the whole position in a token.
type Seller struct {
	base
}

// NewSeller creates a Seller. signer may be nil only in sandbox mode.
func NewSeller(sender Sender, curves CurveReader, fees FeeSource, signer *chain.Keypair, opts Options, logger *log.Logger) *Seller {
	return &Seller{base: newBase(sender, curves, fees, signer, opts, logger)}
}

// MinOutput is the least lamports accepted for raw token units at price.
func (s *Seller) MinOutput(raw uint64, price float64) (expected decimal.Decimal, minLamports uint64) {
	tokens := decimal.NewFromInt(int64(raw)).Shift(-wire.TokenDecimals)
	expected = tokens.Mul(decimal.NewFromFloat(price))
	keep := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(s.opts.SellSlippage))
	return expected, lamports(expected.Mul(keep))
}

// Sell sells the on-chain balance of tok, or in sandbox mode the recorded
// position amount. A zero balance is a failed result, not an error.
func (s *Seller) Sell(ctx context.Context, tok *domain.TokenInfo, recorded float64) (res domain.TradeResult) {
	defer func() {
		observability.RecordTrade(string(domain.SideSell), res.Success)
		if !res.Success {
			s.logger.Printf("[trader] Sell operation failed for %s: %s", tok.Mint, res.Error)
		}
	}()

	var a wire.TradeAccounts
	var raw uint64
	if s.opts.Sandbox {
		raw = rawTokens(decimal.NewFromFloat(recorded))
	} else {
		var err error
		if a, err = s.accounts(tok); err != nil {
			return domain.FailedTrade(err.Error())
		}
		if raw, err = s.sender.TokenBalance(ctx, a.AssociatedUser); err != nil {
			return domain.FailedTrade(err.Error())
		}
	}
	if raw == 0 {
		return domain.FailedTrade(NoTokensMessage)
	}

	price, err := CurvePrice(ctx, s.curves, tok.BondingCurve)
	if err != nil {
		return domain.FailedTrade(err.Error())
	}
	expected, minOut := s.MinOutput(raw, price)
	tokens := decimal.NewFromInt(int64(raw)).Shift(-wire.TokenDecimals).InexactFloat64()
	s.logger.Printf("[trader] Selling %.6f tokens of %s at ~%.10f SOL each, expected %s SOL, min %d lamports",
		tokens, tok.Mint, price, expected.StringFixed(9), minOut)

	var sig string
	if s.opts.Sandbox {
		if sig, err = s.sandboxSignature(ctx); err != nil {
			return domain.FailedTrade(err.Error())
		}
		s.logger.Printf("[trader] Sell transaction confirmed in sandbox mode")
	} else {
		sell := wire.SellInstruction(a, raw, minOut)
		if sig, err = s.submit(ctx, []wire.Instruction{sell}, s.priorityFee(ctx, a)); err != nil {
			return domain.FailedTrade(err.Error())
		}
		s.logger.Printf("[trader] Sell transaction confirmed: %s", sig)
	}
	return domain.TradeResult{
		Success:   true,
		Signature: sig,
		Amount:    tokens,
		Total:     expected.InexactFloat64(),
		Price:     price,
	}
}
