package agent

import (
	"context"
	"time"

	"github.com/google/uuid"

	"pump-agent/internal/config"
	"pump-agent/internal/domain"
	"pump-agent/internal/observability"
	"pump-agent/internal/stats"
	"pump-agent/internal/storage"
	"pump-agent/internal/trader"
)

func newTradeID() string {
	return uuid.NewString()
}

// handleToken is the per-token pipeline: settle, admission, buy, then
// monitoring or failure cleanup. Panics end the pipeline, not the agent.
func (a *Agent) handleToken(ctx context.Context, tok *domain.TokenInfo, id string) {
	defer a.queue.Done(tok.Mint)
	defer func() {
		if r := recover(); r != nil {
			a.logger.Printf("[agent] Error handling token %s: %v", tok.Symbol, r)
		}
	}()

	if tok.Price == nil && !a.opts.FastMode {
		a.logger.Printf("[agent] Skipping token %s - no market price", tok.Symbol)
		return
	}

	if !a.opts.FastMode {
		a.logger.Printf("[agent] Waiting for %v for the bonding curve to stabilize...", a.opts.IdleInit)
		if err := a.sleep(ctx, a.opts.IdleInit); err != nil {
			return
		}
	}

	if !a.admit(id) {
		observability.RecordQueueDrop(DropCap)
		a.logger.Printf("[agent] Skipping token %s - Max open trades limit (%d) reached", tok.Symbol, a.opts.MaxOpenTrades)
		return
	}
	defer a.release(id)

	a.logger.Printf("[agent] Buying %.6f SOL worth of %s in the market...", a.opts.BuyAmount, tok.Symbol)
	res := a.buyer.Buy(ctx, tok)
	a.record(ctx, id, tok, domain.SideBuy, res)
	if res.Success {
		a.onBought(ctx, tok, res, id)
	} else {
		a.logger.Printf("[agent] Failed to buy %s: %s", tok.Symbol, res.Error)
		a.cleanup.AfterFailure(ctx, tok.Mint)
	}

	if a.opts.Continuous {
		a.logger.Printf("[agent] Waiting %v before looking for next token...", a.opts.IdleFresh)
		_ = a.sleep(ctx, a.opts.IdleFresh)
	}
}

// onBought persists the position and watches it unless shorting is off.
func (a *Agent) onBought(ctx context.Context, tok *domain.TokenInfo, res domain.TradeResult, id string) {
	a.logger.Printf("[agent] Successfully bought %s", tok.Symbol)

	trade := &domain.Trade{
		UUID:          id,
		Mint:          tok.Mint,
		BotName:       a.opts.BotName,
		OpenSignature: res.Signature,
		OpenedAt:      a.now().UnixMilli(),
		OpenPrice:     res.Price,
		Amount:        res.Amount,
		Total:         res.Total,
		Status:        domain.TradeStatusOpen,
	}
	if err := a.store.OpenTrade(context.WithoutCancel(ctx), trade); err != nil {
		a.logger.Printf("[agent] Failed to record trade %s (BUY): %v", id, err)
	} else if balance, err := a.store.GetWalletBalance(ctx); err == nil {
		a.logger.Printf("[agent] Trade recorded (BUY) and wallet updated: new balance = %s SOL", balance.String())
	}
	a.markBought(tok.Mint)

	if a.opts.NoShorting {
		a.logger.Printf("[agent] No-Shorting enabled. Skipping post-buy monitoring for %s", tok.Symbol)
		return
	}
	a.monitor(ctx, tok, res, id)
}

// monitor samples the curve price every interval until an exit triggers.
// A failed sample ends monitoring; under the sell policy it also sells.
func (a *Agent) monitor(ctx context.Context, tok *domain.TokenInfo, res domain.TradeResult, id string) {
	a.logger.Printf("[agent] Starting dynamic SL/TP monitoring for %s...", tok.Symbol)
	entry := res.Price
	start := a.now()

	var samples []*domain.PriceSample
	defer func() { a.saveSamples(ctx, id, samples) }()

	for {
		if err := a.sleep(ctx, a.opts.MonitorInterval); err != nil {
			a.logger.Printf("[agent] Monitoring of %s stopped, position left open", tok.Symbol)
			return
		}

		price, err := trader.CurvePrice(ctx, a.curves, tok.BondingCurve)
		if err != nil {
			a.logger.Printf("[agent] Error during SL/TP monitoring for %s: %v", tok.Symbol, err)
			if a.opts.FailPolicy == config.MonitorFailSell {
				a.swapback(ctx, tok, id, res.Amount, domain.ExitMonitorError)
			} else {
				observability.RecordExit(string(domain.ExitMonitorError))
			}
			return
		}

		variation := Variation(entry, price)
		now := a.now()
		elapsed := now.Sub(start)
		samples = append(samples, &domain.PriceSample{
			TradeUUID:   id,
			Mint:        tok.Mint,
			TimestampMs: now.UnixMilli(),
			Price:       price,
			Variation:   variation,
		})
		a.logger.Printf("[agent] [%s] Price variation: %.2f%%", tok.Symbol, variation)

		if reason, ok := a.opts.ExitFor(variation, elapsed); ok {
			a.logger.Printf("[agent] %s triggered for token %s (%.2f%% after %v)", reason, tok.Mint, variation, elapsed.Truncate(time.Second))
			a.swapback(ctx, tok, id, res.Amount, reason)
			return
		}
	}
}

// swapback sells the position, closes the trade and runs after-sell
// cleanup. A failed sell leaves the trade open.
func (a *Agent) swapback(ctx context.Context, tok *domain.TokenInfo, id string, amount float64, reason domain.ExitReason) {
	observability.RecordExit(string(reason))
	a.logger.Printf("[agent] Selling %s...", tok.Symbol)

	res := a.seller.Sell(ctx, tok, amount)
	a.record(ctx, id, tok, domain.SideSell, res)
	if !res.Success {
		a.logger.Printf("[agent] Failed to sell %s: %s", tok.Symbol, res.Error)
		return
	}
	a.logger.Printf("[agent] Successfully sold %s", tok.Symbol)

	out, err := a.store.CloseTrade(context.WithoutCancel(ctx), storage.CloseRequest{
		UUID:       id,
		ClosePrice: res.Price,
		Signature:  res.Signature,
		ClosedAt:   a.now().UnixMilli(),
	})
	if err != nil {
		a.logger.Printf("[agent] Failed to record trade %s (SELL): %v", id, err)
	} else {
		a.logger.Printf("[agent] Trade recorded (SELL): profit %.9f SOL (%.2f%%) in %v",
			out.Profit, out.Ratio, time.Duration(out.DurationMs)*time.Millisecond)
		a.markClosed(stats.Outcome{
			TradeUUID: id,
			Mint:      tok.Mint,
			ClosedAt:  a.now().UnixMilli(),
			Profit:    out.Profit,
			Ratio:     out.Ratio,
		})
	}

	a.cleanup.AfterSell(ctx, tok.Mint)
}

// saveSamples persists the prices seen while monitoring trade id.
func (a *Agent) saveSamples(ctx context.Context, id string, samples []*domain.PriceSample) {
	if a.samples == nil || len(samples) == 0 {
		return
	}
	if err := a.samples.InsertBulk(context.WithoutCancel(ctx), samples); err != nil {
		a.logger.Printf("[agent] Failed to store %d price samples for %s: %v", len(samples), id, err)
	}
}

// record appends res to the journal, if one is configured.
func (a *Agent) record(ctx context.Context, id string, tok *domain.TokenInfo, side domain.TradeSide, res domain.TradeResult) {
	if a.journal == nil {
		return
	}
	e := &storage.JournalEntry{
		TradeUUID: id,
		Mint:      tok.Mint,
		BotName:   a.opts.BotName,
		Side:      side,
		Success:   res.Success,
		Signature: res.Signature,
		Error:     res.Error,
		Price:     res.Price,
		Amount:    res.Amount,
		Total:     res.Total,
		Sandbox:   a.opts.Sandbox,
		Timestamp: a.now().UnixMilli(),
	}
	if err := a.journal.Record(context.WithoutCancel(ctx), e); err != nil {
		a.logger.Printf("[agent] Failed to journal %s %s: %v", side, id, err)
	}
}
