// Package listener streams pump.fun token creations from a WebSocket
// subscription, decodes them and passes survivors of the filter pipeline to
// a callback. Two variants exist: "logs" decodes the emitted CreateEvent,
// "blocks" decodes the create instruction from full blocks.
package listener

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"pump-agent/internal/config"
	"pump-agent/internal/domain"
	"pump-agent/internal/observability"
	"pump-agent/internal/solana"
	"pump-agent/internal/wire"
)

// Callback receives tokens that passed every filter. It runs on its own
// goroutine and may block.
type Callback func(ctx context.Context, tok *domain.TokenInfo)

// Options configures a Listener.
type Options struct {
	// Chain is config.ChainLogs or config.ChainBlocks.
	Chain string
	// Layout overrides the compiled create layout for the chain.
	Layout *wire.Layout
	Logger *log.Logger
}

// Listener decodes token creations from one subscription.
type Listener struct {
	ws      solana.WSClient
	chain   string
	layout  *wire.Layout
	program wire.PublicKey
	filter  *Filter
	logger  *log.Logger
	now     func() time.Time

	wg sync.WaitGroup
}

// New creates a Listener for the configured chain.
func New(ws solana.WSClient, filter *Filter, opts Options) (*Listener, error) {
	l := &Listener{
		ws:      ws,
		chain:   opts.Chain,
		layout:  opts.Layout,
		program: wire.PumpProgram,
		filter:  filter,
		logger:  opts.Logger,
		now:     time.Now,
	}
	if l.logger == nil {
		l.logger = log.Default()
	}
	switch l.chain {
	case config.ChainLogs:
		if l.layout == nil {
			l.layout = &wire.CreateEventLayout
		}
	case config.ChainBlocks:
		if l.layout == nil {
			l.layout = &wire.CreateInstructionLayout
		}
	default:
		return nil, fmt.Errorf("unknown listener chain %q", l.chain)
	}
	return l, nil
}

func (l *Listener) subscription() solana.Subscription {
	if l.chain == config.ChainBlocks {
		return solana.BlockSubscription(l.program.String(), solana.CommitmentConfirmed)
	}
	return solana.LogsSubscription([]string{l.program.String()}, solana.CommitmentProcessed)
}

// Listen subscribes and dispatches tokens to cb until ctx is cancelled. The
// WebSocket client resubscribes on reconnect, so the notification channel
// outlives connection drops. On return the subscription is released and
// in-flight filter goroutines are awaited.
func (l *Listener) Listen(ctx context.Context, cb Callback) error {
	ch, err := l.ws.Subscribe(ctx, l.subscription())
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", l.chain, err)
	}
	l.logger.Printf("[listener] Subscribed to %s of %s", l.chain, l.program)
	defer l.wg.Wait()
	defer func() {
		if err := l.ws.Unsubscribe(ch); err != nil {
			l.logger.Printf("[listener] Failed to unsubscribe from %s: %v", l.chain, err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-ch:
			if !ok {
				return solana.ErrClientClosed
			}
			for _, tok := range l.decode(n) {
				l.dispatch(ctx, tok, cb)
			}
		}
	}
}

func (l *Listener) decode(n solana.Notification) []*domain.TokenInfo {
	var events []*wire.CreateEvent
	switch l.chain {
	case config.ChainLogs:
		v, err := n.Logs()
		if err != nil {
			l.decodeFailed(err)
			return nil
		}
		ev, err := DecodeLogs(l.layout, v)
		if errors.Is(err, ErrNotCreate) {
			return nil
		}
		if err != nil {
			l.decodeFailed(fmt.Errorf("%s: %w", v.Signature, err))
			return nil
		}
		events = append(events, ev)
	case config.ChainBlocks:
		v, err := n.Block()
		if err != nil {
			l.decodeFailed(err)
			return nil
		}
		var errs []error
		events, errs = DecodeBlock(l.layout, l.program, v)
		for _, err := range errs {
			l.decodeFailed(fmt.Errorf("slot %d: %w", v.Slot, err))
		}
	}

	detected := l.now().UnixMilli()
	out := make([]*domain.TokenInfo, 0, len(events))
	for _, ev := range events {
		tok := tokenFromEvent(ev, detected)
		observability.RecordTokenDetected(l.chain)
		l.logger.Printf("[listener] Detected %s (%s) mint=%s", tok.Name, tok.Symbol, tok.Mint)
		out = append(out, tok)
	}
	return out
}

func (l *Listener) decodeFailed(err error) {
	observability.RecordDecodeError(l.chain)
	l.logger.Printf("[listener] Dropping undecodable notification: %v", err)
}

func (l *Listener) dispatch(ctx context.Context, tok *domain.TokenInfo, cb Callback) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				l.logger.Printf("[listener] Recovered from panic handling %s: %v", tok.Mint, r)
			}
		}()
		if l.filter != nil {
			if rule := l.filter.Check(ctx, tok); rule != "" {
				return
			}
		}
		observability.RecordTokenAccepted()
		cb(ctx, tok)
	}()
}

func tokenFromEvent(ev *wire.CreateEvent, detectedAt int64) *domain.TokenInfo {
	tok := &domain.TokenInfo{
		Name:                   ev.Name,
		Symbol:                 ev.Symbol,
		URI:                    ev.URI,
		Mint:                   ev.Mint.String(),
		BondingCurve:           ev.BondingCurve.String(),
		AssociatedBondingCurve: ev.AssociatedBondingCurve.String(),
		DetectedAt:             detectedAt,
	}
	if !ev.User.IsZero() {
		tok.User = ev.User.String()
	}
	return tok
}
