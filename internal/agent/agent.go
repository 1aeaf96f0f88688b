// Package agent runs the trading loop: it takes tokens from a listener,
// buys them, watches the position for an exit and sells it.
//
// In single-shot mode the agent waits for one token and trades it. In
// continuous mode a bounded queue feeds one pipeline per token until the
// context ends. Either way the run ends with post-session cleanup.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"pump-agent/internal/config"
	"pump-agent/internal/domain"
	"pump-agent/internal/listener"
	"pump-agent/internal/observability"
	"pump-agent/internal/stats"
	"pump-agent/internal/storage"
	"pump-agent/internal/trader"
)

// TokenSource streams filtered tokens until ctx ends.
type TokenSource interface {
	Listen(ctx context.Context, cb listener.Callback) error
}

// Buyer opens positions.
type Buyer interface {
	Buy(ctx context.Context, tok *domain.TokenInfo) domain.TradeResult
}

// Seller closes positions. recorded is the bought amount, used in sandbox.
type Seller interface {
	Sell(ctx context.Context, tok *domain.TokenInfo, recorded float64) domain.TradeResult
}

// Cleaner reclaims token accounts at the trigger points of a trade.
type Cleaner interface {
	AfterFailure(ctx context.Context, mint string)
	AfterSell(ctx context.Context, mint string)
	PostSession(ctx context.Context, mints []string)
}

// Chain is the lifecycle part of the chain client.
type Chain interface {
	GetHealth(ctx context.Context) bool
	Close() error
}

// PriceOracle quotes SOL in USD.
type PriceOracle interface {
	SOLUSD(ctx context.Context) (float64, error)
}

// Pruner drops stale per-mint state and reports how many entries went.
type Pruner interface {
	Prune() int
}

// Options configures an Agent.
type Options struct {
	BotName       string
	Sandbox       bool
	InitBalance   float64 // SOL seeded into an empty wallet ledger
	MaxOpenTrades int
	Continuous    bool
	NoShorting    bool
	FastMode      bool
	BuyAmount     float64

	IdleInit  time.Duration // pre-buy settle delay, skipped in fast mode
	IdleShort time.Duration // exit after this long without SL/TP
	IdleFresh time.Duration // pause after each continuous-mode trade
	MinAge    time.Duration
	MaxAge    time.Duration
	Timeout   time.Duration // single-shot wait

	StopLoss        float64 // percent
	TakeProfit      float64 // percent
	MonitorInterval time.Duration
	FailPolicy      string // config.MonitorFailOpen or config.MonitorFailSell

	QueueSize int
}

// OptionsFromConfig maps the main, filters, timing and trade groups.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BotName:         cfg.Main.BotName,
		Sandbox:         cfg.Main.Sandbox,
		InitBalance:     cfg.Main.InitBalance,
		MaxOpenTrades:   cfg.Main.MaxOpenTrades,
		Continuous:      cfg.Filters.NoStopping,
		NoShorting:      cfg.Filters.NoShorting,
		FastMode:        cfg.Trade.FastMode,
		BuyAmount:       cfg.Trade.BuyAmount,
		IdleInit:        cfg.Timing.TokenIdleInit.Duration,
		IdleShort:       cfg.Timing.TokenIdleShort.Duration,
		IdleFresh:       cfg.Timing.TokenIdleFresh.Duration,
		MinAge:          cfg.Timing.TokenMinAge.Duration,
		MaxAge:          cfg.Timing.TokenMaxAge.Duration,
		Timeout:         cfg.Timing.TokenTimeout.Duration,
		StopLoss:        cfg.Trade.StopLoss,
		TakeProfit:      cfg.Trade.TakeProfit,
		MonitorInterval: cfg.Trade.MonitorInterval.Duration,
		FailPolicy:      cfg.Trade.MonitorFailPolicy,
		QueueSize:       DefaultQueueSize,
	}
}

// ExitFor decides whether a position with the given price variation (in
// percent) held for elapsed must be sold. Stop-loss wins over take-profit,
// which wins over the idle timeout.
func (o Options) ExitFor(variation float64, elapsed time.Duration) (domain.ExitReason, bool) {
	switch {
	case variation <= -o.StopLoss:
		return domain.ExitStopLoss, true
	case variation >= o.TakeProfit:
		return domain.ExitTakeProfit, true
	case elapsed >= o.IdleShort:
		return domain.ExitIdle, true
	}
	return "", false
}

// Variation is the percent move from entry to price.
func Variation(entry, price float64) float64 {
	if entry <= 0 {
		return 0
	}
	return (price - entry) / entry * 100
}

// Deps are the collaborators of an Agent. Journal, Samples, Chain and
// Oracle are optional.
type Deps struct {
	Tokens  TokenSource
	Buyer   Buyer
	Seller  Seller
	Curves  trader.CurveReader
	Cleanup Cleaner
	Store   storage.TradeStore
	Journal storage.TradeJournal
	Samples storage.PriceSampleStore
	Chain   Chain
	Oracle  PriceOracle
	// Caches are pruned at teardown next to the intake queue.
	Caches []Pruner
	Logger *log.Logger
}

// Agent owns the orchestration state of one run.
type Agent struct {
	opts    Options
	tokens  TokenSource
	buyer   Buyer
	seller  Seller
	curves  trader.CurveReader
	cleanup Cleaner
	store   storage.TradeStore
	journal storage.TradeJournal
	samples storage.PriceSampleStore
	chain   Chain
	oracle  PriceOracle
	caches  []Pruner
	logger  *log.Logger

	queue *TokenQueue
	tasks *taskRegistry

	mu     sync.Mutex
	live   map[string]struct{} // open trade UUIDs
	bought map[string]struct{} // mints pending post-session cleanup
	closed []stats.Outcome

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an Agent.
func New(opts Options, deps Deps) (*Agent, error) {
	switch {
	case deps.Tokens == nil:
		return nil, errors.New("agent: token source is required")
	case deps.Buyer == nil || deps.Seller == nil:
		return nil, errors.New("agent: buyer and seller are required")
	case deps.Curves == nil:
		return nil, errors.New("agent: curve reader is required")
	case deps.Cleanup == nil:
		return nil, errors.New("agent: cleanup handler is required")
	case deps.Store == nil:
		return nil, errors.New("agent: trade store is required")
	}
	if opts.MonitorInterval <= 0 {
		opts.MonitorInterval = 5 * time.Second
	}
	if opts.FailPolicy == "" {
		opts.FailPolicy = config.MonitorFailOpen
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Agent{
		opts:    opts,
		tokens:  deps.Tokens,
		buyer:   deps.Buyer,
		seller:  deps.Seller,
		curves:  deps.Curves,
		cleanup: deps.Cleanup,
		store:   deps.Store,
		journal: deps.Journal,
		samples: deps.Samples,
		chain:   deps.Chain,
		oracle:  deps.Oracle,
		caches:  deps.Caches,
		logger:  logger,
		queue:   NewTokenQueue(opts.QueueSize),
		tasks:   newTaskRegistry(),
		live:    make(map[string]struct{}),
		bought:  make(map[string]struct{}),
		now:     time.Now,
		sleep:   sleepCtx,
	}, nil
}

// Queue exposes the intake queue.
func (a *Agent) Queue() *TokenQueue {
	return a.queue
}

// Run trades until the mode finishes or ctx ends, then tears down.
// Cancellation is not an error.
func (a *Agent) Run(ctx context.Context) error {
	a.logStart()

	if a.chain != nil {
		if a.chain.GetHealth(ctx) {
			a.logger.Printf("[agent] RPC warm-up successful")
		} else {
			a.logger.Printf("[agent] RPC warm-up failed")
		}
	}

	if err := a.store.InitWallet(ctx, decimal.NewFromFloat(a.opts.InitBalance)); err != nil {
		return fmt.Errorf("init wallet: %w", err)
	}

	var err error
	if a.opts.Continuous {
		a.logger.Printf("[agent] Running in continuous mode, processing tokens until interrupted")
		err = a.runContinuous(ctx)
	} else {
		a.logger.Printf("[agent] Running in single token mode, will process one token and exit")
		err = a.runSingle(ctx)
	}

	a.teardown(context.WithoutCancel(ctx))

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *Agent) logStart() {
	o := a.opts
	a.logger.Printf("[agent] Starting %s (sandbox=%v, max open trades %d)", o.BotName, o.Sandbox, o.MaxOpenTrades)
	a.logger.Printf("[agent] No-Shorting: %v, No-Stopping: %v, Fast mode: %v", o.NoShorting, o.Continuous, o.FastMode)
	a.logger.Printf("[agent] Token age window: [%v, %v], SL %.2f%%, TP %.2f%%", o.MinAge, o.MaxAge, o.StopLoss, o.TakeProfit)
}

func (a *Agent) runSingle(ctx context.Context) error {
	tok := a.WaitForToken(ctx)
	if tok == nil {
		a.logger.Printf("[agent] No suitable token found within timeout period (%v). Exiting...", a.opts.Timeout)
		return ctx.Err()
	}

	n, err := a.store.CountOpenTrades(ctx)
	if err != nil {
		a.queue.Done(tok.Mint)
		return fmt.Errorf("count open trades: %w", err)
	}
	if n >= a.opts.MaxOpenTrades {
		a.queue.Done(tok.Mint)
		observability.RecordQueueDrop(DropCap)
		a.logger.Printf("[agent] Skipping token %s - Maximum number of %d trades reached", tok.Symbol, a.opts.MaxOpenTrades)
		return nil
	}

	id := newTradeID()
	a.tasks.Go(ctx, id, func(ctx context.Context) { a.handleToken(ctx, tok, id) })
	a.stopTasks(ctx)
	a.logger.Printf("[agent] Finished processing single token. Exiting...")
	return ctx.Err()
}

// WaitForToken listens until one unseen token arrives or the configured
// timeout elapses, then stops the listener. The returned token is marked in
// flight. A timeout yields nil.
func (a *Agent) WaitForToken(ctx context.Context) *domain.TokenInfo {
	wctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	found := make(chan *domain.TokenInfo, 1)
	stopped := make(chan struct{})
	var listenErr error
	go func() {
		defer close(stopped)
		listenErr = a.tokens.Listen(wctx, func(_ context.Context, tok *domain.TokenInfo) {
			if !a.queue.Claim(tok) {
				return
			}
			select {
			case found <- tok:
			default:
				a.queue.Done(tok.Mint)
			}
		})
	}()

	a.logger.Printf("[agent] Waiting for a suitable token (timeout: %v)...", a.opts.Timeout)
	var tok *domain.TokenInfo
	select {
	case tok = <-found:
	case <-wctx.Done():
		if ctx.Err() == nil {
			a.logger.Printf("[agent] Timed out after waiting %v for a token", a.opts.Timeout)
		}
	case <-stopped:
	}
	cancel()
	<-stopped

	if listenErr != nil {
		a.logger.Printf("[agent] Token listening stopped due to error: %v", listenErr)
	}
	if tok == nil {
		select {
		case tok = <-found:
		default:
			return nil
		}
	}
	a.logger.Printf("[agent] Found token: %s (%s)", tok.Symbol, tok.Mint)
	return tok
}

func (a *Agent) runContinuous(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := a.tokens.Listen(gctx, func(_ context.Context, tok *domain.TokenInfo) {
			if a.queue.Push(tok) {
				a.logger.Printf("[agent] Queued new token: %s (%s)", tok.Symbol, tok.Mint)
			}
		})
		if err != nil {
			return fmt.Errorf("listener: %w", err)
		}
		return gctx.Err()
	})

	// Pipelines hang off ctx, not gctx: a dead listener must not abandon
	// open positions.
	g.Go(func() error {
		a.consume(gctx, ctx)
		return nil
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Printf("[agent] Token listening stopped due to error: %v", err)
	}

	a.stopTasks(ctx)
	return err
}

// stopTasks awaits the running pipelines. Once ctx has ended they are
// cancelled first, so monitors leave their positions open and return.
// A listener failure alone lets them run to their exit.
func (a *Agent) stopTasks(ctx context.Context) {
	active := a.tasks.Active()
	if ctx.Err() != nil {
		a.tasks.CancelAll()
		if len(active) > 0 {
			a.logger.Printf("[agent] Cancelling %d in-flight trades", len(active))
		}
	} else if len(active) > 0 {
		a.logger.Printf("[agent] Waiting for %d in-flight trades", len(active))
	}
	a.tasks.Wait()
}

// consume dequeues tokens until ctx ends and spawns a pipeline for each one
// inside the age window.
func (a *Agent) consume(ctx, taskCtx context.Context) {
	for {
		tok, age, err := a.queue.Next(ctx)
		if err != nil {
			a.logger.Printf("[agent] Token queue processor was cancelled")
			return
		}
		if !AgeInRange(age, a.opts.MinAge, a.opts.MaxAge) {
			observability.RecordQueueDrop(DropAge)
			a.logger.Printf("[agent] Skipping token %s - Age %v not in range [%v, %v]", tok.Symbol, age, a.opts.MinAge, a.opts.MaxAge)
			continue
		}
		if !a.queue.Start(tok.Mint) {
			continue
		}
		id := newTradeID()
		a.logger.Printf("[agent] Processing fresh token %s (Age: %.1fs)", tok.Symbol, age.Seconds())
		a.tasks.Go(taskCtx, id, func(ctx context.Context) { a.handleToken(ctx, tok, id) })
	}
}

// admit adds id to the open trade set unless the cap is reached.
func (a *Agent) admit(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.live) >= a.opts.MaxOpenTrades {
		return false
	}
	a.live[id] = struct{}{}
	observability.SetOpenPositions(len(a.live))
	return true
}

func (a *Agent) release(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.live, id)
	observability.SetOpenPositions(len(a.live))
}

// OpenTrades is the number of pipelines holding a slot.
func (a *Agent) OpenTrades() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

func (a *Agent) markBought(mint string) {
	a.mu.Lock()
	a.bought[mint] = struct{}{}
	a.mu.Unlock()
}

// BoughtMints lists the mints bought this session, sorted.
func (a *Agent) BoughtMints() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	mints := make([]string, 0, len(a.bought))
	for m := range a.bought {
		mints = append(mints, m)
	}
	sort.Strings(mints)
	return mints
}

func (a *Agent) markClosed(o stats.Outcome) {
	a.mu.Lock()
	a.closed = append(a.closed, o)
	a.mu.Unlock()
}

// Summary aggregates the trades closed so far this session.
func (a *Agent) Summary() stats.Summary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return stats.Summarize(a.closed)
}

// teardown runs post-session cleanup, forgets stale first-seen records and
// closes the chain client.
func (a *Agent) teardown(ctx context.Context) {
	if mints := a.BoughtMints(); len(mints) > 0 {
		a.logger.Printf("[agent] Cleaning up %d traded token(s)...", len(mints))
		a.cleanup.PostSession(ctx, mints)
	}

	if n := a.queue.Prune(); n > 0 {
		a.logger.Printf("[agent] Dropped %d stale token timestamps", n)
	}
	for _, c := range a.caches {
		if n := c.Prune(); n > 0 {
			a.logger.Printf("[agent] Dropped %d stale cache entries", n)
		}
	}

	if s := a.Summary(); s.Trades > 0 {
		a.logger.Printf("[agent] Session: %d closed trade(s), %d win(s), win rate %.2f, profit %.9f SOL, median ratio %.2f%%, max drawdown %.9f SOL",
			s.Trades, s.Wins, s.WinRate, s.TotalProfit, s.RatioMedian, s.MaxDrawdown)
	}

	a.logWallet(ctx)

	if a.chain != nil {
		if err := a.chain.Close(); err != nil {
			a.logger.Printf("[agent] Failed to close chain client: %v", err)
		}
	}
}

func (a *Agent) logWallet(ctx context.Context) {
	balance, err := a.store.GetWalletBalance(ctx)
	if err != nil {
		a.logger.Printf("[agent] Failed to read wallet balance: %v", err)
		return
	}
	if a.oracle == nil {
		a.logger.Printf("[agent] Wallet balance: %s SOL", balance.StringFixed(9))
		return
	}
	usd, err := a.oracle.SOLUSD(ctx)
	if err != nil {
		a.logger.Printf("[agent] Wallet balance: %s SOL (SOL/USD unavailable: %v)", balance.StringFixed(9), err)
		return
	}
	value := balance.Mul(decimal.NewFromFloat(usd))
	a.logger.Printf("[agent] Wallet balance: %s SOL (~$%s)", balance.StringFixed(9), value.StringFixed(2))
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
