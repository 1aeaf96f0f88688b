package listener

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pump-agent/internal/config"
	"pump-agent/internal/domain"
	"pump-agent/internal/observability"
)

// Enricher returns off-chain market data for a mint, or nil.
type Enricher interface {
	Enrich(ctx context.Context, mint string) *domain.MarketSnapshot
}

// HolderSource looks up token holders and their SOL balances. Both calls are
// best-effort.
type HolderSource interface {
	TopHolders(ctx context.Context, mint string) []string
	BalanceOf(ctx context.Context, address string) (decimal.Decimal, bool)
}

// Filter rule names, used in logs and metrics.
const (
	RuleLiquidity     = "liquidity"
	RuleMarketCap     = "marketcap"
	RuleAge           = "age"
	RuleMatchString   = "matchstring"
	RuleMatchAddress  = "matchaddress"
	RuleHolders       = "holders"
	RuleHolderBalance = "holders_balance"
	RuleCancelled     = "cancelled"
)

// FilterOptions are the thresholds of the filter pipeline.
type FilterOptions struct {
	Settle       time.Duration
	Continuous   bool
	MinAge       time.Duration
	MaxAge       time.Duration
	MatchString  string
	MatchAddress string
	Rules        config.RulesConfig
}

// FilterOptionsFromConfig maps the configuration groups the filter reads.
func FilterOptionsFromConfig(cfg *config.Config) FilterOptions {
	return FilterOptions{
		Settle:       cfg.Monitoring.Interval.Duration,
		Continuous:   cfg.Filters.NoStopping,
		MinAge:       cfg.Timing.TokenMinAge.Duration,
		MaxAge:       cfg.Timing.TokenMaxAge.Duration,
		MatchString:  cfg.Filters.MatchString,
		MatchAddress: cfg.Filters.MatchAddress,
		Rules:        cfg.Rules,
	}
}

// Filter runs the post-decode checks in order and stops at the first
// failing rule.
type Filter struct {
	opts     FilterOptions
	enricher Enricher
	holders  HolderSource
	logger   *log.Logger
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewFilter creates a Filter. enricher and holders may be nil, which skips
// the market and holder rules.
func NewFilter(opts FilterOptions, enricher Enricher, holders HolderSource, logger *log.Logger) *Filter {
	if logger == nil {
		logger = log.Default()
	}
	return &Filter{
		opts:     opts,
		enricher: enricher,
		holders:  holders,
		logger:   logger,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// Check enriches tok in place and applies every rule. It returns the name of
// the rule that rejected the token, or "" if it passed.
func (f *Filter) Check(ctx context.Context, tok *domain.TokenInfo) string {
	if f.opts.Settle > 0 {
		if err := f.sleep(ctx, f.opts.Settle); err != nil {
			return RuleCancelled
		}
	}

	if f.enricher != nil {
		tok.Enrich(f.enricher.Enrich(ctx, tok.Mint))
	}

	if tok.Enriched() {
		r := f.opts.Rules
		if liq := *tok.Liquidity; liq <= r.MinLiquidity || liq >= r.MaxLiquidity {
			return f.drop(tok, RuleLiquidity, "liquidity %.4f SOL outside (%.4f, %.4f)", liq, r.MinLiquidity, r.MaxLiquidity)
		}
		if mcap := *tok.MarketCap; mcap <= r.MinMarketCap || mcap >= r.MaxMarketCap {
			return f.drop(tok, RuleMarketCap, "market cap %.4f outside (%.4f, %.4f)", mcap, r.MinMarketCap, r.MaxMarketCap)
		}
		if f.opts.Continuous {
			age := f.now().Sub(time.UnixMilli(*tok.CreatedAt))
			if age < f.opts.MinAge || age > f.opts.MaxAge {
				return f.drop(tok, RuleAge, "age %v outside [%v, %v]", age.Round(time.Millisecond), f.opts.MinAge, f.opts.MaxAge)
			}
		}
	}

	if m := f.opts.MatchString; m != "" {
		needle := strings.ToLower(m)
		if !strings.Contains(strings.ToLower(tok.Name), needle) && !strings.Contains(strings.ToLower(tok.Symbol), needle) {
			return f.drop(tok, RuleMatchString, "name %q and symbol %q do not match %q", tok.Name, tok.Symbol, m)
		}
	}

	if a := f.opts.MatchAddress; a != "" && tok.User != a {
		return f.drop(tok, RuleMatchAddress, "creator %s is not %s", tok.User, a)
	}

	if f.opts.Rules.MinHolders > 0 && f.holders != nil {
		if rule := f.checkHolders(ctx, tok); rule != "" {
			return rule
		}
	}
	return ""
}

func (f *Filter) checkHolders(ctx context.Context, tok *domain.TokenInfo) string {
	r := f.opts.Rules
	holders := f.holders.TopHolders(ctx, tok.Mint)
	if n := len(holders); n < r.MinHolders || n > r.MaxHolders {
		return f.drop(tok, RuleHolders, "%d holders outside [%d, %d]", n, r.MinHolders, r.MaxHolders)
	}
	if !r.HoldersCheck {
		return ""
	}
	floor := decimal.NewFromFloat(r.HoldersBalance)
	for _, h := range holders {
		bal, ok := f.holders.BalanceOf(ctx, h)
		if !ok {
			continue
		}
		if bal.LessThan(floor) {
			return f.drop(tok, RuleHolderBalance, "holder %s has %s SOL, below %s", h, bal, floor)
		}
	}
	return ""
}

func (f *Filter) drop(tok *domain.TokenInfo, rule, format string, args ...any) string {
	f.logger.Printf("[listener] Skipping %s (%s): "+format, append([]any{tok.Symbol, tok.Mint}, args...)...)
	observability.RecordTokenDropped(rule)
	return rule
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
