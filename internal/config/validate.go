package config

import (
	"errors"
	"fmt"
	"strings"

	"pump-agent/internal/domain"
)

// Validate checks every field and returns all failures joined.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(c.Main.BotName) == "" {
		add("main: botname must not be empty")
	}
	if c.Main.MaxOpenTrades < 1 {
		add("main: maxopentrades must be >= 1, got %d", c.Main.MaxOpenTrades)
	}
	if c.Main.Sandbox && c.Main.InitBalance < 0 {
		add("main: initbalance must be >= 0")
	}

	if c.Endpoint.RPC == "" {
		add("endpoint: rpc must not be empty")
	}
	if c.Endpoint.WSS == "" {
		add("endpoint: wss must not be empty")
	}
	if !c.Main.Sandbox && c.Wallet.PrivateKey == "" {
		add("wallet: privatekey is required outside sandbox mode")
	}

	switch c.Monitoring.Chain {
	case ChainLogs, ChainBlocks:
	default:
		add("monitoring: chain must be %q or %q, got %q", ChainLogs, ChainBlocks, c.Monitoring.Chain)
	}
	if c.Monitoring.Interval.Duration < 0 {
		add("monitoring: interval must be >= 0")
	}

	t := c.Timing
	if t.TokenMinAge.Duration < 0 || t.TokenMaxAge.Duration < t.TokenMinAge.Duration {
		add("timing: need 0 <= tokenminage <= tokenmaxage")
	}
	if t.TokenTimeout.Duration <= 0 {
		add("timing: tokentimeout must be positive")
	}
	if t.TokenIdleShort.Duration <= 0 {
		add("timing: tokenidleshort must be positive")
	}

	tr := c.Trade
	if tr.BuyAmount <= 0 {
		add("trade: buyamount must be positive")
	}
	if tr.BuySlippage < 0 {
		add("trade: buyslippage must be >= 0")
	}
	if tr.SellSlippage < 0 || tr.SellSlippage >= 1 {
		add("trade: sellslippage must be in [0, 1)")
	}
	if tr.FastMode && tr.FastTokens == 0 {
		add("trade: fasttokens must be positive in fast mode")
	}
	if tr.StopLoss <= 0 || tr.TakeProfit <= 0 {
		add("trade: stoploss and takeprofit must be positive")
	}
	if tr.MonitorInterval.Duration <= 0 {
		add("trade: monitorinterval must be positive")
	}
	switch tr.MonitorFailPolicy {
	case MonitorFailOpen, MonitorFailSell:
	default:
		add("trade: monitorfailpolicy must be %q or %q, got %q", MonitorFailOpen, MonitorFailSell, tr.MonitorFailPolicy)
	}

	if c.Priority.Extra < 0 {
		add("priority: extra must be >= 0")
	}
	if (c.Priority.Dynamic || c.Priority.Fixed) && c.Priority.HardCap == 0 {
		add("priority: hardcap must be positive when a fee strategy is enabled")
	}

	if c.Retries.Attempts < 1 {
		add("retries: attempts must be >= 1")
	}

	if !domain.CleanupMode(c.Wipe.Clean).Valid() {
		add("wipe: unknown clean mode %q", c.Wipe.Clean)
	}

	r := c.Rules
	if r.MaxLiquidity <= r.MinLiquidity {
		add("rules: maxliquidity must exceed minliquidity")
	}
	if r.MaxMarketCap <= r.MinMarketCap {
		add("rules: maxmarketcap must exceed minmarketcap")
	}
	if r.MinHolders < 0 || (r.MinHolders > 0 && r.MaxHolders < r.MinHolders) {
		add("rules: need 0 <= minholders <= maxholders")
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Storage.PostgresDSN == "" {
			add("storage: postgres_dsn is required for the postgres driver")
		}
	default:
		add("storage: unknown driver %q", c.Storage.Driver)
	}

	return errors.Join(errs...)
}
