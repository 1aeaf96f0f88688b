// Package config defines the agent's typed configuration record and its
// defaults, file loading, environment overrides and validation.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration record. File keys follow the agent's
// historical flat lowercase names (tokenidleinit, buyslippage, ...).
type Config struct {
	Main       MainConfig       `toml:"main" yaml:"main"`
	Endpoint   EndpointConfig   `toml:"endpoint" yaml:"endpoint"`
	Wallet     WalletConfig     `toml:"wallet" yaml:"wallet"`
	Monitoring MonitoringConfig `toml:"monitoring" yaml:"monitoring"`
	Filters    FiltersConfig    `toml:"filters" yaml:"filters"`
	Timing     TimingConfig     `toml:"timing" yaml:"timing"`
	Trade      TradeConfig      `toml:"trade" yaml:"trade"`
	Priority   PriorityConfig   `toml:"priority" yaml:"priority"`
	Retries    RetriesConfig    `toml:"retries" yaml:"retries"`
	Wipe       WipeConfig       `toml:"wipe" yaml:"wipe"`
	Rules      RulesConfig      `toml:"rules" yaml:"rules"`
	Storage    StorageConfig    `toml:"storage" yaml:"storage"`
	Metrics    MetricsConfig    `toml:"metrics" yaml:"metrics"`
}

// MainConfig identifies the bot and its trading mode.
type MainConfig struct {
	BotName       string  `toml:"botname" yaml:"botname"`
	Sandbox       bool    `toml:"sandbox" yaml:"sandbox"`
	MaxOpenTrades int     `toml:"maxopentrades" yaml:"maxopentrades"`
	InitBalance   float64 `toml:"initbalance" yaml:"initbalance"` // SOL, sandbox only
}

// EndpointConfig holds node endpoints.
type EndpointConfig struct {
	RPC string `toml:"rpc" yaml:"rpc"`
	WSS string `toml:"wss" yaml:"wss"`
}

// WalletConfig holds the signing key (base58, 64 bytes).
type WalletConfig struct {
	PrivateKey string `toml:"privatekey" yaml:"privatekey"`
}

// Listener chains.
const (
	ChainLogs   = "logs"
	ChainBlocks = "blocks"
)

// MonitoringConfig selects the listener variant.
type MonitoringConfig struct {
	Chain    string   `toml:"chain" yaml:"chain"`
	Interval Duration `toml:"interval" yaml:"interval"` // settle delay before enrichment
}

// FiltersConfig holds inclusion filters and mode switches.
type FiltersConfig struct {
	MatchString  string `toml:"matchstring" yaml:"matchstring"`
	MatchAddress string `toml:"matchaddress" yaml:"matchaddress"`
	NoShorting   bool   `toml:"noshorting" yaml:"noshorting"` // buy only, never monitor or sell
	NoStopping   bool   `toml:"nostopping" yaml:"nostopping"` // continuous mode
}

// TimingConfig holds delays and windows. Plain numbers are seconds.
type TimingConfig struct {
	TokenIdleInit  Duration `toml:"tokenidleinit" yaml:"tokenidleinit"`   // pre-buy settle delay
	TokenIdleShort Duration `toml:"tokenidleshort" yaml:"tokenidleshort"` // idle timeout while monitoring
	TokenIdleFresh Duration `toml:"tokenidlefresh" yaml:"tokenidlefresh"` // pause after a continuous-mode trade
	TokenMinAge    Duration `toml:"tokenminage" yaml:"tokenminage"`
	TokenMaxAge    Duration `toml:"tokenmaxage" yaml:"tokenmaxage"`
	TokenTimeout   Duration `toml:"tokentimeout" yaml:"tokentimeout"` // single-shot wait
}

// Monitor failure policies.
const (
	MonitorFailOpen = "open"
	MonitorFailSell = "sell"
)

// TradeConfig holds sizing, slippage and exit thresholds.
type TradeConfig struct {
	BuyAmount         float64  `toml:"buyamount" yaml:"buyamount"`       // SOL
	BuySlippage       float64  `toml:"buyslippage" yaml:"buyslippage"`   // fraction
	SellSlippage      float64  `toml:"sellslippage" yaml:"sellslippage"` // fraction
	FastMode          bool     `toml:"fastmode" yaml:"fastmode"`
	FastTokens        uint64   `toml:"fasttokens" yaml:"fasttokens"` // whole tokens bought in fast mode
	StopLoss          float64  `toml:"stoploss" yaml:"stoploss"`     // percent
	TakeProfit        float64  `toml:"takeprofit" yaml:"takeprofit"` // percent
	MonitorInterval   Duration `toml:"monitorinterval" yaml:"monitorinterval"`
	MonitorFailPolicy string   `toml:"monitorfailpolicy" yaml:"monitorfailpolicy"`
}

// PriorityConfig selects the priority fee strategy.
type PriorityConfig struct {
	Dynamic  bool    `toml:"dynamic" yaml:"dynamic"`
	Fixed    bool    `toml:"fixed" yaml:"fixed"`
	Lamports uint64  `toml:"lamports" yaml:"lamports"` // fixed fee, micro-lamports per CU
	Extra    float64 `toml:"extra" yaml:"extra"`       // fraction added on top
	HardCap  uint64  `toml:"hardcap" yaml:"hardcap"`
}

// RetriesConfig is the send retry budget.
type RetriesConfig struct {
	Attempts int `toml:"attempts" yaml:"attempts"`
}

// WipeConfig is the cleanup policy.
type WipeConfig struct {
	Clean string `toml:"clean" yaml:"clean"` // on_fail | after_sell | post_session | disabled
	Burn  bool   `toml:"burn" yaml:"burn"`   // burn remaining tokens before closing
	Rate  bool   `toml:"rate" yaml:"rate"`   // pay priority fee on cleanup transactions
}

// RulesConfig holds quality thresholds. Bounds are exclusive.
type RulesConfig struct {
	MinMarketCap   float64 `toml:"minmarketcap" yaml:"minmarketcap"`
	MaxMarketCap   float64 `toml:"maxmarketcap" yaml:"maxmarketcap"`
	MinLiquidity   float64 `toml:"minliquidity" yaml:"minliquidity"` // SOL
	MaxLiquidity   float64 `toml:"maxliquidity" yaml:"maxliquidity"`
	MinHolders     int     `toml:"minholders" yaml:"minholders"` // 0 disables holder checks
	MaxHolders     int     `toml:"maxholders" yaml:"maxholders"`
	HoldersCheck   bool    `toml:"holderscheck" yaml:"holderscheck"`
	HoldersBalance float64 `toml:"holdersbalance" yaml:"holdersbalance"` // SOL floor per holder
}

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// StorageConfig selects persistence backends.
type StorageConfig struct {
	Driver        string `toml:"driver" yaml:"driver"`
	PostgresDSN   string `toml:"postgres_dsn" yaml:"postgres_dsn"`
	ClickHouseDSN string `toml:"clickhouse_dsn" yaml:"clickhouse_dsn"` // optional trade journal
	RedisAddr     string `toml:"redis_addr" yaml:"redis_addr"`         // optional snapshot cache
	RedisPassword string `toml:"redis_password" yaml:"redis_password"`
	RedisDB       int    `toml:"redis_db" yaml:"redis_db"`
	Migrate       bool   `toml:"migrate" yaml:"migrate"`
}

// MetricsConfig configures the metrics listener. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `toml:"addr" yaml:"addr"`
}

// Duration is a time.Duration decoded from either a number of seconds or a
// Go duration string ("500ms", "2m").
type Duration struct {
	time.Duration
}

// Seconds builds a Duration from fractional seconds.
func Seconds(s float64) Duration {
	return Duration{time.Duration(s * float64(time.Second))}
}

func parseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Seconds(f), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return Duration{}, fmt.Errorf("invalid duration %q", s)
	}
	return Duration{d}, nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := parseDuration(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// UnmarshalTOML accepts TOML integers, floats and strings.
func (d *Duration) UnmarshalTOML(v any) error {
	switch x := v.(type) {
	case int64:
		*d = Seconds(float64(x))
	case float64:
		*d = Seconds(x)
	case string:
		return d.UnmarshalText([]byte(x))
	default:
		return fmt.Errorf("invalid duration %v", v)
	}
	return nil
}

// UnmarshalYAML accepts YAML scalars.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return errors.New("duration must be a scalar")
	}
	return d.UnmarshalText([]byte(node.Value))
}
