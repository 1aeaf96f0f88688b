package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PUMPAGENT_"

// Load reads the file at path (TOML or YAML by extension) on top of the
// defaults, loads an optional .env file, applies PUMPAGENT_* overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Missing .env is fine.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	// Main
	setStr(&cfg.Main.BotName, "BOT_NAME")
	setBool(&cfg.Main.Sandbox, "SANDBOX")
	setInt(&cfg.Main.MaxOpenTrades, "MAX_OPEN_TRADES")
	setFloat64(&cfg.Main.InitBalance, "INIT_BALANCE")

	// Endpoints and wallet
	setStr(&cfg.Endpoint.RPC, "RPC_URL")
	setStr(&cfg.Endpoint.WSS, "WSS_URL")
	setStr(&cfg.Wallet.PrivateKey, "WALLET_PRIVATE_KEY")

	// Monitoring
	setStr(&cfg.Monitoring.Chain, "MONITORING_CHAIN")

	// Trade
	setFloat64(&cfg.Trade.BuyAmount, "TRADE_BUY_AMOUNT")
	setStr(&cfg.Trade.MonitorFailPolicy, "TRADE_MONITOR_FAIL_POLICY")

	// Storage
	setStr(&cfg.Storage.Driver, "STORAGE_DRIVER")
	setStr(&cfg.Storage.PostgresDSN, "POSTGRES_DSN")
	setStr(&cfg.Storage.ClickHouseDSN, "CLICKHOUSE_DSN")
	setStr(&cfg.Storage.RedisAddr, "REDIS_ADDR")
	setStr(&cfg.Storage.RedisPassword, "REDIS_PASSWORD")
	setBool(&cfg.Storage.Migrate, "STORAGE_MIGRATE")

	setStr(&cfg.Metrics.Addr, "METRICS_ADDR")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
