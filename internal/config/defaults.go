package config

import "time"

// Defaults returns a Config populated with the agent's built-in defaults.
func Defaults() Config {
	return Config{
		Main: MainConfig{
			BotName:       "pump-agent",
			Sandbox:       true,
			MaxOpenTrades: 5,
			InitBalance:   10,
		},
		Endpoint: EndpointConfig{
			RPC: "https://api.mainnet-beta.solana.com",
			WSS: "wss://api.mainnet-beta.solana.com",
		},
		Monitoring: MonitoringConfig{
			Chain:    ChainLogs,
			Interval: Seconds(15),
		},
		Timing: TimingConfig{
			TokenIdleInit:  Seconds(15),
			TokenIdleShort: Seconds(15),
			TokenIdleFresh: Seconds(15),
			TokenMinAge:    Duration{time.Millisecond},
			TokenMaxAge:    Seconds(60),
			TokenTimeout:   Seconds(30),
		},
		Trade: TradeConfig{
			BuyAmount:         0.01,
			BuySlippage:       0.05,
			SellSlippage:      0.25,
			FastTokens:        15,
			StopLoss:          10,
			TakeProfit:        20,
			MonitorInterval:   Seconds(5),
			MonitorFailPolicy: MonitorFailOpen,
		},
		Priority: PriorityConfig{
			Fixed:    true,
			Lamports: 200_000,
			HardCap:  200_000,
		},
		Retries: RetriesConfig{
			Attempts: 3,
		},
		Wipe: WipeConfig{
			Clean: "disabled",
		},
		Rules: RulesConfig{
			MinMarketCap: 2,
			MaxMarketCap: 5000,
			MinLiquidity: 2,
			MaxLiquidity: 500,
			MaxHolders:   50,
		},
		Storage: StorageConfig{
			Driver: DriverMemory,
		},
	}
}
