package domain

// PriceSample is one bonding-curve price read while a position is monitored.
// Corresponds to the price_samples table in ClickHouse.
type PriceSample struct {
	TradeUUID   string
	Mint        string
	TimestampMs int64
	Price       float64 // SOL per token
	Variation   float64 // % from entry
}
