package domain

// TokenInfo is a newly created token as seen by a listener.
// Identity fields are fixed at discovery; market fields are filled at most
// once, by Enrich.
type TokenInfo struct {
	Name                   string
	Symbol                 string
	URI                    string
	Mint                   string
	BondingCurve           string
	AssociatedBondingCurve string // base curve: the curve's token account
	User                   string // creator

	DetectedAt int64 // listener receive time (ms)

	// Market fields, nil until enriched
	CreatedAt *int64   // on-chain creation time (ms)
	Price     *float64 // SOL per token
	Liquidity *float64 // SOL in the curve
	Volume    *float64
	MarketCap *float64
}

// Enriched reports whether market fields have been set.
func (t *TokenInfo) Enriched() bool {
	return t.CreatedAt != nil
}

// Enrich copies market fields from s. It is a no-op returning false when the
// token was already enriched.
func (t *TokenInfo) Enrich(s *MarketSnapshot) bool {
	if t.Enriched() || s == nil {
		return false
	}
	created, price, liquidity, volume, mcap := s.CreatedAt, s.Price, s.Liquidity, s.Volume, s.MarketCap
	t.CreatedAt = &created
	t.Price = &price
	t.Liquidity = &liquidity
	t.Volume = &volume
	t.MarketCap = &mcap
	return true
}

// MarketSnapshot is off-chain market data for a mint.
// Corresponds to the tokens table in PostgreSQL.
type MarketSnapshot struct {
	Mint        string
	Name        string
	Symbol      string
	Creator     string
	CreatedAt   int64   // token creation time (ms)
	Price       float64 // last candle close
	Volume      float64 // last candle volume
	Liquidity   float64 // real SOL reserves (SOL)
	MarketCap   float64
	LastTradeAt int64 // ms, 0 if never traded
	Twitter     string
	Telegram    string
	Website     string
	FetchedAt   int64 // ms
}
