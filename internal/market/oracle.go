package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
)

// Oracle defaults.
const (
	DefaultOracleURL = "https://api.coingecko.com/api/v3/simple/price?ids=solana&vs_currencies=usd"
	DefaultOracleTTL = 60 * time.Second
)

// ErrNoPrice is returned when no price was ever fetched.
var ErrNoPrice = errors.New("no SOL price available")

// PriceCache holds one value with its fetch time.
type PriceCache struct {
	Value     float64
	FetchedAt time.Time
	TTL       time.Duration
}

// Fresh reports whether the cached value is usable at now.
func (p *PriceCache) Fresh(now time.Time) bool {
	return !p.FetchedAt.IsZero() && now.Sub(p.FetchedAt) <= p.TTL
}

// Oracle returns the SOL/USD price, refetching at most once per TTL.
// A failed refresh keeps serving the last known value.
type Oracle struct {
	url    string
	client *http.Client
	logger *log.Logger

	mu    sync.Mutex
	cache PriceCache

	// now is replaceable in tests.
	now func() time.Time
}

// NewOracle creates an oracle against url (DefaultOracleURL if empty).
func NewOracle(url string, ttl time.Duration, client *http.Client, logger *log.Logger) *Oracle {
	if url == "" {
		url = DefaultOracleURL
	}
	if ttl <= 0 {
		ttl = DefaultOracleTTL
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Oracle{
		url:    url,
		client: client,
		logger: logger,
		cache:  PriceCache{TTL: ttl},
		now:    time.Now,
	}
}

// SOLUSD returns the cached price, refreshing it when stale.
func (o *Oracle) SOLUSD(ctx context.Context) (float64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.now()
	if o.cache.Fresh(now) {
		return o.cache.Value, nil
	}

	price, err := o.fetch(ctx)
	if err != nil {
		o.logger.Printf("[market] Failed to fetch SOL price: %v", err)
		if o.cache.FetchedAt.IsZero() {
			return 0, ErrNoPrice
		}
		return o.cache.Value, nil
	}

	o.cache.Value = price
	o.cache.FetchedAt = now
	return price, nil
}

func (o *Oracle) fetch(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("http status %d", resp.StatusCode)
	}

	var body struct {
		Solana struct {
			USD float64 `json:"usd"`
		} `json:"solana"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	if body.Solana.USD <= 0 {
		return 0, errors.New("missing solana.usd")
	}
	return body.Solana.USD, nil
}
