// Package market provides off-chain market data for newly detected tokens:
// pump.fun snapshots, holder lookups and a SOL/USD price oracle.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Default pump.fun endpoints.
const (
	DefaultSwapAPI     = "https://swap-api.pump.fun"
	DefaultFrontendAPI = "https://frontend-api-v3.pump.fun"
	DefaultHTTPTimeout = 5 * time.Second

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:124.0) Gecko/20100101 Firefox/124.0"
)

// PumpClient queries pump.fun's public HTTP APIs.
type PumpClient struct {
	swapAPI     string
	frontendAPI string
	client      *http.Client
}

// PumpOption configures PumpClient.
type PumpOption func(*PumpClient)

// WithSwapAPI overrides the candles API base URL.
func WithSwapAPI(base string) PumpOption {
	return func(c *PumpClient) { c.swapAPI = base }
}

// WithFrontendAPI overrides the coin and holders API base URL.
func WithFrontendAPI(base string) PumpOption {
	return func(c *PumpClient) { c.frontendAPI = base }
}

// WithPumpHTTPClient sets a custom http.Client.
func WithPumpHTTPClient(client *http.Client) PumpOption {
	return func(c *PumpClient) { c.client = client }
}

// NewPumpClient creates a PumpClient with the public endpoints.
func NewPumpClient(opts ...PumpOption) *PumpClient {
	c := &PumpClient{
		swapAPI:     DefaultSwapAPI,
		frontendAPI: DefaultFrontendAPI,
		client:      &http.Client{Timeout: DefaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Candle is the latest one-second candle of a token.
type Candle struct {
	Close  float64
	Volume float64
}

// Coin is pump.fun's description of a token.
type Coin struct {
	Mint               string  `json:"mint"`
	Name               string  `json:"name"`
	Symbol             string  `json:"symbol"`
	Creator            string  `json:"creator"`
	CreatedTimestamp   int64   `json:"created_timestamp"` // ms
	RealSolReserves    uint64  `json:"real_sol_reserves"` // lamports
	MarketCap          float64 `json:"market_cap"`        // SOL
	USDMarketCap       float64 `json:"usd_market_cap"`
	LastTradeTimestamp int64   `json:"last_trade_timestamp"` // ms
	Twitter            string  `json:"twitter"`
	Telegram           string  `json:"telegram"`
	Website            string  `json:"website"`
}

// flexFloat decodes a JSON number or numeric string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// LatestCandle returns the most recent candle, or nil when the token has none.
func (c *PumpClient) LatestCandle(ctx context.Context, mint string) (*Candle, error) {
	u := fmt.Sprintf("%s/v1/coins/%s/candles?interval=1s&limit=1&currency=USD", c.swapAPI, url.PathEscape(mint))

	var candles []struct {
		Close  flexFloat `json:"close"`
		Volume flexFloat `json:"volume"`
	}
	if err := c.getJSON(ctx, u, &candles); err != nil {
		return nil, fmt.Errorf("candles %s: %w", mint, err)
	}
	if len(candles) == 0 {
		return nil, nil
	}
	return &Candle{Close: float64(candles[0].Close), Volume: float64(candles[0].Volume)}, nil
}

// Coin returns token metadata and reserves.
func (c *PumpClient) Coin(ctx context.Context, mint string) (*Coin, error) {
	u := fmt.Sprintf("%s/coins/%s", c.frontendAPI, url.PathEscape(mint))

	var coin Coin
	if err := c.getJSON(ctx, u, &coin); err != nil {
		return nil, fmt.Errorf("coin %s: %w", mint, err)
	}
	return &coin, nil
}

// TopHolders returns the addresses of a token's largest holders.
func (c *PumpClient) TopHolders(ctx context.Context, mint string) ([]string, error) {
	u := fmt.Sprintf("%s/coins/top-holders/%s", c.frontendAPI, url.PathEscape(mint))

	var resp struct {
		TopHolders struct {
			Value []struct {
				Address string `json:"address"`
			} `json:"value"`
		} `json:"topHolders"`
	}
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("top holders %s: %w", mint, err)
	}

	out := make([]string, 0, len(resp.TopHolders.Value))
	for _, h := range resp.TopHolders.Value {
		if h.Address != "" {
			out = append(out, h.Address)
		}
	}
	return out, nil
}

func (c *PumpClient) getJSON(ctx context.Context, u string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("http status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
