package market

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pump-agent/internal/storage/memory"
)

var quietLogger = log.New(io.Discard, "", 0)

// pumpServer serves fake candles, coin and holder endpoints and counts hits.
type pumpServer struct {
	*httptest.Server
	candleHits atomic.Int32
	coinHits   atomic.Int32
	coinBody   string
}

func newPumpServer(t *testing.T) *pumpServer {
	t.Helper()
	s := &pumpServer{
		coinBody: `{
			"mint": "MintA", "name": "Alpha", "symbol": "ALP", "creator": "Creator1",
			"created_timestamp": 1700000000000, "real_sol_reserves": 2500000000,
			"market_cap": 31.5, "usd_market_cap": 4725, "last_trade_timestamp": 1700000005000,
			"twitter": "https://x.com/alpha"
		}`,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/coins/", func(w http.ResponseWriter, r *http.Request) {
		s.candleHits.Add(1)
		assert.Equal(t, "1s", r.URL.Query().Get("interval"))
		if strings.Contains(r.URL.Path, "Empty") {
			fmt.Fprint(w, `[]`)
			return
		}
		fmt.Fprint(w, `[{"close": "0.0000315", "volume": 12.5}]`)
	})
	mux.HandleFunc("/coins/top-holders/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "Broken") {
			http.Error(w, "nope", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"topHolders": {"value": [{"address": "H1"}, {"address": "H2"}, {"amount": 3}]}}`)
	})
	mux.HandleFunc("/coins/", func(w http.ResponseWriter, r *http.Request) {
		s.coinHits.Add(1)
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		fmt.Fprint(w, s.coinBody)
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *pumpServer) client() *PumpClient {
	return NewPumpClient(WithSwapAPI(s.URL), WithFrontendAPI(s.URL))
}

func TestPumpClientLatestCandle(t *testing.T) {
	srv := newPumpServer(t)
	c := srv.client()

	candle, err := c.LatestCandle(context.Background(), "MintA")
	require.NoError(t, err)
	require.NotNil(t, candle)
	assert.Equal(t, 0.0000315, candle.Close)
	assert.Equal(t, 12.5, candle.Volume)

	candle, err = c.LatestCandle(context.Background(), "MintEmpty")
	require.NoError(t, err)
	assert.Nil(t, candle)
}

func TestPumpClientCoin(t *testing.T) {
	srv := newPumpServer(t)
	coin, err := srv.client().Coin(context.Background(), "MintA")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", coin.Name)
	assert.Equal(t, uint64(2_500_000_000), coin.RealSolReserves)
	assert.Equal(t, int64(1_700_000_000_000), coin.CreatedTimestamp)
}

func TestPumpClientHTTPError(t *testing.T) {
	srv := newPumpServer(t)
	_, err := srv.client().TopHolders(context.Background(), "Broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestEnricherFetchesOnce(t *testing.T) {
	srv := newPumpServer(t)
	store := memory.NewSnapshotStore()
	e := NewEnricher(srv.client(), store, nil, quietLogger)
	e.now = func() time.Time { return time.UnixMilli(1_700_000_009_000) }

	snap := e.Enrich(context.Background(), "MintA")
	require.NotNil(t, snap)
	assert.Equal(t, 2.5, snap.Liquidity)
	assert.Equal(t, 31.5, snap.MarketCap)
	assert.Equal(t, 0.0000315, snap.Price)
	assert.Equal(t, int64(1_700_000_000_000), snap.CreatedAt)
	assert.Equal(t, int64(1_700_000_009_000), snap.FetchedAt)

	again := e.Enrich(context.Background(), "MintA")
	require.NotNil(t, again)
	assert.Equal(t, *snap, *again)
	assert.Equal(t, int32(1), srv.candleHits.Load())
	assert.Equal(t, int32(1), srv.coinHits.Load())
}

func TestEnricherRemembersMisses(t *testing.T) {
	srv := newPumpServer(t)
	e := NewEnricher(srv.client(), memory.NewSnapshotStore(), nil, quietLogger)

	assert.Nil(t, e.Enrich(context.Background(), "MintEmpty"))
	assert.Nil(t, e.Enrich(context.Background(), "MintEmpty"))
	assert.Equal(t, int32(1), srv.candleHits.Load())
}

func TestEnricherForgetsOldMisses(t *testing.T) {
	srv := newPumpServer(t)
	e := NewEnricher(srv.client(), memory.NewSnapshotStore(), nil, quietLogger)
	clock := time.UnixMilli(1_700_000_000_000)
	e.now = func() time.Time { return clock }
	e.lastPrune = clock

	for i := 0; i < 50; i++ {
		assert.Nil(t, e.Enrich(context.Background(), fmt.Sprintf("MintEmpty%d", i)))
	}
	assert.Equal(t, 0, e.Prune(), "fresh misses are kept")
	assert.Len(t, e.attempted, 50)

	clock = clock.Add(MissTTL)
	assert.Equal(t, 50, e.Prune())
	assert.Empty(t, e.attempted)

	// A forgotten miss is looked up again.
	hits := srv.candleHits.Load()
	assert.Nil(t, e.Enrich(context.Background(), "MintEmpty0"))
	assert.Equal(t, hits+1, srv.candleHits.Load())
}

func TestEnricherPrunesWhileRunning(t *testing.T) {
	srv := newPumpServer(t)
	e := NewEnricher(srv.client(), memory.NewSnapshotStore(), nil, quietLogger)
	clock := time.UnixMilli(1_700_000_000_000)
	e.now = func() time.Time { return clock }
	e.lastPrune = clock

	e.Enrich(context.Background(), "MintEmptyOld")
	clock = clock.Add(MissTTL + time.Second)
	e.Enrich(context.Background(), "MintEmptyNew")

	e.mu.Lock()
	defer e.mu.Unlock()
	assert.NotContains(t, e.attempted, "MintEmptyOld")
	assert.Contains(t, e.attempted, "MintEmptyNew")
}

func TestEnricherNoLiquidity(t *testing.T) {
	srv := newPumpServer(t)
	srv.coinBody = `{"name": "Dry", "real_sol_reserves": 0}`
	e := NewEnricher(srv.client(), memory.NewSnapshotStore(), nil, quietLogger)

	assert.Nil(t, e.Enrich(context.Background(), "MintDry"))
}

func TestEnricherConvertsUSDMarketCap(t *testing.T) {
	srv := newPumpServer(t)
	srv.coinBody = `{"real_sol_reserves": 1000000000, "usd_market_cap": 3000}`

	oracleSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"solana": {"usd": 150}}`)
	}))
	defer oracleSrv.Close()

	oracle := NewOracle(oracleSrv.URL, time.Minute, nil, quietLogger)
	e := NewEnricher(srv.client(), memory.NewSnapshotStore(), oracle, quietLogger)

	snap := e.Enrich(context.Background(), "MintUSD")
	require.NotNil(t, snap)
	assert.Equal(t, 20.0, snap.MarketCap)
}

func TestHolderLookup(t *testing.T) {
	srv := newPumpServer(t)
	h := NewHolderLookup(srv.client(), balanceFunc(func(_ context.Context, account string) (uint64, error) {
		if account == "bad" {
			return 0, fmt.Errorf("rpc down")
		}
		return 1_500_000_000, nil
	}), quietLogger)
	ctx := context.Background()

	assert.Equal(t, []string{"H1", "H2"}, h.TopHolders(ctx, "MintA"))
	assert.Empty(t, h.TopHolders(ctx, "Broken"))

	bal, ok := h.BalanceOf(ctx, "H1")
	require.True(t, ok)
	assert.True(t, bal.Equal(decimal.RequireFromString("1.5")))

	_, ok = h.BalanceOf(ctx, "bad")
	assert.False(t, ok)
}

type balanceFunc func(ctx context.Context, account string) (uint64, error)

func (f balanceFunc) Balance(ctx context.Context, account string) (uint64, error) {
	return f(ctx, account)
}
