package market

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newOracleServer(t *testing.T, prices ...float64) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(hits.Add(1)) - 1
		if n >= len(prices) || prices[n] < 0 {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		fmt.Fprintf(w, `{"solana": {"usd": %v}}`, prices[n])
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestOracleCachesWithinTTL(t *testing.T) {
	srv, hits := newOracleServer(t, 150, 160)
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	o := NewOracle(srv.URL, time.Minute, nil, quietLogger)
	o.now = clock.Now
	ctx := context.Background()

	p, err := o.SOLUSD(ctx)
	require.NoError(t, err)
	assert.Equal(t, 150.0, p)

	clock.Advance(30 * time.Second)
	p, err = o.SOLUSD(ctx)
	require.NoError(t, err)
	assert.Equal(t, 150.0, p)
	assert.Equal(t, int32(1), hits.Load())

	clock.Advance(31 * time.Second)
	p, err = o.SOLUSD(ctx)
	require.NoError(t, err)
	assert.Equal(t, 160.0, p)
	assert.Equal(t, int32(2), hits.Load())
}

func TestOracleServesStaleOnFailure(t *testing.T) {
	srv, hits := newOracleServer(t, 150, -1)
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	o := NewOracle(srv.URL, time.Minute, nil, quietLogger)
	o.now = clock.Now
	ctx := context.Background()

	_, err := o.SOLUSD(ctx)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	p, err := o.SOLUSD(ctx)
	require.NoError(t, err)
	assert.Equal(t, 150.0, p)
	assert.Equal(t, int32(2), hits.Load())
}

func TestOracleNoPriceYet(t *testing.T) {
	srv, _ := newOracleServer(t)
	o := NewOracle(srv.URL, time.Minute, nil, quietLogger)

	_, err := o.SOLUSD(context.Background())
	assert.ErrorIs(t, err, ErrNoPrice)
}

func TestPriceCacheFresh(t *testing.T) {
	now := time.Unix(100, 0)
	c := PriceCache{TTL: time.Minute}
	assert.False(t, c.Fresh(now))

	c.FetchedAt = now
	assert.True(t, c.Fresh(now.Add(time.Minute)))
	assert.False(t, c.Fresh(now.Add(time.Minute+time.Nanosecond)))
}
