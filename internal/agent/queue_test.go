package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pump-agent/internal/domain"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func token(mint string) *domain.TokenInfo {
	return &domain.TokenInfo{Name: mint, Symbol: mint, Mint: mint, BondingCurve: curveAddr}
}

func TestTokenQueue_Dedup(t *testing.T) {
	q := NewTokenQueue(4)

	assert.True(t, q.Push(token("A")))
	assert.False(t, q.Push(token("A")), "second push of a mint is dropped")
	assert.False(t, q.Claim(token("A")), "a queued mint cannot be claimed")
	assert.Equal(t, 1, q.Len())

	assert.True(t, q.Claim(token("B")))
	assert.True(t, q.InFlight("B"))
	assert.False(t, q.Push(token("B")))
}

func TestTokenQueue_Full(t *testing.T) {
	q := NewTokenQueue(1)
	assert.True(t, q.Push(token("A")))
	assert.False(t, q.Push(token("B")))
	assert.Equal(t, 1, q.Len())
}

func TestTokenQueue_Age(t *testing.T) {
	clock := newFakeClock()
	q := NewTokenQueue(4)
	q.now = clock.Now

	require.True(t, q.Push(token("A")))
	clock.Advance(12 * time.Second)

	tok, age, err := q.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "A", tok.Mint)
	assert.Equal(t, 12*time.Second, age)
	assert.Zero(t, q.Age("unknown"))
}

func TestTokenQueue_NextCancelled(t *testing.T) {
	q := NewTokenQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := q.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTokenQueue_InFlightAndPrune(t *testing.T) {
	clock := newFakeClock()
	q := NewTokenQueue(4)
	q.now = clock.Now
	q.Push(token("A"))
	q.Push(token("B"))

	assert.True(t, q.Start("A"))
	assert.False(t, q.Start("A"), "a mint is in flight at most once")
	clock.Advance(time.Second)

	assert.Equal(t, 1, q.Prune())
	assert.True(t, q.InFlight("A"))
	assert.NotZero(t, q.Age("A"))
	assert.Zero(t, q.Age("B"))

	q.Done("A")
	assert.False(t, q.InFlight("A"))
	assert.Equal(t, 1, q.Prune())
}

func TestAgeInRange(t *testing.T) {
	lo, hi := 10*time.Second, 60*time.Second
	tests := []struct {
		age  time.Duration
		want bool
	}{
		{0, false},
		{9 * time.Second, false},
		{10 * time.Second, true},
		{30 * time.Second, true},
		{60 * time.Second, true},
		{61 * time.Second, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AgeInRange(tt.age, lo, hi), "age %v", tt.age)
	}
}

func TestTaskRegistry(t *testing.T) {
	r := newTaskRegistry()
	started := make(chan struct{}, 2)
	for _, id := range []string{"a", "b"} {
		r.Go(context.Background(), id, func(ctx context.Context) {
			started <- struct{}{}
			<-ctx.Done()
		})
	}
	<-started
	<-started
	assert.ElementsMatch(t, []string{"a", "b"}, r.Active())

	r.CancelAll()
	r.Wait()
	assert.Empty(t, r.Active())
}
