package cleanup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pump-agent/internal/chain"
	"pump-agent/internal/config"
	"pump-agent/internal/domain"
	"pump-agent/internal/solana"
	"pump-agent/internal/wire"
)

var quiet = log.New(io.Discard, "", 0)

type fakeChain struct {
	mu        sync.Mutex
	accounts  map[wire.PublicKey]bool
	balances  map[wire.PublicKey]uint64
	infoErr   error
	sendErr   error
	confirmed bool
	sent      [][]wire.Instruction
	fees      []*uint64
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		accounts:  make(map[wire.PublicKey]bool),
		balances:  make(map[wire.PublicKey]uint64),
		confirmed: true,
	}
}

func (f *fakeChain) AccountInfo(_ context.Context, account wire.PublicKey) (*solana.AccountInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	if !f.accounts[account] {
		return nil, nil
	}
	return &solana.AccountInfo{Lamports: 2_039_280}, nil
}

func (f *fakeChain) TokenBalance(_ context.Context, account wire.PublicKey) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[account], nil
}

func (f *fakeChain) BuildAndSendTransaction(_ context.Context, ixs []wire.Instruction, _ *chain.Keypair, _ int, fee *uint64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, ixs)
	f.fees = append(f.fees, fee)
	return "closesig", nil
}

func (f *fakeChain) ConfirmTransaction(context.Context, string) bool {
	return f.confirmed
}

type fixedFee uint64

func (f fixedFee) PriorityFee(context.Context, []string) *uint64 {
	v := uint64(f)
	return &v
}

var (
	signer = chain.KeypairFromSeed(bytes.Repeat([]byte{3}, 32))
	mint   = chain.KeypairFromSeed(bytes.Repeat([]byte{4}, 32)).PublicKey()
)

func ataOf(t *testing.T) wire.PublicKey {
	t.Helper()
	ata, err := wire.AssociatedTokenAddress(signer.PublicKey(), mint)
	require.NoError(t, err)
	return ata
}

func newHandler(c *fakeChain, opts Options) *Handler {
	h := New(c, fixedFee(5_000), signer, opts, quiet)
	h.sleep = func(context.Context, time.Duration) error { return nil }
	return h
}

func TestReclaim(t *testing.T) {
	ata := ataOf(t)

	tests := []struct {
		name      string
		exists    bool
		balance   uint64
		forceBurn bool
		want      string
		wantIxs   []byte // SPL tags of sent instructions
	}{
		{"absent account", false, 0, false, OutcomeAbsent, nil},
		{"empty account closes", true, 0, false, OutcomeClosed, []byte{9}},
		{"balance without burn is kept", true, 500, false, OutcomeSkipped, nil},
		{"balance with burn", true, 500, true, OutcomeClosed, []byte{8, 9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newFakeChain()
			c.accounts[ata] = tt.exists
			c.balances[ata] = tt.balance
			h := newHandler(c, Options{Mode: domain.CleanupAfterSell, ForceBurn: tt.forceBurn})

			got, err := h.Reclaim(context.Background(), mint.String())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			if tt.wantIxs == nil {
				assert.Empty(t, c.sent)
				return
			}
			require.Len(t, c.sent, 1)
			var tags []byte
			for _, ix := range c.sent[0] {
				assert.Equal(t, wire.TokenProgram, ix.ProgramID)
				tags = append(tags, ix.Data[0])
			}
			assert.Equal(t, tt.wantIxs, tags)
			assert.Equal(t, ata, c.sent[0][len(c.sent[0])-1].Accounts[0].PublicKey)
		})
	}
}

func TestReclaim_Failures(t *testing.T) {
	ata := ataOf(t)

	c := newFakeChain()
	c.infoErr = errors.New("rpc down")
	h := newHandler(c, Options{Mode: domain.CleanupOnFail})
	got, err := h.Reclaim(context.Background(), mint.String())
	assert.Error(t, err)
	assert.Equal(t, OutcomeFailed, got)

	c = newFakeChain()
	c.accounts[ata] = true
	c.confirmed = false
	h = newHandler(c, Options{Mode: domain.CleanupOnFail})
	got, err = h.Reclaim(context.Background(), mint.String())
	assert.Error(t, err)
	assert.Equal(t, OutcomeFailed, got)

	_, err = h.Reclaim(context.Background(), "not-a-key")
	assert.Error(t, err)

	h = New(c, nil, nil, Options{Mode: domain.CleanupOnFail}, quiet)
	got, err = h.Reclaim(context.Background(), mint.String())
	assert.Error(t, err)
	assert.Equal(t, OutcomeSkipped, got)
}

func TestReclaim_PriorityFee(t *testing.T) {
	ata := ataOf(t)
	for _, useFee := range []bool{false, true} {
		c := newFakeChain()
		c.accounts[ata] = true
		h := newHandler(c, Options{Mode: domain.CleanupAfterSell, UseFee: useFee})
		_, err := h.Reclaim(context.Background(), mint.String())
		require.NoError(t, err)
		require.Len(t, c.fees, 1)
		if useFee {
			require.NotNil(t, c.fees[0])
			assert.Equal(t, uint64(5_000), *c.fees[0])
		} else {
			assert.Nil(t, c.fees[0])
		}
	}
}

func TestHandler_ModeGates(t *testing.T) {
	ata := ataOf(t)
	modes := []domain.CleanupMode{domain.CleanupOnFail, domain.CleanupAfterSell, domain.CleanupPostSession, domain.CleanupDisabled}

	for _, mode := range modes {
		t.Run(string(mode), func(t *testing.T) {
			c := newFakeChain()
			c.accounts[ata] = true
			h := newHandler(c, Options{Mode: mode})
			ctx := context.Background()

			h.AfterFailure(ctx, mint.String())
			h.AfterSell(ctx, mint.String())
			h.PostSession(ctx, []string{mint.String()})

			if mode == domain.CleanupDisabled {
				assert.Empty(t, c.sent)
				return
			}
			assert.Len(t, c.sent, 1, "exactly one trigger matches %s", mode)
		})
	}
}

func TestHandler_ErrorsAreSwallowed(t *testing.T) {
	ata := ataOf(t)
	c := newFakeChain()
	c.accounts[ata] = true
	c.sendErr = errors.New("blockhash not found")
	h := newHandler(c, Options{Mode: domain.CleanupOnFail})

	assert.NotPanics(t, func() { h.AfterFailure(context.Background(), mint.String()) })
}

func TestHandler_SettleHonoursContext(t *testing.T) {
	c := newFakeChain()
	h := New(c, nil, signer, Options{Mode: domain.CleanupAfterSell, Settle: time.Hour}, quiet)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := h.Reclaim(ctx, mint.String())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, OutcomeFailed, got)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Wipe.Clean = "post_session"
	cfg.Wipe.Burn = true

	opts := OptionsFromConfig(&cfg)
	assert.Equal(t, domain.CleanupPostSession, opts.Mode)
	assert.True(t, opts.ForceBurn)
	assert.Equal(t, DefaultSettle, opts.Settle)

	assert.Equal(t, domain.CleanupDisabled, New(nil, nil, nil, Options{}, quiet).Mode())
}
