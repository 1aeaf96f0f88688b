// Package chain wraps the RPC client with the state the trading path needs:
// a background-refreshed blockhash, signed submission with retries, and
// confirmation polling.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"pump-agent/internal/solana"
	"pump-agent/internal/wire"
)

// ErrNotReady is returned when no blockhash has been fetched yet.
var ErrNotReady = errors.New("blockhash not fetched yet")

// Default timings.
const (
	DefaultRefreshInterval = 5 * time.Second
	DefaultConfirmTimeout  = 30 * time.Second
	DefaultConfirmInterval = 1 * time.Second
	DefaultBackoffBase     = 1 * time.Second
)

// Options configures a Client.
type Options struct {
	RefreshInterval time.Duration
	ConfirmTimeout  time.Duration
	ConfirmInterval time.Duration
	// BackoffBase is multiplied by 2^attempt between send attempts.
	BackoffBase   time.Duration
	SkipPreflight bool
	Commitment    solana.Commitment
	// BlockhashCommitment is the level the cached blockhash is fetched at.
	BlockhashCommitment solana.Commitment
	Logger              *log.Logger
	// OnRetry is called before each resend, for metrics.
	OnRetry func(attempt int, err error)
}

// DefaultOptions mirrors the live trading setup: preflight skipped,
// blockhash at "processed", confirmation at "confirmed".
func DefaultOptions() Options {
	return Options{
		RefreshInterval: DefaultRefreshInterval,
		ConfirmTimeout:  DefaultConfirmTimeout,
		ConfirmInterval: DefaultConfirmInterval,
		BackoffBase:     DefaultBackoffBase,
		SkipPreflight:   true,
		Commitment:      solana.CommitmentConfirmed,
		// Freshest hash, so transactions stay valid for the full window.
		BlockhashCommitment: solana.CommitmentProcessed,
	}
}

// Client is the chain facade shared by every trade pipeline.
type Client struct {
	rpc    solana.RPCClient
	opts   Options
	logger *log.Logger

	mu        sync.RWMutex
	blockhash string
	fetchedAt time.Time

	startOnce sync.Once
	closeOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates a Client. Call Start to begin refreshing the blockhash.
func New(rpc solana.RPCClient, opts Options) *Client {
	def := DefaultOptions()
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = def.RefreshInterval
	}
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = def.ConfirmTimeout
	}
	if opts.ConfirmInterval <= 0 {
		opts.ConfirmInterval = def.ConfirmInterval
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = def.BackoffBase
	}
	if opts.Commitment == "" {
		opts.Commitment = def.Commitment
	}
	if opts.BlockhashCommitment == "" {
		opts.BlockhashCommitment = def.BlockhashCommitment
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		rpc:    rpc,
		opts:   opts,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// RPC returns the underlying RPC client.
func (c *Client) RPC() solana.RPCClient {
	return c.rpc
}

// Start launches the blockhash updater. The first fetch happens
// immediately. Calling Start more than once has no effect.
func (c *Client) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		ctx, c.cancel = context.WithCancel(ctx)
		go c.updateLoop(ctx)
	})
}

func (c *Client) updateLoop(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.opts.RefreshInterval)
	defer ticker.Stop()

	for {
		c.refreshBlockhash(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *Client) refreshBlockhash(ctx context.Context) {
	bh, err := c.rpc.GetLatestBlockhash(ctx, c.opts.BlockhashCommitment)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Printf("[chain] Blockhash refresh failed: %v", err)
		}
		return
	}
	c.mu.Lock()
	c.blockhash = bh.Blockhash
	c.fetchedAt = time.Now()
	c.mu.Unlock()
}

// CachedBlockhash returns the last fetched blockhash.
func (c *Client) CachedBlockhash() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.blockhash == "" {
		return "", ErrNotReady
	}
	return c.blockhash, nil
}

// BlockhashAge returns how long ago the cached blockhash was fetched.
func (c *Client) BlockhashAge() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.fetchedAt.IsZero() {
		return 0
	}
	return time.Since(c.fetchedAt)
}

// GetHealth probes the node. Failure is logged, never fatal.
func (c *Client) GetHealth(ctx context.Context) bool {
	if err := c.rpc.GetHealth(ctx); err != nil {
		c.logger.Printf("[chain] Health check failed: %v", err)
		return false
	}
	return true
}

// BuildAndSendTransaction signs instructions with signer against the cached
// blockhash and submits them, trying up to maxRetries times with 2^attempt
// backoff. A non-nil priorityFee (micro-lamports per CU) prepends compute
// budget instructions. The blockhash is not refreshed between attempts.
func (c *Client) BuildAndSendTransaction(ctx context.Context, instructions []wire.Instruction, signer *Keypair, maxRetries int, priorityFee *uint64) (string, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}
	if priorityFee != nil {
		budget := []wire.Instruction{
			wire.SetComputeUnitLimit(wire.DefaultComputeUnitLimit),
			wire.SetComputeUnitPrice(*priorityFee),
		}
		instructions = append(budget, instructions...)
	}

	blockhash, err := c.CachedBlockhash()
	if err != nil {
		return "", err
	}
	msg, err := wire.NewMessage(signer.PublicKey(), instructions, blockhash)
	if err != nil {
		return "", fmt.Errorf("compile message: %w", err)
	}
	tx, err := wire.SignTransaction(msg, signer.PrivateKey())
	if err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}
	raw := tx.Serialize()

	opts := solana.SendOptions{
		SkipPreflight:       c.opts.SkipPreflight,
		PreflightCommitment: solana.CommitmentProcessed,
	}

	for attempt := 0; ; attempt++ {
		sig, err := c.rpc.SendTransaction(ctx, raw, opts)
		if err == nil {
			return sig, nil
		}
		if attempt == maxRetries-1 {
			c.logger.Printf("[chain] Failed to send transaction after %d attempts", maxRetries)
			return "", fmt.Errorf("send transaction: %w", err)
		}

		wait := c.opts.BackoffBase * time.Duration(1<<attempt)
		c.logger.Printf("[chain] Transaction attempt %d failed: %v, retrying in %v", attempt+1, err, wait)
		if c.opts.OnRetry != nil {
			c.opts.OnRetry(attempt+1, err)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
}

// ConfirmTransaction polls until the signature reaches the configured
// commitment or the timeout passes. Errors are logged and reported as false.
func (c *Client) ConfirmTransaction(ctx context.Context, signature string) bool {
	ctx, cancel := context.WithTimeout(ctx, c.opts.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.opts.ConfirmInterval)
	defer ticker.Stop()

	for {
		statuses, err := c.rpc.GetSignatureStatuses(ctx, []string{signature})
		if err == nil && len(statuses) == 1 && statuses[0] != nil {
			st := statuses[0]
			if st.Err != nil {
				c.logger.Printf("[chain] Transaction %s failed on chain: %v", signature, st.Err)
				return false
			}
			if st.Reached(c.opts.Commitment) {
				return true
			}
		}

		select {
		case <-ctx.Done():
			c.logger.Printf("[chain] Failed to confirm transaction %s: %v", signature, ctx.Err())
			return false
		case <-ticker.C:
		}
	}
}

// AccountInfo returns the account or nil if it does not exist.
func (c *Client) AccountInfo(ctx context.Context, account wire.PublicKey) (*solana.AccountInfo, error) {
	return c.rpc.GetAccountInfo(ctx, account.String())
}

// TokenBalance returns the raw token amount held by a token account.
func (c *Client) TokenBalance(ctx context.Context, account wire.PublicKey) (uint64, error) {
	amount, err := c.rpc.GetTokenAccountBalance(ctx, account.String())
	if err != nil {
		return 0, err
	}
	return amount.Raw()
}

// Balance returns an account's lamports.
func (c *Client) Balance(ctx context.Context, account string) (uint64, error) {
	return c.rpc.GetBalance(ctx, account)
}

// CurveState fetches and decodes a bonding curve account.
func (c *Client) CurveState(ctx context.Context, curve wire.PublicKey) (*wire.CurveState, error) {
	info, err := c.rpc.GetAccountInfo(ctx, curve.String())
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("bonding curve %s not found", curve)
	}
	data, err := info.DecodeData()
	if err != nil {
		return nil, fmt.Errorf("decode curve data: %w", err)
	}
	return wire.DecodeCurveState(data)
}

// Close stops the updater and waits for it. Safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.startOnce.Do(func() { close(c.done) })
		if c.cancel != nil {
			c.cancel()
		}
		<-c.done
	})
	return nil
}
