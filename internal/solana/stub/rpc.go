// Package stub provides an in-memory solana.RPCClient for tests.
package stub

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"pump-agent/internal/solana"
)

// ErrNotFound is returned for token accounts the stub does not know.
var ErrNotFound = errors.New("not found")

// RPCClient implements solana.RPCClient for testing. Fields may be set
// directly before use; calls are safe for concurrent use.
type RPCClient struct {
	mu sync.Mutex

	HealthErr     error
	Blockhash     string
	BlockhashErr  error
	Accounts      map[string]*solana.AccountInfo
	TokenBalances map[string]uint64
	Balances      map[string]uint64
	Fees          []solana.PrioritizationFee
	FeesErr       error

	// SendErrs are returned by successive SendTransaction calls before succeeding.
	SendErrs []error
	// Statuses overrides the status of a signature. Unknown signatures are confirmed.
	Statuses map[string]*solana.SignatureStatus

	Sent                [][]byte
	BlockhashReq        int
	BlockhashCommitment solana.Commitment
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Blockhash:     "11111111111111111111111111111111",
		Accounts:      make(map[string]*solana.AccountInfo),
		TokenBalances: make(map[string]uint64),
		Balances:      make(map[string]uint64),
		Statuses:      make(map[string]*solana.SignatureStatus),
	}
}

// Update mutates the stub under its lock, for changes made while calls are in flight.
func (c *RPCClient) Update(fn func(*RPCClient)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c)
}

// GetHealth returns HealthErr.
func (c *RPCClient) GetHealth(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.HealthErr
}

// GetLatestBlockhash returns Blockhash and records the commitment asked for.
func (c *RPCClient) GetLatestBlockhash(_ context.Context, commitment solana.Commitment) (*solana.Blockhash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.BlockhashReq++
	c.BlockhashCommitment = commitment
	if c.BlockhashErr != nil {
		return nil, c.BlockhashErr
	}
	return &solana.Blockhash{Blockhash: c.Blockhash, LastValidBlockHeight: 100}, nil
}

// SendTransaction records raw and returns a signature derived from the send count.
func (c *RPCClient) SendTransaction(_ context.Context, raw []byte, _ solana.SendOptions) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.SendErrs) > 0 {
		err := c.SendErrs[0]
		c.SendErrs = c.SendErrs[1:]
		return "", err
	}
	c.Sent = append(c.Sent, raw)
	return "sig" + strconv.Itoa(len(c.Sent)), nil
}

// GetSignatureStatuses returns Statuses entries, defaulting to confirmed.
func (c *RPCClient) GetSignatureStatuses(_ context.Context, signatures []string) ([]*solana.SignatureStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*solana.SignatureStatus, len(signatures))
	for i, sig := range signatures {
		if st, ok := c.Statuses[sig]; ok {
			out[i] = st
			continue
		}
		out[i] = &solana.SignatureStatus{Slot: 1, ConfirmationStatus: "confirmed"}
	}
	return out, nil
}

// GetAccountInfo returns the account or nil.
func (c *RPCClient) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Accounts[pubkey], nil
}

// GetTokenAccountBalance returns TokenBalances[account] with 6 decimals.
func (c *RPCClient) GetTokenAccountBalance(_ context.Context, account string) (*solana.TokenAmount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.TokenBalances[account]
	if !ok {
		return nil, ErrNotFound
	}
	return &solana.TokenAmount{Amount: strconv.FormatUint(n, 10), Decimals: 6}, nil
}

// GetBalance returns Balances[pubkey].
func (c *RPCClient) GetBalance(_ context.Context, pubkey string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Balances[pubkey], nil
}

// GetRecentPrioritizationFees returns Fees.
func (c *RPCClient) GetRecentPrioritizationFees(_ context.Context, _ []string) ([]solana.PrioritizationFee, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Fees, c.FeesErr
}

// SentCount returns the number of accepted transactions.
func (c *RPCClient) SentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Sent)
}

// Compile-time interface check.
var _ solana.RPCClient = (*RPCClient)(nil)
