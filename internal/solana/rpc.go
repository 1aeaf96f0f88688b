package solana

import "context"

// RPCClient defines the Solana RPC HTTP methods the agent uses.
type RPCClient interface {
	// GetHealth returns nil when the node reports itself healthy.
	GetHealth(ctx context.Context) error

	// GetLatestBlockhash returns a recent blockhash at the given commitment.
	GetLatestBlockhash(ctx context.Context, commitment Commitment) (*Blockhash, error)

	// SendTransaction submits a serialized, signed transaction and returns its signature.
	SendTransaction(ctx context.Context, raw []byte, opts SendOptions) (string, error)

	// GetSignatureStatuses returns one entry per signature; nil entries are unknown to the node.
	GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error)

	// GetAccountInfo returns nil if the account does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetTokenAccountBalance returns the balance of an SPL token account.
	GetTokenAccountBalance(ctx context.Context, account string) (*TokenAmount, error)

	// GetBalance returns an account's lamport balance.
	GetBalance(ctx context.Context, pubkey string) (uint64, error)

	// GetRecentPrioritizationFees returns per-slot fee samples for transactions locking the accounts.
	GetRecentPrioritizationFees(ctx context.Context, accounts []string) ([]PrioritizationFee, error)
}
