package solana

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
)

// Commitment is the confirmation level a query or subscription targets.
type Commitment string

// Commitment levels.
const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

// reachedBy reports whether a confirmationStatus is at least c.
func (c Commitment) reachedBy(status string) bool {
	rank := map[string]int{"processed": 1, "confirmed": 2, "finalized": 3}
	return rank[status] >= rank[string(c)] && rank[status] > 0
}

// Blockhash is a recent blockhash with the last block height it is valid for.
type Blockhash struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// SendOptions configures sendTransaction.
type SendOptions struct {
	SkipPreflight       bool
	PreflightCommitment Commitment
	// MaxRetries is the node-side rebroadcast budget; nil leaves the node default.
	MaxRetries *uint
}

// SignatureStatus is one entry of getSignatureStatuses.
type SignatureStatus struct {
	Slot               uint64      `json:"slot"`
	Confirmations      *uint64     `json:"confirmations"`
	Err                interface{} `json:"err"`
	ConfirmationStatus string      `json:"confirmationStatus"`
}

// Reached reports whether the transaction landed without error at commitment c.
func (s *SignatureStatus) Reached(c Commitment) bool {
	return s != nil && s.Err == nil && c.reachedBy(s.ConfirmationStatus)
}

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64 `json:"lamports"`
	Owner      string `json:"owner"`
	Data       string `json:"data"` // base64 encoded
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rentEpoch"`
}

// DecodeData returns the raw account bytes.
func (a *AccountInfo) DecodeData() ([]byte, error) {
	return base64.StdEncoding.DecodeString(a.Data)
}

// TokenAmount is an SPL token balance.
type TokenAmount struct {
	Amount         string   `json:"amount"` // raw units as decimal string
	Decimals       uint8    `json:"decimals"`
	UIAmount       *float64 `json:"uiAmount"`
	UIAmountString string   `json:"uiAmountString"`
}

// Raw parses Amount.
func (t *TokenAmount) Raw() (uint64, error) {
	n, err := strconv.ParseUint(t.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse token amount %q: %w", t.Amount, err)
	}
	return n, nil
}

// PrioritizationFee is one sample of getRecentPrioritizationFees.
type PrioritizationFee struct {
	Slot              uint64 `json:"slot"`
	PrioritizationFee uint64 `json:"prioritizationFee"`
}

// LogsValue is the payload of a logsNotification.
type LogsValue struct {
	Signature string      `json:"signature"`
	Logs      []string    `json:"logs"`
	Err       interface{} `json:"err"`
}

// BlockValue is the payload of a blockNotification.
type BlockValue struct {
	Slot  int64        `json:"slot"`
	Block *BlockDetail `json:"block"`
	Err   interface{}  `json:"err"`
}

// BlockDetail is a block with full, base64-encoded transactions.
type BlockDetail struct {
	Blockhash    string             `json:"blockhash"`
	BlockTime    *int64             `json:"blockTime"`
	Transactions []BlockTransaction `json:"transactions"`
}

// BlockTransaction is one transaction of a block notification.
type BlockTransaction struct {
	// Transaction is [data, encoding].
	Transaction []string         `json:"transaction"`
	Meta        *TransactionMeta `json:"meta"`
}

// TransactionMeta contains transaction metadata.
type TransactionMeta struct {
	Err             interface{}      `json:"err"`
	LogMessages     []string         `json:"logMessages"`
	LoadedAddresses *LoadedAddresses `json:"loadedAddresses"`
}

// LoadedAddresses are accounts pulled in from address lookup tables.
type LoadedAddresses struct {
	Writable []string `json:"writable"`
	Readonly []string `json:"readonly"`
}

// RawTransaction returns the decoded transaction bytes.
func (t *BlockTransaction) RawTransaction() ([]byte, error) {
	if len(t.Transaction) == 0 {
		return nil, fmt.Errorf("empty transaction")
	}
	if len(t.Transaction) > 1 && t.Transaction[1] != "base64" {
		return nil, fmt.Errorf("unsupported encoding %q", t.Transaction[1])
	}
	return base64.StdEncoding.DecodeString(t.Transaction[0])
}

// Notification is a subscription message with its value left undecoded.
type Notification struct {
	Method string
	Slot   int64
	Value  json.RawMessage
}

// Logs decodes a logsNotification value.
func (n Notification) Logs() (*LogsValue, error) {
	var v LogsValue
	if err := json.Unmarshal(n.Value, &v); err != nil {
		return nil, fmt.Errorf("decode logs notification: %w", err)
	}
	return &v, nil
}

// Block decodes a blockNotification value.
func (n Notification) Block() (*BlockValue, error) {
	var v BlockValue
	if err := json.Unmarshal(n.Value, &v); err != nil {
		return nil, fmt.Errorf("decode block notification: %w", err)
	}
	return &v, nil
}
