package storage

import "errors"

// Storage errors.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when inserting a record whose key exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTradeClosed is returned when closing a trade that is already CLOSED.
	// The stored row is left unchanged.
	ErrTradeClosed = errors.New("trade already closed")

	// ErrWalletMissing is returned when the wallet row has not been seeded.
	ErrWalletMissing = errors.New("wallet balance not initialized")
)
