// Package wire implements the binary formats the agent reads from and writes
// to the chain: addresses, program-derived addresses, legacy transactions,
// pump.fun instructions, the create-event layout and bonding curve accounts.
package wire

import (
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// PublicKeyLength is the size of an ed25519 public key in bytes.
const PublicKeyLength = 32

// ErrInvalidAddress is returned when a base58 string is not a 32-byte key.
var ErrInvalidAddress = errors.New("invalid address")

// PublicKey is a 32-byte account address.
type PublicKey [PublicKeyLength]byte

// ParsePublicKey decodes a base58 address.
func ParsePublicKey(s string) (PublicKey, error) {
	var pk PublicKey
	b, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, s, err)
	}
	if len(b) != PublicKeyLength {
		return pk, fmt.Errorf("%w: %q decodes to %d bytes", ErrInvalidAddress, s, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// MustPublicKey is ParsePublicKey for compile-time constants. It panics on error.
func MustPublicKey(s string) PublicKey {
	pk, err := ParsePublicKey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// PublicKeyFromBytes copies the first 32 bytes of b.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) < PublicKeyLength {
		return pk, fmt.Errorf("%w: need %d bytes, got %d", ErrShortBuffer, PublicKeyLength, len(b))
	}
	copy(pk[:], b[:PublicKeyLength])
	return pk, nil
}

// String returns the base58 form.
func (p PublicKey) String() string {
	return base58.Encode(p[:])
}

// IsZero reports whether every byte is zero.
func (p PublicKey) IsZero() bool {
	return p == PublicKey{}
}
