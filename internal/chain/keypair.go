package chain

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"

	"pump-agent/internal/wire"
)

// ErrInvalidKey is returned for malformed signing keys.
var ErrInvalidKey = errors.New("invalid signing key")

// Keypair is an ed25519 signing key with its address.
type Keypair struct {
	priv ed25519.PrivateKey
	pub  wire.PublicKey
}

// KeypairFromBase58 parses the 64-byte secret key format used by Solana
// wallets: a 32-byte seed followed by the 32-byte public key.
func KeypairFromBase58(secret string) (*Keypair, error) {
	raw, err := base58.Decode(secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKey, ed25519.PrivateKeySize, len(raw))
	}
	kp := KeypairFromSeed(raw[:ed25519.SeedSize])
	if string(kp.pub[:]) != string(raw[ed25519.SeedSize:]) {
		return nil, fmt.Errorf("%w: public half does not match seed", ErrInvalidKey)
	}
	return kp, nil
}

// KeypairFromSeed derives a keypair from a 32-byte seed.
func KeypairFromSeed(seed []byte) *Keypair {
	priv := ed25519.NewKeyFromSeed(seed)
	kp := &Keypair{priv: priv}
	copy(kp.pub[:], priv.Public().(ed25519.PublicKey))
	return kp
}

// NewRandomKeypair generates a fresh keypair.
func NewRandomKeypair() (*Keypair, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, err
	}
	return KeypairFromSeed(seed), nil
}

// PublicKey returns the wallet address.
func (k *Keypair) PublicKey() wire.PublicKey {
	return k.pub
}

// PrivateKey returns the signing key.
func (k *Keypair) PrivateKey() ed25519.PrivateKey {
	return k.priv
}

// Base58 returns the 64-byte secret in wallet export format.
func (k *Keypair) Base58() string {
	return base58.Encode(k.priv)
}
