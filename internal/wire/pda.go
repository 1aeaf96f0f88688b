package wire

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

const pdaMarker = "ProgramDerivedAddress"

// ErrNoViableBump is returned when no bump seed yields an off-curve address.
var ErrNoViableBump = errors.New("no viable bump seed")

// FindProgramAddress derives a program address from seeds, searching bump
// seeds from 255 down until the hash falls off the ed25519 curve.
func FindProgramAddress(seeds [][]byte, programID PublicKey) (PublicKey, uint8, error) {
	for bump := 255; bump > 0; bump-- {
		data := make([]byte, 0, 32*len(seeds)+1+PublicKeyLength+len(pdaMarker))
		for _, seed := range seeds {
			data = append(data, seed...)
		}
		data = append(data, byte(bump))
		data = append(data, programID[:]...)
		data = append(data, pdaMarker...)

		hash := sha256.Sum256(data)
		if !isOnCurve(hash[:]) {
			return PublicKey(hash), uint8(bump), nil
		}
	}
	return PublicKey{}, 0, fmt.Errorf("%w for program %s", ErrNoViableBump, programID)
}

// IsOnCurve reports whether the key is a valid ed25519 point. Program
// addresses never are.
func IsOnCurve(p PublicKey) bool {
	return isOnCurve(p[:])
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}

// AssociatedTokenAddress returns the associated token account of owner for mint.
func AssociatedTokenAddress(owner, mint PublicKey) (PublicKey, error) {
	addr, _, err := FindProgramAddress(
		[][]byte{owner[:], TokenProgram[:], mint[:]},
		AssociatedTokenProgram,
	)
	return addr, err
}

// BaseCurveAddress returns the token account holding the bonding curve's
// token reserve, the associated token account of the curve itself.
func BaseCurveAddress(curve, mint PublicKey) (PublicKey, error) {
	return AssociatedTokenAddress(curve, mint)
}
