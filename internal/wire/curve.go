package wire

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrEmptyReserves is returned when a curve has no virtual reserves to price.
var ErrEmptyReserves = errors.New("bonding curve has empty reserves")

// CurveAccountDiscriminator is the Anchor account tag of a bonding curve.
var CurveAccountDiscriminator = anchorDiscriminator("account:BondingCurve")

func anchorDiscriminator(name string) [8]byte {
	var d [8]byte
	h := sha256.Sum256([]byte(name))
	copy(d[:], h[:8])
	return d
}

const curveStateLength = 8 + 5*8 + 1

// CurveState is the reserve state of a bonding curve account.
type CurveState struct {
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	RealSolReserves      uint64
	TokenTotalSupply     uint64
	Complete             bool
}

// DecodeCurveState parses raw bonding curve account data.
func DecodeCurveState(data []byte) (*CurveState, error) {
	if len(data) < curveStateLength {
		return nil, fmt.Errorf("%w: curve account is %d bytes", ErrShortBuffer, len(data))
	}
	if !bytes.Equal(data[:8], CurveAccountDiscriminator[:]) {
		return nil, fmt.Errorf("%w: not a bonding curve account", ErrDiscriminator)
	}
	le := binary.LittleEndian
	return &CurveState{
		VirtualTokenReserves: le.Uint64(data[8:]),
		VirtualSolReserves:   le.Uint64(data[16:]),
		RealTokenReserves:    le.Uint64(data[24:]),
		RealSolReserves:      le.Uint64(data[32:]),
		TokenTotalSupply:     le.Uint64(data[40:]),
		Complete:             data[48] != 0,
	}, nil
}

// Encode is the inverse of DecodeCurveState.
func (s *CurveState) Encode() []byte {
	buf := append([]byte(nil), CurveAccountDiscriminator[:]...)
	for _, v := range []uint64{s.VirtualTokenReserves, s.VirtualSolReserves, s.RealTokenReserves, s.RealSolReserves, s.TokenTotalSupply} {
		buf = binary.LittleEndian.AppendUint64(buf, v)
	}
	if s.Complete {
		return append(buf, 1)
	}
	return append(buf, 0)
}

// Price is the marginal price in SOL per whole token implied by the virtual
// reserves.
func (s *CurveState) Price() (float64, error) {
	if s.VirtualTokenReserves == 0 || s.VirtualSolReserves == 0 {
		return 0, ErrEmptyReserves
	}
	sol := float64(s.VirtualSolReserves) / LamportsPerSOL
	tokens := float64(s.VirtualTokenReserves) / TokenUnit
	return sol / tokens, nil
}
