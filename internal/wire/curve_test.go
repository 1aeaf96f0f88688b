package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurveState(t *testing.T) {
	in := &CurveState{
		VirtualTokenReserves: 1_073_000_000 * TokenUnit,
		VirtualSolReserves:   30 * LamportsPerSOL,
		RealTokenReserves:    793_100_000 * TokenUnit,
		TokenTotalSupply:     1_000_000_000 * TokenUnit,
	}
	out, err := DecodeCurveState(in.Encode())
	require.NoError(t, err)
	assert.Equal(t, in, out)

	price, err := out.Price()
	require.NoError(t, err)
	assert.InDelta(t, 2.7959e-8, price, 1e-12)
}

func TestCurveState_Errors(t *testing.T) {
	_, err := DecodeCurveState(make([]byte, 10))
	assert.ErrorIs(t, err, ErrShortBuffer)

	_, err = DecodeCurveState(make([]byte, 64))
	assert.ErrorIs(t, err, ErrDiscriminator)

	_, err = (&CurveState{}).Price()
	assert.ErrorIs(t, err, ErrEmptyReserves)
}
