package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTransaction_Legacy(t *testing.T) {
	payerKey, payer := testKey(1)
	_, mint := testKey(2)
	_, curve := testKey(3)
	_, baseCurve := testKey(4)

	buy := BuyInstruction(TradeAccounts{
		Mint:                   mint,
		BondingCurve:           curve,
		AssociatedBondingCurve: baseCurve,
		AssociatedUser:         NativeMint,
		User:                   payer,
	}, 42, 99)
	msg, err := NewMessage(payer, []Instruction{SetComputeUnitPrice(5), buy}, testBlockhash)
	require.NoError(t, err)
	tx, err := SignTransaction(msg, payerKey)
	require.NoError(t, err)

	parsed, err := ParseTransaction(tx.Serialize())
	require.NoError(t, err)

	assert.Equal(t, -1, parsed.Version)
	assert.Equal(t, tx.Signatures, parsed.Signatures)
	assert.Equal(t, msg.AccountKeys, parsed.AccountKeys)
	require.Len(t, parsed.Instructions, 2)
	assert.Equal(t, msg.Instructions[1], parsed.Instructions[1])
	assert.Equal(t, PumpProgram, parsed.AccountKeys[parsed.Instructions[1].ProgramIDIndex])
}

func TestParseTransaction_V0(t *testing.T) {
	_, a := testKey(1)
	_, b := testKey(2)

	raw := AppendCompactU16(nil, 1)
	raw = append(raw, make([]byte, SignatureLength)...)
	raw = append(raw, 0x80)    // v0
	raw = append(raw, 1, 0, 1) // header
	raw = AppendCompactU16(raw, 2)
	raw = append(raw, a[:]...)
	raw = append(raw, b[:]...)
	raw = append(raw, make([]byte, 32)...) // blockhash
	raw = AppendCompactU16(raw, 1)
	raw = append(raw, 1)                           // program index
	raw = append(raw, AppendCompactU16(nil, 2)...) // accounts
	raw = append(raw, 0, 2)                        // index 2 comes from a lookup table
	raw = append(raw, AppendCompactU16(nil, 3)...)
	raw = append(raw, 9, 8, 7)
	raw = AppendCompactU16(raw, 0) // no lookups

	parsed, err := ParseTransaction(raw)
	require.NoError(t, err)
	assert.Equal(t, 0, parsed.Version)
	assert.Equal(t, []PublicKey{a, b}, parsed.AccountKeys)
	require.Len(t, parsed.Instructions, 1)
	assert.Equal(t, []byte{0, 2}, parsed.Instructions[0].Accounts)
	assert.Equal(t, []byte{9, 8, 7}, parsed.Instructions[0].Data)
}

func TestParseTransaction_Errors(t *testing.T) {
	_, err := ParseTransaction(nil)
	assert.ErrorIs(t, err, ErrShortBuffer)

	raw := AppendCompactU16(nil, 0)
	raw = append(raw, 0x81)
	_, err = ParseTransaction(raw)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	// truncated account keys
	raw = AppendCompactU16(nil, 0)
	raw = append(raw, 1, 0, 0)
	raw = AppendCompactU16(raw, 2)
	raw = append(raw, make([]byte, 40)...)
	_, err = ParseTransaction(raw)
	assert.ErrorIs(t, err, ErrShortBuffer)
}
