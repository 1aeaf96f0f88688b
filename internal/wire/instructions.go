package wire

import (
	"encoding/binary"
	"fmt"
)

// Pump program instruction discriminators, little-endian u64.
const (
	BuyDiscriminator  uint64 = 16927863322537952870
	SellDiscriminator uint64 = 12502976635542562355
)

// DefaultComputeUnitLimit is the compute budget requested for trades.
const DefaultComputeUnitLimit uint32 = 72_000

// Compute budget and SPL token instruction tags.
const (
	computeUnitLimitTag = 2
	computeUnitPriceTag = 3
	splBurnTag          = 8
	splCloseAccountTag  = 9
	ataCreateIdempotent = 1
)

// TradeAccounts are the per-token accounts of a buy or sell.
type TradeAccounts struct {
	Mint                   PublicKey
	BondingCurve           PublicKey
	AssociatedBondingCurve PublicKey
	AssociatedUser         PublicKey
	User                   PublicKey
}

// BuyInstruction buys tokenAmount raw units spending at most maxSolCost lamports.
func BuyInstruction(a TradeAccounts, tokenAmount, maxSolCost uint64) Instruction {
	return Instruction{
		ProgramID: PumpProgram,
		Accounts: []AccountMeta{
			{PublicKey: PumpGlobal},
			{PublicKey: PumpFeeRecipient, IsWritable: true},
			{PublicKey: a.Mint},
			{PublicKey: a.BondingCurve, IsWritable: true},
			{PublicKey: a.AssociatedBondingCurve, IsWritable: true},
			{PublicKey: a.AssociatedUser, IsWritable: true},
			{PublicKey: a.User, IsSigner: true, IsWritable: true},
			{PublicKey: SystemProgram},
			{PublicKey: TokenProgram},
			{PublicKey: RentSysvar},
			{PublicKey: PumpEventAuthority},
			{PublicKey: PumpProgram},
		},
		Data: tradeData(BuyDiscriminator, tokenAmount, maxSolCost),
	}
}

// SellInstruction sells tokenAmount raw units for at least minSolOutput lamports.
func SellInstruction(a TradeAccounts, tokenAmount, minSolOutput uint64) Instruction {
	return Instruction{
		ProgramID: PumpProgram,
		Accounts: []AccountMeta{
			{PublicKey: PumpGlobal},
			{PublicKey: PumpFeeRecipient, IsWritable: true},
			{PublicKey: a.Mint},
			{PublicKey: a.BondingCurve, IsWritable: true},
			{PublicKey: a.AssociatedBondingCurve, IsWritable: true},
			{PublicKey: a.AssociatedUser, IsWritable: true},
			{PublicKey: a.User, IsSigner: true, IsWritable: true},
			{PublicKey: SystemProgram},
			{PublicKey: AssociatedTokenProgram},
			{PublicKey: TokenProgram},
			{PublicKey: PumpEventAuthority},
			{PublicKey: PumpProgram},
		},
		Data: tradeData(SellDiscriminator, tokenAmount, minSolOutput),
	}
}

func tradeData(discriminator, amount, bound uint64) []byte {
	data := make([]byte, 24)
	binary.LittleEndian.PutUint64(data[0:], discriminator)
	binary.LittleEndian.PutUint64(data[8:], amount)
	binary.LittleEndian.PutUint64(data[16:], bound)
	return data
}

// DecodeTradeData splits a buy or sell payload into its three integers.
func DecodeTradeData(data []byte) (discriminator, amount, bound uint64, err error) {
	if len(data) < 24 {
		return 0, 0, 0, fmt.Errorf("%w: trade payload is %d bytes", ErrShortBuffer, len(data))
	}
	return binary.LittleEndian.Uint64(data[0:]),
		binary.LittleEndian.Uint64(data[8:]),
		binary.LittleEndian.Uint64(data[16:]),
		nil
}

// CreateAssociatedTokenAccountIdempotent creates owner's token account for
// mint unless it already exists.
func CreateAssociatedTokenAccountIdempotent(payer, owner, mint PublicKey) (Instruction, error) {
	ata, err := AssociatedTokenAddress(owner, mint)
	if err != nil {
		return Instruction{}, err
	}
	return Instruction{
		ProgramID: AssociatedTokenProgram,
		Accounts: []AccountMeta{
			{PublicKey: payer, IsSigner: true, IsWritable: true},
			{PublicKey: ata, IsWritable: true},
			{PublicKey: owner},
			{PublicKey: mint},
			{PublicKey: SystemProgram},
			{PublicKey: TokenProgram},
		},
		Data: []byte{ataCreateIdempotent},
	}, nil
}

// BurnInstruction destroys amount raw units held in account.
func BurnInstruction(account, mint, owner PublicKey, amount uint64) Instruction {
	data := make([]byte, 9)
	data[0] = splBurnTag
	binary.LittleEndian.PutUint64(data[1:], amount)
	return Instruction{
		ProgramID: TokenProgram,
		Accounts: []AccountMeta{
			{PublicKey: account, IsWritable: true},
			{PublicKey: mint, IsWritable: true},
			{PublicKey: owner, IsSigner: true},
		},
		Data: data,
	}
}

// CloseAccountInstruction closes an empty token account, sending its rent to dest.
func CloseAccountInstruction(account, dest, owner PublicKey) Instruction {
	return Instruction{
		ProgramID: TokenProgram,
		Accounts: []AccountMeta{
			{PublicKey: account, IsWritable: true},
			{PublicKey: dest, IsWritable: true},
			{PublicKey: owner, IsSigner: true},
		},
		Data: []byte{splCloseAccountTag},
	}
}

// SetComputeUnitLimit caps the compute units the transaction may consume.
func SetComputeUnitLimit(units uint32) Instruction {
	data := make([]byte, 5)
	data[0] = computeUnitLimitTag
	binary.LittleEndian.PutUint32(data[1:], units)
	return Instruction{ProgramID: ComputeBudgetProgram, Data: data}
}

// SetComputeUnitPrice sets the priority fee in micro-lamports per compute unit.
func SetComputeUnitPrice(microLamports uint64) Instruction {
	data := make([]byte, 9)
	data[0] = computeUnitPriceTag
	binary.LittleEndian.PutUint64(data[1:], microLamports)
	return Instruction{ProgramID: ComputeBudgetProgram, Data: data}
}
