package wire

// Well-known program and account addresses.
const (
	SystemProgramID          = "11111111111111111111111111111111"
	TokenProgramID           = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	AssociatedTokenProgramID = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"
	RentSysvarID             = "SysvarRent111111111111111111111111111111111"
	ComputeBudgetProgramID   = "ComputeBudget111111111111111111111111111111"
	NativeMintID             = "So11111111111111111111111111111111111111112"

	PumpProgramID           = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
	PumpGlobalID            = "4wTV1YmiEkRvAtNtsSGPtUrqRYQMe5SKy2uB4Jjaxnjf"
	PumpEventAuthorityID    = "Ce6TQqeHC9p8KetsN6JsjHK7UTZk7nasjjnr7XxXp9F1"
	PumpFeeRecipientID      = "CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM"
	PumpLiquidityMigratorID = "39azUYFWPz3VHgKCf3VChUwbpURdCHRxjWVowf5jUJjg"
)

// Decoded forms of the addresses above.
var (
	SystemProgram          = MustPublicKey(SystemProgramID)
	TokenProgram           = MustPublicKey(TokenProgramID)
	AssociatedTokenProgram = MustPublicKey(AssociatedTokenProgramID)
	RentSysvar             = MustPublicKey(RentSysvarID)
	ComputeBudgetProgram   = MustPublicKey(ComputeBudgetProgramID)
	NativeMint             = MustPublicKey(NativeMintID)

	PumpProgram        = MustPublicKey(PumpProgramID)
	PumpGlobal         = MustPublicKey(PumpGlobalID)
	PumpEventAuthority = MustPublicKey(PumpEventAuthorityID)
	PumpFeeRecipient   = MustPublicKey(PumpFeeRecipientID)
)

// Unit conversions.
const (
	LamportsPerSOL = 1_000_000_000
	TokenDecimals  = 6
	TokenUnit      = 1_000_000
)
