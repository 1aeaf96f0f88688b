package domain

// CleanupMode selects when token accounts are reclaimed.
type CleanupMode string

// Cleanup modes. Exactly one is active.
const (
	CleanupOnFail      CleanupMode = "on_fail"
	CleanupAfterSell   CleanupMode = "after_sell"
	CleanupPostSession CleanupMode = "post_session"
	CleanupDisabled    CleanupMode = "disabled"
)

// Valid reports whether m is a known mode.
func (m CleanupMode) Valid() bool {
	switch m {
	case CleanupOnFail, CleanupAfterSell, CleanupPostSession, CleanupDisabled:
		return true
	}
	return false
}
