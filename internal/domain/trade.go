package domain

// TradeStatus is the lifecycle state of a persisted trade.
type TradeStatus string

// Trade statuses. OPEN -> CLOSED is the only transition.
const (
	TradeStatusOpen   TradeStatus = "OPEN"
	TradeStatusClosed TradeStatus = "CLOSED"
)

// Trade is one position from buy to sell.
// Corresponds to trades table in PostgreSQL.
type Trade struct {
	UUID    string // PK
	Mint    string
	BotName string

	OpenSignature  string
	CloseSignature *string // nil while open

	OpenedAt   int64  // ms
	ClosedAt   *int64 // ms, nil while open
	DurationMs *int64

	OpenPrice  float64  // SOL per token
	ClosePrice *float64 // nil while open
	Amount     float64  // tokens bought
	Total      float64  // SOL spent

	Profit *float64 // SOL, (close-open)*amount
	Ratio  *float64 // %, rounded to 2 places

	Status TradeStatus
}

// CloseOutcome is what closing a trade computed.
type CloseOutcome struct {
	Profit     float64
	Ratio      float64
	DurationMs int64
}

// TradeSide distinguishes buys from sells in results and journals.
type TradeSide string

// Trade sides.
const (
	SideBuy  TradeSide = "BUY"
	SideSell TradeSide = "SELL"
)

// TradeResult is the outcome of one buy or sell attempt.
type TradeResult struct {
	Success   bool
	Signature string
	Error     string

	// Set on success
	Amount float64 // tokens
	Total  float64 // SOL
	Price  float64 // SOL per token
}

// FailedTrade builds an unsuccessful result carrying msg.
func FailedTrade(msg string) TradeResult {
	return TradeResult{Success: false, Error: msg}
}

// ExitReason is why a monitored position was closed.
type ExitReason string

// Exit reasons.
const (
	ExitStopLoss     ExitReason = "STOP_LOSS"
	ExitTakeProfit   ExitReason = "TAKE_PROFIT"
	ExitIdle         ExitReason = "IDLE"
	ExitMonitorError ExitReason = "MONITOR_ERROR"
)
