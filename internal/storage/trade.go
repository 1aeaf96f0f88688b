package storage

import (
	"github.com/shopspring/decimal"

	"pump-agent/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// CloseOutcome computes profit, ratio and duration for closing t at
// closePrice. Profit is (close-open)*amount in SOL; ratio is the percent
// move rounded half away from zero to two places.
func CloseOutcome(t *domain.Trade, closePrice float64, closedAt int64) domain.CloseOutcome {
	open := decimal.NewFromFloat(t.OpenPrice)
	closeP := decimal.NewFromFloat(closePrice)
	amount := decimal.NewFromFloat(t.Amount)

	diff := closeP.Sub(open)
	profit := diff.Mul(amount)

	var ratio decimal.Decimal
	if !open.IsZero() {
		ratio = diff.Div(open).Mul(hundred).Round(2)
	}

	return domain.CloseOutcome{
		Profit:     profit.InexactFloat64(),
		Ratio:      ratio.InexactFloat64(),
		DurationMs: closedAt - t.OpenedAt,
	}
}

// Proceeds is the wallet credit for selling t's amount at closePrice.
func Proceeds(t *domain.Trade, closePrice float64) decimal.Decimal {
	return decimal.NewFromFloat(closePrice).Mul(decimal.NewFromFloat(t.Amount))
}

// ApplyClose mutates t into its CLOSED state.
func ApplyClose(t *domain.Trade, req CloseRequest, out domain.CloseOutcome) {
	sig := req.Signature
	closedAt := req.ClosedAt
	closePrice := req.ClosePrice
	profit, ratio, duration := out.Profit, out.Ratio, out.DurationMs

	t.CloseSignature = &sig
	t.ClosedAt = &closedAt
	t.ClosePrice = &closePrice
	t.Profit = &profit
	t.Ratio = &ratio
	t.DurationMs = &duration
	t.Status = domain.TradeStatusClosed
}
