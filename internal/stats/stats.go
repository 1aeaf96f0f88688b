// Package stats summarizes the closed trades of a session.
package stats

import (
	"math"
	"sort"
)

// Outcome is the result of one closed trade.
type Outcome struct {
	TradeUUID string
	Mint      string
	ClosedAt  int64   // ms
	Profit    float64 // SOL
	Ratio     float64 // %
}

// Summary aggregates a session's outcomes. Ratio statistics are in percent,
// profit and drawdown in SOL.
type Summary struct {
	Trades       int
	Tokens       int
	Wins         int
	Losses       int
	WinRate      float64
	TokenWinRate float64

	TotalProfit float64
	RatioMean   float64
	RatioMedian float64
	RatioP10    float64
	RatioP90    float64
	RatioMin    float64
	RatioMax    float64
	RatioStddev float64

	MaxDrawdown          float64
	MaxConsecutiveLosses int
}

// Summarize computes the session summary. Outcomes are ordered by
// ClosedAt ASC, TradeUUID ASC before order-dependent figures.
func Summarize(outcomes []Outcome) Summary {
	n := len(outcomes)
	if n == 0 {
		return Summary{}
	}

	ordered := make([]Outcome, n)
	copy(ordered, outcomes)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].ClosedAt != ordered[j].ClosedAt {
			return ordered[i].ClosedAt < ordered[j].ClosedAt
		}
		return ordered[i].TradeUUID < ordered[j].TradeUUID
	})

	wins := 0
	ratios := make([]float64, n)
	profits := make([]float64, n)
	for i, o := range ordered {
		if o.Profit > 0 {
			wins++
		}
		ratios[i] = o.Ratio
		profits[i] = o.Profit
	}

	sorted := make([]float64, n)
	copy(sorted, ratios)
	sort.Float64s(sorted)

	mean := mean(ratios)
	tokens, tokenWinRate := tokenWinRate(ordered)

	return Summary{
		Trades:       n,
		Tokens:       tokens,
		Wins:         wins,
		Losses:       n - wins,
		WinRate:      float64(wins) / float64(n),
		TokenWinRate: tokenWinRate,

		TotalProfit: sum(profits),
		RatioMean:   mean,
		RatioMedian: percentile(sorted, 0.50),
		RatioP10:    percentile(sorted, 0.10),
		RatioP90:    percentile(sorted, 0.90),
		RatioMin:    sorted[0],
		RatioMax:    sorted[n-1],
		RatioStddev: stddev(ratios, mean),

		MaxDrawdown:          maxDrawdown(profits),
		MaxConsecutiveLosses: maxConsecutiveLosses(profits),
	}
}

// tokenWinRate counts a mint as winning when any of its trades made a profit.
func tokenWinRate(outcomes []Outcome) (int, float64) {
	if len(outcomes) == 0 {
		return 0, 0
	}
	won := make(map[string]bool)
	for _, o := range outcomes {
		won[o.Mint] = won[o.Mint] || o.Profit > 0
	}
	winning := 0
	for _, w := range won {
		if w {
			winning++
		}
	}
	return len(won), float64(winning) / float64(len(won))
}

func sum(xs []float64) float64 {
	total := 0.0
	for _, x := range xs {
		total += x
	}
	return total
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return sum(xs) / float64(len(xs))
}

// stddev is the sample standard deviation (n-1 denominator).
func stddev(xs []float64, mean float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, x := range xs {
		d := x - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// percentile interpolates linearly. sorted must be ascending.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// maxDrawdown is the worst peak-to-trough fall of cumulative profit.
func maxDrawdown(profits []float64) float64 {
	cumulative, peak, worst := 0.0, 0.0, 0.0
	for _, p := range profits {
		cumulative += p
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > worst {
			worst = dd
		}
	}
	return worst
}

// maxConsecutiveLosses is the longest run of trades with profit <= 0.
func maxConsecutiveLosses(profits []float64) int {
	longest, current := 0, 0
	for _, p := range profits {
		if p <= 0 {
			current++
			if current > longest {
				longest = current
			}
		} else {
			current = 0
		}
	}
	return longest
}
