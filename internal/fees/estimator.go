// Package fees computes the compute-unit price attached to trades.
package fees

import (
	"context"
	"log"
	"sort"

	"pump-agent/internal/solana"
)

// FeeSampler returns recent prioritization fee samples.
type FeeSampler interface {
	GetRecentPrioritizationFees(ctx context.Context, accounts []string) ([]solana.PrioritizationFee, error)
}

// Source yields a base fee in micro-lamports per compute unit, or false when
// it has no opinion.
type Source interface {
	BaseFee(ctx context.Context, accounts []string) (uint64, bool)
}

// Dynamic samples recent fees and takes the 7th decile boundary.
type Dynamic struct {
	sampler FeeSampler
	logger  *log.Logger
}

// NewDynamic creates a Dynamic source.
func NewDynamic(sampler FeeSampler, logger *log.Logger) *Dynamic {
	if logger == nil {
		logger = log.Default()
	}
	return &Dynamic{sampler: sampler, logger: logger}
}

// BaseFee returns the sampled fee. Sampling errors and empty samples yield false.
func (d *Dynamic) BaseFee(ctx context.Context, accounts []string) (uint64, bool) {
	samples, err := d.sampler.GetRecentPrioritizationFees(ctx, accounts)
	if err != nil {
		d.logger.Printf("[fees] Failed to fetch recent priority fees: %v", err)
		return 0, false
	}
	if len(samples) == 0 {
		d.logger.Printf("[fees] No prioritization fees in response")
		return 0, false
	}
	values := make([]uint64, len(samples))
	for i, s := range samples {
		values[i] = s.PrioritizationFee
	}
	return uint64(DecileBoundary(values, 7)), true
}

// Fixed is a constant fee. Zero means no fee.
type Fixed struct {
	Fee uint64
}

// BaseFee returns the constant unless it is zero.
func (f Fixed) BaseFee(context.Context, []string) (uint64, bool) {
	return f.Fee, f.Fee > 0
}

// Config selects and tunes the strategies.
type Config struct {
	Dynamic bool
	Fixed   bool
	// FixedFee is the constant used by the fixed strategy.
	FixedFee uint64
	// Extra scales the base fee by (1+Extra).
	Extra   float64
	HardCap uint64
}

// Estimator tries the dynamic source, then the fixed one, scales the result
// and clamps it to the hard cap.
type Estimator struct {
	sources []Source
	extra   float64
	hardCap uint64
	logger  *log.Logger

	// OnFee observes every returned fee.
	OnFee func(fee uint64)
}

// New builds an Estimator from cfg. With neither strategy enabled it always
// returns no fee.
func New(sampler FeeSampler, cfg Config, logger *log.Logger) *Estimator {
	if logger == nil {
		logger = log.Default()
	}
	e := &Estimator{extra: cfg.Extra, hardCap: cfg.HardCap, logger: logger}
	if cfg.Dynamic && sampler != nil {
		e.sources = append(e.sources, NewDynamic(sampler, logger))
	}
	if cfg.Fixed {
		e.sources = append(e.sources, Fixed{Fee: cfg.FixedFee})
	}
	return e
}

// NewWithSources builds an Estimator over explicit sources, tried in order.
func NewWithSources(extra float64, hardCap uint64, logger *log.Logger, sources ...Source) *Estimator {
	if logger == nil {
		logger = log.Default()
	}
	return &Estimator{sources: sources, extra: extra, hardCap: hardCap, logger: logger}
}

// PriorityFee returns the fee to attach, or nil for none.
func (e *Estimator) PriorityFee(ctx context.Context, accounts []string) *uint64 {
	for _, src := range e.sources {
		base, ok := src.BaseFee(ctx, accounts)
		if !ok {
			continue
		}
		fee := uint64(float64(base) * (1 + e.extra))
		if fee > e.hardCap {
			e.logger.Printf("[fees] Calculated priority fee %d exceeds hard cap %d, applying cap", fee, e.hardCap)
			fee = e.hardCap
		}
		if e.OnFee != nil {
			e.OnFee(fee)
		}
		return &fee
	}
	return nil
}

// DecileBoundary returns the i-th of the nine boundaries splitting data into
// ten groups, interpolated with the exclusive method (the (n+1)p rule).
// A single sample is its own boundary; no samples yield 0.
func DecileBoundary(data []uint64, i int) float64 {
	const n = 10
	ld := len(data)
	switch ld {
	case 0:
		return 0
	case 1:
		return float64(data[0])
	}

	sorted := append([]uint64(nil), data...)
	sort.Slice(sorted, func(a, b int) bool { return sorted[a] < sorted[b] })

	m := ld + 1
	j := i * m / n
	if j < 1 {
		j = 1
	} else if j > ld-1 {
		j = ld - 1
	}
	delta := i*m - j*n
	return (float64(sorted[j-1])*float64(n-delta) + float64(sorted[j])*float64(delta)) / n
}
