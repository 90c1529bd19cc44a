// Package lottery provides the weighted random selection behind the
// redistribution lottery: a contribution-tracked wallet that, once its
// balance crosses a threshold, pays a fixed prize to one contributor chosen
// with probability proportional to what they sent it.
package lottery

import (
	"errors"
	"math/rand/v2"

	"github.com/shopspring/decimal"
)

var (
	// ErrNoWeight is returned when no candidate has a positive weight.
	ErrNoWeight = errors.New("lottery: no candidate with positive weight")

	// ErrNegativeWeight is returned when a weight is below zero.
	ErrNegativeWeight = errors.New("lottery: weights must be non-negative")
)

// Config describes the tracked wallet and its payout rule.
type Config struct {
	Wallet    string          // contribution-tracked wallet; empty disables the lottery
	Threshold decimal.Decimal // payout triggers when the balance exceeds this
	Payout    decimal.Decimal // fixed prize
}

// Enabled reports whether a tracked wallet is configured.
func (c Config) Enabled() bool {
	return c.Wallet != ""
}

// Pick returns an index into weights chosen with probability proportional
// to its weight. Zero weights are never chosen.
func Pick(weights []decimal.Decimal, r *rand.Rand) (int, error) {
	total := 0.0
	last := -1
	for i, w := range weights {
		if w.IsNegative() {
			return 0, ErrNegativeWeight
		}
		if w.IsPositive() {
			total += w.InexactFloat64()
			last = i
		}
	}
	if last < 0 {
		return 0, ErrNoWeight
	}

	x := r.Float64() * total
	acc := 0.0
	for i, w := range weights {
		if !w.IsPositive() {
			continue
		}
		acc += w.InexactFloat64()
		if x < acc {
			return i, nil
		}
	}
	// Float rounding can leave x == total; the last positive weight owns it.
	return last, nil
}
