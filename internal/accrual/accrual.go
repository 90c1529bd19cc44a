// Package accrual implements the continuous-time settlement rules that bring
// a wallet's balance up to a given instant.
//
// Settlement is lazy: a wallet is only recomputed when it is about to be read
// or mutated. Every policy is a pure function of (wallet, now, env) and
// returns the issuer-side delta for the interest it minted, so the caller
// can apply both sides in the same step.
//
// Growth factors use math.Expm1 in float64 for accuracy near zero elapsed
// time; the results are immediately converted to decimal and rounded to
// model.AmountScale.
package accrual

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/koi-labs/koi-ledger/internal/model"
)

// Policy is a settlement strategy together with its deposit rule. The
// ledger selects one policy at construction time.
type Policy interface {
	// Name identifies the policy in snapshots and configuration.
	Name() string

	// Settle returns w brought up to now and the issuer delta (zero or
	// negative) funding the interest that was credited. w is not modified.
	Settle(w model.Wallet, now time.Time, env Env) (model.Wallet, decimal.Decimal)

	// Credit applies the recipient-side deposit rule for an ordinary wallet.
	Credit(w *model.Wallet, amount decimal.Decimal, origin string, now time.Time)

	// TakeEncumbered removes up to amount from encumbered funds in priority
	// order and returns what was actually taken.
	TakeEncumbered(w *model.Wallet, amount decimal.Decimal) decimal.Decimal

	// Unlock moves the fully vested sub-balance into Balance and returns
	// the amount moved.
	Unlock(w *model.Wallet) decimal.Decimal

	// Locked returns the still-encumbered amount an early claim may draw on.
	Locked(w model.Wallet) decimal.Decimal

	// Draw removes amount from the locked funds reported by Locked.
	Draw(w *model.Wallet, amount decimal.Decimal)
}

// Env is the ledger-wide context a settlement step depends on.
type Env struct {
	Issuer decimal.Decimal // issuer's balance before this step
	Rate   Rate
}

// Rate yields the annual continuous interest rate.
type Rate interface {
	Annual(issuer decimal.Decimal) float64
	Nominal() float64
}

// FixedRate pays the same annual rate regardless of the reserve.
type FixedRate struct {
	Base float64
}

func (r FixedRate) Annual(decimal.Decimal) float64 { return r.Base }
func (r FixedRate) Nominal() float64                { return r.Base }

// ReserveRate scales the base rate by the fraction of the total supply
// still held by the issuer: rate = Base * max(issuer, 0) / Supply.
type ReserveRate struct {
	Base   float64
	Supply decimal.Decimal
}

func (r ReserveRate) Annual(issuer decimal.Decimal) float64 {
	if !r.Supply.IsPositive() || !issuer.IsPositive() {
		return 0
	}
	return r.Base * issuer.InexactFloat64() / r.Supply.InexactFloat64()
}

func (r ReserveRate) Nominal() float64 { return r.Base }

// Policy names accepted by New.
const (
	PolicyVesting = "vesting"
	PolicyPhased  = "phased"
)

// New returns the policy registered under name.
func New(name string, vestRate float64, directFraction decimal.Decimal) (Policy, error) {
	switch name {
	case PolicyVesting:
		return Vesting{VestRate: vestRate, DirectFraction: directFraction}, nil
	case PolicyPhased:
		return Phased{ArrivalRate: vestRate, Negligible: DefaultNegligible}, nil
	default:
		return nil, fmt.Errorf("accrual: unknown policy %q", name)
	}
}

// maxFactor bounds growth factors so a pathological elapsed time saturates
// instead of overflowing float64.
const maxFactor = 1e18

// growth returns exp(x) - 1 as a decimal.
func growth(x float64) decimal.Decimal {
	if x <= 0 {
		return decimal.Zero
	}
	f := math.Expm1(x)
	if math.IsInf(f, 0) || f > maxFactor {
		f = maxFactor
	}
	return decimal.NewFromFloat(f)
}

// arrival returns 1 - exp(-x) as a decimal in [0, 1].
func arrival(x float64) decimal.Decimal {
	if x <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(-math.Expm1(-x))
}

// elapsedYears is the non-negative accrual time between the wallet's last
// settlement and now.
func elapsedYears(w model.Wallet, now time.Time) float64 {
	if !now.After(w.LastSettled) {
		return 0
	}
	return now.Sub(w.LastSettled).Seconds() / model.SecondsPerYear
}

// advance moves LastSettled forward to now; it never moves it back.
func advance(w *model.Wallet, now time.Time) {
	if now.After(w.LastSettled) {
		w.LastSettled = now
	}
}

// mint caps interest at what the issuer can fund.
func mint(interest, issuer decimal.Decimal) decimal.Decimal {
	if !issuer.IsPositive() {
		return decimal.Zero
	}
	return decimal.Min(interest, issuer)
}

// take removes up to rem from *field and returns the amount removed.
func take(field *decimal.Decimal, rem decimal.Decimal) decimal.Decimal {
	if !rem.IsPositive() || !field.IsPositive() {
		return decimal.Zero
	}
	t := decimal.Min(*field, rem)
	*field = field.Sub(t)
	return t
}

// takePending drains pending deposits oldest first, dropping emptied entries.
func takePending(w *model.Wallet, rem decimal.Decimal) decimal.Decimal {
	taken := decimal.Zero
	kept := w.Pending[:0]
	for _, p := range w.Pending {
		taken = taken.Add(take(&p.Remaining, rem.Sub(taken)))
		if p.Remaining.IsPositive() {
			kept = append(kept, p)
		}
	}
	w.Pending = kept
	if len(w.Pending) == 0 {
		w.Pending = nil
	}
	return taken
}

// unlockVested moves the whole Vested sub-balance into Balance.
func unlockVested(w *model.Wallet) decimal.Decimal {
	moved := w.Vested
	w.Balance = w.Balance.Add(moved)
	w.Vested = decimal.Zero
	return moved
}
