package accrual

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/koi-labs/koi-ledger/internal/model"
)

// DefaultNegligible is the remainder below which a pending deposit is
// considered fully arrived.
var DefaultNegligible = decimal.New(1, -9)

// Phased queues every deposit as its own pending entry. Balance compounds
// continuously while each entry decays independently into it:
//
//	interest  = Balance * (exp(rate*dt) - 1)
//	arrived   = Remaining * (1 - exp(-ArrivalRate*dt))
//
// Decay is memoryless, so decaying Remaining over the wallet's elapsed time
// is the same as decaying Amount from the entry's Start.
type Phased struct {
	ArrivalRate float64
	Negligible  decimal.Decimal
}

func (Phased) Name() string { return PolicyPhased }

func (p Phased) Settle(w model.Wallet, now time.Time, env Env) (model.Wallet, decimal.Decimal) {
	w = w.Clone()
	dt := elapsedYears(w, now)
	advance(&w, now)
	if w.Issuer || w.Contract || dt == 0 {
		return w, decimal.Zero
	}

	rate := env.Rate.Annual(env.Issuer)
	interest := mint(model.Round(w.Balance.Mul(growth(rate*dt))), env.Issuer)
	w.Balance = w.Balance.Add(interest)

	frac := arrival(p.ArrivalRate * dt)
	kept := w.Pending[:0]
	for _, d := range w.Pending {
		arrived := decimal.Min(model.Round(d.Remaining.Mul(frac)), d.Remaining)
		d.Remaining = d.Remaining.Sub(arrived)
		w.Balance = w.Balance.Add(arrived)
		if d.Remaining.LessThan(p.Negligible) {
			// Fold the dust in so dropping the entry conserves value.
			w.Balance = w.Balance.Add(d.Remaining)
			continue
		}
		kept = append(kept, d)
	}
	w.Pending = kept
	if len(w.Pending) == 0 {
		w.Pending = nil
	}
	return w, interest.Neg()
}

func (Phased) Credit(w *model.Wallet, amount decimal.Decimal, origin string, now time.Time) {
	w.Pending = append(w.Pending, model.PendingDeposit{
		Amount:    amount,
		Remaining: amount,
		Origin:    origin,
		Start:     now,
	})
}

// TakeEncumbered draws from Locked, then Vested, then pending entries
// oldest first.
func (Phased) TakeEncumbered(w *model.Wallet, amount decimal.Decimal) decimal.Decimal {
	taken := take(&w.Locked, amount)
	taken = taken.Add(take(&w.Vested, amount.Sub(taken)))
	return taken.Add(takePending(w, amount.Sub(taken)))
}

// Unlock claims any Vested funds. Arrivals already land in Balance during
// settlement.
func (Phased) Unlock(w *model.Wallet) decimal.Decimal { return unlockVested(w) }

func (Phased) Locked(w model.Wallet) decimal.Decimal {
	total := w.Locked
	for _, d := range w.Pending {
		total = total.Add(d.Remaining)
	}
	return total
}

func (Phased) Draw(w *model.Wallet, amount decimal.Decimal) {
	rem := amount.Sub(take(&w.Locked, amount))
	takePending(w, rem)
}
