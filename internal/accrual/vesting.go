package accrual

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/koi-labs/koi-ledger/internal/model"
)

// Vesting keeps an aggregate locked sub-balance per wallet. Deposits are
// split between Balance and Locked; locked funds unlock continuously into
// Vested, where they earn interest until claimed.
//
//	unlocked = min(Locked * (exp(VestRate*dt) - 1), Locked)
//	interest = (Balance + Vested + unlocked) * (exp(rate*dt) - 1)
type Vesting struct {
	VestRate       float64
	DirectFraction decimal.Decimal // share of a deposit credited to Balance
}

func (Vesting) Name() string { return PolicyVesting }

func (v Vesting) Settle(w model.Wallet, now time.Time, env Env) (model.Wallet, decimal.Decimal) {
	w = w.Clone()
	dt := elapsedYears(w, now)
	advance(&w, now)
	if w.Issuer || w.Contract || dt == 0 {
		return w, decimal.Zero
	}

	unlocked := decimal.Min(model.Round(w.Locked.Mul(growth(v.VestRate*dt))), w.Locked)
	base := w.Balance.Add(w.Vested).Add(unlocked)
	rate := env.Rate.Annual(env.Issuer)
	interest := mint(model.Round(base.Mul(growth(rate*dt))), env.Issuer)

	w.Balance = w.Balance.Add(interest)
	w.Vested = w.Vested.Add(unlocked)
	w.Locked = w.Locked.Sub(unlocked)
	return w, interest.Neg()
}

func (v Vesting) Credit(w *model.Wallet, amount decimal.Decimal, _ string, _ time.Time) {
	direct := model.Round(amount.Mul(v.DirectFraction))
	w.Balance = w.Balance.Add(direct)
	w.Locked = w.Locked.Add(amount.Sub(direct))
}

// TakeEncumbered draws from Locked first, then Vested.
func (Vesting) TakeEncumbered(w *model.Wallet, amount decimal.Decimal) decimal.Decimal {
	taken := take(&w.Locked, amount)
	return taken.Add(take(&w.Vested, amount.Sub(taken)))
}

func (Vesting) Unlock(w *model.Wallet) decimal.Decimal { return unlockVested(w) }

func (Vesting) Locked(w model.Wallet) decimal.Decimal { return w.Locked }

func (Vesting) Draw(w *model.Wallet, amount decimal.Decimal) {
	w.Locked = w.Locked.Sub(amount)
}
