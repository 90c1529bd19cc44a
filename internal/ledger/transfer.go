package ledger

import (
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/koi-labs/koi-ledger/internal/lottery"
	"github.com/koi-labs/koi-ledger/internal/metrics"
	"github.com/koi-labs/koi-ledger/internal/model"
)

// Transfer moves amount from one wallet to another. A transfer to self is
// an early redemption of amount (see Redeem). After a successful transfer
// touching the lottery wallet the payout check runs.
func (l *Ledger) Transfer(fromName, toName string, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	from, err := l.lookup(fromName)
	if err != nil {
		metrics.TransfersTotal.WithLabelValues(outcome(err)).Inc()
		return err
	}
	to, err := l.lookup(toName)
	if err != nil {
		metrics.TransfersTotal.WithLabelValues(outcome(err)).Inc()
		return err
	}

	now := l.now()
	if from == to {
		err = l.redeem(from, amount, now)
	} else {
		err = l.transfer(from, to, amount, now)
	}
	metrics.TransfersTotal.WithLabelValues(outcome(err)).Inc()

	if err == nil && l.tracked >= 0 && (from == l.tracked || to == l.tracked) {
		l.maybeTrigger(now)
	}
	return err
}

// Redeem claims a wallet's vested funds and, when amount is positive, an
// early claim of amount against its locked funds at a penalty.
func (l *Ledger) Redeem(name string, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i, err := l.lookup(name)
	if err != nil {
		return err
	}
	err = l.redeem(i, amount, l.now())
	metrics.TransfersTotal.WithLabelValues(outcome(err)).Inc()
	return err
}

// transfer implements a move between two distinct wallets. Callers must
// hold mu. Nothing is written before every check has passed.
func (l *Ledger) transfer(from, to int, amount decimal.Decimal, now time.Time) error {
	amount = model.Round(amount)
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	sender, minted := l.settled(from, now)
	if sender.Balance.LessThan(amount) {
		return ErrInsufficientFunds
	}
	l.commit(from, sender, minted)

	s := &l.wallets[from]
	s.Balance = s.Balance.Sub(amount)
	s.Sent = s.Sent.Add(amount)

	// Fee on wallet-to-wallet moves, funded from the sender's encumbered
	// funds first, then what is left of the balance. Any shortfall comes
	// out of the amount transmitted.
	send := amount
	fee := decimal.Zero
	if from != l.issuer && to != l.issuer {
		fee = model.Round(amount.Mul(l.cfg.FeeRate))
		rem := fee.Sub(l.policy.TakeEncumbered(s, fee))
		fromBalance := decimal.Min(rem, s.Balance)
		s.Balance = s.Balance.Sub(fromBalance)
		rem = rem.Sub(fromBalance)
		send = send.Sub(rem)
		l.wallets[l.issuer].Balance = l.wallets[l.issuer].Balance.Add(fee)
		metrics.FeesCollected.Add(fee.InexactFloat64())
	}

	if to == l.tracked {
		l.contributions[from] = l.contributions[from].Add(send)
	}

	l.settle(to, now)
	r := &l.wallets[to]
	if r.Issuer || r.Contract {
		r.Balance = r.Balance.Add(send)
	} else {
		l.policy.Credit(r, send, l.wallets[from].Name, now)
	}

	l.append(from, to, send, fee, now)
	l.mustHold(from, to)
	l.signal()
	return nil
}

// redeem implements early settlement. The free unlock is always kept, even
// when the optional claim is rejected. Callers must hold mu.
func (l *Ledger) redeem(i int, amount decimal.Decimal, now time.Time) error {
	if i == l.issuer {
		return ErrSelfIssuerOperation
	}
	amount = model.Round(amount)
	if amount.IsNegative() {
		return ErrInvalidAmount
	}

	l.settle(i, now)
	w := &l.wallets[i]
	unlocked := l.policy.Unlock(w)

	var err error
	claimed, penalty := decimal.Zero, decimal.Zero
	if amount.IsPositive() {
		locked := l.policy.Locked(*w)
		ceiling := model.Round(locked.Mul(l.cfg.ClaimCeiling))
		if amount.GreaterThan(ceiling) {
			err = ErrExceedsAvailable
		} else {
			drawn := decimal.Min(amount.Add(model.Round(amount.Mul(l.cfg.PenaltyRate))), locked)
			penalty = drawn.Sub(amount)
			claimed = amount
			w.Balance = w.Balance.Add(amount)
			l.policy.Draw(w, drawn)
			l.wallets[l.issuer].Balance = l.wallets[l.issuer].Balance.Add(penalty)
			metrics.FeesCollected.Add(penalty.InexactFloat64())
		}
	}

	if total := unlocked.Add(claimed); total.IsPositive() {
		l.append(i, i, total, penalty, now)
	}
	l.mustHold(i)
	l.signal()
	return err
}

// maybeTrigger pays the lottery prize to one contributor, chosen with
// probability proportional to contribution, once the tracked wallet's
// balance exceeds the threshold. Callers must hold mu.
func (l *Ledger) maybeTrigger(now time.Time) {
	l.settle(l.tracked, now)
	pot := l.wallets[l.tracked]
	if !pot.Balance.GreaterThan(l.cfg.Lottery.Threshold) {
		return
	}
	winner, err := lottery.Pick(l.contributions, l.rng)
	if err != nil {
		return
	}

	if err := l.transfer(l.tracked, winner, l.cfg.Lottery.Payout, now); err != nil {
		slog.Warn("lottery payout failed", "winner", l.wallets[winner].Name, "err", err)
	} else {
		metrics.LotteryPayouts.Inc()
		slog.Info("lottery payout",
			"wallet", pot.Name,
			"winner", l.wallets[winner].Name,
			"payout", l.cfg.Lottery.Payout.String(),
		)
	}
	for i := range l.contributions {
		l.contributions[i] = decimal.Zero
	}
}

func (l *Ledger) append(from, to int, amount, fee decimal.Decimal, now time.Time) {
	l.log = append(l.log, model.LogEntry{
		ID:        uuid.NewString(),
		From:      l.wallets[from].Name,
		To:        l.wallets[to].Name,
		Amount:    amount,
		Fee:       fee,
		Timestamp: now,
	})
}

// outcome maps an operation result to its metrics label.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrExceedsAvailable):
		return "exceeds_available"
	case errors.Is(err, ErrSelfIssuerOperation):
		return "self_issuer"
	case errors.Is(err, ErrUnknownWallet):
		return "unknown_wallet"
	default:
		return "error"
	}
}
