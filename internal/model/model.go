// Package model defines the core domain types shared across the ledger.
// All monetary values use shopspring/decimal; float64 is only used for the
// transcendental growth factors, which are converted back immediately.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of decimal places every stored amount is
// rounded to after an arithmetic step.
var AmountScale int32 = 12

// SecondsPerYear is the year length used to convert elapsed wall time into
// accrual time.
const SecondsPerYear = 365.25 * 24 * 3600

// Wallet is the unit of account state. A wallet is created once at ledger
// initialization and never removed.
type Wallet struct {
	Name     string `json:"name"`
	Issuer   bool   `json:"issuer"`
	Contract bool   `json:"contract"` // holds spendable funds only

	Balance decimal.Decimal  `json:"balance"` // freely spendable, never negative
	Locked  decimal.Decimal  `json:"locked"`  // still vesting
	Vested  decimal.Decimal  `json:"vested"`  // unlocked, not yet claimed
	Pending []PendingDeposit `json:"pending,omitempty"`

	Sent        decimal.Decimal `json:"sent"` // lifetime amount sent
	LastSettled time.Time       `json:"last_settled"`
}

// Clone returns a deep copy of w. The pending queue is the only field
// sharing memory between copies.
func (w Wallet) Clone() Wallet {
	if w.Pending != nil {
		pending := make([]PendingDeposit, len(w.Pending))
		copy(pending, w.Pending)
		w.Pending = pending
	}
	return w
}

// Encumbered returns the total not yet spendable: locked, vested and the
// remaining part of every pending deposit.
func (w Wallet) Encumbered() decimal.Decimal {
	total := w.Locked.Add(w.Vested)
	for _, p := range w.Pending {
		total = total.Add(p.Remaining)
	}
	return total
}

// Holdings returns Balance plus Encumbered.
func (w Wallet) Holdings() decimal.Decimal {
	return w.Balance.Add(w.Encumbered())
}

// PendingDeposit is a transfer still phasing into the recipient's balance.
type PendingDeposit struct {
	Amount    decimal.Decimal `json:"amount"`    // credited amount
	Remaining decimal.Decimal `json:"remaining"` // not yet arrived
	Origin    string          `json:"origin"`
	Start     time.Time       `json:"start"`
}

// LogEntry is an immutable record of a value move. Once appended, entries
// are never modified or removed.
// Schema: {from, to, amount, fee, timestamp}
type LogEntry struct {
	ID        string          `json:"id" db:"id"`
	From      string          `json:"from" db:"from_wallet"`
	To        string          `json:"to" db:"to_wallet"`
	Amount    decimal.Decimal `json:"amount" db:"amount"` // amount transmitted
	Fee       decimal.Decimal `json:"fee" db:"fee"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
}

// View is a read-only, self-contained projection of the ledger: every
// wallet's settled state, the full log and the configured constants.
type View struct {
	Wallets        []Wallet        `json:"wallets"`
	Log            []LogEntry      `json:"log"`
	Policy         string          `json:"policy"`
	Rate           float64         `json:"rate"`
	VestRate       float64         `json:"vest_rate"`
	SecondsPerYear float64         `json:"spy"`
	Supply         decimal.Decimal `json:"supply"`
	Reserve        decimal.Decimal `json:"reserve"` // issuer funds left after the initial gifts
	Timestamp      time.Time       `json:"t"`
}

// Round rounds an amount to AmountScale.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(AmountScale)
}
