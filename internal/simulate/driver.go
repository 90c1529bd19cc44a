// Package simulate generates synthetic activity: on a cron schedule it
// moves a small random share of a random wallet's balance to another
// wallet, favoring the lottery wallet.
package simulate

import (
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/robfig/cron"
	"github.com/shopspring/decimal"

	"github.com/koi-labs/koi-ledger/internal/ledger"
	"github.com/koi-labs/koi-ledger/internal/model"
)

// Share of the sender's settled balance moved per tick.
const (
	minShare = 0.001
	maxShare = 0.01
)

// ErrNoSender is returned by Tick when no wallet is allowed to send.
var ErrNoSender = errors.New("simulate: no eligible sender")

// Ledger is the part of the ledger the driver uses.
type Ledger interface {
	Members() []ledger.Member
	Wallet(name string) (model.Wallet, error)
	Transfer(from, to string, amount decimal.Decimal) error
}

// Move is one synthetic transfer.
type Move struct {
	From   string
	To     string
	Amount decimal.Decimal
}

// Driver issues synthetic transfers against a ledger.
type Driver struct {
	ledger  Ledger
	lottery string   // preferred target, empty when the lottery is disabled
	senders []string // non-issuer, non-contract, not excluded

	mu   sync.Mutex // guards rng
	rng  *rand.Rand
	cron *cron.Cron
}

// New creates a driver. Wallets in exclude never send.
func New(l Ledger, lotteryWallet string, exclude []string, r *rand.Rand) *Driver {
	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}
	d := &Driver{ledger: l, lottery: lotteryWallet, rng: r}
	for _, m := range l.Members() {
		if m.Issuer || m.Contract || skip[m.Name] || m.Name == lotteryWallet {
			continue
		}
		d.senders = append(d.senders, m.Name)
	}
	return d
}

// Start runs Tick on the given cron schedule, e.g. "@every 1s".
func (d *Driver) Start(spec string) error {
	c := cron.New()
	err := c.AddFunc(spec, func() {
		if _, err := d.Tick(); err != nil && !errors.Is(err, ErrNoSender) {
			slog.Debug("synthetic transfer rejected", "err", err)
		}
	})
	if err != nil {
		return err
	}
	d.cron = c
	c.Start()
	slog.Info("activity driver started", "schedule", spec, "senders", len(d.senders))
	return nil
}

// Stop halts the schedule. Running ticks are not interrupted.
func (d *Driver) Stop() {
	if d.cron != nil {
		d.cron.Stop()
	}
}

// Tick performs one synthetic transfer. A sender with nothing spendable
// makes the tick a no-op.
func (d *Driver) Tick() (Move, error) {
	mv, ok := d.plan()
	if !ok {
		return Move{}, ErrNoSender
	}
	w, err := d.ledger.Wallet(mv.From)
	if err != nil {
		return mv, err
	}
	if !w.Balance.IsPositive() {
		return mv, nil
	}

	d.mu.Lock()
	share := minShare + d.rng.Float64()*(maxShare-minShare)
	d.mu.Unlock()
	mv.Amount = model.Round(w.Balance.Mul(decimal.NewFromFloat(share)))

	if err := d.ledger.Transfer(mv.From, mv.To, mv.Amount); err != nil {
		return mv, err
	}
	slog.Debug("synthetic transfer", "from", mv.From, "to", mv.To, "amount", mv.Amount.String())
	return mv, nil
}

// plan picks the sender and target. Half of the moves go to the lottery
// wallet; the rest go to another eligible sender.
func (d *Driver) plan() (Move, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.senders) == 0 {
		return Move{}, false
	}
	i := d.rng.IntN(len(d.senders))
	mv := Move{From: d.senders[i]}

	switch {
	case d.lottery != "" && (len(d.senders) == 1 || d.rng.IntN(2) == 0):
		mv.To = d.lottery
	case len(d.senders) > 1:
		j := d.rng.IntN(len(d.senders) - 1)
		if j >= i {
			j++
		}
		mv.To = d.senders[j]
	default:
		return Move{}, false
	}
	return mv, true
}
