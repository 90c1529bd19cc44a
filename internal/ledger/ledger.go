// Package ledger owns the wallet table, the append-only transaction log and
// the random source, and implements the transfer, redemption and lottery
// operations on top of the accrual policies.
//
// A single mutex serializes every read and write. No operation blocks while
// holding it: settlement and transfers are pure in-memory arithmetic and the
// mutation signal is non-blocking.
package ledger

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/koi-labs/koi-ledger/internal/accrual"
	"github.com/koi-labs/koi-ledger/internal/metrics"
	"github.com/koi-labs/koi-ledger/internal/model"
)

// Notifier receives a payload-less signal after every successful mutation.
type Notifier interface {
	Notify()
}

// Member is the static identity of a roster wallet.
type Member struct {
	Name     string `json:"name"`
	Issuer   bool   `json:"issuer"`
	Contract bool   `json:"contract"`
}

// Ledger is the single authoritative in-memory ledger.
type Ledger struct {
	mu sync.Mutex

	cfg    Config
	policy accrual.Policy
	rate   accrual.Rate

	wallets       []model.Wallet
	index         map[string]int
	issuer        int
	tracked       int // lottery wallet, -1 when disabled
	contributions []decimal.Decimal
	log           []model.LogEntry
	reserve       decimal.Decimal

	rng      *rand.Rand
	now      func() time.Time
	notifier Notifier
}

// Option customizes a Ledger at construction.
type Option func(*Ledger)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithRand sets the random source used for gifts and the lottery.
func WithRand(r *rand.Rand) Option {
	return func(l *Ledger) { l.rng = r }
}

// WithNotifier sets the mutation signal.
func WithNotifier(n Notifier) Option {
	return func(l *Ledger) { l.notifier = n }
}

// New builds the roster, mints the supply into the issuer and sends the
// initial gifts as ordinary transfers from the issuer.
func New(cfg Config, opts ...Option) (*Ledger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policy, err := accrual.New(cfg.Policy, cfg.VestRate, cfg.DirectFraction)
	if err != nil {
		return nil, err
	}

	l := &Ledger{
		cfg:     cfg,
		policy:  policy,
		rate:    cfg.rate(),
		index:   make(map[string]int),
		tracked: -1,
		now:     time.Now,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(l)
	}

	t := l.now()
	l.add(model.Wallet{Name: cfg.Issuer, Issuer: true, Balance: cfg.Supply, LastSettled: t})
	for _, spec := range cfg.Wallets {
		l.add(model.Wallet{Name: spec.Name, Contract: spec.Contract, LastSettled: t})
	}
	for i := len(l.wallets); i < cfg.Size; i++ {
		name := fmt.Sprintf("W%05d", i)
		if _, taken := l.index[name]; taken {
			continue
		}
		l.add(model.Wallet{Name: name, LastSettled: t})
	}
	l.contributions = make([]decimal.Decimal, len(l.wallets))
	if cfg.Lottery.Enabled() {
		l.tracked = l.index[cfg.Lottery.Wallet]
	}

	for i, gift := range l.gifts(cfg) {
		if !gift.IsPositive() {
			continue
		}
		if err := l.transfer(l.issuer, i, gift, t); err != nil {
			return nil, fmt.Errorf("ledger: initial gift to %s: %w", l.wallets[i].Name, err)
		}
	}
	l.reserve = l.wallets[l.issuer].Balance
	l.observe()
	return l, nil
}

func (l *Ledger) add(w model.Wallet) {
	l.index[w.Name] = len(l.wallets)
	l.wallets = append(l.wallets, w)
}

// gifts computes the initial gift per wallet index: fixed gifts from the
// named specs, and the pool divided among every other ordinary wallet by
// uniform random weights.
func (l *Ledger) gifts(cfg Config) []decimal.Decimal {
	out := make([]decimal.Decimal, len(l.wallets))
	fixed := make(map[int]bool)
	for _, spec := range cfg.Wallets {
		i := l.index[spec.Name]
		if spec.Gift.IsPositive() {
			out[i] = spec.Gift
			fixed[i] = true
		}
	}
	if !cfg.GiftPool.IsPositive() {
		return out
	}

	weights := make([]float64, len(l.wallets))
	sum := 0.0
	for i, w := range l.wallets {
		if w.Issuer || w.Contract || fixed[i] {
			continue
		}
		weights[i] = l.rng.Float64()
		sum += weights[i]
	}
	if sum == 0 {
		return out
	}
	// The last recipient takes the rounding residue so the pool is exact.
	remaining := cfg.GiftPool
	last := -1
	for i, w := range weights {
		if w == 0 {
			continue
		}
		out[i] = model.Round(cfg.GiftPool.Mul(decimal.NewFromFloat(w / sum)))
		remaining = remaining.Sub(out[i])
		last = i
	}
	out[last] = out[last].Add(remaining)
	return out
}

// settled returns wallet i brought up to now and the issuer delta, without
// committing either.
func (l *Ledger) settled(i int, now time.Time) (model.Wallet, decimal.Decimal) {
	env := accrual.Env{Issuer: l.wallets[l.issuer].Balance, Rate: l.rate}
	return l.policy.Settle(l.wallets[i], now, env)
}

// commit stores a settled wallet and applies its issuer delta.
func (l *Ledger) commit(i int, w model.Wallet, issuerDelta decimal.Decimal) {
	l.wallets[i] = w
	if !issuerDelta.IsZero() {
		l.wallets[l.issuer].Balance = l.wallets[l.issuer].Balance.Add(issuerDelta)
		metrics.InterestMinted.Add(issuerDelta.Neg().InexactFloat64())
	}
}

// settle brings wallet i up to now and commits the result.
func (l *Ledger) settle(i int, now time.Time) {
	w, delta := l.settled(i, now)
	l.commit(i, w, delta)
}

// signal raises the mutation notification.
func (l *Ledger) signal() {
	l.observe()
	if l.notifier != nil {
		l.notifier.Notify()
	}
}

func (l *Ledger) observe() {
	metrics.IssuerReserve.Set(l.wallets[l.issuer].Balance.InexactFloat64())
	metrics.LogEntries.Set(float64(len(l.log)))
}

// mustHold panics when a wallet touched by an operation holds a negative
// sub-balance. That can only be a logic bug.
func (l *Ledger) mustHold(idx ...int) {
	for _, i := range append(idx, l.issuer) {
		w := l.wallets[i]
		if w.Balance.IsNegative() || w.Locked.IsNegative() || w.Vested.IsNegative() {
			panic(fmt.Sprintf("ledger: invariant violated for %s: balance=%s locked=%s vested=%s",
				w.Name, w.Balance, w.Locked, w.Vested))
		}
		for _, p := range w.Pending {
			if p.Remaining.IsNegative() {
				panic(fmt.Sprintf("ledger: invariant violated for %s: pending %s", w.Name, p.Remaining))
			}
		}
	}
}

// lookup resolves a wallet name. Callers must hold mu.
func (l *Ledger) lookup(name string) (int, error) {
	i, ok := l.index[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownWallet, name)
	}
	return i, nil
}

// Snapshot settles every wallet and returns a self-contained copy of the
// ledger. It does not raise the mutation signal.
func (l *Ledger) Snapshot() model.View {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for i := range l.wallets {
		l.settle(i, now)
	}

	wallets := make([]model.Wallet, len(l.wallets))
	for i, w := range l.wallets {
		wallets[i] = w.Clone()
	}
	return model.View{
		Wallets:        wallets,
		Log:            append([]model.LogEntry(nil), l.log...),
		Policy:         l.policy.Name(),
		Rate:           l.rate.Nominal(),
		VestRate:       l.cfg.VestRate,
		SecondsPerYear: model.SecondsPerYear,
		Supply:         l.cfg.Supply,
		Reserve:        l.reserve,
		Timestamp:      now,
	}
}

// Wallet returns one wallet's settled state.
func (l *Ledger) Wallet(name string) (model.Wallet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i, err := l.lookup(name)
	if err != nil {
		return model.Wallet{}, err
	}
	l.settle(i, l.now())
	return l.wallets[i].Clone(), nil
}

// Members returns the roster's identities in roster order.
func (l *Ledger) Members() []Member {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Member, len(l.wallets))
	for i, w := range l.wallets {
		out[i] = Member{Name: w.Name, Issuer: w.Issuer, Contract: w.Contract}
	}
	return out
}

// EntriesSince returns the log entries appended after the first n.
func (l *Ledger) EntriesSince(n int) []model.LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n < 0 {
		n = 0
	}
	if n >= len(l.log) {
		return nil
	}
	return append([]model.LogEntry(nil), l.log[n:]...)
}

// Contributions returns the lottery accumulator by sender name, omitting
// senders with nothing recorded.
func (l *Ledger) Contributions() map[string]decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]decimal.Decimal)
	for i, c := range l.contributions {
		if c.IsPositive() {
			out[l.wallets[i].Name] = c
		}
	}
	return out
}

// Config returns the configuration the ledger was built with.
func (l *Ledger) Config() Config {
	return l.cfg
}
