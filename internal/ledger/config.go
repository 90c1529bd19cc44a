package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/koi-labs/koi-ledger/internal/accrual"
	"github.com/koi-labs/koi-ledger/internal/lottery"
)

// Rate models accepted in Config.RateModel.
const (
	RateReserve = "reserve"
	RateFixed   = "fixed"
)

// Config holds the economy's constants and the initial roster.
type Config struct {
	Supply    decimal.Decimal // minted into the issuer at start
	Rate      float64         // base annual interest rate
	RateModel string          // RateReserve or RateFixed
	VestRate  float64         // unlock rate (vesting) or arrival rate (phased)
	Policy    string          // accrual.PolicyVesting or accrual.PolicyPhased

	FeeRate        decimal.Decimal // transfer fee when neither side is the issuer
	DirectFraction decimal.Decimal // share of a vesting deposit credited directly
	ClaimCeiling   decimal.Decimal // max early claim as a fraction of locked funds
	PenaltyRate    decimal.Decimal // early claim penalty as a fraction of the claim

	Issuer   string
	Wallets  []WalletSpec    // named wallets after the issuer, in order
	Size     int             // total roster size; the rest are W00007-style fillers
	GiftPool decimal.Decimal // split randomly among wallets without a fixed gift

	Lottery lottery.Config
}

// WalletSpec describes one named wallet of the initial roster.
type WalletSpec struct {
	Name     string
	Contract bool
	Gift     decimal.Decimal // fixed initial gift from the issuer
}

// DefaultConfig returns the reference economy: a 1e9 supply held by Koi,
// 10% of it gifted away (1% to Alice, 9% split randomly), reserve-backed
// interest of 10/27 per year and a vesting rate ten times that.
func DefaultConfig() Config {
	rate := 10.0 / 27.0
	third := decimal.NewFromInt(1).Div(decimal.NewFromInt(3))
	return Config{
		Supply:         decimal.NewFromInt(1_000_000_000),
		Rate:           rate,
		RateModel:      RateReserve,
		VestRate:       rate * 10,
		Policy:         accrual.PolicyVesting,
		FeeRate:        decimal.New(1, -3),
		DirectFraction: third,
		ClaimCeiling:   decimal.NewFromFloat(0.75),
		PenaltyRate:    third,
		Issuer:         "Koi",
		Wallets: []WalletSpec{
			{Name: "Alice", Gift: decimal.NewFromInt(10_000_000)},
			{Name: "Bob"},
			{Name: "Carol"},
			{Name: "Dan"},
			{Name: "Eve"},
			{Name: "Millionaire", Contract: true},
		},
		Size:     100,
		GiftPool: decimal.NewFromInt(90_000_000),
		Lottery: lottery.Config{
			Wallet:    "Millionaire",
			Threshold: decimal.NewFromInt(1_001_001),
			Payout:    decimal.NewFromInt(1_000_000),
		},
	}
}

// Validate checks the configuration for values the ledger cannot honor.
func (c Config) Validate() error {
	if !c.Supply.IsPositive() {
		return fmt.Errorf("ledger: supply must be positive")
	}
	if c.Rate < 0 || c.VestRate < 0 {
		return fmt.Errorf("ledger: rates must be non-negative")
	}
	if c.RateModel != RateReserve && c.RateModel != RateFixed {
		return fmt.Errorf("ledger: unknown rate model %q", c.RateModel)
	}
	one := decimal.NewFromInt(1)
	for name, f := range map[string]decimal.Decimal{
		"fee rate":        c.FeeRate,
		"direct fraction": c.DirectFraction,
		"claim ceiling":   c.ClaimCeiling,
		"penalty rate":    c.PenaltyRate,
	} {
		if f.IsNegative() || f.GreaterThan(one) {
			return fmt.Errorf("ledger: %s must be within [0, 1], got %s", name, f)
		}
	}
	if c.ClaimCeiling.Mul(one.Add(c.PenaltyRate)).GreaterThan(one) {
		return fmt.Errorf("ledger: claim ceiling plus penalty exceeds locked funds")
	}
	if c.Issuer == "" {
		return fmt.Errorf("ledger: issuer name is required")
	}

	seen := map[string]bool{c.Issuer: true}
	gifts := c.GiftPool
	if gifts.IsNegative() {
		return fmt.Errorf("ledger: gift pool must be non-negative")
	}
	for _, w := range c.Wallets {
		if w.Name == "" {
			return fmt.Errorf("ledger: wallet name is required")
		}
		if seen[w.Name] {
			return fmt.Errorf("ledger: duplicate wallet %q", w.Name)
		}
		seen[w.Name] = true
		if w.Gift.IsNegative() {
			return fmt.Errorf("ledger: gift for %q must be non-negative", w.Name)
		}
		gifts = gifts.Add(w.Gift)
	}
	if gifts.GreaterThan(c.Supply) {
		return fmt.Errorf("ledger: gifts %s exceed supply %s", gifts, c.Supply)
	}
	if c.Lottery.Enabled() {
		if !seen[c.Lottery.Wallet] || c.Lottery.Wallet == c.Issuer {
			return fmt.Errorf("ledger: lottery wallet %q must be a named non-issuer wallet", c.Lottery.Wallet)
		}
		if !c.Lottery.Payout.IsPositive() || c.Lottery.Threshold.LessThan(c.Lottery.Payout) {
			return fmt.Errorf("ledger: lottery payout must be positive and not above the threshold")
		}
	}
	return nil
}

func (c Config) rate() accrual.Rate {
	if c.RateModel == RateFixed {
		return accrual.FixedRate{Base: c.Rate}
	}
	return accrual.ReserveRate{Base: c.Rate, Supply: c.Supply}
}
