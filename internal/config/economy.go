package config

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"

	"github.com/koi-labs/koi-ledger/internal/accrual"
	"github.com/koi-labs/koi-ledger/internal/ledger"
	"github.com/koi-labs/koi-ledger/internal/lottery"
)

// Amount is a decimal that decodes from either a YAML number or a string.
// Strings keep full precision.
type Amount struct {
	decimal.Decimal
}

func (a *Amount) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw interface{}
	if err := unmarshal(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		a.Decimal = decimal.NewFromFloat(v)
		return nil
	case int, int64, uint64:
		a.Decimal = decimal.RequireFromString(fmt.Sprint(v))
		return nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return errors.Wrapf(err, "invalid amount %q", v)
		}
		a.Decimal = d
		return nil
	default:
		return errors.Errorf("invalid amount %v", raw)
	}
}

// Economy is the YAML form of the ledger's parameters.
type Economy struct {
	Supply         Amount         `yaml:"supply"`
	Rate           float64        `yaml:"rate"`
	RateModel      string         `yaml:"rate_model"`
	VestRate       float64        `yaml:"vest_rate"`
	Policy         string         `yaml:"policy"`
	FeeRate        Amount         `yaml:"fee_rate"`
	DirectFraction Amount         `yaml:"direct_fraction"`
	ClaimCeiling   Amount         `yaml:"claim_ceiling"`
	PenaltyRate    Amount         `yaml:"penalty_rate"`
	Issuer         string         `yaml:"issuer"`
	Size           int            `yaml:"size"`
	GiftPool       Amount         `yaml:"gift_pool"`
	Wallets        []WalletEntry  `yaml:"wallets"`
	Lottery        LotteryEntry   `yaml:"lottery"`
	Simulation     SimulationSpec `yaml:"simulation"`
}

// WalletEntry is one named roster wallet.
type WalletEntry struct {
	Name     string `yaml:"name"`
	Contract bool   `yaml:"contract"`
	Gift     Amount `yaml:"gift"`
}

// LotteryEntry configures the redistribution lottery. An empty wallet
// disables it.
type LotteryEntry struct {
	Wallet    string `yaml:"wallet"`
	Threshold Amount `yaml:"threshold"`
	Payout    Amount `yaml:"payout"`
}

// SimulationSpec tunes the synthetic activity driver.
type SimulationSpec struct {
	Exclude []string `yaml:"exclude"` // wallets that never send
}

// DefaultEconomy returns the reference economy in YAML form.
func DefaultEconomy() Economy {
	c := ledger.DefaultConfig()
	e := Economy{
		Supply:         Amount{c.Supply},
		Rate:           c.Rate,
		RateModel:      c.RateModel,
		VestRate:       c.VestRate,
		Policy:         c.Policy,
		FeeRate:        Amount{c.FeeRate},
		DirectFraction: Amount{c.DirectFraction},
		ClaimCeiling:   Amount{c.ClaimCeiling},
		PenaltyRate:    Amount{c.PenaltyRate},
		Issuer:         c.Issuer,
		Size:           c.Size,
		GiftPool:       Amount{c.GiftPool},
		Lottery: LotteryEntry{
			Wallet:    c.Lottery.Wallet,
			Threshold: Amount{c.Lottery.Threshold},
			Payout:    Amount{c.Lottery.Payout},
		},
		Simulation: SimulationSpec{Exclude: []string{"Alice"}},
	}
	for _, w := range c.Wallets {
		e.Wallets = append(e.Wallets, WalletEntry{Name: w.Name, Contract: w.Contract, Gift: Amount{w.Gift}})
	}
	return e
}

// LoadEconomy reads path over the defaults. An empty path returns the
// defaults unchanged.
func LoadEconomy(path string) (Economy, error) {
	e := DefaultEconomy()
	if path == "" {
		return e, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Economy{}, errors.Wrapf(err, "failed to read economy file %s", path)
	}
	if err := yaml.Unmarshal(raw, &e); err != nil {
		return Economy{}, errors.Wrapf(err, "failed to parse economy file %s", path)
	}
	if err := e.Validate(); err != nil {
		return Economy{}, errors.Wrapf(err, "invalid economy file %s", path)
	}
	return e, nil
}

// Validate checks the economy for values the ledger cannot honor.
func (e Economy) Validate() error {
	if e.Size < 0 {
		return errors.New("size must be non-negative")
	}
	if e.Policy != accrual.PolicyVesting && e.Policy != accrual.PolicyPhased {
		return errors.Errorf("unknown policy %q", e.Policy)
	}
	return e.ToLedger().Validate()
}

// ToLedger converts the economy to a ledger configuration.
func (e Economy) ToLedger() ledger.Config {
	c := ledger.Config{
		Supply:         e.Supply.Decimal,
		Rate:           e.Rate,
		RateModel:      e.RateModel,
		VestRate:       e.VestRate,
		Policy:         e.Policy,
		FeeRate:        e.FeeRate.Decimal,
		DirectFraction: e.DirectFraction.Decimal,
		ClaimCeiling:   e.ClaimCeiling.Decimal,
		PenaltyRate:    e.PenaltyRate.Decimal,
		Issuer:         e.Issuer,
		Size:           e.Size,
		GiftPool:       e.GiftPool.Decimal,
		Lottery: lottery.Config{
			Wallet:    e.Lottery.Wallet,
			Threshold: e.Lottery.Threshold.Decimal,
			Payout:    e.Lottery.Payout.Decimal,
		},
	}
	for _, w := range e.Wallets {
		c.Wallets = append(c.Wallets, ledger.WalletSpec{Name: w.Name, Contract: w.Contract, Gift: w.Gift.Decimal})
	}
	return c
}
