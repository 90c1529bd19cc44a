package ledger

import "errors"

// Domain errors. All are recoverable and returned to the caller; a rejected
// operation leaves the ledger exactly as it was.
var (
	// ErrInvalidAmount is returned for a non-positive transfer amount or a
	// negative redemption claim.
	ErrInvalidAmount = errors.New("ledger: invalid amount")

	// ErrInsufficientFunds is returned when the sender's settled spendable
	// balance is below the requested amount.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// ErrExceedsAvailable is returned when an early claim exceeds the
	// allowed fraction of locked funds.
	ErrExceedsAvailable = errors.New("ledger: claim exceeds available locked funds")

	// ErrSelfIssuerOperation is returned when the issuer tries to redeem.
	ErrSelfIssuerOperation = errors.New("ledger: issuer cannot redeem")

	// ErrUnknownWallet is returned when a name is not in the roster.
	ErrUnknownWallet = errors.New("ledger: unknown wallet")
)
