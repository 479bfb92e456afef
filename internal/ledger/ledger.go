package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrWalletNotFound is returned when the wallet does not exist or is owned
	// by someone other than the caller. The two cases are indistinguishable on purpose.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrValidation wraps malformed transaction input.
	ErrValidation = errors.New("validation failed")

	// ErrBalanceOutOfRange is returned when a posting would move the balance
	// past what the ledger can store.
	ErrBalanceOutOfRange = fmt.Errorf("%w: resulting balance is out of range", ErrValidation)
)

// maxMagnitude bounds both amounts and balances; wallets.balance is NUMERIC(20,4).
var maxMagnitude = decimal.New(1, 16)

func balanceInRange(d decimal.Decimal) bool {
	return d.Abs().LessThan(maxMagnitude)
}

// Type tags a transaction as increasing or decreasing the wallet balance.
type Type string

const (
	// Credit increases the wallet balance.
	Credit Type = "credit"
	// Debit decreases the wallet balance.
	Debit Type = "debit"
)

// Valid reports whether t is a known transaction type.
func (t Type) Valid() bool {
	return t == Credit || t == Debit
}

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// Transaction is an immutable monetary event attributed to a wallet and its owner.
// Amount is always a non-negative magnitude; Type carries the sign.
type Transaction struct {
	ID        string
	WalletID  string
	OwnerID   string
	Amount    decimal.Decimal
	Type      Type
	Category  string
	Notes     string
	Date      time.Time
	CreatedAt time.Time
}

// Signed returns the amount with the sign implied by the transaction type.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == Debit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// Posting is the outcome of recording a transaction.
type Posting struct {
	Transaction Transaction
	Balance     decimal.Decimal
}

// Reconciliation compares the cached wallet balance with the sum of its transactions.
type Reconciliation struct {
	WalletID string
	Cached   decimal.Decimal
	Derived  decimal.Decimal
	InSync   bool
}

func newReconciliation(walletID string, cached, derived decimal.Decimal) Reconciliation {
	return Reconciliation{WalletID: walletID, Cached: cached, Derived: derived, InSync: cached.Equal(derived)}
}

// Page bounds a history listing.
type Page struct {
	Limit  int
	Offset int
}

// Normalize clamps the page to the supported range.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = defaultPageLimit
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Ledger is implemented by storage backends. Post must apply the transaction
// insert and the balance increment as a single atomic unit, scoped to the owner.
type Ledger interface {
	OpenAccount(ctx context.Context, walletID, ownerID string) error
	Balance(ctx context.Context, walletID string) (decimal.Decimal, error)
	Balances(ctx context.Context, walletIDs []string) (map[string]decimal.Decimal, error)
	Post(ctx context.Context, tx Transaction) (Posting, error)
	History(ctx context.Context, walletID, ownerID string, page Page) ([]Transaction, error)
	Reconcile(ctx context.Context, walletID, ownerID string) (Reconciliation, error)
}
