package wallet

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned for wallets that do not exist or belong to another owner.
	ErrNotFound = errors.New("wallet not found")
	// ErrNameTaken is returned when the owner already has a wallet with the same name.
	ErrNameTaken = errors.New("wallet name already in use")
	// ErrInvalid wraps malformed wallet input.
	ErrInvalid = errors.New("invalid wallet")
)

// Wallet is a named, single-currency container for transactions.
type Wallet struct {
	ID        string
	OwnerID   string
	Name      string
	Purpose   string
	Currency  string
	Balance   decimal.Decimal
	CreatedAt time.Time
}
