package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/walletbook/walletbook/internal/ledger"
	"github.com/walletbook/walletbook/internal/logging"
)

const (
	defaultCurrency  = "USD"
	maxNameLength    = 64
	maxPurposeLength = 255
)

// Service exposes wallet operations backed by the ledger.
type Service struct {
	repo   Repository
	ledger ledger.Ledger
	logger *slog.Logger
}

// NewService builds a wallet service instance.
func NewService(repo Repository, ledger ledger.Ledger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{repo: repo, ledger: ledger, logger: logger}
}

// CreateInput captures data required to create a wallet.
type CreateInput struct {
	OwnerID  string
	Name     string
	Purpose  string
	Currency string
}

// Create provisions a wallet and opens its ledger account at a zero balance.
func (s *Service) Create(ctx context.Context, input CreateInput) (Wallet, error) {
	name := strings.TrimSpace(input.Name)
	purpose := strings.TrimSpace(input.Purpose)
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = defaultCurrency
	}

	switch {
	case input.OwnerID == "":
		return Wallet{}, fmt.Errorf("%w: owner is required", ErrInvalid)
	case name == "":
		return Wallet{}, fmt.Errorf("%w: name is required", ErrInvalid)
	case len(name) > maxNameLength:
		return Wallet{}, fmt.Errorf("%w: name must be at most %d characters", ErrInvalid, maxNameLength)
	case len(purpose) > maxPurposeLength:
		return Wallet{}, fmt.Errorf("%w: purpose must be at most %d characters", ErrInvalid, maxPurposeLength)
	case !validCurrency(currency):
		return Wallet{}, fmt.Errorf("%w: currency must be a 3-letter code", ErrInvalid)
	}

	wallet := Wallet{
		ID:        uuid.NewString(),
		OwnerID:   input.OwnerID,
		Name:      name,
		Purpose:   purpose,
		Currency:  currency,
		Balance:   decimal.Zero,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, wallet); err != nil {
		return Wallet{}, err
	}
	if err := s.ledger.OpenAccount(ctx, wallet.ID, wallet.OwnerID); err != nil {
		// Roll back the wallet row so no wallet exists without a ledger account.
		if rmErr := s.repo.Delete(context.WithoutCancel(ctx), wallet.ID, wallet.OwnerID); rmErr != nil {
			s.logger.Error("wallet cleanup failed",
				slog.String("wallet_id", wallet.ID),
				slog.Any("error", rmErr),
			)
		}
		return Wallet{}, fmt.Errorf("open ledger account: %w", err)
	}

	s.logger.Info("wallet created",
		slog.String("wallet_id", wallet.ID),
		slog.String("owner_id", wallet.OwnerID),
		slog.String("currency", wallet.Currency),
	)
	return wallet, nil
}

// List returns the owner's wallets with their current balances.
func (s *Service) List(ctx context.Context, ownerID string) ([]Wallet, error) {
	wallets, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(wallets) == 0 {
		return wallets, nil
	}

	ids := make([]string, len(wallets))
	for i, w := range wallets {
		ids[i] = w.ID
	}
	balances, err := s.ledger.Balances(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range wallets {
		wallets[i].Balance = balances[wallets[i].ID]
	}
	return wallets, nil
}

// Get retrieves a wallet owned by ownerID along with its balance.
func (s *Service) Get(ctx context.Context, id, ownerID string) (Wallet, error) {
	wallet, err := s.repo.Get(ctx, id, ownerID)
	if err != nil {
		return Wallet{}, err
	}
	balance, err := s.ledger.Balance(ctx, wallet.ID)
	if err != nil {
		return Wallet{}, err
	}
	wallet.Balance = balance
	return wallet, nil
}

func validCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r > unicode.MaxASCII || !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}
