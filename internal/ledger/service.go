package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/walletbook/walletbook/internal/logging"
	"github.com/walletbook/walletbook/internal/notification"
)

const (
	maxAmountScale    = 4
	maxCategoryLength = 64
	maxNotesLength    = 1000
)

// Service records transactions and keeps wallet balances in step with them.
type Service struct {
	ledger   Ledger
	notifier notification.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds a ledger service. notifier may be nil.
func NewService(ledger Ledger, notifier notification.Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{ledger: ledger, notifier: notifier, logger: logger, now: time.Now}
}

// AddInput captures a request to record a transaction against a wallet.
type AddInput struct {
	WalletID string
	OwnerID  string
	Amount   decimal.Decimal
	Type     Type
	Category string
	Notes    string
	// Date defaults to the time of recording when nil.
	Date *time.Time
}

// AddTransaction validates the input, then persists the transaction and applies
// its signed amount to the wallet balance as one atomic step.
func (s *Service) AddTransaction(ctx context.Context, input AddInput) (Posting, error) {
	if err := validate(&input); err != nil {
		return Posting{}, err
	}

	now := s.now().UTC()
	date := now
	if input.Date != nil && !input.Date.IsZero() {
		date = input.Date.UTC()
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Posting{}, fmt.Errorf("generate transaction id: %w", err)
	}

	posting, err := s.ledger.Post(ctx, Transaction{
		ID:        id.String(),
		WalletID:  input.WalletID,
		OwnerID:   input.OwnerID,
		Amount:    input.Amount,
		Type:      input.Type,
		Category:  input.Category,
		Notes:     input.Notes,
		Date:      date,
		CreatedAt: now,
	})
	if err != nil {
		return Posting{}, err
	}

	s.logger.Info("transaction recorded",
		slog.String("transaction_id", posting.Transaction.ID),
		slog.String("wallet_id", input.WalletID),
		slog.String("type", string(input.Type)),
		slog.String("amount", input.Amount.String()),
		slog.String("balance", posting.Balance.String()),
	)
	s.notify(ctx, posting)

	return posting, nil
}

// History lists the wallet's transactions, newest first.
func (s *Service) History(ctx context.Context, walletID, ownerID string, page Page) ([]Transaction, error) {
	return s.ledger.History(ctx, walletID, ownerID, page.Normalize())
}

// Reconcile recomputes the balance from the transaction history and compares
// it with the cached value.
func (s *Service) Reconcile(ctx context.Context, walletID, ownerID string) (Reconciliation, error) {
	rec, err := s.ledger.Reconcile(ctx, walletID, ownerID)
	if err != nil {
		return Reconciliation{}, err
	}
	if !rec.InSync {
		s.logger.Warn("wallet balance drift",
			slog.String("wallet_id", walletID),
			slog.String("cached", rec.Cached.String()),
			slog.String("derived", rec.Derived.String()),
		)
	}
	return rec, nil
}

func (s *Service) notify(ctx context.Context, posting Posting) {
	if s.notifier == nil {
		return
	}
	tx := posting.Transaction
	messages := []notification.Message{{
		Kind:        notification.KindTransactionRecorded,
		Destination: tx.OwnerID,
		WalletID:    tx.WalletID,
		Body:        fmt.Sprintf("%s of %s recorded, balance %s", tx.Type, tx.Amount, posting.Balance),
		At:          tx.CreatedAt,
	}}
	if posting.Balance.IsNegative() {
		messages = append(messages, notification.Message{
			Kind:        notification.KindWalletOverdrawn,
			Destination: tx.OwnerID,
			WalletID:    tx.WalletID,
			Body:        fmt.Sprintf("wallet balance is %s", posting.Balance),
			At:          tx.CreatedAt,
		})
	}
	for _, msg := range messages {
		if err := s.notifier.Send(ctx, msg); err != nil {
			s.logger.Warn("notification failed", slog.String("kind", msg.Kind), slog.Any("error", err))
		}
	}
}

func validate(input *AddInput) error {
	input.Category = strings.TrimSpace(input.Category)
	input.Notes = strings.TrimSpace(input.Notes)

	switch {
	case input.WalletID == "":
		return fmt.Errorf("%w: wallet id is required", ErrValidation)
	case input.Amount.IsNegative():
		return fmt.Errorf("%w: amount must not be negative", ErrValidation)
	case !input.Amount.Equal(input.Amount.Round(maxAmountScale)):
		return fmt.Errorf("%w: amount supports at most %d decimal places", ErrValidation, maxAmountScale)
	case input.Amount.GreaterThanOrEqual(maxMagnitude):
		return fmt.Errorf("%w: amount is too large", ErrValidation)
	case !input.Type.Valid():
		return fmt.Errorf("%w: type must be %q or %q", ErrValidation, Credit, Debit)
	case len(input.Category) > maxCategoryLength:
		return fmt.Errorf("%w: category must be at most %d characters", ErrValidation, maxCategoryLength)
	case len(input.Notes) > maxNotesLength:
		return fmt.Errorf("%w: notes must be at most %d characters", ErrValidation, maxNotesLength)
	}
	return nil
}
