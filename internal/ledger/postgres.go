package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresLedger keeps the cached balance on the wallets row and appends to the
// transactions table inside one database transaction.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// OpenAccount is a no-op: the balance column is created with the wallet row at zero.
func (l *PostgresLedger) OpenAccount(_ context.Context, _, _ string) error {
	return nil
}

// Balance returns the cached balance for the wallet.
func (l *PostgresLedger) Balance(ctx context.Context, walletID string) (decimal.Decimal, error) {
	id, err := uuid.Parse(walletID)
	if err != nil {
		return decimal.Zero, ErrWalletNotFound
	}
	var text string
	if err := l.db.QueryRow(ctx, `SELECT balance::text FROM wallets WHERE id = $1`, id).Scan(&text); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrWalletNotFound
		}
		return decimal.Zero, err
	}
	return decimal.NewFromString(text)
}

// Balances returns cached balances for the given wallets in one query.
func (l *PostgresLedger) Balances(ctx context.Context, walletIDs []string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(walletIDs))
	ids := make([]uuid.UUID, 0, len(walletIDs))
	for _, raw := range walletIDs {
		if id, err := uuid.Parse(raw); err == nil {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := l.db.Query(ctx, `SELECT id, balance::text FROM wallets WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id   uuid.UUID
			text string
		)
		if err := rows.Scan(&id, &text); err != nil {
			return nil, err
		}
		balance, err := decimal.NewFromString(text)
		if err != nil {
			return nil, fmt.Errorf("parse balance for wallet %s: %w", id, err)
		}
		out[id.String()] = balance
	}
	return out, rows.Err()
}

// Post increments the owner's wallet balance and inserts the transaction atomically.
// The UPDATE takes the row lock, so concurrent posts to one wallet serialize on it.
func (l *PostgresLedger) Post(ctx context.Context, t Transaction) (Posting, error) {
	walletID, err := uuid.Parse(t.WalletID)
	if err != nil {
		return Posting{}, ErrWalletNotFound
	}
	ownerID, err := uuid.Parse(t.OwnerID)
	if err != nil {
		return Posting{}, ErrWalletNotFound
	}
	txID, err := uuid.Parse(t.ID)
	if err != nil {
		return Posting{}, fmt.Errorf("transaction id: %w", err)
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Posting{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var balanceText string
	err = tx.QueryRow(ctx, `UPDATE wallets SET balance = balance + $1::numeric
        WHERE id = $2 AND owner_id = $3
        RETURNING balance::text`, t.Signed().String(), walletID, ownerID).Scan(&balanceText)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Posting{}, ErrWalletNotFound
		}
		if isNumericOverflow(err) {
			return Posting{}, ErrBalanceOutOfRange
		}
		return Posting{}, err
	}

	if _, err := tx.Exec(ctx, `INSERT INTO transactions (id, wallet_id, owner_id, amount, type, category, notes, date, created_at)
        VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9)`,
		txID, walletID, ownerID, t.Amount.String(), string(t.Type), t.Category, t.Notes, t.Date.UTC(), t.CreatedAt.UTC()); err != nil {
		return Posting{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Posting{}, err
	}

	balance, err := decimal.NewFromString(balanceText)
	if err != nil {
		return Posting{}, fmt.Errorf("parse balance: %w", err)
	}
	return Posting{Transaction: t, Balance: balance}, nil
}

// isNumericOverflow reports a numeric_value_out_of_range error from the balance column.
func isNumericOverflow(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22003"
}

// History lists the wallet's transactions newest first.
func (l *PostgresLedger) History(ctx context.Context, walletID, ownerID string, page Page) ([]Transaction, error) {
	page = page.Normalize()
	wID, oID, err := l.ownedWallet(ctx, walletID, ownerID)
	if err != nil {
		return nil, err
	}

	rows, err := l.db.Query(ctx, `SELECT id, amount::text, type, category, notes, date, created_at
        FROM transactions
        WHERE wallet_id = $1
        ORDER BY date DESC, created_at DESC
        LIMIT $2 OFFSET $3`, wID, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Transaction, 0, page.Limit)
	for rows.Next() {
		var (
			id         uuid.UUID
			amountText string
			typ        string
			date       time.Time
			createdAt  time.Time
			t          Transaction
		)
		if err := rows.Scan(&id, &amountText, &typ, &t.Category, &t.Notes, &date, &createdAt); err != nil {
			return nil, err
		}
		if t.Amount, err = decimal.NewFromString(amountText); err != nil {
			return nil, fmt.Errorf("parse amount for transaction %s: %w", id, err)
		}
		t.ID = id.String()
		t.WalletID = wID.String()
		t.OwnerID = oID.String()
		t.Type = Type(typ)
		t.Date = date.UTC()
		t.CreatedAt = createdAt.UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

// Reconcile aggregates the signed transaction sum next to the cached balance.
func (l *PostgresLedger) Reconcile(ctx context.Context, walletID, ownerID string) (Reconciliation, error) {
	wID, oID, err := parseIDs(walletID, ownerID)
	if err != nil {
		return Reconciliation{}, err
	}
	const query = `
        SELECT w.balance::text,
               COALESCE(SUM(CASE WHEN t.type = 'credit' THEN t.amount ELSE -t.amount END), 0)::text
        FROM wallets w
        LEFT JOIN transactions t ON t.wallet_id = w.id
        WHERE w.id = $1 AND w.owner_id = $2
        GROUP BY w.balance`
	var cachedText, derivedText string
	if err := l.db.QueryRow(ctx, query, wID, oID).Scan(&cachedText, &derivedText); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Reconciliation{}, ErrWalletNotFound
		}
		return Reconciliation{}, err
	}
	cached, err := decimal.NewFromString(cachedText)
	if err != nil {
		return Reconciliation{}, err
	}
	derived, err := decimal.NewFromString(derivedText)
	if err != nil {
		return Reconciliation{}, err
	}
	return newReconciliation(walletID, cached, derived), nil
}

func (l *PostgresLedger) ownedWallet(ctx context.Context, walletID, ownerID string) (uuid.UUID, uuid.UUID, error) {
	wID, oID, err := parseIDs(walletID, ownerID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	var exists bool
	if err := l.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM wallets WHERE id = $1 AND owner_id = $2)`, wID, oID).Scan(&exists); err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if !exists {
		return uuid.Nil, uuid.Nil, ErrWalletNotFound
	}
	return wID, oID, nil
}

func parseIDs(walletID, ownerID string) (uuid.UUID, uuid.UUID, error) {
	wID, err := uuid.Parse(walletID)
	if err != nil {
		return uuid.Nil, uuid.Nil, ErrWalletNotFound
	}
	oID, err := uuid.Parse(ownerID)
	if err != nil {
		return uuid.Nil, uuid.Nil, ErrWalletNotFound
	}
	return wID, oID, nil
}
