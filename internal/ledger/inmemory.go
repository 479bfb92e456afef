package ledger

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

type account struct {
	ownerID string
	balance decimal.Decimal
}

type inMemoryLedger struct {
	mu           sync.RWMutex
	accounts     map[string]*account
	transactions map[string][]Transaction
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		accounts:     make(map[string]*account),
		transactions: make(map[string][]Transaction),
	}
}

func (l *inMemoryLedger) OpenAccount(_ context.Context, walletID, ownerID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.accounts[walletID]; !exists {
		l.accounts[walletID] = &account{ownerID: ownerID, balance: decimal.Zero}
	}
	return nil
}

func (l *inMemoryLedger) Balance(_ context.Context, walletID string) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acct, exists := l.accounts[walletID]
	if !exists {
		return decimal.Zero, ErrWalletNotFound
	}
	return acct.balance, nil
}

func (l *inMemoryLedger) Balances(_ context.Context, walletIDs []string) (map[string]decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]decimal.Decimal, len(walletIDs))
	for _, id := range walletIDs {
		if acct, ok := l.accounts[id]; ok {
			out[id] = acct.balance
		}
	}
	return out, nil
}

func (l *inMemoryLedger) Post(_ context.Context, tx Transaction) (Posting, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.accounts[tx.WalletID]
	if !ok || acct.ownerID != tx.OwnerID {
		return Posting{}, ErrWalletNotFound
	}

	next := acct.balance.Add(tx.Signed())
	if !balanceInRange(next) {
		return Posting{}, ErrBalanceOutOfRange
	}
	acct.balance = next
	l.transactions[tx.WalletID] = append(l.transactions[tx.WalletID], tx)

	return Posting{Transaction: tx, Balance: acct.balance}, nil
}

func (l *inMemoryLedger) History(_ context.Context, walletID, ownerID string, page Page) ([]Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	acct, ok := l.accounts[walletID]
	if !ok || acct.ownerID != ownerID {
		return nil, ErrWalletNotFound
	}
	return paginate(sortNewestFirst(l.transactions[walletID]), page.Normalize()), nil
}

func (l *inMemoryLedger) Reconcile(_ context.Context, walletID, ownerID string) (Reconciliation, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	acct, ok := l.accounts[walletID]
	if !ok || acct.ownerID != ownerID {
		return Reconciliation{}, ErrWalletNotFound
	}
	derived := decimal.Zero
	for _, tx := range l.transactions[walletID] {
		derived = derived.Add(tx.Signed())
	}
	return newReconciliation(walletID, acct.balance, derived), nil
}
