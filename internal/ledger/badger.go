package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v3"
	"github.com/shopspring/decimal"
)

const maxConflictRetries = 10

type badgerAccount struct {
	OwnerID string          `json:"owner_id"`
	Balance decimal.Decimal `json:"balance"`
}

// BadgerLedger stores each wallet's balance document and transactions in Badger.
// Posts to the same wallet are serialized in-process and run in a serializable
// Badger transaction, retried on conflict.
type BadgerLedger struct {
	db    *badger.DB
	locks sync.Map
}

// NewBadgerLedger constructs a Badger-backed ledger.
func NewBadgerLedger(db *badger.DB) *BadgerLedger {
	return &BadgerLedger{db: db}
}

func accountKey(walletID string) []byte { return []byte("ledger:acct:" + walletID) }
func txPrefix(walletID string) []byte   { return []byte("ledger:tx:" + walletID + ":") }
func txKey(walletID, id string) []byte  { return append(txPrefix(walletID), id...) }

func (l *BadgerLedger) walletLock(walletID string) *sync.Mutex {
	mu, _ := l.locks.LoadOrStore(walletID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// OpenAccount creates a zero balance document unless one already exists.
func (l *BadgerLedger) OpenAccount(_ context.Context, walletID, ownerID string) error {
	return l.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(accountKey(walletID)); err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return putJSON(txn, accountKey(walletID), badgerAccount{OwnerID: ownerID, Balance: decimal.Zero})
	})
}

// Balance returns the cached balance for the wallet.
func (l *BadgerLedger) Balance(_ context.Context, walletID string) (decimal.Decimal, error) {
	var acct badgerAccount
	err := l.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, accountKey(walletID), &acct)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return decimal.Zero, ErrWalletNotFound
	}
	if err != nil {
		return decimal.Zero, err
	}
	return acct.Balance, nil
}

// Balances returns cached balances for the wallets that exist.
func (l *BadgerLedger) Balances(_ context.Context, walletIDs []string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(walletIDs))
	err := l.db.View(func(txn *badger.Txn) error {
		for _, id := range walletIDs {
			var acct badgerAccount
			err := getJSON(txn, accountKey(id), &acct)
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			out[id] = acct.Balance
		}
		return nil
	})
	return out, err
}

// Post applies the increment and stores the transaction in one Badger transaction.
func (l *BadgerLedger) Post(_ context.Context, t Transaction) (Posting, error) {
	mu := l.walletLock(t.WalletID)
	mu.Lock()
	defer mu.Unlock()

	var (
		balance decimal.Decimal
		err     error
	)
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = l.db.Update(func(txn *badger.Txn) error {
			var acct badgerAccount
			if err := getJSON(txn, accountKey(t.WalletID), &acct); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					return ErrWalletNotFound
				}
				return err
			}
			if acct.OwnerID != t.OwnerID {
				return ErrWalletNotFound
			}
			next := acct.Balance.Add(t.Signed())
			if !balanceInRange(next) {
				return ErrBalanceOutOfRange
			}
			acct.Balance = next
			if err := putJSON(txn, accountKey(t.WalletID), acct); err != nil {
				return err
			}
			if err := putJSON(txn, txKey(t.WalletID, t.ID), t); err != nil {
				return err
			}
			balance = acct.Balance
			return nil
		})
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	if err != nil {
		return Posting{}, err
	}
	return Posting{Transaction: t, Balance: balance}, nil
}

// History lists the wallet's transactions newest first.
func (l *BadgerLedger) History(_ context.Context, walletID, ownerID string, page Page) ([]Transaction, error) {
	var txs []Transaction
	err := l.db.View(func(txn *badger.Txn) error {
		if err := l.checkOwner(txn, walletID, ownerID); err != nil {
			return err
		}
		var err error
		txs, err = scanTransactions(txn, walletID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return paginate(sortNewestFirst(txs), page.Normalize()), nil
}

// Reconcile sums the stored transactions and compares them with the cached balance.
func (l *BadgerLedger) Reconcile(_ context.Context, walletID, ownerID string) (Reconciliation, error) {
	var rec Reconciliation
	err := l.db.View(func(txn *badger.Txn) error {
		var acct badgerAccount
		if err := getJSON(txn, accountKey(walletID), &acct); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrWalletNotFound
			}
			return err
		}
		if acct.OwnerID != ownerID {
			return ErrWalletNotFound
		}
		txs, err := scanTransactions(txn, walletID)
		if err != nil {
			return err
		}
		derived := decimal.Zero
		for _, t := range txs {
			derived = derived.Add(t.Signed())
		}
		rec = newReconciliation(walletID, acct.Balance, derived)
		return nil
	})
	return rec, err
}

func (l *BadgerLedger) checkOwner(txn *badger.Txn, walletID, ownerID string) error {
	var acct badgerAccount
	if err := getJSON(txn, accountKey(walletID), &acct); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrWalletNotFound
		}
		return err
	}
	if acct.OwnerID != ownerID {
		return ErrWalletNotFound
	}
	return nil
}

func scanTransactions(txn *badger.Txn, walletID string) ([]Transaction, error) {
	prefix := txPrefix(walletID)
	it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, PrefetchSize: 100, Prefix: prefix})
	defer it.Close()

	var txs []Transaction
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var t Transaction
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &t)
		}); err != nil {
			return nil, fmt.Errorf("decode transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, nil
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func putJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}
