package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"
)

// BadgerRepository stores wallets as JSON documents with an owner index and a
// per-owner name index.
type BadgerRepository struct {
	db *badger.DB
}

// NewBadgerRepository builds a Badger-backed wallet repository.
func NewBadgerRepository(db *badger.DB) *BadgerRepository {
	return &BadgerRepository{db: db}
}

func walletKey(id string) []byte                { return []byte("wallet:" + id) }
func ownerPrefix(ownerID string) []byte         { return []byte("wallet_owner:" + ownerID + ":") }
func ownerKey(ownerID, id string) []byte        { return append(ownerPrefix(ownerID), id...) }
func walletNameKey(ownerID, name string) []byte { return []byte("wallet_name:" + ownerID + ":" + name) }

// Create stores the wallet and its indexes in one transaction.
func (r *BadgerRepository) Create(_ context.Context, wallet Wallet) error {
	data, err := json.Marshal(wallet)
	if err != nil {
		return fmt.Errorf("marshal wallet: %w", err)
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(walletNameKey(wallet.OwnerID, wallet.Name)); err == nil {
			return ErrNameTaken
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(walletNameKey(wallet.OwnerID, wallet.Name), []byte(wallet.ID)); err != nil {
			return err
		}
		if err := txn.Set(ownerKey(wallet.OwnerID, wallet.ID), nil); err != nil {
			return err
		}
		return txn.Set(walletKey(wallet.ID), data)
	})
	// Two concurrent creates with the same name collide on the name key.
	if errors.Is(err, badger.ErrConflict) {
		return ErrNameTaken
	}
	return err
}

// Get loads a wallet if it belongs to ownerID.
func (r *BadgerRepository) Get(_ context.Context, id, ownerID string) (Wallet, error) {
	var w Wallet
	err := r.db.View(func(txn *badger.Txn) error {
		return readWallet(txn, id, &w)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Wallet{}, ErrNotFound
	}
	if err != nil {
		return Wallet{}, err
	}
	if w.OwnerID != ownerID {
		return Wallet{}, ErrNotFound
	}
	return w, nil
}

// ListByOwner scans the owner index.
func (r *BadgerRepository) ListByOwner(_ context.Context, ownerID string) ([]Wallet, error) {
	wallets := []Wallet{}
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := ownerPrefix(ownerID)
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id := string(it.Item().Key()[len(prefix):])
			var w Wallet
			if err := readWallet(txn, id, &w); err != nil {
				return err
			}
			wallets = append(wallets, w)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortOldestFirst(wallets)
	return wallets, nil
}

// Delete drops the wallet document and both of its index entries.
func (r *BadgerRepository) Delete(_ context.Context, id, ownerID string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		var w Wallet
		if err := readWallet(txn, id, &w); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		if w.OwnerID != ownerID {
			return nil
		}
		if err := txn.Delete(walletNameKey(w.OwnerID, w.Name)); err != nil {
			return err
		}
		if err := txn.Delete(ownerKey(w.OwnerID, w.ID)); err != nil {
			return err
		}
		return txn.Delete(walletKey(w.ID))
	})
}

func readWallet(txn *badger.Txn, id string, w *Wallet) error {
	item, err := txn.Get(walletKey(id))
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, w)
	})
}
