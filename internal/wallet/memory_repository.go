package wallet

import (
	"context"
	"sort"
	"sync"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Wallet
	names   map[string]string
}

// NewMemoryRepository constructs an in-memory repository for tests and the memory driver.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[string]Wallet), names: make(map[string]string)}
}

func nameIndex(ownerID, name string) string { return ownerID + "\x00" + name }

func (r *memoryRepository) Create(_ context.Context, wallet Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.names[nameIndex(wallet.OwnerID, wallet.Name)]; exists {
		return ErrNameTaken
	}
	r.storage[wallet.ID] = wallet
	r.names[nameIndex(wallet.OwnerID, wallet.Name)] = wallet.ID
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id, ownerID string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wallet, ok := r.storage[id]
	if !ok || wallet.OwnerID != ownerID {
		return Wallet{}, ErrNotFound
	}
	return wallet, nil
}

func (r *memoryRepository) ListByOwner(_ context.Context, ownerID string) ([]Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wallets := []Wallet{}
	for _, w := range r.storage {
		if w.OwnerID == ownerID {
			wallets = append(wallets, w)
		}
	}
	sortOldestFirst(wallets)
	return wallets, nil
}

func (r *memoryRepository) Delete(_ context.Context, id, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	wallet, ok := r.storage[id]
	if !ok || wallet.OwnerID != ownerID {
		return nil
	}
	delete(r.storage, id)
	delete(r.names, nameIndex(wallet.OwnerID, wallet.Name))
	return nil
}

func sortOldestFirst(wallets []Wallet) {
	sort.Slice(wallets, func(i, j int) bool {
		if !wallets[i].CreatedAt.Equal(wallets[j].CreatedAt) {
			return wallets[i].CreatedAt.Before(wallets[j].CreatedAt)
		}
		return wallets[i].ID < wallets[j].ID
	})
}
