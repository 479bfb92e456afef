package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"
)

// BadgerRepository stores users as JSON documents in Badger with an email index.
type BadgerRepository struct {
	db *badger.DB
}

// NewBadgerRepository builds a Badger-backed identity repository.
func NewBadgerRepository(db *badger.DB) *BadgerRepository {
	return &BadgerRepository{db: db}
}

func userKey(id string) []byte     { return []byte("user:" + id) }
func emailKey(email string) []byte { return []byte("user_email:" + email) }

// Create inserts a new user, failing if the email is already indexed.
func (r *BadgerRepository) Create(_ context.Context, user User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(emailKey(user.Email)); err == nil {
			return ErrUserExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(emailKey(user.Email), []byte(user.ID)); err != nil {
			return err
		}
		return txn.Set(userKey(user.ID), data)
	})
}

// FindByEmail resolves the email index then loads the user.
func (r *BadgerRepository) FindByEmail(_ context.Context, email string) (User, error) {
	var user User
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(emailKey(email))
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return readUser(txn, string(id), &user)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return User{}, ErrUserNotFound
	}
	return user, err
}

// FindByID loads a user document.
func (r *BadgerRepository) FindByID(_ context.Context, id string) (User, error) {
	var user User
	err := r.db.View(func(txn *badger.Txn) error {
		return readUser(txn, id, &user)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return User{}, ErrUserNotFound
	}
	return user, err
}

// UpdateTokenVersion rewrites the user document with a new token version.
func (r *BadgerRepository) UpdateTokenVersion(_ context.Context, id string, version int) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		var user User
		if err := readUser(txn, id, &user); err != nil {
			return err
		}
		user.TokenVersion = version
		data, err := json.Marshal(user)
		if err != nil {
			return err
		}
		return txn.Set(userKey(id), data)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrUserNotFound
	}
	return err
}

func readUser(txn *badger.Txn, id string, user *User) error {
	item, err := txn.Get(userKey(id))
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, user)
	})
}
