package infra

import (
	"fmt"

	"github.com/dgraph-io/badger/v3"
)

// OpenBadger opens the embedded Badger store at path. An empty path opens an
// in-memory instance, which is what tests use.
func OpenBadger(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return db, nil
}
