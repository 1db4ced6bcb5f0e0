package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/smarties/backend/internal/domain"
)

// BadgerCache is the on-disk local tier. Entries survive process restarts and
// expire through badger's native TTL.
type BadgerCache struct {
	db *badger.DB
}

// NewBadgerCache opens a badger database at path. An empty path opens an
// in-memory database, which is what the tests use.
func NewBadgerCache(path string) (*BadgerCache, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", path, err)
		}
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger cache: %w", err)
	}

	return &BadgerCache{db: db}, nil
}

// Get retrieves a value from the local tier
func (c *BadgerCache) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("%w: badger get: %v", domain.ErrCacheTierUnavailable, err)
	}
	return value, nil
}

// Set stores a value with TTL
func (c *BadgerCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("%w: badger set: %v", domain.ErrCacheTierUnavailable, err)
	}
	return nil
}

// Delete removes a single key
func (c *BadgerCache) Delete(ctx context.Context, key string) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("%w: badger delete: %v", domain.ErrCacheTierUnavailable, err)
	}
	return nil
}

// DeletePrefix removes every key that starts with prefix
func (c *BadgerCache) DeletePrefix(ctx context.Context, prefix string) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: badger delete prefix: %v", domain.ErrCacheTierUnavailable, err)
	}
	return nil
}

// Close flushes and closes the underlying database
func (c *BadgerCache) Close() error {
	return c.db.Close()
}
