package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

type BadgerStoreOpts struct {
	// Dir is the data directory. Ignored when InMemory is set.
	Dir string

	// InMemory keeps everything in RAM. Useful for tests.
	InMemory bool
}

// BadgerStore persists the credential on local disk.
type BadgerStore struct {
	db *badger.DB
}

var _ Store = (*BadgerStore)(nil)

func NewBadgerStore(opts BadgerStoreOpts) (*BadgerStore, error) {
	if !opts.InMemory && len(opts.Dir) == 0 {
		return nil, errors.New("badger store needs a dir")
	}

	bo := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		bo = badger.DefaultOptions("").WithInMemory(true)
	}
	// A handful of tiny keys, keep the footprint low.
	bo = bo.WithLogger(nil).
		WithSyncWrites(true).
		WithMemTableSize(4 << 20).
		WithValueThreshold(1 << 10).
		WithValueLogFileSize(16 << 20).
		WithNumMemtables(2).
		WithBlockCacheSize(8 << 20).
		WithIndexCacheSize(4 << 20)

	db, err := badger.Open(bo)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger, %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	var v []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		v, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(v), true, nil
}

func (s *BadgerStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
}

func (s *BadgerStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
