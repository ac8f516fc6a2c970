package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerBackend stores records in an embedded badger database keyed by
// "<namespace>/<key>". Badger's native TTL mirrors the logical TTL so
// expired records are also reclaimed by compaction.
type BadgerBackend struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a database in dir. An empty dir opens an
// in-memory database.
func OpenBadger(dir string) (*BadgerBackend, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger cache: %w", err)
	}
	return &BadgerBackend{db: db}, nil
}

func badgerKey(ns Namespace, key string) []byte {
	return []byte(string(ns) + "/" + key)
}

func badgerPrefix(ns Namespace) []byte {
	if ns == "" {
		return nil
	}
	return []byte(string(ns) + "/")
}

func (b *BadgerBackend) Load(_ context.Context, ns Namespace, key string) ([]byte, error) {
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(ns, key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrMiss
	}
	return data, err
}

func (b *BadgerBackend) Save(_ context.Context, ns Namespace, key string, data []byte, ttl time.Duration) error {
	return b.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(badgerKey(ns, key), data)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

func (b *BadgerBackend) Delete(_ context.Context, ns Namespace, key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(badgerKey(ns, key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

func (b *BadgerBackend) Clear(_ context.Context, ns Namespace) (int, error) {
	prefix := badgerPrefix(ns)
	count := 0
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if prefix == nil {
		return count, b.db.DropAll()
	}
	return count, b.db.DropPrefix(prefix)
}

func (b *BadgerBackend) Close() error {
	return b.db.Close()
}
