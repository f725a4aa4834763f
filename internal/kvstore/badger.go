package kvstore

import (
	"errors"
	"fmt"
	"os"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

var errKeyExists = errors.New("key exists")

// Badger is a Store backed by an embedded BadgerDB. Entry TTLs are set on
// the badger entries themselves, so expiry holds even if the application
// sweep never runs.
type Badger struct {
	db     *badger.DB
	prefix []byte
}

// BadgerConfig selects where the database lives.
type BadgerConfig struct {
	// Path is the directory for database files. Ignored when InMemory.
	Path string
	// InMemory keeps everything in RAM; used by tests.
	InMemory bool
}

// OpenBadger opens a badger-backed store. Namespacing by prefix lets the
// session and idempotency stores share one database.
func OpenBadger(cfg BadgerConfig, prefix string) (*Badger, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("path is required for persistent store")
		}
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return NewBadger(db, prefix), nil
}

// NewBadger wraps an already-open database; the caller keeps ownership of
// db's lifecycle when sharing it across prefixes.
func NewBadger(db *badger.DB, prefix string) *Badger {
	return &Badger{db: db, prefix: []byte(prefix + "/")}
}

// WithPrefix returns a second view over the same database under another
// namespace. Close on either view closes the shared database.
func (b *Badger) WithPrefix(prefix string) *Badger {
	return NewBadger(b.db, prefix)
}

func (b *Badger) key(key string) []byte {
	return append(append([]byte(nil), b.prefix...), key...)
}

func (b *Badger) Set(key string, value []byte, ttl time.Duration) error {
	return b.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(b.key(key), value).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
}

func (b *Badger) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(b.key(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("badger get: %w", err)
	}
	return value, true, nil
}

func (b *Badger) Delete(key string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(b.key(key))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}

func (b *Badger) SetNX(key string, value []byte, ttl time.Duration) (bool, error) {
	for {
		err := b.db.Update(func(txn *badger.Txn) error {
			_, err := txn.Get(b.key(key))
			if err == nil {
				return errKeyExists
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			return txn.SetEntry(badger.NewEntry(b.key(key), value).WithTTL(ttl))
		})
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, errKeyExists):
			return false, nil
		case errors.Is(err, badger.ErrConflict):
			// Lost a race with a concurrent writer; re-read to see who won.
			continue
		default:
			return false, fmt.Errorf("badger setnx: %w", err)
		}
	}
}

// Sweep triggers value log garbage collection. Badger expires entries on
// its own, so there is nothing to count here.
func (b *Badger) Sweep() int {
	_ = b.db.RunValueLogGC(0.5)
	return 0
}

func (b *Badger) Close() error {
	return b.db.Close()
}
