package statestore

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"

	"github.com/fortiblox/X1-Sentry/internal/types"
	"github.com/fortiblox/X1-Sentry/pkg/account"
)

// Key prefixes for BadgerDB storage.
var (
	// prefixAccount is the prefix for account entries.
	// Key format: prefixAccount + pubkey (32 bytes)
	prefixAccount = []byte{0x01}

	// prefixMeta is the prefix for metadata.
	prefixMeta = []byte{0x02}

	// metaRevision is the key for the baseline revision counter.
	metaRevision = append(prefixMeta, []byte("revision")...)

	// metaCount is the key for the accounts count.
	metaCount = append(prefixMeta, []byte("count")...)
)

// BadgerConfig contains configuration for a Badger-backed store.
type BadgerConfig struct {
	// Path is the directory path for the database.
	Path string

	// InMemory runs the database in memory (for testing).
	InMemory bool

	// SyncWrites ensures writes are synced to disk.
	SyncWrites bool

	// Logger is an optional badger logger. Nil disables logging.
	Logger badger.Logger
}

// DefaultBadgerConfig returns default configuration. Baselines are small
// and write-once, so async writes are fine.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{
		Path:       path,
		SyncWrites: false,
		Logger:     nil,
	}
}

// Badger is a BadgerDB-backed Store for baselines shared across runs.
// Accounts are stored under prefixed pubkey keys; revision and count are
// cached in memory and persisted on Commit.
type Badger struct {
	db *badger.DB

	revision atomic.Uint64
	count    atomic.Uint64

	// mu serializes writers; reads go straight to badger.
	mu     sync.Mutex
	closed atomic.Bool
}

// OpenBadger opens or creates a Badger-backed store.
func OpenBadger(cfg BadgerConfig) (*Badger, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}
	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(cfg.Logger)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	b := &Badger{db: db}
	if err := b.loadMeta(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load metadata: %w", err)
	}
	return b, nil
}

func (b *Badger) loadMeta() error {
	return b.db.View(func(txn *badger.Txn) error {
		for _, m := range []struct {
			key  []byte
			dest *atomic.Uint64
		}{
			{metaRevision, &b.revision},
			{metaCount, &b.count},
		} {
			item, err := txn.Get(m.key)
			if err == badger.ErrKeyNotFound {
				m.dest.Store(0)
				continue
			}
			if err != nil {
				return err
			}
			err = item.Value(func(val []byte) error {
				if len(val) >= 8 {
					m.dest.Store(binary.LittleEndian.Uint64(val))
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// accountKey returns the badger key for an account.
func accountKey(key types.Pubkey) []byte {
	k := make([]byte, 1+32)
	k[0] = prefixAccount[0]
	copy(k[1:], key[:])
	return k
}

// Get retrieves an account by key.
func (b *Badger) Get(key types.Pubkey) (*account.Account, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}

	var acc *account.Account
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(accountKey(key))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			acc, err = decodeEntry(key, val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// Put stores an account. Non-existent accounts are deleted.
func (b *Badger) Put(acc *account.Account) error {
	if b.closed.Load() {
		return ErrClosed
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	exists, err := b.has(acc.Key)
	if err != nil {
		return err
	}

	if !acc.Exists() {
		if exists {
			err := b.db.Update(func(txn *badger.Txn) error {
				return txn.Delete(accountKey(acc.Key))
			})
			if err != nil {
				return err
			}
			b.count.Add(^uint64(0))
		}
		return nil
	}

	entry := encodeEntry(acc)
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(accountKey(acc.Key), entry)
	})
	if err != nil {
		return err
	}
	if !exists {
		b.count.Add(1)
	}
	return nil
}

// Delete removes an account.
func (b *Badger) Delete(key types.Pubkey) error {
	if b.closed.Load() {
		return ErrClosed
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	exists, err := b.has(key)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(accountKey(key))
	})
	if err != nil {
		return err
	}
	b.count.Add(^uint64(0))
	return nil
}

// Has checks if an account exists.
func (b *Badger) Has(key types.Pubkey) (bool, error) {
	if b.closed.Load() {
		return false, ErrClosed
	}
	return b.has(key)
}

func (b *Badger) has(key types.Pubkey) (bool, error) {
	var exists bool
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(accountKey(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	return exists, err
}

// Count returns the number of stored accounts.
func (b *Badger) Count() (uint64, error) {
	if b.closed.Load() {
		return 0, ErrClosed
	}
	return b.count.Load(), nil
}

// Revision returns the baseline revision.
func (b *Badger) Revision() uint64 {
	return b.revision.Load()
}

// SetRevision updates the baseline revision.
func (b *Badger) SetRevision(rev uint64) error {
	if b.closed.Load() {
		return ErrClosed
	}
	b.revision.Store(rev)
	return nil
}

// Iterate visits all accounts in sorted key order.
func (b *Badger) Iterate(fn func(acc *account.Account) error) error {
	if b.closed.Load() {
		return ErrClosed
	}

	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefixAccount
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := item.Key()
			if len(key) != 33 {
				continue
			}
			var pk types.Pubkey
			copy(pk[:], key[1:])

			err := item.Value(func(val []byte) error {
				acc, err := decodeEntry(pk, val)
				if err != nil {
					return err
				}
				return fn(acc)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Commit persists revision and count.
func (b *Badger) Commit() error {
	if b.closed.Load() {
		return ErrClosed
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.db.Update(func(txn *badger.Txn) error {
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, b.revision.Load())
		if err := txn.Set(metaRevision, buf); err != nil {
			return err
		}
		buf = make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, b.count.Load())
		return txn.Set(metaCount, buf)
	})
}

// Close commits metadata and closes the database.
func (b *Badger) Close() error {
	if b.closed.Load() {
		return ErrClosed
	}
	err := b.Commit()
	b.closed.Store(true)
	if cerr := b.db.Close(); err == nil {
		err = cerr
	}
	return err
}

var _ Store = (*Badger)(nil)
