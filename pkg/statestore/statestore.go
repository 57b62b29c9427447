// Package statestore persists scenario baselines: the account sets that
// seed harness runs. A baseline is written once, then loaded and cloned
// for every call, so stores are read-heavy and mutation-light. Two
// implementations share the Store interface: an in-memory map for
// single-run use and a BadgerDB store for baselines that outlive a
// process.
package statestore

import (
	"errors"
	"fmt"

	"github.com/fortiblox/X1-Sentry/internal/types"
	"github.com/fortiblox/X1-Sentry/pkg/account"
)

var (
	// ErrNotFound is returned when an account doesn't exist in the store.
	ErrNotFound = errors.New("account not found")

	// ErrClosed is returned when operating on a closed store.
	ErrClosed = errors.New("store closed")

	// ErrCorrupted is returned when a stored entry fails to decode.
	ErrCorrupted = errors.New("store entry corrupted")

	// ErrSnapshotNotFound is returned when a snapshot file doesn't exist.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// Store is the baseline account store interface.
// Implementations must be safe for concurrent read access.
type Store interface {
	// Get retrieves an account by key. The returned account is a clone;
	// mutating it never touches the stored copy.
	// Returns ErrNotFound if the account doesn't exist.
	Get(key types.Pubkey) (*account.Account, error)

	// Put stores an account under its key. Non-existent accounts (zero
	// lamports, no data) are deleted instead.
	Put(acc *account.Account) error

	// Delete removes an account. Returns nil if the account is absent.
	Delete(key types.Pubkey) error

	// Has checks if an account exists.
	Has(key types.Pubkey) (bool, error)

	// Count returns the number of stored accounts.
	Count() (uint64, error)

	// Revision returns the baseline revision counter.
	Revision() uint64

	// SetRevision updates the baseline revision counter.
	SetRevision(rev uint64) error

	// Iterate visits all accounts in sorted key order.
	// Return an error from the callback to stop iteration.
	Iterate(fn func(acc *account.Account) error) error

	// Commit persists pending metadata.
	Commit() error

	// Close closes the store.
	Close() error
}

// Stored entry format: account.Serialize output followed by one flag
// byte. The harness flags are part of a baseline (whether an account
// signed is scenario input, not chain state), so the store carries them
// alongside the serialized account.
const (
	flagSigner   = 0x01
	flagWritable = 0x02
)

func encodeEntry(acc *account.Account) []byte {
	buf := acc.Serialize()
	var flags byte
	if acc.IsSigner {
		flags |= flagSigner
	}
	if acc.IsWritable {
		flags |= flagWritable
	}
	return append(buf, flags)
}

func decodeEntry(key types.Pubkey, raw []byte) (*account.Account, error) {
	if len(raw) < 1 {
		return nil, ErrCorrupted
	}
	flags := raw[len(raw)-1]
	acc, err := account.Deserialize(raw[:len(raw)-1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	acc.Key = key
	acc.IsSigner = flags&flagSigner != 0
	acc.IsWritable = flags&flagWritable != 0
	return acc, nil
}
