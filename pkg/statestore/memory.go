package statestore

import (
	"sort"
	"sync"

	"github.com/fortiblox/X1-Sentry/internal/types"
	"github.com/fortiblox/X1-Sentry/pkg/account"
)

// Memory is an in-memory Store. The default when a baseline doesn't need
// to survive the process.
type Memory struct {
	mu       sync.RWMutex
	accounts map[types.Pubkey]*account.Account
	revision uint64
	closed   bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[types.Pubkey]*account.Account),
	}
}

// Get retrieves an account.
func (m *Memory) Get(key types.Pubkey) (*account.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	acc, ok := m.accounts[key]
	if !ok {
		return nil, ErrNotFound
	}
	return acc.Clone(), nil
}

// Put stores an account.
func (m *Memory) Put(acc *account.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if !acc.Exists() {
		delete(m.accounts, acc.Key)
		return nil
	}
	m.accounts[acc.Key] = acc.Clone()
	return nil
}

// Delete removes an account.
func (m *Memory) Delete(key types.Pubkey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.accounts, key)
	return nil
}

// Has checks if an account exists.
func (m *Memory) Has(key types.Pubkey) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false, ErrClosed
	}
	_, ok := m.accounts[key]
	return ok, nil
}

// Count returns the number of stored accounts.
func (m *Memory) Count() (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrClosed
	}
	return uint64(len(m.accounts)), nil
}

// Revision returns the baseline revision.
func (m *Memory) Revision() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.revision
}

// SetRevision updates the baseline revision.
func (m *Memory) SetRevision(rev uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.revision = rev
	return nil
}

// Iterate visits all accounts in sorted key order.
func (m *Memory) Iterate(fn func(acc *account.Account) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrClosed
	}
	keys := make([]types.Pubkey, 0, len(m.accounts))
	for k := range m.accounts {
		keys = append(keys, k)
	}
	m.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool {
		return string(keys[i][:]) < string(keys[j][:])
	})

	for _, k := range keys {
		acc, err := m.Get(k)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return err
		}
		if err := fn(acc); err != nil {
			return err
		}
	}
	return nil
}

// Commit is a no-op for Memory.
func (m *Memory) Commit() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close closes the store.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.accounts = nil
	return nil
}

var _ Store = (*Memory)(nil)
