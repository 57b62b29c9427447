// Package account implements the account model and the capability-typed
// validation layer of X1-Sentry.
//
// Every simulated instruction receives a set of untrusted Account values.
// Handler code never reads them directly: it goes through a capability
// wrapper (Unchecked, Signer, Owned, Typed) whose constructor performs the
// corresponding validation. The wrapper types are the only path from raw
// bytes to typed record data, so a handler holding a Typed view has a
// construction-time proof that the owner and discriminator checks passed.
package account

import (
	"encoding/binary"
	"errors"

	"github.com/fortiblox/X1-Sentry/internal/types"
)

var (
	// ErrInvalidData is returned when serialized account data is malformed.
	ErrInvalidData = errors.New("invalid account data")
)

// MaxDataSize is the maximum account data size (10 MB, matching Solana).
const MaxDataSize = 10 * 1024 * 1024

// Account represents a single account as seen by one simulated call.
//
// The signer and writable flags are call-scoped facts supplied by the
// transaction, not persistent state; they are excluded from serialization.
// An account is owned by its test fixture or processor for the duration of
// one call and never shared across calls.
type Account struct {
	// Key is the account address.
	Key types.Pubkey

	// Owner is the program that owns this account. Only the owner program
	// may modify the account data.
	Owner types.Pubkey

	// Lamports is the account balance in lamports.
	Lamports uint64

	// Data is the account data buffer.
	Data []byte

	// IsSigner indicates the transaction carried a valid signature for
	// this account. Signature math happens outside the simulator; the
	// flag is the consumed fact.
	IsSigner bool

	// IsWritable indicates the transaction marked this account writable.
	IsWritable bool
}

// Exists returns true if the account has backing state. A non-existent
// account (zero lamports, zero-length data) models a fresh address, the
// canonical fake account used in exploit scenarios.
func (a *Account) Exists() bool {
	return a.Lamports > 0 || len(a.Data) > 0
}

// Clone creates a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	dataCopy := make([]byte, len(a.Data))
	copy(dataCopy, a.Data)
	return &Account{
		Key:        a.Key,
		Owner:      a.Owner,
		Lamports:   a.Lamports,
		Data:       dataCopy,
		IsSigner:   a.IsSigner,
		IsWritable: a.IsWritable,
	}
}

// Size returns the total serialized size of the account.
func (a *Account) Size() int {
	// 8 (lamports) + 8 (data_len) + data + 32 (owner)
	return 8 + 8 + len(a.Data) + 32
}

// Serialize encodes the persistent account fields to bytes for storage.
// Format: lamports (8) + data_len (8) + data + owner (32)
func (a *Account) Serialize() []byte {
	buf := make([]byte, a.Size())
	offset := 0

	binary.LittleEndian.PutUint64(buf[offset:], a.Lamports)
	offset += 8

	binary.LittleEndian.PutUint64(buf[offset:], uint64(len(a.Data)))
	offset += 8

	copy(buf[offset:], a.Data)
	offset += len(a.Data)

	copy(buf[offset:], a.Owner[:])

	return buf
}

// Deserialize decodes an account from bytes produced by Serialize.
// The key, signer, and writable fields are left zero; the caller assigns
// the key and the transaction assigns the flags.
func Deserialize(data []byte) (*Account, error) {
	if len(data) < 48 { // Minimum: 8 + 8 + 0 + 32
		return nil, ErrInvalidData
	}

	offset := 0

	lamports := binary.LittleEndian.Uint64(data[offset:])
	offset += 8

	dataLen := binary.LittleEndian.Uint64(data[offset:])
	offset += 8

	if dataLen > MaxDataSize {
		return nil, ErrInvalidData
	}
	if uint64(len(data)-offset) < dataLen+32 {
		return nil, ErrInvalidData
	}

	accountData := make([]byte, dataLen)
	copy(accountData, data[offset:offset+int(dataLen)])
	offset += int(dataLen)

	var owner types.Pubkey
	copy(owner[:], data[offset:offset+32])

	return &Account{
		Lamports: lamports,
		Data:     accountData,
		Owner:    owner,
	}, nil
}
