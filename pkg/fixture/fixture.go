// Package fixture builds accounts in the states exploit/secure/sanity test
// triples need: signed and unsigned authorities, correct and foreign
// owners, correct and cosplayed discriminators, canonical and
// non-canonical PDAs, fresh and initialized records.
//
// The builders are collaborators of the core, not core logic: they
// construct account.Account values and hand them to the harness. Each
// scenario builds a fresh set; fixtures are never reused across calls.
package fixture

import (
	"fmt"

	"golang.org/x/crypto/sha3"

	"github.com/fortiblox/X1-Sentry/internal/types"
	"github.com/fortiblox/X1-Sentry/pkg/account"
	"github.com/fortiblox/X1-Sentry/pkg/pda"
)

// DefaultLamports is the starting balance for fixture wallet accounts.
const DefaultLamports = 1_000_000_000

// Key derives a deterministic test pubkey from a label using keccak256.
// Same label, same key, in every process; distinct labels yield distinct
// keys.
func Key(label string) types.Pubkey {
	var p types.Pubkey
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte("sentry:key:" + label))
	copy(p[:], h.Sum(nil))
	return p
}

// Wallet builds a funded, writable, system-owned account that signed the
// call.
func Wallet(label string) *account.Account {
	return &account.Account{
		Key:        Key(label),
		Owner:      types.SystemProgramAddr,
		Lamports:   DefaultLamports,
		IsSigner:   true,
		IsWritable: true,
	}
}

// UnsignedWallet builds the same account as Wallet but without a
// signature. Passing it where an authority must sign is the canonical
// missing-signer exploit.
func UnsignedWallet(label string) *account.Account {
	acc := Wallet(label)
	acc.IsSigner = false
	return acc
}

// Fresh builds a non-existent account: zero lamports, zero-length data,
// system-owned. The canonical fake account.
func Fresh(label string) *account.Account {
	return &account.Account{
		Key:   Key(label),
		Owner: types.SystemProgramAddr,
	}
}

// Blank builds a writable account owned by program with zeroed data sized
// for the schema, ready for an initialize instruction to format.
func Blank(key types.Pubkey, program types.Pubkey, schema *account.Schema) *account.Account {
	return &account.Account{
		Key:        key,
		Owner:      program,
		Lamports:   1,
		Data:       make([]byte, schema.Size()),
		IsWritable: true,
	}
}

// Record builds a writable account owned by program carrying an
// initialized record for the schema and returns the typed view for
// populating fields.
func Record(key types.Pubkey, program types.Pubkey, schema *account.Schema) (*account.Account, *account.Typed) {
	acc := Blank(key, program, schema)
	typed, err := account.FormatRecord(acc, program, schema)
	if err != nil {
		// Blank sizes the account for the schema; failure here is a bug.
		panic(fmt.Sprintf("fixture: format record: %v", err))
	}
	return acc, typed
}

// ForeignRecord builds an account whose data is a correctly tagged record
// for the schema but whose owner is another program. The Wormhole-class
// fake: byte layout matches, ownership does not.
func ForeignRecord(key types.Pubkey, foreignOwner types.Pubkey, schema *account.Schema) (*account.Account, *account.Typed) {
	return Record(key, foreignOwner, schema)
}

// Cosplay builds an account owned by program whose data carries the
// imposter schema's discriminator. Field layout may match the expected
// schema exactly; the tag does not.
func Cosplay(key types.Pubkey, program types.Pubkey, imposter *account.Schema) (*account.Account, *account.Typed) {
	return Record(key, program, imposter)
}

// CanonicalPDA derives the canonical PDA for the seeds and builds a record
// account at that address. Returns the account, the typed view, and the
// canonical bump.
func CanonicalPDA(program types.Pubkey, schema *account.Schema, seeds ...[]byte) (*account.Account, *account.Typed, uint8) {
	addr, bump, err := pda.FindProgramAddress(seeds, program)
	if err != nil {
		panic(fmt.Sprintf("fixture: find program address: %v", err))
	}
	acc, typed := Record(addr, program, schema)
	return acc, typed, bump
}

// NonCanonicalPDA finds the highest valid bump strictly below the
// canonical one and builds a record account at that derivation. Returns
// false if no lower valid bump exists for the seeds (rare; callers skip
// the scenario).
func NonCanonicalPDA(program types.Pubkey, schema *account.Schema, seeds ...[]byte) (*account.Account, *account.Typed, uint8, bool) {
	_, canonical, err := pda.FindProgramAddress(seeds, program)
	if err != nil {
		panic(fmt.Sprintf("fixture: find program address: %v", err))
	}
	for bump := int(canonical) - 1; bump >= 0; bump-- {
		withBump := make([][]byte, len(seeds)+1)
		copy(withBump, seeds)
		withBump[len(seeds)] = []byte{uint8(bump)}

		addr, err := pda.CreateProgramAddress(withBump, program)
		if err != nil {
			continue
		}
		acc, typed := Record(addr, program, schema)
		return acc, typed, uint8(bump), true
	}
	return nil, nil, 0, false
}
