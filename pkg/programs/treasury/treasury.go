// Package treasury implements a lamport pool gated by a separate state
// record naming the spend authority. The vulnerable withdraw reads the
// authority out of the state account's bytes without checking who owns
// that account, so an attacker can point it at a lookalike record they
// created under another program. The secure withdraw demands a typed,
// program-owned state record.
package treasury

import (
	"errors"
	"fmt"

	"github.com/fortiblox/X1-Sentry/internal/types"
	"github.com/fortiblox/X1-Sentry/pkg/account"
	"github.com/fortiblox/X1-Sentry/pkg/constraint"
	"github.com/fortiblox/X1-Sentry/pkg/harness"
)

// Program is the treasury program address.
var Program = types.ProgramAddr("treasury")

// Schema describes the treasury state record.
var Schema = account.NewSchema("Treasury",
	account.Field{Name: "authority", Kind: account.FieldPubkey},
	account.Field{Name: "balance", Kind: account.FieldU64},
	account.Field{Name: "is_active", Kind: account.FieldBool},
)

// Raw byte offsets into a serialized Treasury record. Only the vulnerable
// path reads these; the secure path goes through the schema.
const (
	rawAuthorityOff = account.DiscriminatorSize
	rawActiveOff    = account.DiscriminatorSize + 32 + 8
)

var (
	ErrNotAuthority = errors.New("treasury: signer is not the authority")
	ErrInactive     = errors.New("treasury: treasury is not active")
)

// Initialize binds a freshly formatted state record to the payer as the
// spend authority and activates the treasury.
func Initialize() *harness.Instruction {
	return harness.Define(
		"treasury:initialize",
		Program,
		[]harness.Slot{
			{Name: "state", Kind: account.KindTyped, Schema: Schema},
			{Name: "payer", Kind: account.KindSigner},
		},
		nil,
		func(b *harness.Bundle, data []byte) error {
			state, err := b.Typed("state")
			if err != nil {
				return err
			}
			payer, err := b.Signer("payer")
			if err != nil {
				return err
			}
			if err := state.SetPubkey("authority", payer.Key()); err != nil {
				return err
			}
			if err := state.SetU64("balance", 0); err != nil {
				return err
			}
			return state.SetBool("is_active", true)
		},
	)
}

// VulnerableWithdraw trusts whatever account sits in the state slot. The
// pool itself is owner-checked, but the record that names who may spend it
// is not.
func VulnerableWithdraw() *harness.Instruction {
	return harness.Define(
		"treasury:withdraw_vulnerable",
		Program,
		[]harness.Slot{
			{Name: "state", Kind: account.KindUnchecked},
			{Name: "pool", Kind: account.KindOwned},
			{Name: "authority", Kind: account.KindSigner},
			{Name: "destination", Kind: account.KindUnchecked},
		},
		nil,
		func(b *harness.Bundle, data []byte) error {
			state, err := b.Unchecked("state")
			if err != nil {
				return err
			}
			raw := state.DataCopy()
			if len(raw) < Schema.Size() {
				return fmt.Errorf("treasury: state record too short: %d bytes", len(raw))
			}

			var stored types.Pubkey
			copy(stored[:], raw[rawAuthorityOff:rawAuthorityOff+32])
			if raw[rawActiveOff] == 0 {
				return ErrInactive
			}

			authority, err := b.Signer("authority")
			if err != nil {
				return err
			}
			if stored != authority.Key() {
				return fmt.Errorf("%w: %s", ErrNotAuthority, authority.Key())
			}
			return payOut(b, data)
		},
	)
}

// SecureWithdraw declares the state slot typed. Ownership and the record
// tag are proven before the handler runs, and the authority match is a
// declarative has-one.
func SecureWithdraw() *harness.Instruction {
	return harness.Define(
		"treasury:withdraw_secure",
		Program,
		[]harness.Slot{
			{Name: "state", Kind: account.KindTyped, Schema: Schema},
			{Name: "pool", Kind: account.KindOwned},
			{Name: "authority", Kind: account.KindSigner},
			{Name: "destination", Kind: account.KindUnchecked},
		},
		constraint.NewSet(
			constraint.RequireSigner{Slot: "authority"},
			constraint.HasOne{Slot: "state", Field: "authority", Target: "authority"},
		),
		func(b *harness.Bundle, data []byte) error {
			state, err := b.Typed("state")
			if err != nil {
				return err
			}
			active, err := state.Bool("is_active")
			if err != nil {
				return err
			}
			if !active {
				return ErrInactive
			}
			return payOut(b, data)
		},
	)
}

func payOut(b *harness.Bundle, data []byte) error {
	amount, err := harness.U64Arg(data, 0)
	if err != nil {
		return err
	}
	pool, err := b.Owned("pool")
	if err != nil {
		return err
	}
	destination, err := b.Unchecked("destination")
	if err != nil {
		return err
	}
	return pool.TransferLamports(destination, amount)
}
