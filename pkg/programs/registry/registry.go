// Package registry implements per-user data records stored at program
// derived addresses, seeds ["data", user]. The canonical derivation is
// supposed to make the record unique per user. The vulnerable update
// accepts a caller-supplied bump, so any valid derivation for the seeds
// passes and a user can operate shadow records beside the canonical one.
// The secure update recomputes the canonical derivation and accepts
// nothing else.
package registry

import (
	"encoding/binary"
	"fmt"

	"github.com/fortiblox/X1-Sentry/internal/types"
	"github.com/fortiblox/X1-Sentry/pkg/account"
	"github.com/fortiblox/X1-Sentry/pkg/constraint"
	"github.com/fortiblox/X1-Sentry/pkg/harness"
	"github.com/fortiblox/X1-Sentry/pkg/pda"
)

// Program is the registry program address.
var Program = types.ProgramAddr("registry")

// SeedPrefix is the static first seed of every data record derivation.
var SeedPrefix = []byte("data")

// Schema describes a per-user data record.
var Schema = account.NewSchema("DataAccount",
	account.Field{Name: "user", Kind: account.FieldPubkey},
	account.Field{Name: "value", Kind: account.FieldU64},
	account.Field{Name: "bump", Kind: account.FieldU8},
)

// UpdateData encodes the instruction data for an update call. The bump is
// only consulted by the vulnerable path.
func UpdateData(value uint64, bump uint8) []byte {
	data := make([]byte, 9)
	binary.LittleEndian.PutUint64(data, value)
	data[8] = bump
	return data
}

// VulnerableUpdate verifies the record address against the derivation for
// the bump the caller sent. Any valid bump passes.
func VulnerableUpdate() *harness.Instruction {
	return harness.Define(
		"registry:update_vulnerable",
		Program,
		[]harness.Slot{
			{Name: "data", Kind: account.KindTyped, Schema: Schema},
			{Name: "user", Kind: account.KindSigner},
		},
		constraint.NewSet(
			constraint.RequireSigner{Slot: "user"},
			constraint.HasOne{Slot: "data", Field: "user", Target: "user"},
		),
		func(b *harness.Bundle, data []byte) error {
			record, err := b.Typed("data")
			if err != nil {
				return err
			}
			user, err := b.Signer("user")
			if err != nil {
				return err
			}
			value, err := harness.U64Arg(data, 0)
			if err != nil {
				return err
			}
			bump, err := harness.U8Arg(data, 8)
			if err != nil {
				return err
			}

			userKey := user.Key()
			addr, err := pda.CreateProgramAddress(
				[][]byte{SeedPrefix, userKey[:], {bump}}, Program)
			if err != nil {
				return fmt.Errorf("%w: bump %d: %v", pda.ErrMismatch, bump, err)
			}
			if addr != record.Key() {
				return fmt.Errorf("%w: derived %s, account %s", pda.ErrMismatch, addr, record.Key())
			}
			return record.SetU64("value", value)
		},
	)
}

// SecureUpdate derives the canonical address itself. There is no way for
// the caller to influence the bump.
func SecureUpdate() *harness.Instruction {
	return harness.Define(
		"registry:update_secure",
		Program,
		[]harness.Slot{
			{Name: "data", Kind: account.KindTyped, Schema: Schema},
			{Name: "user", Kind: account.KindSigner},
		},
		constraint.NewSet(
			constraint.RequireSigner{Slot: "user"},
			constraint.HasOne{Slot: "data", Field: "user", Target: "user"},
			constraint.SeedsAndBump{
				Slot:      "data",
				Seeds:     [][]byte{SeedPrefix},
				SeedSlots: []string{"user"},
				Program:   Program,
			},
		),
		func(b *harness.Bundle, data []byte) error {
			record, err := b.Typed("data")
			if err != nil {
				return err
			}
			value, err := harness.U64Arg(data, 0)
			if err != nil {
				return err
			}
			return record.SetU64("value", value)
		},
	)
}
