// Package feeconfig implements a protocol fee setting gated by an admin
// record. AdminConfig and UserData share a byte layout: a pubkey followed
// by a u64. The vulnerable set_fee checks only ownership and length, so a
// program-owned UserData record passes and its authority field reads as
// the admin. The secure set_fee demands the AdminConfig tag.
package feeconfig

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fortiblox/X1-Sentry/internal/types"
	"github.com/fortiblox/X1-Sentry/pkg/account"
	"github.com/fortiblox/X1-Sentry/pkg/constraint"
	"github.com/fortiblox/X1-Sentry/pkg/harness"
)

// Program is the fee config program address.
var Program = types.ProgramAddr("feeconfig")

// AdminSchema describes the admin record.
var AdminSchema = account.NewSchema("AdminConfig",
	account.Field{Name: "admin", Kind: account.FieldPubkey},
	account.Field{Name: "fee_basis_points", Kind: account.FieldU64},
)

// UserSchema describes a user record. Same field shapes as AdminSchema,
// different tag.
var UserSchema = account.NewSchema("UserData",
	account.Field{Name: "authority", Kind: account.FieldPubkey},
	account.Field{Name: "balance", Kind: account.FieldU64},
)

// MaxFeeBasisPoints caps the fee at 100%.
const MaxFeeBasisPoints = 10_000

var ErrNotAdmin = errors.New("feeconfig: signer is not the admin")
var ErrFeeTooHigh = errors.New("feeconfig: fee exceeds basis point cap")

const (
	rawAdminOff = account.DiscriminatorSize
	rawFeeOff   = account.DiscriminatorSize + 32
)

// VulnerableSetFee accepts any program-owned record of the right size and
// reads the admin out of its bytes. The record tag is never consulted.
func VulnerableSetFee() *harness.Instruction {
	return harness.Define(
		"feeconfig:set_fee_vulnerable",
		Program,
		[]harness.Slot{
			{Name: "config", Kind: account.KindOwned},
			{Name: "admin", Kind: account.KindSigner},
		},
		nil,
		func(b *harness.Bundle, data []byte) error {
			cfg, err := b.Owned("config")
			if err != nil {
				return err
			}
			raw := cfg.DataCopy()
			if len(raw) < AdminSchema.Size() {
				return fmt.Errorf("feeconfig: config record too short: %d bytes", len(raw))
			}

			var storedAdmin types.Pubkey
			copy(storedAdmin[:], raw[rawAdminOff:rawAdminOff+32])

			admin, err := b.Signer("admin")
			if err != nil {
				return err
			}
			if storedAdmin != admin.Key() {
				return fmt.Errorf("%w: %s", ErrNotAdmin, admin.Key())
			}

			fee, err := feeFrom(data)
			if err != nil {
				return err
			}
			var buf [8]byte
			binary.LittleEndian.PutUint64(buf[:], fee)
			return cfg.WriteData(rawFeeOff, buf[:])
		},
	)
}

// SecureSetFee declares the config slot typed against AdminSchema. A
// cosplayed record fails the discriminator proof during validation.
func SecureSetFee() *harness.Instruction {
	return harness.Define(
		"feeconfig:set_fee_secure",
		Program,
		[]harness.Slot{
			{Name: "config", Kind: account.KindTyped, Schema: AdminSchema},
			{Name: "admin", Kind: account.KindSigner},
		},
		constraint.NewSet(
			constraint.RequireSigner{Slot: "admin"},
			constraint.HasOne{Slot: "config", Field: "admin", Target: "admin"},
		),
		func(b *harness.Bundle, data []byte) error {
			cfg, err := b.Typed("config")
			if err != nil {
				return err
			}
			fee, err := feeFrom(data)
			if err != nil {
				return err
			}
			return cfg.SetU64("fee_basis_points", fee)
		},
	)
}

func feeFrom(data []byte) (uint64, error) {
	fee, err := harness.U64Arg(data, 0)
	if err != nil {
		return 0, err
	}
	if fee > MaxFeeBasisPoints {
		return 0, fmt.Errorf("%w: %d", ErrFeeTooHigh, fee)
	}
	return fee, nil
}
