// Package config implements a one-time program configuration record. The
// vulnerable initialize writes the record unconditionally, so a second
// call rebinds the authority to whoever sends it. The secure initialize
// carries an init guard on the is_initialized flag.
package config

import (
	"github.com/fortiblox/X1-Sentry/internal/types"
	"github.com/fortiblox/X1-Sentry/pkg/account"
	"github.com/fortiblox/X1-Sentry/pkg/constraint"
	"github.com/fortiblox/X1-Sentry/pkg/harness"
)

// Program is the config program address.
var Program = types.ProgramAddr("config")

// Schema describes the configuration record.
var Schema = account.NewSchema("Config",
	account.Field{Name: "authority", Kind: account.FieldPubkey},
	account.Field{Name: "is_initialized", Kind: account.FieldBool},
	account.Field{Name: "vault_balance", Kind: account.FieldU64},
)

// VulnerableInitialize writes the record with no guard on repeat calls.
func VulnerableInitialize() *harness.Instruction {
	return initialize("config:initialize_vulnerable", nil)
}

// SecureInitialize refuses to run once is_initialized is set. The guard
// fires during validation, before the handler can touch the record.
func SecureInitialize() *harness.Instruction {
	return initialize("config:initialize_secure", constraint.NewSet(
		constraint.InitGuard{Slot: "config", Flag: "is_initialized"},
	))
}

func initialize(name string, set *constraint.Set) *harness.Instruction {
	return harness.Define(
		name,
		Program,
		[]harness.Slot{
			{Name: "config", Kind: account.KindTyped, Schema: Schema},
			{Name: "payer", Kind: account.KindSigner},
		},
		set,
		func(b *harness.Bundle, data []byte) error {
			cfg, err := b.Typed("config")
			if err != nil {
				return err
			}
			payer, err := b.Signer("payer")
			if err != nil {
				return err
			}
			if err := cfg.SetPubkey("authority", payer.Key()); err != nil {
				return err
			}
			if err := cfg.SetU64("vault_balance", 0); err != nil {
				return err
			}
			return cfg.SetBool("is_initialized", true)
		},
	)
}

// SetBalance updates the tracked vault balance. Authority-gated; included
// so the record has a post-initialization operation to protect.
func SetBalance() *harness.Instruction {
	return harness.Define(
		"config:set_balance",
		Program,
		[]harness.Slot{
			{Name: "config", Kind: account.KindTyped, Schema: Schema},
			{Name: "authority", Kind: account.KindSigner},
		},
		constraint.NewSet(
			constraint.RequireSigner{Slot: "authority"},
			constraint.HasOne{Slot: "config", Field: "authority", Target: "authority"},
		),
		func(b *harness.Bundle, data []byte) error {
			cfg, err := b.Typed("config")
			if err != nil {
				return err
			}
			balance, err := harness.U64Arg(data, 0)
			if err != nil {
				return err
			}
			return cfg.SetU64("vault_balance", balance)
		},
	)
}
