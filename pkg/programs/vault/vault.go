// Package vault implements a lamport vault with a stored withdraw
// authority. The vulnerable withdraw matches the authority key but never
// demands its signature, so anyone who knows the authority's public key
// can drain the vault. The secure withdraw requires the signature.
package vault

import (
	"github.com/fortiblox/X1-Sentry/internal/types"
	"github.com/fortiblox/X1-Sentry/pkg/account"
	"github.com/fortiblox/X1-Sentry/pkg/checked"
	"github.com/fortiblox/X1-Sentry/pkg/constraint"
	"github.com/fortiblox/X1-Sentry/pkg/harness"
)

// Program is the vault program address.
var Program = types.ProgramAddr("vault")

// Schema describes the vault record: the withdraw authority and the
// tracked balance.
var Schema = account.NewSchema("Vault",
	account.Field{Name: "authority", Kind: account.FieldPubkey},
	account.Field{Name: "balance", Kind: account.FieldU64},
)

// Initialize binds a freshly formatted vault record to the payer as its
// withdraw authority.
func Initialize() *harness.Instruction {
	return harness.Define(
		"vault:initialize",
		Program,
		[]harness.Slot{
			{Name: "vault", Kind: account.KindTyped, Schema: Schema},
			{Name: "payer", Kind: account.KindSigner},
		},
		nil,
		func(b *harness.Bundle, data []byte) error {
			vault, err := b.Typed("vault")
			if err != nil {
				return err
			}
			payer, err := b.Signer("payer")
			if err != nil {
				return err
			}
			if err := vault.SetPubkey("authority", payer.Key()); err != nil {
				return err
			}
			return vault.SetU64("balance", 0)
		},
	)
}

// Deposit credits the vault. Anyone may deposit; no authority involved.
func Deposit() *harness.Instruction {
	return harness.Define(
		"vault:deposit",
		Program,
		[]harness.Slot{
			{Name: "vault", Kind: account.KindTyped, Schema: Schema},
			{Name: "depositor", Kind: account.KindSigner},
		},
		nil,
		func(b *harness.Bundle, data []byte) error {
			vault, err := b.Typed("vault")
			if err != nil {
				return err
			}
			amount, err := harness.U64Arg(data, 0)
			if err != nil {
				return err
			}

			balance, err := vault.U64("balance")
			if err != nil {
				return err
			}
			next, err := checked.Add(balance, amount)
			if err != nil {
				return err
			}
			if err := vault.CreditLamports(amount); err != nil {
				return err
			}
			return vault.SetU64("balance", next)
		},
	)
}

// VulnerableWithdraw matches the stored authority key against the supplied
// account but accepts it unsigned. The has-one check alone proves nothing
// about consent.
func VulnerableWithdraw() *harness.Instruction {
	return withdraw("vault:withdraw_vulnerable", account.KindUnchecked, constraint.NewSet(
		constraint.HasOne{Slot: "vault", Field: "authority", Target: "authority"},
	))
}

// SecureWithdraw additionally requires the authority's signature.
func SecureWithdraw() *harness.Instruction {
	return withdraw("vault:withdraw_secure", account.KindSigner, constraint.NewSet(
		constraint.RequireSigner{Slot: "authority"},
		constraint.HasOne{Slot: "vault", Field: "authority", Target: "authority"},
	))
}

func withdraw(name string, authorityKind account.Kind, set *constraint.Set) *harness.Instruction {
	return harness.Define(
		name,
		Program,
		[]harness.Slot{
			{Name: "vault", Kind: account.KindTyped, Schema: Schema},
			{Name: "authority", Kind: authorityKind},
			{Name: "destination", Kind: account.KindUnchecked},
		},
		set,
		func(b *harness.Bundle, data []byte) error {
			vault, err := b.Typed("vault")
			if err != nil {
				return err
			}
			destination, err := b.Unchecked("destination")
			if err != nil {
				return err
			}
			amount, err := harness.U64Arg(data, 0)
			if err != nil {
				return err
			}

			balance, err := vault.U64("balance")
			if err != nil {
				return err
			}
			next, err := checked.Sub(balance, amount)
			if err != nil {
				return err
			}
			if err := vault.TransferLamports(destination, amount); err != nil {
				return err
			}
			return vault.SetU64("balance", next)
		},
	)
}
