// Package ledger implements a mint/burn token ledger. The vulnerable
// instructions use raw wrapping arithmetic, so burning more than a balance
// wraps it to an enormous value and minting near the supply cap wraps the
// supply down. The secure instructions route every operation through
// checked arithmetic.
package ledger

import (
	"github.com/fortiblox/X1-Sentry/internal/types"
	"github.com/fortiblox/X1-Sentry/pkg/account"
	"github.com/fortiblox/X1-Sentry/pkg/checked"
	"github.com/fortiblox/X1-Sentry/pkg/constraint"
	"github.com/fortiblox/X1-Sentry/pkg/harness"
)

// Program is the ledger program address.
var Program = types.ProgramAddr("ledger")

// Schema describes the ledger record: the mint authority, the total
// supply, and a single tracked user balance.
var Schema = account.NewSchema("Ledger",
	account.Field{Name: "authority", Kind: account.FieldPubkey},
	account.Field{Name: "total_supply", Kind: account.FieldU64},
	account.Field{Name: "user_balance", Kind: account.FieldU64},
)

type arith struct {
	add func(a, b uint64) (uint64, error)
	sub func(a, b uint64) (uint64, error)
}

var (
	checkedArith = arith{add: checked.Add, sub: checked.Sub}

	// wrappingArith reproduces release-mode unchecked arithmetic.
	wrappingArith = arith{
		add: func(a, b uint64) (uint64, error) { return a + b, nil },
		sub: func(a, b uint64) (uint64, error) { return a - b, nil },
	}
)

// Initialize binds a freshly formatted ledger record to the payer as its
// mint authority.
func Initialize() *harness.Instruction {
	return harness.Define(
		"ledger:initialize",
		Program,
		[]harness.Slot{
			{Name: "ledger", Kind: account.KindTyped, Schema: Schema},
			{Name: "payer", Kind: account.KindSigner},
		},
		nil,
		func(b *harness.Bundle, data []byte) error {
			ledger, err := b.Typed("ledger")
			if err != nil {
				return err
			}
			payer, err := b.Signer("payer")
			if err != nil {
				return err
			}
			if err := ledger.SetPubkey("authority", payer.Key()); err != nil {
				return err
			}
			if err := ledger.SetU64("total_supply", 0); err != nil {
				return err
			}
			return ledger.SetU64("user_balance", 0)
		},
	)
}

// VulnerableMint adds to supply and balance with wrapping arithmetic.
func VulnerableMint() *harness.Instruction {
	return mint("ledger:mint_vulnerable", wrappingArith)
}

// SecureMint adds with overflow-checked arithmetic.
func SecureMint() *harness.Instruction {
	return mint("ledger:mint_secure", checkedArith)
}

// VulnerableBurn subtracts with wrapping arithmetic.
func VulnerableBurn() *harness.Instruction {
	return burn("ledger:burn_vulnerable", wrappingArith)
}

// SecureBurn subtracts with underflow-checked arithmetic.
func SecureBurn() *harness.Instruction {
	return burn("ledger:burn_secure", checkedArith)
}

func slots() []harness.Slot {
	return []harness.Slot{
		{Name: "ledger", Kind: account.KindTyped, Schema: Schema},
		{Name: "authority", Kind: account.KindSigner},
	}
}

func gate() *constraint.Set {
	return constraint.NewSet(
		constraint.RequireSigner{Slot: "authority"},
		constraint.HasOne{Slot: "ledger", Field: "authority", Target: "authority"},
	)
}

func mint(name string, a arith) *harness.Instruction {
	return harness.Define(name, Program, slots(), gate(),
		func(b *harness.Bundle, data []byte) error {
			ledger, err := b.Typed("ledger")
			if err != nil {
				return err
			}
			amount, err := harness.U64Arg(data, 0)
			if err != nil {
				return err
			}

			supply, err := ledger.U64("total_supply")
			if err != nil {
				return err
			}
			balance, err := ledger.U64("user_balance")
			if err != nil {
				return err
			}
			nextSupply, err := a.add(supply, amount)
			if err != nil {
				return err
			}
			nextBalance, err := a.add(balance, amount)
			if err != nil {
				return err
			}
			if err := ledger.SetU64("total_supply", nextSupply); err != nil {
				return err
			}
			return ledger.SetU64("user_balance", nextBalance)
		},
	)
}

func burn(name string, a arith) *harness.Instruction {
	return harness.Define(name, Program, slots(), gate(),
		func(b *harness.Bundle, data []byte) error {
			ledger, err := b.Typed("ledger")
			if err != nil {
				return err
			}
			amount, err := harness.U64Arg(data, 0)
			if err != nil {
				return err
			}

			supply, err := ledger.U64("total_supply")
			if err != nil {
				return err
			}
			balance, err := ledger.U64("user_balance")
			if err != nil {
				return err
			}
			nextSupply, err := a.sub(supply, amount)
			if err != nil {
				return err
			}
			nextBalance, err := a.sub(balance, amount)
			if err != nil {
				return err
			}
			if err := ledger.SetU64("total_supply", nextSupply); err != nil {
				return err
			}
			return ledger.SetU64("user_balance", nextBalance)
		},
	)
}
