package constraint

import (
	"errors"
	"testing"

	"github.com/fortiblox/X1-Sentry/internal/types"
	"github.com/fortiblox/X1-Sentry/pkg/account"
	"github.com/fortiblox/X1-Sentry/pkg/pda"
)

var testProgram = types.ProgramAddr("constraint-test")

var configSchema = account.NewSchema("Config",
	account.Field{Name: "authority", Kind: account.FieldPubkey},
	account.Field{Name: "is_initialized", Kind: account.FieldBool},
)

// newConfigWrappers builds a typed config record plus an authority wrapper.
func newConfigWrappers(t *testing.T, authority types.Pubkey, signs bool, initialized bool) Wrappers {
	t.Helper()

	configAcc := &account.Account{
		Key:        types.Pubkey{1},
		Owner:      testProgram,
		Lamports:   1,
		Data:       make([]byte, configSchema.Size()),
		IsWritable: true,
	}
	typed, err := account.FormatRecord(configAcc, testProgram, configSchema)
	if err != nil {
		t.Fatalf("FormatRecord failed: %v", err)
	}
	if err := typed.SetPubkey("authority", authority); err != nil {
		t.Fatalf("SetPubkey failed: %v", err)
	}
	if err := typed.SetBool("is_initialized", initialized); err != nil {
		t.Fatalf("SetBool failed: %v", err)
	}

	authAcc := &account.Account{Key: authority, IsSigner: signs}
	w := Wrappers{"config": typed}
	if signs {
		signer, err := account.AsSigner(authAcc)
		if err != nil {
			t.Fatalf("AsSigner failed: %v", err)
		}
		w["authority"] = signer
	} else {
		w["authority"] = account.AsUnchecked(authAcc)
	}
	return w
}

// TestRequireSigner tests the signer constraint against both wrapper kinds.
func TestRequireSigner(t *testing.T) {
	authority := types.Pubkey{7}

	w := newConfigWrappers(t, authority, true, false)
	if err := (RequireSigner{Slot: "authority"}).Check(w); err != nil {
		t.Errorf("RequireSigner failed for signer wrapper: %v", err)
	}

	w = newConfigWrappers(t, authority, false, false)
	if err := (RequireSigner{Slot: "authority"}).Check(w); !errors.Is(err, account.ErrNotSigner) {
		t.Errorf("RequireSigner error = %v, want ErrNotSigner", err)
	}
}

// TestRequireOwned tests the ownership-capability constraint.
func TestRequireOwned(t *testing.T) {
	w := newConfigWrappers(t, types.Pubkey{7}, false, false)

	if err := (RequireOwned{Slot: "config"}).Check(w); err != nil {
		t.Errorf("RequireOwned failed for typed wrapper: %v", err)
	}
	if err := (RequireOwned{Slot: "authority"}).Check(w); !errors.Is(err, account.ErrWrongOwner) {
		t.Errorf("RequireOwned error = %v, want ErrWrongOwner", err)
	}
}

// TestHasOne tests the stored-relation constraint.
func TestHasOne(t *testing.T) {
	authority := types.Pubkey{7}
	c := HasOne{Slot: "config", Field: "authority", Target: "authority"}

	w := newConfigWrappers(t, authority, false, false)
	if err := c.Check(w); err != nil {
		t.Errorf("HasOne failed for matching relation: %v", err)
	}

	// Stored authority differs from the supplied account.
	w = newConfigWrappers(t, authority, false, false)
	w["authority"] = account.AsUnchecked(&account.Account{Key: types.Pubkey{8}})
	if err := c.Check(w); !errors.Is(err, ErrHasOneMismatch) {
		t.Errorf("HasOne error = %v, want ErrHasOneMismatch", err)
	}

	// HasOne alone passes even when the target never signed. The pairing
	// with RequireSigner is the caller's responsibility.
	w = newConfigWrappers(t, authority, false, false)
	if err := c.Check(w); err != nil {
		t.Errorf("HasOne should not require a signature: %v", err)
	}
}

// TestSeedsAndBump tests canonical PDA enforcement.
func TestSeedsAndBump(t *testing.T) {
	seeds := [][]byte{[]byte("config")}
	addr, _, err := pda.FindProgramAddress(seeds, testProgram)
	if err != nil {
		t.Fatalf("FindProgramAddress failed: %v", err)
	}

	c := SeedsAndBump{Slot: "pda", Seeds: seeds, Program: testProgram}

	w := Wrappers{"pda": account.AsUnchecked(&account.Account{Key: addr})}
	if err := c.Check(w); err != nil {
		t.Errorf("SeedsAndBump failed for canonical address: %v", err)
	}

	w = Wrappers{"pda": account.AsUnchecked(&account.Account{Key: types.Pubkey{9}})}
	if err := c.Check(w); !errors.Is(err, pda.ErrMismatch) {
		t.Errorf("SeedsAndBump error = %v, want pda.ErrMismatch", err)
	}
}

// TestSeedsAndBumpSeedSlots tests seeds referencing other account slots.
func TestSeedsAndBumpSeedSlots(t *testing.T) {
	user := types.Pubkey{5, 5, 5}
	addr, _, err := pda.FindProgramAddress([][]byte{[]byte("vault"), user[:]}, testProgram)
	if err != nil {
		t.Fatalf("FindProgramAddress failed: %v", err)
	}

	c := SeedsAndBump{
		Slot:      "vault",
		Seeds:     [][]byte{[]byte("vault")},
		SeedSlots: []string{"user"},
		Program:   testProgram,
	}
	w := Wrappers{
		"vault": account.AsUnchecked(&account.Account{Key: addr}),
		"user":  account.AsUnchecked(&account.Account{Key: user}),
	}
	if err := c.Check(w); err != nil {
		t.Errorf("SeedsAndBump with seed slot failed: %v", err)
	}
}

// TestInitGuard tests the double-initialization gate.
func TestInitGuard(t *testing.T) {
	c := InitGuard{Slot: "config", Flag: "is_initialized"}

	w := newConfigWrappers(t, types.Pubkey{7}, false, false)
	if err := c.Check(w); err != nil {
		t.Errorf("InitGuard failed for fresh record: %v", err)
	}

	w = newConfigWrappers(t, types.Pubkey{7}, false, true)
	if err := c.Check(w); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("InitGuard error = %v, want ErrAlreadyInitialized", err)
	}
}

// TestEvaluateShortCircuits tests ordered evaluation.
func TestEvaluateShortCircuits(t *testing.T) {
	// Both constraints would fail; the first declared failure wins.
	set := NewSet(
		RequireSigner{Slot: "authority"},
		InitGuard{Slot: "config", Flag: "is_initialized"},
	)
	w := newConfigWrappers(t, types.Pubkey{7}, false, true)
	if err := set.Evaluate(w); !errors.Is(err, account.ErrNotSigner) {
		t.Errorf("Evaluate error = %v, want the first failure (ErrNotSigner)", err)
	}

	// Reversed order reports the other failure.
	set = NewSet(
		InitGuard{Slot: "config", Flag: "is_initialized"},
		RequireSigner{Slot: "authority"},
	)
	if err := set.Evaluate(w); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("Evaluate error = %v, want ErrAlreadyInitialized", err)
	}
}

// TestMissingSlot tests that constraints reject absent accounts.
func TestMissingSlot(t *testing.T) {
	w := Wrappers{}
	if err := (RequireSigner{Slot: "authority"}).Check(w); !errors.Is(err, ErrMissingAccount) {
		t.Errorf("error = %v, want ErrMissingAccount", err)
	}
}
