package fixture

import (
	"testing"

	"github.com/fortiblox/X1-Sentry/internal/types"
	"github.com/fortiblox/X1-Sentry/pkg/account"
	"github.com/fortiblox/X1-Sentry/pkg/pda"
)

var testProgram = types.ProgramAddr("fixture-test")

var testSchema = account.NewSchema("FixtureRecord",
	account.Field{Name: "authority", Kind: account.FieldPubkey},
	account.Field{Name: "value", Kind: account.FieldU64},
)

// TestKeyDeterminism tests label-derived keys.
func TestKeyDeterminism(t *testing.T) {
	if Key("alice") != Key("alice") {
		t.Error("same label must derive same key")
	}
	if Key("alice") == Key("bob") {
		t.Error("distinct labels derived the same key")
	}
}

// TestWalletStates tests signer and non-signer wallets.
func TestWalletStates(t *testing.T) {
	w := Wallet("alice")
	if !w.IsSigner || !w.Exists() {
		t.Error("wallet must sign and exist")
	}
	u := UnsignedWallet("alice")
	if u.IsSigner {
		t.Error("unsigned wallet must not sign")
	}
	if u.Key != w.Key {
		t.Error("unsigned wallet must keep the wallet key")
	}
}

// TestFresh tests the non-existent account state.
func TestFresh(t *testing.T) {
	f := Fresh("nobody")
	if f.Exists() {
		t.Error("fresh account must not exist")
	}
	if f.Owner != types.SystemProgramAddr {
		t.Error("fresh account must be system-owned")
	}
}

// TestRecordStates tests owned, foreign, and cosplay records.
func TestRecordStates(t *testing.T) {
	acc, typed := Record(Key("rec"), testProgram, testSchema)
	if err := typed.SetU64("value", 42); err != nil {
		t.Fatalf("SetU64 failed: %v", err)
	}
	if _, err := account.AsTyped(acc, testProgram, testSchema); err != nil {
		t.Errorf("record does not validate as its own type: %v", err)
	}

	attacker := types.ProgramAddr("attacker")
	foreign, _ := ForeignRecord(Key("foreign"), attacker, testSchema)
	if _, err := account.AsTyped(foreign, testProgram, testSchema); err == nil {
		t.Error("foreign record must not validate for the real program")
	}

	imposter := account.NewSchema("Imposter",
		account.Field{Name: "authority", Kind: account.FieldPubkey},
		account.Field{Name: "value", Kind: account.FieldU64},
	)
	cosplay, _ := Cosplay(Key("cosplay"), testProgram, imposter)
	if _, err := account.AsTyped(cosplay, testProgram, testSchema); err == nil {
		t.Error("cosplay record must not validate as the expected type")
	}
}

// TestPDAFixtures tests canonical and non-canonical PDA accounts.
func TestPDAFixtures(t *testing.T) {
	seeds := [][]byte{[]byte("vault"), Key("alice").Bytes()}

	acc, _, bump := CanonicalPDA(testProgram, testSchema, seeds...)
	if err := pda.VerifyCanonical(acc.Key, seeds, testProgram); err != nil {
		t.Errorf("canonical PDA fixture fails verification: %v", err)
	}

	lower, _, lowerBump, ok := NonCanonicalPDA(testProgram, testSchema, seeds...)
	if !ok {
		t.Skip("no non-canonical bump for these seeds")
	}
	if lowerBump >= bump {
		t.Errorf("non-canonical bump %d not below canonical %d", lowerBump, bump)
	}
	if err := pda.VerifyCanonical(lower.Key, seeds, testProgram); err == nil {
		t.Error("non-canonical PDA fixture must fail verification")
	}
}
