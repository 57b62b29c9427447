package account

import (
	"errors"
	"math"
	"testing"

	"github.com/fortiblox/X1-Sentry/internal/types"
	"github.com/fortiblox/X1-Sentry/pkg/checked"
)

var testProgram = types.ProgramAddr("wrapper-test")

// testVaultSchema mirrors a vault record: authority pubkey + balance.
var testVaultSchema = NewSchema("Vault",
	Field{Name: "authority", Kind: FieldPubkey},
	Field{Name: "balance", Kind: FieldU64},
)

// newRecordAccount builds a program-owned account carrying an initialized
// record for the given schema.
func newRecordAccount(t *testing.T, key types.Pubkey, schema *Schema) *Account {
	t.Helper()
	acc := &Account{
		Key:        key,
		Owner:      testProgram,
		Lamports:   1,
		Data:       make([]byte, schema.Size()),
		IsWritable: true,
	}
	if _, err := FormatRecord(acc, testProgram, schema); err != nil {
		t.Fatalf("FormatRecord failed: %v", err)
	}
	return acc
}

// TestAsSigner tests the signer proof constructor.
func TestAsSigner(t *testing.T) {
	signed := &Account{Key: types.Pubkey{1}, IsSigner: true}
	s, err := AsSigner(signed)
	if err != nil {
		t.Fatalf("AsSigner failed for signing account: %v", err)
	}
	if s.Key() != signed.Key {
		t.Error("Signer key mismatch")
	}
	if s.Kind() != KindSigner {
		t.Errorf("Kind = %v, want signer", s.Kind())
	}

	unsigned := &Account{Key: types.Pubkey{2}, IsSigner: false}
	if _, err := AsSigner(unsigned); !errors.Is(err, ErrNotSigner) {
		t.Errorf("AsSigner error = %v, want ErrNotSigner", err)
	}
}

// TestAsOwned tests the owner proof constructor.
func TestAsOwned(t *testing.T) {
	acc := &Account{
		Key:      types.Pubkey{1},
		Owner:    testProgram,
		Lamports: 100,
		Data:     []byte{1, 2, 3},
	}

	o, err := AsOwned(acc, testProgram)
	if err != nil {
		t.Fatalf("AsOwned failed: %v", err)
	}
	if o.Owner() != testProgram {
		t.Error("Owner mismatch")
	}

	// Wrong owner fails regardless of buffer contents.
	attacker := types.ProgramAddr("attacker")
	acc.Owner = attacker
	if _, err := AsOwned(acc, testProgram); !errors.Is(err, ErrWrongOwner) {
		t.Errorf("AsOwned error = %v, want ErrWrongOwner", err)
	}

	// Non-existent account fails even with a matching owner field.
	fresh := &Account{Key: types.Pubkey{2}, Owner: testProgram}
	if _, err := AsOwned(fresh, testProgram); !errors.Is(err, ErrWrongOwner) {
		t.Errorf("AsOwned on fresh account error = %v, want ErrWrongOwner", err)
	}
}

// TestAsTypedCheckOrder tests that owner is checked before discriminator.
func TestAsTypedCheckOrder(t *testing.T) {
	// Right owner, wrong tag: discriminator mismatch.
	acc := &Account{
		Key:      types.Pubkey{1},
		Owner:    testProgram,
		Lamports: 1,
		Data:     make([]byte, testVaultSchema.Size()),
	}
	if _, err := AsTyped(acc, testProgram, testVaultSchema); !errors.Is(err, ErrDiscriminatorMismatch) {
		t.Errorf("AsTyped error = %v, want ErrDiscriminatorMismatch", err)
	}

	// Wrong owner, right tag: owner error wins.
	acc = newRecordAccount(t, types.Pubkey{2}, testVaultSchema)
	acc.Owner = types.ProgramAddr("attacker")
	if _, err := AsTyped(acc, testProgram, testVaultSchema); !errors.Is(err, ErrWrongOwner) {
		t.Errorf("AsTyped error = %v, want ErrWrongOwner", err)
	}
}

// TestTypeCosplayRejected tests that an identically laid out record of a
// different type never decodes.
func TestTypeCosplayRejected(t *testing.T) {
	// Same field layout as Vault, different name.
	imposter := NewSchema("UserData",
		Field{Name: "authority", Kind: FieldPubkey},
		Field{Name: "balance", Kind: FieldU64},
	)

	acc := newRecordAccount(t, types.Pubkey{3}, imposter)
	if _, err := AsTyped(acc, testProgram, testVaultSchema); !errors.Is(err, ErrDiscriminatorMismatch) {
		t.Errorf("AsTyped error = %v, want ErrDiscriminatorMismatch", err)
	}

	// The imposter account still decodes as its own type.
	if _, err := AsTyped(acc, testProgram, imposter); err != nil {
		t.Errorf("AsTyped as declared type failed: %v", err)
	}
}

// TestTypedFieldAccess tests reading and writing schema fields.
func TestTypedFieldAccess(t *testing.T) {
	acc := newRecordAccount(t, types.Pubkey{4}, testVaultSchema)
	view, err := AsTyped(acc, testProgram, testVaultSchema)
	if err != nil {
		t.Fatalf("AsTyped failed: %v", err)
	}

	authority := types.Pubkey{9, 9, 9}
	if err := view.SetPubkey("authority", authority); err != nil {
		t.Fatalf("SetPubkey failed: %v", err)
	}
	if err := view.SetU64("balance", 750); err != nil {
		t.Fatalf("SetU64 failed: %v", err)
	}

	// Mutation is visible through a fresh view over the same account.
	view2, err := AsTyped(acc, testProgram, testVaultSchema)
	if err != nil {
		t.Fatalf("AsTyped failed: %v", err)
	}
	got, err := view2.Pubkey("authority")
	if err != nil {
		t.Fatalf("Pubkey failed: %v", err)
	}
	if got != authority {
		t.Error("authority round trip mismatch")
	}
	bal, err := view2.U64("balance")
	if err != nil {
		t.Fatalf("U64 failed: %v", err)
	}
	if bal != 750 {
		t.Errorf("balance = %d, want 750", bal)
	}

	// Unknown field and wrong kind are distinct errors.
	if _, err := view.U64("missing"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("unknown field error = %v, want ErrUnknownField", err)
	}
	if _, err := view.U64("authority"); !errors.Is(err, ErrFieldKind) {
		t.Errorf("wrong kind error = %v, want ErrFieldKind", err)
	}
}

// TestTypedWritableGate tests that setters require a writable account.
func TestTypedWritableGate(t *testing.T) {
	acc := newRecordAccount(t, types.Pubkey{5}, testVaultSchema)
	acc.IsWritable = false

	view, err := AsTyped(acc, testProgram, testVaultSchema)
	if err != nil {
		t.Fatalf("AsTyped failed: %v", err)
	}
	if err := view.SetU64("balance", 1); !errors.Is(err, ErrNotWritable) {
		t.Errorf("SetU64 error = %v, want ErrNotWritable", err)
	}
	// Reads still work.
	if _, err := view.U64("balance"); err != nil {
		t.Errorf("U64 read failed: %v", err)
	}
}

// TestLamportTransfer tests credit/debit through wrappers.
func TestLamportTransfer(t *testing.T) {
	vault := newRecordAccount(t, types.Pubkey{6}, testVaultSchema)
	vault.Lamports = 500
	recipient := &Account{Key: types.Pubkey{7}, Lamports: 10, IsWritable: true}

	typed, err := AsTyped(vault, testProgram, testVaultSchema)
	if err != nil {
		t.Fatalf("AsTyped failed: %v", err)
	}
	if err := typed.DebitLamports(200); err != nil {
		t.Fatalf("DebitLamports failed: %v", err)
	}
	if err := AsUnchecked(recipient).CreditLamports(200); err != nil {
		t.Fatalf("CreditLamports failed: %v", err)
	}

	if vault.Lamports != 300 {
		t.Errorf("vault lamports = %d, want 300", vault.Lamports)
	}
	if recipient.Lamports != 210 {
		t.Errorf("recipient lamports = %d, want 210", recipient.Lamports)
	}

	// Over-debit is rejected without partial mutation.
	if err := typed.DebitLamports(400); err == nil {
		t.Error("DebitLamports should fail on underflow")
	}
	if vault.Lamports != 300 {
		t.Errorf("vault lamports = %d after failed debit, want 300", vault.Lamports)
	}
}

// TestFormatRecord tests fresh record initialization.
func TestFormatRecord(t *testing.T) {
	acc := &Account{
		Key:        types.Pubkey{8},
		Owner:      testProgram,
		Lamports:   1,
		Data:       make([]byte, testVaultSchema.Size()),
		IsWritable: true,
	}
	view, err := FormatRecord(acc, testProgram, testVaultSchema)
	if err != nil {
		t.Fatalf("FormatRecord failed: %v", err)
	}
	if err := VerifyDiscriminator(acc.Data, "Vault"); err != nil {
		t.Errorf("discriminator not written: %v", err)
	}
	bal, err := view.U64("balance")
	if err != nil || bal != 0 {
		t.Errorf("fresh balance = %d, %v, want 0, nil", bal, err)
	}

	// Too-small account is rejected.
	small := &Account{
		Key:        types.Pubkey{9},
		Owner:      testProgram,
		Lamports:   1,
		Data:       make([]byte, 4),
		IsWritable: true,
	}
	if _, err := FormatRecord(small, testProgram, testVaultSchema); !errors.Is(err, ErrInvalidData) {
		t.Errorf("FormatRecord error = %v, want ErrInvalidData", err)
	}
}

// TestTransferLamports tests that a failed transfer mutates neither side.
func TestTransferLamports(t *testing.T) {
	vault := newRecordAccount(t, types.Pubkey{8}, testVaultSchema)
	vault.Lamports = 500
	recipient := &Account{Key: types.Pubkey{9}, Lamports: 10, IsWritable: true}

	typed, err := AsTyped(vault, testProgram, testVaultSchema)
	if err != nil {
		t.Fatalf("AsTyped failed: %v", err)
	}
	dest := AsUnchecked(recipient)

	if err := typed.TransferLamports(dest, 200); err != nil {
		t.Fatalf("TransferLamports failed: %v", err)
	}
	if vault.Lamports != 300 || recipient.Lamports != 210 {
		t.Errorf("lamports = %d/%d, want 300/210", vault.Lamports, recipient.Lamports)
	}

	// Credit-side overflow fails before the debit is written.
	recipient.Lamports = math.MaxUint64
	if err := typed.TransferLamports(dest, 100); !errors.Is(err, checked.ErrOverflow) {
		t.Errorf("TransferLamports error = %v, want ErrOverflow", err)
	}
	if vault.Lamports != 300 {
		t.Errorf("vault lamports = %d after failed transfer, want 300", vault.Lamports)
	}
	if recipient.Lamports != math.MaxUint64 {
		t.Errorf("recipient lamports = %d after failed transfer, want unchanged", recipient.Lamports)
	}

	// A read-only destination fails before the debit is written.
	recipient.Lamports = 0
	recipient.IsWritable = false
	if err := typed.TransferLamports(dest, 100); !errors.Is(err, ErrNotWritable) {
		t.Errorf("TransferLamports error = %v, want ErrNotWritable", err)
	}
	if vault.Lamports != 300 || recipient.Lamports != 0 {
		t.Errorf("lamports = %d/%d after failed transfer, want 300/0", vault.Lamports, recipient.Lamports)
	}
}
