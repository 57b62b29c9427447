package account

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fortiblox/X1-Sentry/internal/types"
	"github.com/fortiblox/X1-Sentry/pkg/checked"
)

var (
	// ErrNotSigner is returned when a required signature is absent.
	ErrNotSigner = errors.New("missing required signature")

	// ErrWrongOwner is returned when an account's owner does not match the
	// declaring program.
	ErrWrongOwner = errors.New("account owner mismatch")

	// ErrNotWritable is returned when mutating an account the transaction
	// did not mark writable.
	ErrNotWritable = errors.New("account not writable")
)

// Kind identifies a capability wrapper variant. The set is closed: adding a
// kind requires updating the constraint evaluator exhaustively.
type Kind int

const (
	// KindUnchecked carries no proof. It exists to model the vulnerable
	// path where data is trusted without validation.
	KindUnchecked Kind = iota

	// KindSigner proves the account signed the transaction.
	KindSigner

	// KindOwned proves the account exists and is owned by the declaring
	// program.
	KindOwned

	// KindTyped proves ownership plus a discriminator match for a record
	// schema.
	KindTyped
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindUnchecked:
		return "unchecked"
	case KindSigner:
		return "signer"
	case KindOwned:
		return "owned"
	case KindTyped:
		return "typed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Wrapper is a proof-carrying view over an Account. Implementations are the
// four capability kinds in this package; the sealed method keeps the set
// closed.
type Wrapper interface {
	Kind() Kind
	Key() types.Pubkey

	sealed()
}

// Unchecked is a view with no validation. It exposes the address and a copy
// of the raw bytes, nothing typed. Crediting lamports to a writable account
// is permitted because, like the runtime, crediting requires no authority;
// debiting does and is only available through Owned and Typed views.
type Unchecked struct {
	acc *Account
}

// AsUnchecked wraps an account without any validation.
func AsUnchecked(acc *Account) *Unchecked {
	return &Unchecked{acc: acc}
}

// Kind returns KindUnchecked.
func (u *Unchecked) Kind() Kind { return KindUnchecked }

// Key returns the account address.
func (u *Unchecked) Key() types.Pubkey { return u.acc.Key }

// Lamports returns the account balance.
func (u *Unchecked) Lamports() uint64 { return u.acc.Lamports }

// DataCopy returns a copy of the raw account data.
func (u *Unchecked) DataCopy() []byte {
	cp := make([]byte, len(u.acc.Data))
	copy(cp, u.acc.Data)
	return cp
}

// CreditLamports adds lamports to a writable account.
func (u *Unchecked) CreditLamports(amount uint64) error {
	if !u.acc.IsWritable {
		return fmt.Errorf("%w: %s", ErrNotWritable, u.acc.Key)
	}
	sum, err := checked.Add(u.acc.Lamports, amount)
	if err != nil {
		return err
	}
	u.acc.Lamports = sum
	return nil
}

func (u *Unchecked) sealed() {}

// Signer is a proof that the account signed the transaction. It is a proof
// of identity, not a data capability: only the address is exposed.
type Signer struct {
	acc *Account
}

// AsSigner wraps an account, succeeding only if it signed the transaction.
func AsSigner(acc *Account) (*Signer, error) {
	if !acc.IsSigner {
		return nil, fmt.Errorf("%w: %s", ErrNotSigner, acc.Key)
	}
	return &Signer{acc: acc}, nil
}

// Kind returns KindSigner.
func (s *Signer) Kind() Kind { return KindSigner }

// Key returns the account address.
func (s *Signer) Key() types.Pubkey { return s.acc.Key }

func (s *Signer) sealed() {}

// Owned is a proof that the account exists and is owned by the declaring
// program. It exposes the data buffer and lamport mutation.
type Owned struct {
	acc *Account
}

// AsOwned wraps an account, succeeding only if the account exists and its
// owner equals expectedOwner. Buffer contents are irrelevant to this check:
// a perfectly laid-out account owned by another program still fails.
func AsOwned(acc *Account, expectedOwner types.Pubkey) (*Owned, error) {
	if !acc.Exists() {
		return nil, fmt.Errorf("%w: %s does not exist", ErrWrongOwner, acc.Key)
	}
	if acc.Owner != expectedOwner {
		return nil, fmt.Errorf("%w: %s owned by %s, want %s",
			ErrWrongOwner, acc.Key, acc.Owner, expectedOwner)
	}
	return &Owned{acc: acc}, nil
}

// Kind returns KindOwned.
func (o *Owned) Kind() Kind { return KindOwned }

// Key returns the account address.
func (o *Owned) Key() types.Pubkey { return o.acc.Key }

// Owner returns the owning program address.
func (o *Owned) Owner() types.Pubkey { return o.acc.Owner }

// Lamports returns the account balance.
func (o *Owned) Lamports() uint64 { return o.acc.Lamports }

// DataCopy returns a copy of the raw account data.
func (o *Owned) DataCopy() []byte {
	cp := make([]byte, len(o.acc.Data))
	copy(cp, o.acc.Data)
	return cp
}

// WriteData writes bytes into the account data at the given offset.
func (o *Owned) WriteData(offset int, b []byte) error {
	if !o.acc.IsWritable {
		return fmt.Errorf("%w: %s", ErrNotWritable, o.acc.Key)
	}
	if offset < 0 || offset+len(b) > len(o.acc.Data) {
		return fmt.Errorf("%w: write out of range", ErrInvalidData)
	}
	copy(o.acc.Data[offset:], b)
	return nil
}

// CreditLamports adds lamports to a writable account.
func (o *Owned) CreditLamports(amount uint64) error {
	return creditLamports(o.acc, amount)
}

// DebitLamports removes lamports from a writable account.
func (o *Owned) DebitLamports(amount uint64) error {
	return debitLamports(o.acc, amount)
}

// TransferLamports moves lamports from this account to the destination.
// Both sides are computed and both writability checks pass before either
// balance is written, so a failed transfer leaves both accounts untouched.
func (o *Owned) TransferLamports(to Wrapper, amount uint64) error {
	return transferLamports(o.acc, rawAccount(to), amount)
}

func (o *Owned) sealed() {}

// Typed is a proof that the account is owned by the declaring program and
// its data carries the schema's discriminator. Field access reads and
// writes the underlying account buffer at the schema's fixed offsets.
type Typed struct {
	acc    *Account
	schema *Schema
}

// AsTyped wraps an account as a typed record view. The checks run in order:
// owner, then discriminator, then record length. Owner runs first so an
// account with the right owner but wrong type is distinguished from one
// with the wrong owner entirely.
func AsTyped(acc *Account, expectedOwner types.Pubkey, schema *Schema) (*Typed, error) {
	if _, err := AsOwned(acc, expectedOwner); err != nil {
		return nil, err
	}
	if err := VerifyDiscriminator(acc.Data, schema.Name()); err != nil {
		return nil, err
	}
	if len(acc.Data) < schema.Size() {
		return nil, fmt.Errorf("%w: %s record truncated", ErrInvalidData, schema.Name())
	}
	return &Typed{acc: acc, schema: schema}, nil
}

// FormatRecord initializes a fresh record on an account: it requires the
// account to be owned by the program and writable, zero-fills the record
// region, writes the schema discriminator, and returns the typed view.
// This is the only path that writes a discriminator.
func FormatRecord(acc *Account, owner types.Pubkey, schema *Schema) (*Typed, error) {
	if _, err := AsOwned(acc, owner); err != nil {
		return nil, err
	}
	if !acc.IsWritable {
		return nil, fmt.Errorf("%w: %s", ErrNotWritable, acc.Key)
	}
	if len(acc.Data) < schema.Size() {
		return nil, fmt.Errorf("%w: account too small for %s", ErrInvalidData, schema.Name())
	}
	for i := 0; i < schema.Size(); i++ {
		acc.Data[i] = 0
	}
	tag := schema.Discriminator()
	copy(acc.Data[:DiscriminatorSize], tag[:])
	return &Typed{acc: acc, schema: schema}, nil
}

// Kind returns KindTyped.
func (t *Typed) Kind() Kind { return KindTyped }

// Key returns the account address.
func (t *Typed) Key() types.Pubkey { return t.acc.Key }

// Schema returns the record schema this view decodes.
func (t *Typed) Schema() *Schema { return t.schema }

// Lamports returns the account balance.
func (t *Typed) Lamports() uint64 { return t.acc.Lamports }

// Pubkey reads a pubkey field.
func (t *Typed) Pubkey(field string) (types.Pubkey, error) {
	info, err := t.schema.field(field, FieldPubkey)
	if err != nil {
		return types.Pubkey{}, err
	}
	var p types.Pubkey
	copy(p[:], t.acc.Data[DiscriminatorSize+info.offset:])
	return p, nil
}

// U64 reads a uint64 field.
func (t *Typed) U64(field string) (uint64, error) {
	info, err := t.schema.field(field, FieldU64)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(t.acc.Data[DiscriminatorSize+info.offset:]), nil
}

// U8 reads a uint8 field.
func (t *Typed) U8(field string) (uint8, error) {
	info, err := t.schema.field(field, FieldU8)
	if err != nil {
		return 0, err
	}
	return t.acc.Data[DiscriminatorSize+info.offset], nil
}

// Bool reads a bool field. Any nonzero byte reads as true.
func (t *Typed) Bool(field string) (bool, error) {
	info, err := t.schema.field(field, FieldBool)
	if err != nil {
		return false, err
	}
	return t.acc.Data[DiscriminatorSize+info.offset] != 0, nil
}

// SetPubkey writes a pubkey field.
func (t *Typed) SetPubkey(field string, v types.Pubkey) error {
	info, err := t.schema.field(field, FieldPubkey)
	if err != nil {
		return err
	}
	if err := t.writable(); err != nil {
		return err
	}
	copy(t.acc.Data[DiscriminatorSize+info.offset:], v[:])
	return nil
}

// SetU64 writes a uint64 field.
func (t *Typed) SetU64(field string, v uint64) error {
	info, err := t.schema.field(field, FieldU64)
	if err != nil {
		return err
	}
	if err := t.writable(); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(t.acc.Data[DiscriminatorSize+info.offset:], v)
	return nil
}

// SetU8 writes a uint8 field.
func (t *Typed) SetU8(field string, v uint8) error {
	info, err := t.schema.field(field, FieldU8)
	if err != nil {
		return err
	}
	if err := t.writable(); err != nil {
		return err
	}
	t.acc.Data[DiscriminatorSize+info.offset] = v
	return nil
}

// SetBool writes a bool field.
func (t *Typed) SetBool(field string, v bool) error {
	info, err := t.schema.field(field, FieldBool)
	if err != nil {
		return err
	}
	if err := t.writable(); err != nil {
		return err
	}
	if v {
		t.acc.Data[DiscriminatorSize+info.offset] = 1
	} else {
		t.acc.Data[DiscriminatorSize+info.offset] = 0
	}
	return nil
}

// CreditLamports adds lamports to a writable account.
func (t *Typed) CreditLamports(amount uint64) error {
	return creditLamports(t.acc, amount)
}

// DebitLamports removes lamports from a writable account.
func (t *Typed) DebitLamports(amount uint64) error {
	return debitLamports(t.acc, amount)
}

// TransferLamports moves lamports from this account to the destination.
// Both sides are computed and both writability checks pass before either
// balance is written, so a failed transfer leaves both accounts untouched.
func (t *Typed) TransferLamports(to Wrapper, amount uint64) error {
	return transferLamports(t.acc, rawAccount(to), amount)
}

func (t *Typed) writable() error {
	if !t.acc.IsWritable {
		return fmt.Errorf("%w: %s", ErrNotWritable, t.acc.Key)
	}
	return nil
}

func (t *Typed) sealed() {}

func creditLamports(acc *Account, amount uint64) error {
	if !acc.IsWritable {
		return fmt.Errorf("%w: %s", ErrNotWritable, acc.Key)
	}
	sum, err := checked.Add(acc.Lamports, amount)
	if err != nil {
		return err
	}
	acc.Lamports = sum
	return nil
}

func debitLamports(acc *Account, amount uint64) error {
	if !acc.IsWritable {
		return fmt.Errorf("%w: %s", ErrNotWritable, acc.Key)
	}
	diff, err := checked.Sub(acc.Lamports, amount)
	if err != nil {
		return err
	}
	acc.Lamports = diff
	return nil
}

func transferLamports(from, to *Account, amount uint64) error {
	if !from.IsWritable {
		return fmt.Errorf("%w: %s", ErrNotWritable, from.Key)
	}
	if !to.IsWritable {
		return fmt.Errorf("%w: %s", ErrNotWritable, to.Key)
	}
	debited, err := checked.Sub(from.Lamports, amount)
	if err != nil {
		return err
	}
	credited, err := checked.Add(to.Lamports, amount)
	if err != nil {
		return err
	}
	from.Lamports = debited
	to.Lamports = credited
	return nil
}

// rawAccount unwraps any capability wrapper. The wrapper set is sealed, so
// the switch is exhaustive.
func rawAccount(w Wrapper) *Account {
	switch v := w.(type) {
	case *Unchecked:
		return v.acc
	case *Signer:
		return v.acc
	case *Owned:
		return v.acc
	case *Typed:
		return v.acc
	default:
		panic(fmt.Sprintf("unknown wrapper kind %d", w.Kind()))
	}
}
