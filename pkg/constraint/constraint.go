// Package constraint implements the declarative account constraint set
// evaluated before an instruction handler runs.
//
// A Set is built once per instruction definition and evaluated fresh per
// call against the resolved capability wrappers. Evaluation walks the
// constraints in declaration order and stops at the first failure, so the
// rejection a caller observes is deterministic for a given definition.
package constraint

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/fortiblox/X1-Sentry/internal/types"
	"github.com/fortiblox/X1-Sentry/pkg/account"
	"github.com/fortiblox/X1-Sentry/pkg/pda"
)

var (
	// ErrMissingAccount is returned when a constraint (or the resolver)
	// references an account slot that was not supplied.
	ErrMissingAccount = errors.New("required account not supplied")

	// ErrAlreadyInitialized is returned when an init guard finds its flag
	// already set.
	ErrAlreadyInitialized = errors.New("account already initialized")

	// ErrHasOneMismatch is returned when a has-one relation does not hold.
	// The rejection code set is closed and has no dedicated has-one code,
	// so this classifies as a business rule violation; journal consumers
	// distinguish it from handler rejections by the recorded phase.
	ErrHasOneMismatch = errors.New("has-one relation mismatch")

	// ErrBadConstraint is returned when a constraint references a slot of
	// an incompatible wrapper kind. This indicates a broken instruction
	// definition, not a property of the supplied accounts.
	ErrBadConstraint = errors.New("constraint applied to wrong wrapper kind")
)

// Wrappers is the resolved slot-name to capability-wrapper mapping for one
// call.
type Wrappers map[string]account.Wrapper

// Constraint is one declared requirement on the resolved wrappers.
type Constraint interface {
	// Check returns nil if the constraint holds.
	Check(w Wrappers) error
}

// Set is an ordered list of constraints attached to one instruction
// definition. Construct once, evaluate per call.
type Set struct {
	constraints []Constraint
}

// NewSet builds a constraint set evaluated in the given order.
func NewSet(cs ...Constraint) *Set {
	return &Set{constraints: cs}
}

// Append returns a new Set with the additional constraints evaluated after
// the existing ones.
func (s *Set) Append(cs ...Constraint) *Set {
	combined := make([]Constraint, 0, len(s.constraints)+len(cs))
	combined = append(combined, s.constraints...)
	combined = append(combined, cs...)
	return &Set{constraints: combined}
}

// Evaluate checks every constraint in order, short-circuiting on the first
// failure. On success the handler may trust every declared relation.
func (s *Set) Evaluate(w Wrappers) error {
	for _, c := range s.constraints {
		if err := c.Check(w); err != nil {
			return err
		}
	}
	return nil
}

func slot(w Wrappers, name string) (account.Wrapper, error) {
	wr, ok := w[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingAccount, name)
	}
	return wr, nil
}

func typedSlot(w Wrappers, name string) (*account.Typed, error) {
	wr, err := slot(w, name)
	if err != nil {
		return nil, err
	}
	typed, ok := wr.(*account.Typed)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %s, need typed", ErrBadConstraint, name, wr.Kind())
	}
	return typed, nil
}

// RequireSigner requires the slot's wrapper to be a Signer proof.
type RequireSigner struct {
	Slot string
}

// Check implements Constraint.
func (c RequireSigner) Check(w Wrappers) error {
	wr, err := slot(w, c.Slot)
	if err != nil {
		return err
	}
	if wr.Kind() != account.KindSigner {
		return fmt.Errorf("%w: %s", account.ErrNotSigner, wr.Key())
	}
	return nil
}

// RequireOwned requires the slot's wrapper to carry an ownership proof
// (Owned or Typed). The owner itself was verified at wrapper construction;
// this constraint asserts the declared capability is present.
type RequireOwned struct {
	Slot string
}

// Check implements Constraint.
func (c RequireOwned) Check(w Wrappers) error {
	wr, err := slot(w, c.Slot)
	if err != nil {
		return err
	}
	if wr.Kind() != account.KindOwned && wr.Kind() != account.KindTyped {
		return fmt.Errorf("%w: %s", account.ErrWrongOwner, wr.Key())
	}
	return nil
}

// HasOne requires the pubkey stored in Field of the typed record at Slot to
// equal the address of the account at Target.
//
// This proves a stored relation only. It says nothing about whether Target
// signed the call; pair it with RequireSigner(Target) when the relation
// gates authority. The evaluator never implies one from the other.
type HasOne struct {
	Slot   string
	Field  string
	Target string
}

// Check implements Constraint.
func (c HasOne) Check(w Wrappers) error {
	typed, err := typedSlot(w, c.Slot)
	if err != nil {
		return err
	}
	target, err := slot(w, c.Target)
	if err != nil {
		return err
	}
	stored, err := typed.Pubkey(c.Field)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadConstraint, err)
	}
	if stored != target.Key() {
		return fmt.Errorf("%w: %s.%s = %s, account %s = %s",
			ErrHasOneMismatch, c.Slot, c.Field, stored, c.Target, target.Key())
	}
	return nil
}

// SeedsAndBump requires the slot's address to equal the canonical PDA for
// the declared seeds. The seed sequence is the static Seeds followed by the
// addresses of the SeedSlots accounts, in order. There is no way to supply
// a bump: verification always recomputes the canonical derivation.
type SeedsAndBump struct {
	Slot      string
	Seeds     [][]byte
	SeedSlots []string
	Program   types.Pubkey
}

// Check implements Constraint.
func (c SeedsAndBump) Check(w Wrappers) error {
	wr, err := slot(w, c.Slot)
	if err != nil {
		return err
	}

	seeds := make([][]byte, 0, len(c.Seeds)+len(c.SeedSlots))
	for _, s := range c.Seeds {
		seeds = append(seeds, bytes.Clone(s))
	}
	for _, name := range c.SeedSlots {
		ref, err := slot(w, name)
		if err != nil {
			return err
		}
		key := ref.Key()
		seeds = append(seeds, key[:])
	}

	return pda.VerifyCanonical(wr.Key(), seeds, c.Program)
}

// InitGuard requires the bool field at Flag of the typed record at Slot to
// be unset before the handler runs. The handler is responsible for setting
// it after successful initialization; within the single-call execution
// model this pre-check is the atomic gate against double initialization.
type InitGuard struct {
	Slot string
	Flag string
}

// Check implements Constraint.
func (c InitGuard) Check(w Wrappers) error {
	typed, err := typedSlot(w, c.Slot)
	if err != nil {
		return err
	}
	set, err := typed.Bool(c.Flag)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadConstraint, err)
	}
	if set {
		return fmt.Errorf("%w: %s", ErrAlreadyInitialized, typed.Key())
	}
	return nil
}
