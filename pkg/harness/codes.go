package harness

import (
	"errors"

	"github.com/fortiblox/X1-Sentry/pkg/account"
	"github.com/fortiblox/X1-Sentry/pkg/checked"
	"github.com/fortiblox/X1-Sentry/pkg/constraint"
	"github.com/fortiblox/X1-Sentry/pkg/pda"
)

// Code is a stable rejection code. The enumeration is closed and its values
// are a binding contract with the test suite: scenarios assert on exact
// codes, not just pass/fail, so existing values must never be renumbered.
type Code int

const (
	// CodeNone means the call completed successfully.
	CodeNone Code = iota

	// CodeNotSigner: a required signature is absent.
	CodeNotSigner

	// CodeWrongOwner: account owner does not match the declaring program.
	CodeWrongOwner

	// CodeDiscriminatorMismatch: type tag absent or wrong for the schema.
	CodeDiscriminatorMismatch

	// CodePdaMismatch: address does not equal the canonical derivation.
	CodePdaMismatch

	// CodeAlreadyInitialized: init guard flag already set.
	CodeAlreadyInitialized

	// CodeMissingAccount: a required account slot was not supplied.
	CodeMissingAccount

	// CodeArithmeticOverflow: checked addition/multiplication overflowed.
	CodeArithmeticOverflow

	// CodeArithmeticUnderflow: checked subtraction underflowed.
	CodeArithmeticUnderflow

	// CodeDivideByZero: checked division by zero.
	CodeDivideByZero

	// CodeBusinessRuleViolation: handler-declared domain error not covered
	// by a more specific code.
	CodeBusinessRuleViolation
)

// String returns the code name.
func (c Code) String() string {
	switch c {
	case CodeNone:
		return "ok"
	case CodeNotSigner:
		return "not_signer"
	case CodeWrongOwner:
		return "wrong_owner"
	case CodeDiscriminatorMismatch:
		return "discriminator_mismatch"
	case CodePdaMismatch:
		return "pda_mismatch"
	case CodeAlreadyInitialized:
		return "already_initialized"
	case CodeMissingAccount:
		return "missing_account"
	case CodeArithmeticOverflow:
		return "arithmetic_overflow"
	case CodeArithmeticUnderflow:
		return "arithmetic_underflow"
	case CodeDivideByZero:
		return "divide_by_zero"
	case CodeBusinessRuleViolation:
		return "business_rule_violation"
	default:
		return "unknown"
	}
}

// CodeForError maps a validation or handler error onto the closed code set.
// Unrecognized errors classify as business rule violations, which keeps the
// enumeration closed while letting handlers declare their own sentinels.
// That catch-all also covers constraint.ErrHasOneMismatch; the outcome's
// Phase separates a validation-time has-one failure from a handler error.
func CodeForError(err error) Code {
	switch {
	case err == nil:
		return CodeNone
	case errors.Is(err, account.ErrNotSigner):
		return CodeNotSigner
	case errors.Is(err, account.ErrWrongOwner):
		return CodeWrongOwner
	case errors.Is(err, account.ErrDiscriminatorMismatch):
		return CodeDiscriminatorMismatch
	case errors.Is(err, pda.ErrMismatch):
		return CodePdaMismatch
	case errors.Is(err, constraint.ErrAlreadyInitialized):
		return CodeAlreadyInitialized
	case errors.Is(err, constraint.ErrMissingAccount):
		return CodeMissingAccount
	case errors.Is(err, checked.ErrOverflow):
		return CodeArithmeticOverflow
	case errors.Is(err, checked.ErrUnderflow):
		return CodeArithmeticUnderflow
	case errors.Is(err, checked.ErrDivideByZero):
		return CodeDivideByZero
	default:
		return CodeBusinessRuleViolation
	}
}
