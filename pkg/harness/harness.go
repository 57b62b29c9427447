// Package harness implements the deterministic instruction processor.
//
// Each Process call runs a four-state machine over a crafted account set:
//
//	Resolving → Validating → Executing → Completed|Rejected
//
// Resolving maps declared slots to supplied accounts by position. Validating
// constructs the declared capability wrappers (which is where signer, owner,
// and discriminator proofs happen) and evaluates the instruction's
// constraint set. Executing invokes the handler against the proven wrapper
// bundle. Any failure before Executing aborts the call with a typed
// rejection and no account mutation: mutation capability is only reachable
// through wrappers the handler receives after full validation.
//
// Execution is single-threaded and synchronous per call. The harness may
// run many scenarios concurrently, but each owns an exclusive, freshly
// built account set, so the core needs no locks.
package harness

import (
	"fmt"

	"github.com/fortiblox/X1-Sentry/internal/types"
	"github.com/fortiblox/X1-Sentry/pkg/account"
	"github.com/fortiblox/X1-Sentry/pkg/constraint"
)

// State identifies a phase of the per-call state machine.
type State int

const (
	StateResolving State = iota
	StateValidating
	StateExecuting
	StateCompleted
	StateRejected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateResolving:
		return "resolving"
	case StateValidating:
		return "validating"
	case StateExecuting:
		return "executing"
	case StateCompleted:
		return "completed"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Slot declares one account position of an instruction: its name and the
// capability the handler requires. Typed slots also name their schema.
type Slot struct {
	Name   string
	Kind   account.Kind
	Schema *account.Schema // required for KindTyped
}

// Handler is the business logic of an instruction. It receives the proven
// wrapper bundle and the raw instruction data, and returns nil on success
// or a typed business error. Handlers must compute before they commit:
// every checked-arithmetic call belongs before the first buffer write, so a
// rejected call never leaves partial mutation behind.
type Handler func(b *Bundle, data []byte) error

// Instruction is one registered instruction definition: slot declarations,
// a constraint set, and a handler. Built once, processed many times.
type Instruction struct {
	Name        string
	Program     types.Pubkey
	Slots       []Slot
	Constraints *constraint.Set
	Handler     Handler
}

// Define builds an instruction definition. Duplicate slot names and typed
// slots without a schema panic: definitions are program constants and these
// are programming errors, not runtime conditions.
func Define(name string, program types.Pubkey, slots []Slot, set *constraint.Set, handler Handler) *Instruction {
	seen := make(map[string]bool, len(slots))
	for _, s := range slots {
		if seen[s.Name] {
			panic(fmt.Sprintf("instruction %s: duplicate slot %s", name, s.Name))
		}
		seen[s.Name] = true
		if s.Kind == account.KindTyped && s.Schema == nil {
			panic(fmt.Sprintf("instruction %s: typed slot %s has no schema", name, s.Name))
		}
	}
	if set == nil {
		set = constraint.NewSet()
	}
	return &Instruction{
		Name:        name,
		Program:     program,
		Slots:       slots,
		Constraints: set,
		Handler:     handler,
	}
}

// Bundle is the validated wrapper set handed to a handler. It exposes only
// the wrapper kinds the instruction declared, so a handler requiring a
// Signer can never be handed an Unchecked view by accident.
type Bundle struct {
	wrappers constraint.Wrappers
	logs     []string
}

// Unchecked returns the unchecked view at the named slot.
func (b *Bundle) Unchecked(name string) (*account.Unchecked, error) {
	return bundleSlot[*account.Unchecked](b, name)
}

// Signer returns the signer proof at the named slot.
func (b *Bundle) Signer(name string) (*account.Signer, error) {
	return bundleSlot[*account.Signer](b, name)
}

// Owned returns the ownership proof at the named slot.
func (b *Bundle) Owned(name string) (*account.Owned, error) {
	return bundleSlot[*account.Owned](b, name)
}

// Typed returns the typed record view at the named slot.
func (b *Bundle) Typed(name string) (*account.Typed, error) {
	return bundleSlot[*account.Typed](b, name)
}

func bundleSlot[W account.Wrapper](b *Bundle, name string) (W, error) {
	var zero W
	wr, ok := b.wrappers[name]
	if !ok {
		return zero, fmt.Errorf("%w: %s", constraint.ErrMissingAccount, name)
	}
	w, ok := wr.(W)
	if !ok {
		return zero, fmt.Errorf("slot %s holds %s wrapper", name, wr.Kind())
	}
	return w, nil
}

// Log records a handler log line on the call outcome.
func (b *Bundle) Log(format string, args ...any) {
	b.logs = append(b.logs, fmt.Sprintf(format, args...))
}

// Outcome is the terminal result of one processed call.
type Outcome struct {
	// Success is true if the call reached Completed.
	Success bool

	// Code is the rejection code, or CodeNone on success.
	Code Code

	// Err is the underlying rejection error, nil on success.
	Err error

	// State is the terminal state (Completed or Rejected).
	State State

	// Phase is the phase in which a rejection occurred; Executing for a
	// completed call.
	Phase State

	// Logs are the handler log lines, in order.
	Logs []string

	// Accounts are the final account values after the call, in slot
	// order. On a rejected call they are unmodified.
	Accounts []*account.Account
}

// Process runs one instruction against the supplied accounts and data.
// Accounts map to slots by position. The returned outcome is terminal;
// re-running requires a fresh account set.
func Process(ins *Instruction, accounts []*account.Account, data []byte) *Outcome {
	// Resolving: map declared slots to provided accounts by position.
	if len(accounts) < len(ins.Slots) {
		missing := ins.Slots[len(accounts)].Name
		err := fmt.Errorf("%w: %s", constraint.ErrMissingAccount, missing)
		return reject(StateResolving, err, accounts)
	}

	// Validating: construct declared wrappers, then evaluate constraints.
	wrappers := make(constraint.Wrappers, len(ins.Slots))
	for i, slot := range ins.Slots {
		acc := accounts[i]
		var (
			wr  account.Wrapper
			err error
		)
		switch slot.Kind {
		case account.KindUnchecked:
			wr = account.AsUnchecked(acc)
		case account.KindSigner:
			wr, err = account.AsSigner(acc)
		case account.KindOwned:
			wr, err = account.AsOwned(acc, ins.Program)
		case account.KindTyped:
			wr, err = account.AsTyped(acc, ins.Program, slot.Schema)
		default:
			err = fmt.Errorf("instruction %s: unknown slot kind %d", ins.Name, slot.Kind)
		}
		if err != nil {
			return reject(StateValidating, err, accounts)
		}
		wrappers[slot.Name] = wr
	}

	if err := ins.Constraints.Evaluate(wrappers); err != nil {
		return reject(StateValidating, err, accounts)
	}

	// Executing: the handler sees only proven wrappers.
	bundle := &Bundle{wrappers: wrappers}
	if err := ins.Handler(bundle, data); err != nil {
		out := reject(StateExecuting, err, accounts)
		out.Logs = bundle.logs
		return out
	}

	return &Outcome{
		Success:  true,
		Code:     CodeNone,
		State:    StateCompleted,
		Phase:    StateExecuting,
		Logs:     bundle.logs,
		Accounts: accounts,
	}
}

func reject(phase State, err error, accounts []*account.Account) *Outcome {
	return &Outcome{
		Success:  false,
		Code:     CodeForError(err),
		Err:      err,
		State:    StateRejected,
		Phase:    phase,
		Accounts: accounts,
	}
}
