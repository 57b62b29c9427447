package statestore

import (
	"errors"
	"fmt"

	"github.com/fortiblox/X1-Sentry/pkg/harness"
)

// ErrNotCompleted is returned when committing a rejected outcome.
var ErrNotCompleted = errors.New("outcome did not complete")

// CommitOutcome writes a completed call's final accounts into the store
// and bumps the baseline revision. Rejected outcomes are refused: their
// accounts are unmodified by contract, so committing them would only
// re-write the baseline that produced them.
func CommitOutcome(st Store, out *harness.Outcome) error {
	if !out.Success {
		return fmt.Errorf("%w: %s in %s", ErrNotCompleted, out.Code, out.Phase)
	}
	for _, acc := range out.Accounts {
		if err := st.Put(acc); err != nil {
			return fmt.Errorf("put account %s: %w", acc.Key, err)
		}
	}
	return st.SetRevision(st.Revision() + 1)
}
