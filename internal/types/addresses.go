// Package types provides well-known program addresses for the simulator.
package types

import "crypto/sha256"

// Native program addresses.
var (
	// SystemProgramAddr is the System Program address. Fresh accounts that
	// have never been assigned to a program are owned by it.
	SystemProgramAddr = MustPubkeyFromBase58("11111111111111111111111111111111")
)

// ProgramAddr derives a deterministic address for a named program.
//
// The simulator has no deployed program registry, so program addresses are
// fixed by hashing a namespaced label. The same name always yields the same
// address within one process and across processes.
func ProgramAddr(name string) Pubkey {
	return Pubkey(sha256.Sum256([]byte("program:" + name)))
}
