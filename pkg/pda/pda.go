// Package pda implements Program Derived Address derivation.
//
// A PDA is an address computed from a seed sequence, a bump byte, and the
// owning program's address, constructed so the result is off the ed25519
// curve and therefore has no corresponding private key. For a fixed seed
// sequence and program the canonical bump is the highest bump in [0, 255]
// whose derivation succeeds; every authorization decision in this module
// goes through the canonical derivation. No function here accepts a
// caller-supplied bump for acceptance purposes: a stored bump is a
// reconstruction convenience, never an input to verification.
package pda

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"

	"github.com/fortiblox/X1-Sentry/internal/types"
)

// Derivation limits, matching Solana.
const (
	MaxSeeds   = 16
	MaxSeedLen = 32
)

// PDA marker appended to the hash input during derivation.
var pdaMarker = []byte("ProgramDerivedAddress")

// PDA errors.
var (
	// ErrMaxSeedLengthExceeded is returned when a seed exceeds MaxSeedLen.
	ErrMaxSeedLengthExceeded = errors.New("max seed length exceeded")

	// ErrMaxSeedsExceeded is returned when too many seeds are supplied.
	ErrMaxSeedsExceeded = errors.New("max seeds exceeded")

	// ErrOnCurve is returned when a derived address lands on the ed25519
	// curve and is therefore not a valid PDA.
	ErrOnCurve = errors.New("derived address is on curve")

	// ErrNoViableBump is returned when no bump in [0, 255] produces an
	// off-curve address. Practically unreachable for well-chosen seeds;
	// treated as a fatal configuration error by callers.
	ErrNoViableBump = errors.New("unable to find a viable bump seed")

	// ErrMismatch is returned when a candidate address does not equal the
	// canonical derivation.
	ErrMismatch = errors.New("address does not match canonical derivation")
)

// CreateProgramAddress derives an address from seeds plus a program address.
// Returns ErrOnCurve if the derived point is on the ed25519 curve. Callers
// performing authorization must use FindProgramAddress or VerifyCanonical
// instead: CreateProgramAddress alone accepts every valid bump, canonical
// or not.
func CreateProgramAddress(seeds [][]byte, program types.Pubkey) (types.Pubkey, error) {
	if len(seeds) > MaxSeeds {
		return types.Pubkey{}, ErrMaxSeedsExceeded
	}
	for _, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return types.Pubkey{}, ErrMaxSeedLengthExceeded
		}
	}

	// Hash input: seeds || program || marker
	h := sha256.New()
	for _, seed := range seeds {
		h.Write(seed)
	}
	h.Write(program[:])
	h.Write(pdaMarker)

	var addr types.Pubkey
	copy(addr[:], h.Sum(nil))

	if isOnCurve(addr[:]) {
		return types.Pubkey{}, ErrOnCurve
	}
	return addr, nil
}

// FindProgramAddress finds the canonical PDA for the seeds by trying bump
// values from 255 down to 0 and returning the first that derives off-curve.
// The search is bounded to 256 iterations.
func FindProgramAddress(seeds [][]byte, program types.Pubkey) (types.Pubkey, uint8, error) {
	if len(seeds) > MaxSeeds-1 { // room for the bump seed
		return types.Pubkey{}, 0, ErrMaxSeedsExceeded
	}

	for bump := uint8(255); ; bump-- {
		seedsWithBump := make([][]byte, len(seeds)+1)
		copy(seedsWithBump, seeds)
		seedsWithBump[len(seeds)] = []byte{bump}

		addr, err := CreateProgramAddress(seedsWithBump, program)
		if err == nil {
			return addr, bump, nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return types.Pubkey{}, 0, err
		}

		if bump == 0 {
			break
		}
	}
	return types.Pubkey{}, 0, ErrNoViableBump
}

// VerifyCanonical checks that candidate equals the canonical PDA for the
// seeds. Any other address fails, including addresses produced by valid but
// non-canonical bumps.
func VerifyCanonical(candidate types.Pubkey, seeds [][]byte, program types.Pubkey) error {
	expected, _, err := FindProgramAddress(seeds, program)
	if err != nil {
		return err
	}
	if candidate != expected {
		return fmt.Errorf("%w: got %s, want %s", ErrMismatch, candidate, expected)
	}
	return nil
}

// isOnCurve checks if the given bytes represent a point on the ed25519
// curve using the curve equation.
//
// Ed25519 uses the twisted Edwards curve: -x^2 + y^2 = 1 + d*x^2*y^2
// where d = -121665/121666 (mod p) and p = 2^255 - 19.
//
// A compressed point stores the y-coordinate and the sign of x. To verify,
// we compute x^2 from y and check whether it has a square root in the field.
func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}

	// Field prime p = 2^255 - 19
	p := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(19))

	// Curve parameter d = -121665/121666 (mod p)
	d := new(big.Int).Mul(big.NewInt(-121665), new(big.Int).ModInverse(big.NewInt(121666), p))
	d.Mod(d, p)

	// Extract y-coordinate (little-endian, clear high bit which is sign of x)
	yBytes := make([]byte, 32)
	copy(yBytes, point)
	yBytes[31] &= 0x7F

	y := new(big.Int)
	for i := 31; i >= 0; i-- {
		y.Lsh(y, 8)
		y.Or(y, big.NewInt(int64(yBytes[i])))
	}

	// y must be in [0, p)
	if y.Cmp(p) >= 0 {
		return false
	}

	// From the curve equation: x^2 = (y^2 - 1) / (d*y^2 + 1)
	y2 := new(big.Int).Mul(y, y)
	y2.Mod(y2, p)

	num := new(big.Int).Sub(y2, big.NewInt(1))
	num.Mod(num, p)

	den := new(big.Int).Mul(d, y2)
	den.Add(den, big.NewInt(1))
	den.Mod(den, p)

	denInv := new(big.Int).ModInverse(den, p)
	if denInv == nil {
		return false
	}
	x2 := new(big.Int).Mul(num, denInv)
	x2.Mod(x2, p)

	// Euler's criterion: x^2 is a quadratic residue iff x^2^((p-1)/2) = 1 (mod p)
	exp := new(big.Int).Sub(p, big.NewInt(1))
	exp.Rsh(exp, 1)

	legendre := new(big.Int).Exp(x2, exp, p)

	return legendre.Cmp(big.NewInt(1)) == 0 || x2.Sign() == 0
}
