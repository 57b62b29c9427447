package account

import (
	"crypto/sha256"
	"errors"
	"fmt"
)

// DiscriminatorSize is the length of the leading type tag on record data.
const DiscriminatorSize = 8

// ErrDiscriminatorMismatch is returned when record data is missing its type
// tag or carries the tag of a different type.
var ErrDiscriminatorMismatch = errors.New("discriminator mismatch")

// Discriminator returns the 8-byte type tag for a record type name.
//
// The tag is sha256("account:" + name) truncated to 8 bytes, computed at the
// point of use rather than held in a process-wide registry, so there is no
// shared mutable state and no initialization ordering. Distinct names yield
// distinct tags with overwhelming probability; collision handling is a
// documented non-goal.
func Discriminator(name string) [DiscriminatorSize]byte {
	h := sha256.Sum256([]byte("account:" + name))
	var tag [DiscriminatorSize]byte
	copy(tag[:], h[:DiscriminatorSize])
	return tag
}

// VerifyDiscriminator checks that data begins with the tag for the named
// record type. This is the single chokepoint all typed decoding passes
// through; no decode path may skip it.
func VerifyDiscriminator(data []byte, name string) error {
	if len(data) < DiscriminatorSize {
		return fmt.Errorf("%w: data too short for %s", ErrDiscriminatorMismatch, name)
	}
	expected := Discriminator(name)
	var got [DiscriminatorSize]byte
	copy(got[:], data[:DiscriminatorSize])
	if got != expected {
		return fmt.Errorf("%w: got %x, want %x (%s)", ErrDiscriminatorMismatch, got, expected, name)
	}
	return nil
}
