// Package checked implements overflow-checked integer arithmetic.
//
// Handlers that mutate stored quantities (balances, supplies, fees) must
// route every operation through this package. The functions return the exact
// mathematical result when it fits in the width and a typed error otherwise;
// they never wrap. This mirrors Rust's checked_add/checked_sub family, which
// Solana programs rely on because BPF release builds wrap silently.
package checked

import "errors"

var (
	// ErrOverflow is returned when a result exceeds the maximum value.
	ErrOverflow = errors.New("arithmetic overflow")

	// ErrUnderflow is returned when a result would be negative.
	ErrUnderflow = errors.New("arithmetic underflow")

	// ErrDivideByZero is returned when dividing by zero.
	ErrDivideByZero = errors.New("divide by zero")
)

// Add returns a + b, or ErrOverflow if the sum exceeds math.MaxUint64.
func Add(a, b uint64) (uint64, error) {
	if a > ^uint64(0)-b {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// Sub returns a - b, or ErrUnderflow if b > a.
func Sub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrUnderflow
	}
	return a - b, nil
}

// Mul returns a * b, or ErrOverflow if the product exceeds math.MaxUint64.
func Mul(a, b uint64) (uint64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	if a > ^uint64(0)/b {
		return 0, ErrOverflow
	}
	return a * b, nil
}

// Div returns a / b, or ErrDivideByZero if b is zero.
func Div(a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, ErrDivideByZero
	}
	return a / b, nil
}
