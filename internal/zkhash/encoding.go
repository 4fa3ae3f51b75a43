package zkhash

import (
	"fmt"
	"math/big"
)

// ToDecimal encodes a field element as a decimal string, the canonical wire
// and storage encoding for 256-bit values in this system.
func ToDecimal(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.Text(10)
}

// FromDecimal parses a decimal-string field element. Negative values and
// values at or above the field modulus are rejected rather than reduced, so
// corrupted storage surfaces as an error instead of a silently different
// leaf.
func FromDecimal(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid decimal field element %q", s)
	}
	if !WithinField(v) {
		return nil, fmt.Errorf("value %s outside field range", s)
	}
	return v, nil
}
