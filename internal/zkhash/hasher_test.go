package zkhash

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashIsDeterministic(t *testing.T) {
	h := NewMiMC()

	a := h.Hash(big.NewInt(1), big.NewInt(2), big.NewInt(3))
	b := h.Hash(big.NewInt(1), big.NewInt(2), big.NewInt(3))
	assert.Equal(t, 0, a.Cmp(b), "same inputs must hash to the same value")

	c := h.Hash(big.NewInt(3), big.NewInt(2), big.NewInt(1))
	assert.NotEqual(t, 0, a.Cmp(c), "input order must matter")
}

func TestHashOutputWithinField(t *testing.T) {
	h := NewMiMC()
	out := h.Hash(big.NewInt(42))
	assert.True(t, WithinField(out), "digest must be a field element")
	assert.True(t, out.Sign() >= 0)
}

func TestHashReducesOversizedInputs(t *testing.T) {
	h := NewMiMC()

	raw := new(big.Int).Add(Modulus(), big.NewInt(7))
	a := h.Hash(raw)
	b := h.Hash(big.NewInt(7))
	assert.Equal(t, 0, a.Cmp(b), "inputs must be reduced into the field before hashing")
}

func TestHashDoesNotMutateInputs(t *testing.T) {
	h := NewMiMC()
	in := new(big.Int).Add(Modulus(), big.NewInt(5))
	before := in.String()
	_ = h.Hash(in)
	assert.Equal(t, before, in.String(), "hashing must not mutate caller values")
}

func TestReduce(t *testing.T) {
	assert.Equal(t, "0", Reduce(nil).String())
	assert.Equal(t, "5", Reduce(big.NewInt(5)).String())
	assert.Equal(t, "3", Reduce(new(big.Int).Add(Modulus(), big.NewInt(3))).String())
}

func TestToDecimal(t *testing.T) {
	assert.Equal(t, "0", ToDecimal(nil))
	assert.Equal(t, "12345", ToDecimal(big.NewInt(12345)))
}

func TestFromDecimalRoundTrip(t *testing.T) {
	original := big.NewInt(987654321)
	parsed, err := FromDecimal(ToDecimal(original))
	require.NoError(t, err)
	assert.Equal(t, 0, original.Cmp(parsed))
}

func TestFromDecimalRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "abc", "0x1f", "12.5", "-"} {
		_, err := FromDecimal(s)
		assert.Error(t, err, "input %q should be rejected", s)
	}
}

func TestFromDecimalRejectsNegative(t *testing.T) {
	_, err := FromDecimal("-5")
	assert.Error(t, err)
}

func TestFromDecimalRejectsOutOfField(t *testing.T) {
	over := new(big.Int).Add(Modulus(), big.NewInt(1))
	_, err := FromDecimal(over.String())
	assert.Error(t, err, "values at or above the modulus should be rejected")

	_, err = FromDecimal(Modulus().String())
	assert.Error(t, err)

	max := new(big.Int).Sub(Modulus(), big.NewInt(1))
	parsed, err := FromDecimal(max.String())
	require.NoError(t, err, "modulus-1 is a valid field element")
	assert.Equal(t, 0, max.Cmp(parsed))
}
