// Package zkhash provides the hash primitive shared by the commitment engine
// and the local Merkle tree. The production implementation is MiMC over the
// BN254 scalar field, which must match the hash the pool contract's verifier
// uses for commitments, nullifier hashes, and tree nodes.
package zkhash

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

// Hasher maps a sequence of field elements to one field element. The same
// primitive is used for every call site: commitment = Hash(nullifier, secret,
// amount), nullifierHash = Hash(nullifier), node = Hash(left, right).
// Implementations must be deterministic and safe for concurrent use.
type Hasher interface {
	Hash(inputs ...*big.Int) *big.Int
}

// MiMCHasher hashes with MiMC over BN254. Inputs are reduced into the scalar
// field before absorption, so any non-negative integer is accepted.
type MiMCHasher struct{}

// NewMiMC returns the production hasher.
func NewMiMC() *MiMCHasher {
	return &MiMCHasher{}
}

// Hash absorbs the inputs in order and squeezes one field element. A fresh
// MiMC state is used per call; the function is pure.
func (h *MiMCHasher) Hash(inputs ...*big.Int) *big.Int {
	m := mimc.NewMiMC()
	for _, in := range inputs {
		var elem fr.Element
		elem.SetBigInt(in)
		b := elem.Bytes()
		// Write cannot fail for a canonical field-element encoding.
		if _, err := m.Write(b[:]); err != nil {
			panic(fmt.Sprintf("zkhash: mimc write rejected reduced element: %v", err))
		}
	}
	out := new(big.Int).SetBytes(m.Sum(nil))
	return out
}

// Modulus returns the BN254 scalar field modulus as a fresh big.Int.
func Modulus() *big.Int {
	return fr.Modulus()
}

// Reduce returns v mod the field modulus as a fresh big.Int. A nil value
// reduces to zero.
func Reduce(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Mod(v, fr.Modulus())
}

// WithinField reports whether v is a canonical field element, i.e.
// 0 <= v < modulus.
func WithinField(v *big.Int) bool {
	return v.Sign() >= 0 && v.Cmp(fr.Modulus()) < 0
}
