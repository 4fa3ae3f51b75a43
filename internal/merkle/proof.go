package merkle

import (
	"math/big"

	"shieldswap-client/internal/zkhash"
)

// Proof is the authentication path for one leaf against a specific root.
// Siblings[i] is the sibling node at level i (leaf level first); Positions[i]
// is 0 when the path node is a left child at that level and 1 when right, so
// the position bits are the little-endian binary expansion of LeafIndex.
type Proof struct {
	LeafIndex uint64     `json:"leafIndex"`
	Leaf      *big.Int   `json:"-"`
	Siblings  []*big.Int `json:"-"`
	Positions []uint8    `json:"positions"`
	Root      *big.Int   `json:"-"`
}

// VerifyProof recomputes the root from leaf and proof and compares it to the
// proof's root. It mirrors exactly what the on-chain verifier checks, so a
// proof that fails here would be rejected by the contract as well.
func VerifyProof(hasher zkhash.Hasher, leaf *big.Int, proof *Proof) bool {
	if proof == nil || leaf == nil {
		return false
	}
	if len(proof.Siblings) != len(proof.Positions) {
		return false
	}
	current := new(big.Int).Set(leaf)
	for i, sibling := range proof.Siblings {
		if sibling == nil {
			return false
		}
		switch proof.Positions[i] {
		case 0:
			current = hasher.Hash(current, sibling)
		case 1:
			current = hasher.Hash(sibling, current)
		default:
			return false
		}
	}
	return current.Cmp(proof.Root) == 0
}
