// Package commitment implements the deposit-note primitives: secret
// generation, commitment and nullifier-hash derivation, and the note wire
// encoding. Everything here is pure computation over an injected hash
// provider; persistence and chain I/O live elsewhere.
package commitment

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"shieldswap-client/internal/zkhash"
)

// Note is a deposit capability: whoever knows (nullifier, secret, amount)
// can spend the deposit whose commitment was published on-chain. Commitment
// and NullifierHash are derived values, recomputable from the secrets at
// any time. LeafIndex is nil until the deposit event is observed on-chain.
type Note struct {
	Nullifier     *big.Int
	Secret        *big.Int
	Amount        *big.Int
	Commitment    *big.Int
	NullifierHash *big.Int
	LeafIndex     *uint64
}

// NewNote draws a fresh (nullifier, secret) pair uniformly from the scalar
// field using crypto/rand and derives the public values for the given
// amount. A randomness failure is returned as-is; there is no weaker
// fallback source.
func NewNote(hasher zkhash.Hasher, amount *big.Int) (*Note, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, fmt.Errorf("commitment: invalid amount")
	}
	nullifier, err := randomFieldElement()
	if err != nil {
		return nil, fmt.Errorf("commitment: draw nullifier: %w", err)
	}
	secret, err := randomFieldElement()
	if err != nil {
		return nil, fmt.Errorf("commitment: draw secret: %w", err)
	}
	amt := new(big.Int).Set(amount)
	return &Note{
		Nullifier:     nullifier,
		Secret:        secret,
		Amount:        amt,
		Commitment:    ComputeCommitment(hasher, nullifier, secret, amt),
		NullifierHash: ComputeNullifierHash(hasher, nullifier),
	}, nil
}

// ComputeCommitment derives Hash(nullifier, secret, amount). The construction
// must match the pool contract's circuit exactly; changing it breaks every
// existing deposit.
func ComputeCommitment(hasher zkhash.Hasher, nullifier, secret, amount *big.Int) *big.Int {
	return hasher.Hash(nullifier, secret, amount)
}

// ComputeNullifierHash derives Hash(nullifier), the value published on spend
// to block nullifier reuse.
func ComputeNullifierHash(hasher zkhash.Hasher, nullifier *big.Int) *big.Int {
	return hasher.Hash(nullifier)
}

// SetLeafIndex records the on-chain position assigned by the deposit event.
func (n *Note) SetLeafIndex(index uint64) {
	n.LeafIndex = &index
}

// Spendable reports whether the note has a confirmed on-chain position. The
// spent flag lives on the stored record, not here; callers combine both.
func (n *Note) Spendable() bool {
	return n.LeafIndex != nil
}

// Recompute re-derives Commitment and NullifierHash from the secrets and
// reports whether they match the stored values. Used to detect corrupted or
// tampered records on import.
func (n *Note) Recompute(hasher zkhash.Hasher) bool {
	if n.Nullifier == nil || n.Secret == nil || n.Amount == nil {
		return false
	}
	if n.Commitment == nil || n.NullifierHash == nil {
		return false
	}
	c := ComputeCommitment(hasher, n.Nullifier, n.Secret, n.Amount)
	nh := ComputeNullifierHash(hasher, n.Nullifier)
	return c.Cmp(n.Commitment) == 0 && nh.Cmp(n.NullifierHash) == 0
}

func randomFieldElement() (*big.Int, error) {
	return rand.Int(rand.Reader, zkhash.Modulus())
}
