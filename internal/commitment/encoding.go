package commitment

import (
	"encoding/json"
	"fmt"
	"math/big"

	"shieldswap-client/internal/zkhash"
)

// noteWire is the JSON envelope for a note. Field-element values travel as
// decimal strings so they survive any JSON number handling untouched.
type noteWire struct {
	Nullifier     string  `json:"nullifier"`
	Secret        string  `json:"secret"`
	Amount        string  `json:"amount"`
	Commitment    string  `json:"commitment"`
	NullifierHash string  `json:"nullifierHash"`
	LeafIndex     *uint64 `json:"leafIndex,omitempty"`
}

// Serialize encodes the note as compact JSON with every numeric field as a
// decimal string. The encoding round-trips exactly through Deserialize.
func (n *Note) Serialize() (string, error) {
	if n.Nullifier == nil || n.Secret == nil || n.Amount == nil ||
		n.Commitment == nil || n.NullifierHash == nil {
		return "", fmt.Errorf("commitment: cannot serialize incomplete note")
	}
	w := noteWire{
		Nullifier:     zkhash.ToDecimal(n.Nullifier),
		Secret:        zkhash.ToDecimal(n.Secret),
		Amount:        n.Amount.Text(10),
		Commitment:    zkhash.ToDecimal(n.Commitment),
		NullifierHash: zkhash.ToDecimal(n.NullifierHash),
		LeafIndex:     n.LeafIndex,
	}
	raw, err := json.Marshal(w)
	if err != nil {
		return "", fmt.Errorf("commitment: encode note: %w", err)
	}
	return string(raw), nil
}

// Deserialize parses a note produced by Serialize. Field elements are
// validated against the scalar field; the amount only needs to be a
// non-negative integer.
func Deserialize(data string) (*Note, error) {
	var w noteWire
	if err := json.Unmarshal([]byte(data), &w); err != nil {
		return nil, fmt.Errorf("commitment: decode note: %w", err)
	}
	nullifier, err := zkhash.FromDecimal(w.Nullifier)
	if err != nil {
		return nil, fmt.Errorf("commitment: nullifier: %w", err)
	}
	secret, err := zkhash.FromDecimal(w.Secret)
	if err != nil {
		return nil, fmt.Errorf("commitment: secret: %w", err)
	}
	amount, ok := new(big.Int).SetString(w.Amount, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("commitment: invalid amount %q", w.Amount)
	}
	com, err := zkhash.FromDecimal(w.Commitment)
	if err != nil {
		return nil, fmt.Errorf("commitment: commitment: %w", err)
	}
	nh, err := zkhash.FromDecimal(w.NullifierHash)
	if err != nil {
		return nil, fmt.Errorf("commitment: nullifier hash: %w", err)
	}
	note := &Note{
		Nullifier:     nullifier,
		Secret:        secret,
		Amount:        amount,
		Commitment:    com,
		NullifierHash: nh,
	}
	if w.LeafIndex != nil {
		idx := *w.LeafIndex
		note.LeafIndex = &idx
	}
	return note, nil
}
