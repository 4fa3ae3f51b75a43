// Shielded-pool database models, mirroring the ShieldedPool.sol contract
package models

import (
	"math/big"
	"time"

	"shieldswap-client/internal/commitment"
	"shieldswap-client/internal/zkhash"
)

// Note is the stored form of a deposit note. Field elements are persisted as
// decimal strings; text columns avoid any driver numeric truncation on
// 256-bit values.
type Note struct {
	ID            uint64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Nullifier     string     `json:"nullifier" gorm:"type:text;not null"`
	Secret        string     `json:"secret" gorm:"type:text;not null"`
	Amount        string     `json:"amount" gorm:"type:text;not null"`               // uint256 amount (token base units)
	Commitment    string     `json:"commitment" gorm:"type:text;index;not null"`     // bytes32 commitment published on deposit
	NullifierHash string     `json:"nullifier_hash" gorm:"type:text;index;not null"` // bytes32 published on spend
	LeafIndex     *uint64    `json:"leaf_index,omitempty" gorm:"index"`              // uint32 leafIndex from the Deposit event
	TokenAddress  string     `json:"token_address" gorm:"index"`
	TokenSymbol   string     `json:"token_symbol"`
	DepositTxHash string     `json:"deposit_tx_hash" gorm:"index"`
	Spent         bool       `json:"spent" gorm:"index;not null;default:false"`
	SpentAt       *time.Time `json:"spent_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Spendable reports whether the note can back a swap proof: confirmed
// on-chain and not yet spent.
func (n *Note) Spendable() bool {
	return n.LeafIndex != nil && !n.Spent
}

// ToNote decodes the stored decimal strings back into a deposit note.
func (n *Note) ToNote() (*commitment.Note, error) {
	nullifier, err := zkhash.FromDecimal(n.Nullifier)
	if err != nil {
		return nil, err
	}
	secret, err := zkhash.FromDecimal(n.Secret)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(n.Amount)
	if err != nil {
		return nil, err
	}
	com, err := zkhash.FromDecimal(n.Commitment)
	if err != nil {
		return nil, err
	}
	nh, err := zkhash.FromDecimal(n.NullifierHash)
	if err != nil {
		return nil, err
	}
	note := &commitment.Note{
		Nullifier:     nullifier,
		Secret:        secret,
		Amount:        amount,
		Commitment:    com,
		NullifierHash: nh,
	}
	if n.LeafIndex != nil {
		idx := *n.LeafIndex
		note.LeafIndex = &idx
	}
	return note, nil
}

// NewNoteRecord builds a stored record from a deposit note plus chain
// metadata. The leaf index is carried over only if the caller already set it.
func NewNoteRecord(note *commitment.Note, tokenAddress, tokenSymbol, depositTxHash string) *Note {
	record := &Note{
		Nullifier:     zkhash.ToDecimal(note.Nullifier),
		Secret:        zkhash.ToDecimal(note.Secret),
		Amount:        note.Amount.Text(10),
		Commitment:    zkhash.ToDecimal(note.Commitment),
		NullifierHash: zkhash.ToDecimal(note.NullifierHash),
		TokenAddress:  tokenAddress,
		TokenSymbol:   tokenSymbol,
		DepositTxHash: depositTxHash,
	}
	if note.LeafIndex != nil {
		idx := *note.LeafIndex
		record.LeafIndex = &idx
	}
	return record
}

func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	return v, nil
}

// NoteCounts is the shape returned by count queries.
type NoteCounts struct {
	Total   int64 `json:"total"`
	Unspent int64 `json:"unspent"`
}
