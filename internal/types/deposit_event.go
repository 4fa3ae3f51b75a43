package types

import (
	"fmt"
	"math/big"
	"sort"

	"shieldswap-client/internal/zkhash"
)

// DepositEvent is the decoded form of the pool's Deposit log:
//
//	event Deposit(bytes32 indexed commitment, uint32 leafIndex, uint256 timestamp)
//
// Events are validated when decoded from raw logs; downstream code may assume
// every instance carries a commitment inside the scalar field.
type DepositEvent struct {
	Commitment  *big.Int `json:"-"`
	LeafIndex   uint32   `json:"leaf_index"`
	Timestamp   uint64   `json:"timestamp"`
	BlockNumber uint64   `json:"block_number"`
	TxHash      string   `json:"tx_hash"`
}

// Validate rejects events that would poison the tree if inserted.
func (e *DepositEvent) Validate() error {
	if e.Commitment == nil {
		return fmt.Errorf("deposit event: nil commitment")
	}
	if !zkhash.WithinField(e.Commitment) {
		return fmt.Errorf("deposit event: commitment outside scalar field")
	}
	return nil
}

// SortDepositEvents orders events by leaf index ascending. The on-chain tree
// assigns positions by leaf index, and log order within a block does not
// reliably match insertion order, so this sort runs before every replay.
func SortDepositEvents(events []DepositEvent) {
	sort.Slice(events, func(i, j int) bool {
		return events[i].LeafIndex < events[j].LeafIndex
	})
}
