// Package events defines the NATS subjects and payload shapes the daemon
// publishes. Subjects follow shieldswap.<area>.<event>; consumers subscribe
// with wildcards (shieldswap.tree.*, shieldswap.>).
package events

import "time"

const (
	SubjectTreeSynced       = "shieldswap.tree.synced"
	SubjectTreeRootMismatch = "shieldswap.tree.root_mismatch"
	SubjectTreeSyncFailed   = "shieldswap.tree.sync_failed"
	SubjectNoteCreated      = "shieldswap.note.created"
	SubjectNoteSpent        = "shieldswap.note.spent"
)

// TreeSyncedPayload reports one completed sync run.
type TreeSyncedPayload struct {
	ChainID         uint64    `json:"chain_id"`
	PoolAddress     string    `json:"pool_address"`
	LeafCount       uint64    `json:"leaf_count"`
	InsertedLeaves  int       `json:"inserted_leaves"`
	LastSyncedBlock uint64    `json:"last_synced_block"`
	LocalRoot       string    `json:"local_root"`
	OnChainRoot     string    `json:"on_chain_root"`
	RootMatch       bool      `json:"root_match"`
	Persisted       bool      `json:"persisted"`
	SyncedAt        time.Time `json:"synced_at"`
}

// RootMismatchPayload fires when the reconstructed root diverges from the
// pool's published root. Advisory; the sync run still completes.
type RootMismatchPayload struct {
	ChainID     uint64    `json:"chain_id"`
	PoolAddress string    `json:"pool_address"`
	LocalRoot   string    `json:"local_root"`
	OnChainRoot string    `json:"on_chain_root"`
	LeafCount   uint64    `json:"leaf_count"`
	DetectedAt  time.Time `json:"detected_at"`
}

// SyncFailedPayload fires when a sync run aborts on a network or storage
// error. The previous synced position is unchanged.
type SyncFailedPayload struct {
	ChainID     uint64    `json:"chain_id"`
	PoolAddress string    `json:"pool_address"`
	Error       string    `json:"error"`
	FailedAt    time.Time `json:"failed_at"`
}

// NotePayload reports a note lifecycle change. Only public fields travel;
// secrets never leave the daemon.
type NotePayload struct {
	NoteID      uint64     `json:"note_id"`
	Commitment  string     `json:"commitment"`
	TokenSymbol string     `json:"token_symbol,omitempty"`
	Amount      string     `json:"amount"`
	LeafIndex   *uint64    `json:"leaf_index,omitempty"`
	Spent       bool       `json:"spent"`
	SpentAt     *time.Time `json:"spent_at,omitempty"`
	OccurredAt  time.Time  `json:"occurred_at"`
}
