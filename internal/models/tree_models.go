package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidAmount = errors.New("models: invalid amount")

// SyncState is the tree synchronizer's lifecycle state.
type SyncState string

const (
	SyncStateIdle    SyncState = "idle"    // no sync attempted yet this session
	SyncStateSyncing SyncState = "syncing" // a sync run is in flight
	SyncStateSynced  SyncState = "synced"  // last run completed, tree persisted
	SyncStateError   SyncState = "error"   // last run failed on a network or storage call
)

// TreeSnapshot is the persisted form of one commitment tree, one row per
// (chain, pool) pair, overwritten on every successful sync. Leaves are
// decimal strings in strict insertion order; reordering them silently
// changes the reconstructed root.
type TreeSnapshot struct {
	ChainID         uint64    `json:"chain_id"`
	PoolAddress     string    `json:"pool_address"`
	Height          int       `json:"height"`
	Leaves          []string  `json:"leaves"`
	LastSyncedBlock uint64    `json:"last_synced_block"`
	Root            string    `json:"root"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// SnapshotKey builds the storage key for a (chain, pool) pair. Addresses are
// lowercased so checksummed and plain forms map to the same snapshot.
func SnapshotKey(chainID uint64, poolAddress string) string {
	return fmt.Sprintf("tree_%d_%s", chainID, strings.ToLower(poolAddress))
}

// Key returns the snapshot's own storage key.
func (s *TreeSnapshot) Key() string {
	return SnapshotKey(s.ChainID, s.PoolAddress)
}

// SyncStatus is the synchronizer's externally visible condition, served over
// the status endpoint and embedded in sync notifications.
type SyncStatus struct {
	State           SyncState  `json:"state"`
	ChainID         uint64     `json:"chain_id"`
	PoolAddress     string     `json:"pool_address"`
	TreeHeight      int        `json:"tree_height"`
	LeafCount       uint64     `json:"leaf_count"`
	LocalRoot       string     `json:"local_root"`
	OnChainRoot     string     `json:"on_chain_root,omitempty"`
	RootMatch       bool       `json:"root_match"`
	LastSyncedBlock uint64     `json:"last_synced_block"`
	LastSyncAt      *time.Time `json:"last_sync_at,omitempty"`
	Persisted       bool       `json:"persisted"`
	LastError       string     `json:"last_error,omitempty"`
}
