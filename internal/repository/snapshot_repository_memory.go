package repository

import (
	"context"
	"sort"
	"sync"

	"shieldswap-client/internal/models"
)

// memorySnapshotRepository implements SnapshotRepository in process memory,
// for ephemeral mode and tests.
type memorySnapshotRepository struct {
	mu        sync.RWMutex
	snapshots map[string]*models.TreeSnapshot
}

// NewMemorySnapshotRepository creates a SnapshotRepository backed by memory.
func NewMemorySnapshotRepository() SnapshotRepository {
	return &memorySnapshotRepository{snapshots: make(map[string]*models.TreeSnapshot)}
}

func (r *memorySnapshotRepository) Get(_ context.Context, chainID uint64, poolAddress string) (*models.TreeSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snapshot, ok := r.snapshots[models.SnapshotKey(chainID, poolAddress)]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	copied := *snapshot
	copied.Leaves = append([]string(nil), snapshot.Leaves...)
	return &copied, nil
}

func (r *memorySnapshotRepository) Put(_ context.Context, snapshot *models.TreeSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *snapshot
	copied.Leaves = append([]string(nil), snapshot.Leaves...)
	r.snapshots[snapshot.Key()] = &copied
	return nil
}

func (r *memorySnapshotRepository) Delete(_ context.Context, chainID uint64, poolAddress string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.snapshots, models.SnapshotKey(chainID, poolAddress))
	return nil
}

func (r *memorySnapshotRepository) List(_ context.Context) ([]*models.TreeSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.TreeSnapshot, 0, len(r.snapshots))
	for _, snapshot := range r.snapshots {
		copied := *snapshot
		copied.Leaves = append([]string(nil), snapshot.Leaves...)
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ChainID != out[j].ChainID {
			return out[i].ChainID < out[j].ChainID
		}
		return out[i].PoolAddress < out[j].PoolAddress
	})
	return out, nil
}

func (r *memorySnapshotRepository) Close() error {
	return nil
}
