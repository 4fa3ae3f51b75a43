package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"shieldswap-client/internal/models"
)

// ErrSnapshotNotFound is returned when no snapshot exists for a (chain, pool)
// pair. First sync on a fresh data directory hits this path by design.
var ErrSnapshotNotFound = errors.New("repository: tree snapshot not found")

const snapshotKeyPrefix = "tree_"

// SnapshotRepository defines the interface for tree snapshot persistence
type SnapshotRepository interface {
	Get(ctx context.Context, chainID uint64, poolAddress string) (*models.TreeSnapshot, error)
	Put(ctx context.Context, snapshot *models.TreeSnapshot) error
	Delete(ctx context.Context, chainID uint64, poolAddress string) error
	List(ctx context.Context) ([]*models.TreeSnapshot, error)
	Close() error
}

// snapshotRepository implements SnapshotRepository on LevelDB, one JSON value
// per (chain, pool) key, overwritten on every put.
type snapshotRepository struct {
	db *leveldb.DB
}

// NewSnapshotRepository opens or creates the snapshot store at path.
func NewSnapshotRepository(path string) (SnapshotRepository, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	return &snapshotRepository{db: db}, nil
}

func (r *snapshotRepository) Get(_ context.Context, chainID uint64, poolAddress string) (*models.TreeSnapshot, error) {
	raw, err := r.db.Get([]byte(models.SnapshotKey(chainID, poolAddress)), nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snapshot models.TreeSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snapshot, nil
}

func (r *snapshotRepository) Put(_ context.Context, snapshot *models.TreeSnapshot) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := r.db.Put([]byte(snapshot.Key()), raw, nil); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func (r *snapshotRepository) Delete(_ context.Context, chainID uint64, poolAddress string) error {
	return r.db.Delete([]byte(models.SnapshotKey(chainID, poolAddress)), nil)
}

func (r *snapshotRepository) List(_ context.Context) ([]*models.TreeSnapshot, error) {
	iter := r.db.NewIterator(util.BytesPrefix([]byte(snapshotKeyPrefix)), nil)
	defer iter.Release()

	snapshots := make([]*models.TreeSnapshot, 0)
	for iter.Next() {
		key := string(iter.Key())
		if !strings.HasPrefix(key, snapshotKeyPrefix) {
			continue
		}
		var snapshot models.TreeSnapshot
		if err := json.Unmarshal(iter.Value(), &snapshot); err != nil {
			continue
		}
		snapshots = append(snapshots, &snapshot)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}

	sort.Slice(snapshots, func(i, j int) bool {
		if snapshots[i].ChainID != snapshots[j].ChainID {
			return snapshots[i].ChainID < snapshots[j].ChainID
		}
		return snapshots[i].PoolAddress < snapshots[j].PoolAddress
	})
	return snapshots, nil
}

func (r *snapshotRepository) Close() error {
	return r.db.Close()
}
