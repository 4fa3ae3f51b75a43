package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shieldswap-client/internal/models"
)

func testSnapshot(chainID uint64, pool string, leaves ...string) *models.TreeSnapshot {
	return &models.TreeSnapshot{
		ChainID:         chainID,
		PoolAddress:     pool,
		Height:          20,
		Leaves:          leaves,
		LastSyncedBlock: 1234,
		Root:            "999",
		UpdatedAt:       time.Now().UTC().Truncate(time.Second),
	}
}

func TestSnapshotRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, err := NewSnapshotRepository(t.TempDir())
	require.NoError(t, err, "failed to open snapshot store")
	defer repo.Close()

	_, err = repo.Get(ctx, 1, "0xPool")
	assert.ErrorIs(t, err, ErrSnapshotNotFound, "empty store should miss")

	original := testSnapshot(1, "0xPool", "111", "222", "333")
	require.NoError(t, repo.Put(ctx, original))

	got, err := repo.Get(ctx, 1, "0xPool")
	require.NoError(t, err)
	assert.Equal(t, original.Height, got.Height)
	assert.Equal(t, original.Leaves, got.Leaves, "leaf order must survive the round trip")
	assert.Equal(t, original.LastSyncedBlock, got.LastSyncedBlock)
	assert.Equal(t, original.Root, got.Root)
}

func TestSnapshotRepositoryKeyIsCaseInsensitiveOnAddress(t *testing.T) {
	ctx := context.Background()
	repo, err := NewSnapshotRepository(t.TempDir())
	require.NoError(t, err)
	defer repo.Close()

	require.NoError(t, repo.Put(ctx, testSnapshot(5, "0xABCDEF", "1")))

	got, err := repo.Get(ctx, 5, "0xabcdef")
	require.NoError(t, err, "checksummed and lowercase addresses must hit the same row")
	assert.Equal(t, []string{"1"}, got.Leaves)
}

func TestSnapshotRepositoryOverwrites(t *testing.T) {
	ctx := context.Background()
	repo, err := NewSnapshotRepository(t.TempDir())
	require.NoError(t, err)
	defer repo.Close()

	require.NoError(t, repo.Put(ctx, testSnapshot(1, "0xPool", "1")))
	updated := testSnapshot(1, "0xPool", "1", "2", "3")
	updated.LastSyncedBlock = 5678
	require.NoError(t, repo.Put(ctx, updated))

	got, err := repo.Get(ctx, 1, "0xPool")
	require.NoError(t, err)
	assert.Equal(t, uint64(5678), got.LastSyncedBlock)
	assert.Len(t, got.Leaves, 3, "put must replace, not append")

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "one row per (chain, pool) pair")
}

func TestSnapshotRepositorySurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	repo, err := NewSnapshotRepository(dir)
	require.NoError(t, err)
	require.NoError(t, repo.Put(ctx, testSnapshot(1, "0xPool", "11", "22")))
	require.NoError(t, repo.Close())

	reopened, err := NewSnapshotRepository(dir)
	require.NoError(t, err, "failed to reopen snapshot store")
	defer reopened.Close()

	got, err := reopened.Get(ctx, 1, "0xPool")
	require.NoError(t, err)
	assert.Equal(t, []string{"11", "22"}, got.Leaves, "snapshot must survive a restart")
}

func TestSnapshotRepositoryDelete(t *testing.T) {
	ctx := context.Background()
	repo, err := NewSnapshotRepository(t.TempDir())
	require.NoError(t, err)
	defer repo.Close()

	require.NoError(t, repo.Put(ctx, testSnapshot(1, "0xPool", "1")))
	require.NoError(t, repo.Delete(ctx, 1, "0xPool"))

	_, err = repo.Get(ctx, 1, "0xPool")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestSnapshotRepositoryListSeparatesPools(t *testing.T) {
	ctx := context.Background()
	repo, err := NewSnapshotRepository(t.TempDir())
	require.NoError(t, err)
	defer repo.Close()

	require.NoError(t, repo.Put(ctx, testSnapshot(56, "0xbbb", "2")))
	require.NoError(t, repo.Put(ctx, testSnapshot(1, "0xaaa", "1")))
	require.NoError(t, repo.Put(ctx, testSnapshot(56, "0xaaa", "3")))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, uint64(1), all[0].ChainID, "list should be ordered by chain then pool")
	assert.Equal(t, "0xaaa", all[1].PoolAddress)
	assert.Equal(t, "0xbbb", all[2].PoolAddress)
}

func TestMemorySnapshotRepositoryMatchesDiskBehavior(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySnapshotRepository()
	defer repo.Close()

	_, err := repo.Get(ctx, 1, "0xPool")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)

	require.NoError(t, repo.Put(ctx, testSnapshot(1, "0xPool", "7")))
	got, err := repo.Get(ctx, 1, "0xPool")
	require.NoError(t, err)
	assert.Equal(t, []string{"7"}, got.Leaves)

	// Mutating the returned snapshot must not leak into the store.
	got.Leaves[0] = "tampered"
	again, err := repo.Get(ctx, 1, "0xPool")
	require.NoError(t, err)
	assert.Equal(t, []string{"7"}, again.Leaves)
}
