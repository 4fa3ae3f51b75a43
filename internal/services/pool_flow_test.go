package services

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shieldswap-client/internal/config"
	"shieldswap-client/internal/merkle"
	"shieldswap-client/internal/models"
	"shieldswap-client/internal/repository"
	"shieldswap-client/internal/types"
	"shieldswap-client/internal/zkhash"
)

// Full client lifecycle at the contract's real tree height: sync three
// deposits, derive a verifiable path, restart from the on-disk snapshot, and
// get the identical tree back without touching the chain.
func TestPoolLifecycleAtContractHeight(t *testing.T) {
	ctx := context.Background()
	hasher := zkhash.NewMiMC()
	network := config.NetworkConfig{
		ChainID:         31337,
		Name:            "localhost",
		RPCEndpoint:     "http://127.0.0.1:8545",
		PoolAddress:     "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		DeploymentBlock: 1,
		TreeHeight:      20,
		Enabled:         true,
	}

	reference, err := merkle.NewTree(20, hasher)
	require.NoError(t, err)
	for _, leaf := range []int64{111, 222, 333} {
		_, err := reference.Insert(big.NewInt(leaf))
		require.NoError(t, err)
	}

	chain := &fakeChain{
		head: 30,
		events: []types.DepositEvent{
			deposit(111, 0, 12),
			deposit(222, 1, 19),
			deposit(333, 2, 25),
		},
		root: reference.Root(),
	}

	store, err := repository.NewSnapshotRepository(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	svc := NewTreeSyncService(network, chain, hasher, store, nil, nil, nil)
	require.NoError(t, svc.Load(ctx))

	status, err := svc.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStateSynced, status.State)
	assert.Equal(t, uint64(3), status.LeafCount)
	assert.True(t, status.RootMatch)
	assert.True(t, status.Persisted)
	assert.Equal(t, uint64(30), status.LastSyncedBlock)

	proof, err := svc.Proof(1)
	require.NoError(t, err)
	assert.Len(t, proof.Siblings, 20)
	assert.Equal(t, "222", proof.Leaf.String())
	assert.True(t, merkle.VerifyProof(hasher, big.NewInt(222), proof))
	before := ProofValues(proof)

	// Restart: a new service instance against the same store, with the
	// chain unreachable. Everything must come back from the snapshot.
	offline := &fakeChain{headErr: errors.New("rpc unreachable")}
	restarted := NewTreeSyncService(network, offline, hasher, store, nil, nil, nil)
	require.NoError(t, restarted.Load(ctx))

	restored := restarted.Status()
	assert.Equal(t, uint64(3), restored.LeafCount)
	assert.Equal(t, status.LocalRoot, restored.LocalRoot)
	assert.Equal(t, uint64(30), restored.LastSyncedBlock)

	again, err := restarted.Proof(1)
	require.NoError(t, err)
	assert.Equal(t, before, ProofValues(again))
	assert.True(t, merkle.VerifyProof(hasher, big.NewInt(222), again))
}
