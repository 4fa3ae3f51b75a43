package services

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"shieldswap-client/internal/commitment"
	"shieldswap-client/internal/merkle"
	"shieldswap-client/internal/models"
	"shieldswap-client/internal/repository"
	"shieldswap-client/internal/types"
	"shieldswap-client/internal/zkhash"
)

// fakeProver records the input it was handed and returns a canned result.
type fakeProver struct {
	input  *types.ProofInput
	result *types.ProofResult
	err    error
}

func (f *fakeProver) GenerateProof(ctx context.Context, input *types.ProofInput) (*types.ProofResult, error) {
	f.input = input
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// proofFixture is a synced pool with one stored, confirmed note at leaf 1.
type proofFixture struct {
	notes  repository.NoteRepository
	sync   *TreeSyncService
	record *models.Note
	note   *commitment.Note
}

func newProofFixture(t *testing.T) *proofFixture {
	t.Helper()
	ctx := context.Background()
	hasher := zkhash.NewMiMC()

	note, err := commitment.NewNote(hasher, big.NewInt(500))
	require.NoError(t, err)

	notes := repository.NewMemoryNoteRepository()
	record := models.NewNoteRecord(note, "", "USDC", "")
	require.NoError(t, notes.Create(ctx, record))

	reference, err := merkle.NewTree(4, hasher)
	require.NoError(t, err)
	for _, leaf := range []*big.Int{big.NewInt(101), note.Commitment} {
		_, err := reference.Insert(leaf)
		require.NoError(t, err)
	}

	chain := &fakeChain{
		head: 10,
		events: []types.DepositEvent{
			deposit(101, 0, 2),
			{Commitment: note.Commitment, LeafIndex: 1, Timestamp: 1700000001, BlockNumber: 3, TxHash: "0xfeed"},
		},
		root: reference.Root(),
	}
	sync := NewTreeSyncService(testNetwork(4), chain, hasher, repository.NewMemorySnapshotRepository(), notes, nil, nil)
	require.NoError(t, sync.Load(ctx))
	status, err := sync.Sync(ctx)
	require.NoError(t, err)
	require.True(t, status.RootMatch)

	// The sync pass confirmed the stored note from its deposit event.
	record, err = notes.GetByID(ctx, record.ID)
	require.NoError(t, err)
	require.NotNil(t, record.LeafIndex)

	return &proofFixture{notes: notes, sync: sync, record: record, note: note}
}

func TestProveSwapHandsVerifiedInputToProver(t *testing.T) {
	ctx := context.Background()
	fx := newProofFixture(t)
	hasher := zkhash.NewMiMC()
	prover := &fakeProver{result: &types.ProofResult{
		Proof:         types.ProofPoints{A: []string{"1", "2"}},
		PublicSignals: []string{"3"},
	}}
	svc := NewProofService(fx.notes, fx.sync, hasher, prover)

	params := SwapParams{
		Recipient:      "0x00000000000000000000000000000000000000aa",
		Relayer:        "0x00000000000000000000000000000000000000bb",
		RelayerFee:     "7",
		ExpectedOutput: "493",
	}
	result, err := svc.ProveSwap(ctx, fx.record.ID, params)
	require.NoError(t, err)
	assert.Equal(t, prover.result, result)

	input := prover.input
	require.NotNil(t, input)
	assert.Equal(t, zkhash.ToDecimal(fx.note.Nullifier), input.Nullifier)
	assert.Equal(t, zkhash.ToDecimal(fx.note.Secret), input.Secret)
	assert.Equal(t, "500", input.Amount)
	assert.Equal(t, zkhash.ToDecimal(fx.note.NullifierHash), input.NullifierHash)
	assert.Equal(t, params.Recipient, input.Recipient)
	assert.Equal(t, params.Relayer, input.Relayer)
	assert.Equal(t, params.RelayerFee, input.RelayerFee)
	assert.Equal(t, params.ExpectedOutput, input.ExpectedOutput)

	// The path is for leaf 1 against the current root, little-endian
	// position bits.
	path := input.MerkleProof
	assert.Equal(t, uint64(1), path.LeafIndex)
	assert.Equal(t, zkhash.ToDecimal(fx.note.Commitment), path.Leaf)
	assert.Len(t, path.Siblings, 4)
	assert.Equal(t, []uint8{1, 0, 0, 0}, path.Positions)
	root, err := fx.sync.Root()
	require.NoError(t, err)
	assert.Equal(t, root, path.Root)
}

func TestProveSwapRequiresSpendableNote(t *testing.T) {
	ctx := context.Background()
	fx := newProofFixture(t)
	hasher := zkhash.NewMiMC()
	prover := &fakeProver{result: &types.ProofResult{}}
	svc := NewProofService(fx.notes, fx.sync, hasher, prover)

	_, err := svc.ProveSwap(ctx, 9999, SwapParams{})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// A note that never got a leaf index cannot be proven.
	unconfirmed, err := commitment.NewNote(hasher, big.NewInt(10))
	require.NoError(t, err)
	pending := models.NewNoteRecord(unconfirmed, "", "", "")
	require.NoError(t, fx.notes.Create(ctx, pending))
	_, err = svc.ProveSwap(ctx, pending.ID, SwapParams{})
	assert.ErrorIs(t, err, ErrNoteNotConfirmed)

	// Nor can one that was already spent.
	require.NoError(t, fx.notes.MarkSpent(ctx, fx.record.ID))
	_, err = svc.ProveSwap(ctx, fx.record.ID, SwapParams{})
	assert.ErrorIs(t, err, ErrNoteAlreadySpent)

	assert.Nil(t, prover.input, "prover must not be called for unprovable notes")
}

func TestProveSwapWithoutProver(t *testing.T) {
	ctx := context.Background()
	fx := newProofFixture(t)
	svc := NewProofService(fx.notes, fx.sync, zkhash.NewMiMC(), nil)

	_, err := svc.ProveSwap(ctx, fx.record.ID, SwapParams{})
	assert.ErrorIs(t, err, ErrProverUnavailable)
}

func TestProveSwapDetectsLeafMismatch(t *testing.T) {
	ctx := context.Background()
	fx := newProofFixture(t)
	hasher := zkhash.NewMiMC()
	prover := &fakeProver{result: &types.ProofResult{}}
	svc := NewProofService(fx.notes, fx.sync, hasher, prover)

	// Point the note at a position another commitment occupies.
	require.NoError(t, fx.notes.SetLeafIndex(ctx, fx.record.ID, 0, ""))
	_, err := svc.ProveSwap(ctx, fx.record.ID, SwapParams{})
	assert.ErrorIs(t, err, ErrProofInconsistent)
	assert.Nil(t, prover.input)
}

func TestProveSwapPropagatesProverFailure(t *testing.T) {
	ctx := context.Background()
	fx := newProofFixture(t)
	prover := &fakeProver{err: errors.New("circuit constraint unsatisfied")}
	svc := NewProofService(fx.notes, fx.sync, zkhash.NewMiMC(), prover)

	_, err := svc.ProveSwap(ctx, fx.record.ID, SwapParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit constraint unsatisfied")
}

func TestMerkleProofByLeafIndex(t *testing.T) {
	fx := newProofFixture(t)
	svc := NewProofService(fx.notes, fx.sync, zkhash.NewMiMC(), nil)

	path, err := svc.MerkleProof(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), path.LeafIndex)
	assert.Equal(t, "101", path.Leaf)
	assert.Len(t, path.Siblings, 4)

	_, err = svc.MerkleProof(7)
	assert.ErrorIs(t, err, merkle.ErrLeafOutOfRange)
}

func TestNewStealthAddressDrawsFreshKeys(t *testing.T) {
	svc := NewProofService(nil, nil, nil, nil)

	first, err := svc.NewStealthAddress()
	require.NoError(t, err)
	assert.Len(t, first.Address, 42)
	assert.Equal(t, "0x", first.Address[:2])
	assert.Len(t, first.PrivateKey, 64)

	second, err := svc.NewStealthAddress()
	require.NoError(t, err)
	assert.NotEqual(t, first.Address, second.Address)
	assert.NotEqual(t, first.PrivateKey, second.PrivateKey)
}
