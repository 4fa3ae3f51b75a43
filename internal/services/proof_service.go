package services

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	"shieldswap-client/internal/merkle"
	"shieldswap-client/internal/metrics"
	"shieldswap-client/internal/repository"
	"shieldswap-client/internal/types"
	"shieldswap-client/internal/zkhash"
)

var (
	// ErrNoteNotConfirmed is returned for notes with no on-chain position.
	ErrNoteNotConfirmed = errors.New("services: note has no confirmed leaf index")
	// ErrNoteAlreadySpent is returned for notes already consumed by a swap.
	ErrNoteAlreadySpent = errors.New("services: note already spent")
	// ErrProofInconsistent is returned when the freshly derived path does
	// not verify locally. A proof that fails here would also fail on-chain,
	// so the prover is never called with it.
	ErrProofInconsistent = errors.New("services: merkle proof failed local verification")
	// ErrProverUnavailable is returned when no proving service is
	// configured.
	ErrProverUnavailable = errors.New("services: prover not configured")
)

// ProofProvider is the external proving boundary. The daemon's whole
// obligation toward it is supplying a verified, fresh (note, path) pair.
type ProofProvider interface {
	GenerateProof(ctx context.Context, input *types.ProofInput) (*types.ProofResult, error)
}

// SwapParams are the public values bound into a swap proof.
type SwapParams struct {
	Recipient      string `json:"recipient"`
	Relayer        string `json:"relayer"`
	RelayerFee     string `json:"relayer_fee"`
	ExpectedOutput string `json:"expected_output"`
}

// StealthAddress is a fresh one-time key pair for receiving swap output
// unlinkably. The private key is handed to the caller exactly once and
// never stored.
type StealthAddress struct {
	Address    string `json:"address"`
	PrivateKey string `json:"private_key"`
}

// ProofService orchestrates swap proofs: it checks spendability, derives a
// fresh authentication path at call time, verifies the path locally, and
// only then hands everything to the external prover. Paths are never cached
// across calls; a background sync between derivation and submission is the
// tolerated staleness window.
type ProofService struct {
	notes    repository.NoteRepository
	sync     *TreeSyncService
	hasher   zkhash.Hasher
	provider ProofProvider
	log      *logrus.Entry
}

// NewProofService creates a new ProofService instance
func NewProofService(notes repository.NoteRepository, sync *TreeSyncService, hasher zkhash.Hasher, provider ProofProvider) *ProofService {
	return &ProofService{
		notes:    notes,
		sync:     sync,
		hasher:   hasher,
		provider: provider,
		log:      logrus.WithField("component", "proof_service"),
	}
}

// MerkleProof derives the current authentication path for a leaf without
// involving any note, for inspection and external tooling.
func (s *ProofService) MerkleProof(leafIndex uint64) (*types.MerkleProofValues, error) {
	proof, err := s.sync.Proof(leafIndex)
	if err != nil {
		return nil, err
	}
	return ProofValues(proof), nil
}

// ProveSwap builds a swap proof for the given note. The note must be
// confirmed and unspent; the caller marks it spent only after the relayer
// accepts the swap.
func (s *ProofService) ProveSwap(ctx context.Context, noteID uint64, params SwapParams) (*types.ProofResult, error) {
	result, err := s.proveSwap(ctx, noteID, params)
	if err != nil {
		metrics.ProofRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.ProofRequestsTotal.WithLabelValues("success").Inc()
	return result, nil
}

func (s *ProofService) proveSwap(ctx context.Context, noteID uint64, params SwapParams) (*types.ProofResult, error) {
	if s.provider == nil {
		return nil, ErrProverUnavailable
	}
	record, err := s.notes.GetByID(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if record.LeafIndex == nil {
		return nil, ErrNoteNotConfirmed
	}
	if record.Spent {
		return nil, ErrNoteAlreadySpent
	}
	note, err := record.ToNote()
	if err != nil {
		return nil, fmt.Errorf("decode stored note: %w", err)
	}

	// Fresh path at call time; a proof derived earlier may be stale against
	// a root the chain no longer recognizes.
	proof, err := s.sync.Proof(*record.LeafIndex)
	if err != nil {
		return nil, err
	}
	if proof.Leaf.Cmp(note.Commitment) != 0 {
		s.log.WithFields(logrus.Fields{
			"note_id":    noteID,
			"leaf_index": *record.LeafIndex,
		}).Error("Tree leaf does not match note commitment")
		return nil, fmt.Errorf("%w: leaf %d holds a different commitment", ErrProofInconsistent, *record.LeafIndex)
	}
	if !merkle.VerifyProof(s.hasher, note.Commitment, proof) {
		return nil, ErrProofInconsistent
	}

	input := &types.ProofInput{
		Nullifier:      zkhash.ToDecimal(note.Nullifier),
		Secret:         zkhash.ToDecimal(note.Secret),
		Amount:         note.Amount.Text(10),
		NullifierHash:  zkhash.ToDecimal(note.NullifierHash),
		MerkleProof:    *ProofValues(proof),
		Recipient:      params.Recipient,
		Relayer:        params.Relayer,
		RelayerFee:     params.RelayerFee,
		ExpectedOutput: params.ExpectedOutput,
	}

	started := time.Now()
	result, err := s.provider.GenerateProof(ctx, input)
	metrics.ProofGenerationDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		return nil, fmt.Errorf("generate proof: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"note_id":    noteID,
		"leaf_index": *record.LeafIndex,
		"root":       input.MerkleProof.Root,
	}).Info("Swap proof generated")
	return result, nil
}

// NewStealthAddress generates a fresh one-time address for swap output.
func (s *ProofService) NewStealthAddress() (*StealthAddress, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate stealth key: %w", err)
	}
	return &StealthAddress{
		Address:    crypto.PubkeyToAddress(key.PublicKey).Hex(),
		PrivateKey: hex.EncodeToString(crypto.FromECDSA(key)),
	}, nil
}

// ProofValues converts an authentication path into the decimal-string form
// handed to circuits and API clients.
func ProofValues(proof *merkle.Proof) *types.MerkleProofValues {
	siblings := make([]string, len(proof.Siblings))
	for i, sibling := range proof.Siblings {
		siblings[i] = zkhash.ToDecimal(sibling)
	}
	return &types.MerkleProofValues{
		LeafIndex: proof.LeafIndex,
		Leaf:      zkhash.ToDecimal(proof.Leaf),
		Siblings:  siblings,
		Positions: append([]uint8(nil), proof.Positions...),
		Root:      zkhash.ToDecimal(proof.Root),
	}
}
