package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"shieldswap-client/internal/clients"
	"shieldswap-client/internal/config"
	"shieldswap-client/internal/events"
	"shieldswap-client/internal/merkle"
	"shieldswap-client/internal/metrics"
	"shieldswap-client/internal/models"
	"shieldswap-client/internal/repository"
	"shieldswap-client/internal/types"
	"shieldswap-client/internal/zkhash"
)

var (
	// ErrSyncInProgress is returned when a sync call overlaps an in-flight
	// run. The caller retries after the active run completes; two runs must
	// never race on the same tree.
	ErrSyncInProgress = errors.New("services: sync already in progress")
	// ErrTreeNotInitialized is returned for proof requests before any
	// successful load or sync.
	ErrTreeNotInitialized = errors.New("services: tree not initialized")
)

// TreeSyncService mirrors one pool's on-chain commitment tree locally. It
// replays Deposit events in leaf-index order into a candidate copy of the
// tree and swaps the copy in only after the whole run succeeds, so readers
// always observe a fully consistent tree and a failed run never corrupts
// the previous state.
type TreeSyncService struct {
	network   config.NetworkConfig
	chain     clients.ChainReader
	hasher    zkhash.Hasher
	snapshots repository.SnapshotRepository
	notes     repository.NoteRepository
	nats      *clients.NATSClient
	hub       *clients.StatusHub
	log       *logrus.Entry

	mu              sync.RWMutex
	syncing         bool
	tree            *merkle.Tree
	state           models.SyncState
	lastSyncedBlock uint64
	syncedOnce      bool
	rootMatch       bool
	onChainRoot     string
	persisted       bool
	lastSyncAt      *time.Time
	lastError       string
}

// NewTreeSyncService wires a synchronizer for one (chain, pool) pair. The
// notes repository, NATS client, and status hub are optional; nil disables
// the corresponding side effect.
func NewTreeSyncService(
	network config.NetworkConfig,
	chain clients.ChainReader,
	hasher zkhash.Hasher,
	snapshots repository.SnapshotRepository,
	notes repository.NoteRepository,
	nats *clients.NATSClient,
	hub *clients.StatusHub,
) *TreeSyncService {
	return &TreeSyncService{
		network:   network,
		chain:     chain,
		hasher:    hasher,
		snapshots: snapshots,
		notes:     notes,
		nats:      nats,
		hub:       hub,
		state:     models.SyncStateIdle,
		log: logrus.WithFields(logrus.Fields{
			"component": "tree_sync",
			"chain_id":  network.ChainID,
			"pool":      strings.ToLower(network.PoolAddress),
		}),
	}
}

// Load restores the tree from the latest persisted snapshot, or initializes
// an empty tree when none exists. Called once at startup, before the first
// sync; snapshot decode failures fall back to an empty tree so a corrupt
// file cannot brick startup.
func (s *TreeSyncService) Load(ctx context.Context) error {
	snapshot, err := s.snapshots.Get(ctx, s.network.ChainID, s.network.PoolAddress)
	if err != nil && !errors.Is(err, repository.ErrSnapshotNotFound) {
		return fmt.Errorf("load tree snapshot: %w", err)
	}

	tree, err := merkle.NewTree(s.network.TreeHeight, s.hasher)
	if err != nil {
		return fmt.Errorf("initialize tree: %w", err)
	}

	if snapshot != nil {
		importErr := tree.ImportState(merkle.State{Height: snapshot.Height, Leaves: snapshot.Leaves})
		if importErr != nil {
			s.log.WithError(importErr).Warn("Persisted snapshot unusable, starting from the deployment block")
			fresh, freshErr := merkle.NewTree(s.network.TreeHeight, s.hasher)
			if freshErr != nil {
				return fmt.Errorf("initialize tree: %w", freshErr)
			}
			tree = fresh
			snapshot = nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree = tree
	if snapshot != nil {
		s.lastSyncedBlock = snapshot.LastSyncedBlock
		s.syncedOnce = true
		s.persisted = true
		s.log.WithFields(logrus.Fields{
			"leaf_count":        tree.LeafCount(),
			"last_synced_block": snapshot.LastSyncedBlock,
		}).Info("Restored tree from snapshot")
	} else {
		s.log.WithField("height", s.network.TreeHeight).Info("Initialized empty tree")
	}
	s.publishGauges(tree.LeafCount())
	return nil
}

// Sync runs one reconciliation pass against the chain. A second call while
// one is in flight returns ErrSyncInProgress and leaves the active run
// untouched.
func (s *TreeSyncService) Sync(ctx context.Context) (models.SyncStatus, error) {
	return s.sync(ctx, false)
}

// ForceRefresh discards the local sync position and replays every event from
// the deployment block into a fresh tree.
func (s *TreeSyncService) ForceRefresh(ctx context.Context) (models.SyncStatus, error) {
	return s.sync(ctx, true)
}

func (s *TreeSyncService) sync(ctx context.Context, refresh bool) (models.SyncStatus, error) {
	s.mu.Lock()
	if s.syncing {
		s.mu.Unlock()
		return s.statusSnapshot(), ErrSyncInProgress
	}
	s.syncing = true
	s.state = models.SyncStateSyncing

	base := s.tree
	fromBlock := s.network.DeploymentBlock
	if s.syncedOnce {
		fromBlock = s.lastSyncedBlock + 1
	}
	if refresh {
		// Rebuild from scratch, but keep serving the previous tree until
		// the replay succeeds.
		s.lastSyncedBlock = 0
		s.syncedOnce = false
		base = nil
		fromBlock = s.network.DeploymentBlock
	}
	s.mu.Unlock()

	metrics.SyncInProgress.Set(1)
	started := time.Now()
	status, err := s.run(ctx, base, fromBlock)
	metrics.SyncInProgress.Set(0)
	metrics.SyncDuration.Observe(time.Since(started).Seconds())

	s.mu.Lock()
	s.syncing = false
	s.mu.Unlock()
	return status, err
}

// run executes the fetch, insert, verify, persist sequence against a
// candidate tree. The shared tree reference is replaced only at the end, as
// a single assignment.
func (s *TreeSyncService) run(ctx context.Context, base *merkle.Tree, fromBlock uint64) (models.SyncStatus, error) {
	// 1. Start from the in-memory tree; a refresh or first run starts empty.
	var candidate *merkle.Tree
	var err error
	if base != nil {
		candidate = base.Clone()
	} else {
		candidate, err = merkle.NewTree(s.network.TreeHeight, s.hasher)
		if err != nil {
			return s.fail(fmt.Errorf("initialize tree: %w", err))
		}
	}

	// 2. Window: the block after the last success up to the current head.
	toBlock, err := s.chain.HeadBlock(ctx)
	if err != nil {
		return s.fail(fmt.Errorf("query chain head: %w", err))
	}

	// 3. Fetch and order this window's deposits. Leaf-index order is the
	// insertion order; block order is not trustworthy across deposit paths.
	var eventList []types.DepositEvent
	if toBlock >= fromBlock {
		eventList, err = s.chain.DepositEvents(ctx, fromBlock, toBlock)
		if err != nil {
			return s.fail(fmt.Errorf("fetch deposit events: %w", err))
		}
		types.SortDepositEvents(eventList)
	}

	// 4. Insert into the candidate. Events at positions the tree already
	// holds are replays of a window covered by an earlier run; skip them
	// instead of double-inserting.
	inserted := 0
	for i := range eventList {
		event := &eventList[i]
		position := uint64(event.LeafIndex)
		leafCount := candidate.LeafCount()
		if position < leafCount {
			s.log.WithFields(logrus.Fields{
				"leaf_index": event.LeafIndex,
				"leaf_count": leafCount,
			}).Debug("Skipping already-inserted deposit event")
			continue
		}
		if position > leafCount {
			s.log.WithFields(logrus.Fields{
				"leaf_index": event.LeafIndex,
				"leaf_count": leafCount,
			}).Warn("Gap in deposit events, root will diverge until refreshed")
		}
		if _, err := candidate.Insert(event.Commitment); err != nil {
			return s.fail(fmt.Errorf("insert leaf %d: %w", event.LeafIndex, err))
		}
		inserted++
	}
	if inserted > 0 {
		metrics.DepositEventsInsertedTotal.Add(float64(inserted))
	}

	// 5. Compare the reconstructed root with the pool's published root. A
	// mismatch is an integrity warning, not a failure: the state persists
	// and the caller sees root_match=false.
	onChainRoot, err := s.chain.CurrentRoot(ctx)
	if err != nil {
		return s.fail(fmt.Errorf("read on-chain root: %w", err))
	}
	localRoot := candidate.Root()
	rootMatch := localRoot.Cmp(onChainRoot) == 0
	if !rootMatch {
		s.log.WithFields(logrus.Fields{
			"local_root":    zkhash.ToDecimal(localRoot),
			"on_chain_root": zkhash.ToDecimal(onChainRoot),
			"leaf_count":    candidate.LeafCount(),
		}).Warn("Local root does not match on-chain root")
		metrics.RootMismatchTotal.Inc()
	}

	// 6. Persist unconditionally. A write failure keeps the synced tree for
	// this session and flags it unpersisted; the next run replays the
	// window from the last persisted position.
	newLastSynced := s.currentLastSynced()
	if toBlock > newLastSynced {
		newLastSynced = toBlock
	}
	now := time.Now().UTC()
	persisted := true
	persistErr := s.snapshots.Put(ctx, &models.TreeSnapshot{
		ChainID:         s.network.ChainID,
		PoolAddress:     strings.ToLower(s.network.PoolAddress),
		Height:          candidate.Height(),
		Leaves:          candidate.ExportState().Leaves,
		LastSyncedBlock: newLastSynced,
		Root:            zkhash.ToDecimal(localRoot),
		UpdatedAt:       now,
	})
	if persistErr != nil {
		persisted = false
		metrics.SnapshotWritesFailedTotal.Inc()
		s.log.WithError(persistErr).Error("Failed to persist tree snapshot, keeping in-memory state")
	}

	// 7. Swap the candidate in and expose the new status.
	s.mu.Lock()
	s.tree = candidate
	s.state = models.SyncStateSynced
	if persisted {
		s.lastSyncedBlock = newLastSynced
		s.syncedOnce = true
	}
	s.rootMatch = rootMatch
	s.onChainRoot = zkhash.ToDecimal(onChainRoot)
	s.persisted = persisted
	s.lastSyncAt = &now
	if persistErr != nil {
		s.lastError = persistErr.Error()
	} else {
		s.lastError = ""
	}
	status := s.statusSnapshot()
	s.mu.Unlock()

	s.publishGauges(candidate.LeafCount())
	metrics.LastSyncedBlock.WithLabelValues(s.chainLabel(), s.poolLabel()).Set(float64(newLastSynced))
	metrics.SyncRunsTotal.WithLabelValues("synced").Inc()

	s.confirmNotes(ctx, eventList)
	s.announce(status, inserted)

	s.log.WithFields(logrus.Fields{
		"inserted":          inserted,
		"leaf_count":        candidate.LeafCount(),
		"last_synced_block": newLastSynced,
		"root_match":        rootMatch,
		"persisted":         persisted,
	}).Info("Tree sync completed")
	return status, nil
}

// fail records an aborted run. The shared tree and the sync position stay at
// their previous values, so the next run safely replays the same window.
func (s *TreeSyncService) fail(err error) (models.SyncStatus, error) {
	s.mu.Lock()
	s.state = models.SyncStateError
	s.lastError = err.Error()
	status := s.statusSnapshot()
	s.mu.Unlock()

	metrics.SyncRunsTotal.WithLabelValues("error").Inc()
	s.log.WithError(err).Error("Tree sync failed")

	payload := events.SyncFailedPayload{
		ChainID:     s.network.ChainID,
		PoolAddress: s.poolLabel(),
		Error:       err.Error(),
		FailedAt:    time.Now().UTC(),
	}
	s.publish(events.SubjectTreeSyncFailed, payload)
	if s.hub != nil {
		s.hub.Broadcast(events.SubjectTreeSyncFailed, payload)
	}
	return status, err
}

// NeedsSync reports whether the chain has blocks the local tree has not
// covered yet. Gates the periodic poll so idle chains cost one RPC call.
func (s *TreeSyncService) NeedsSync(ctx context.Context) (bool, error) {
	s.mu.RLock()
	syncedOnce := s.syncedOnce
	lastSynced := s.lastSyncedBlock
	s.mu.RUnlock()
	if !syncedOnce {
		return true, nil
	}
	head, err := s.chain.HeadBlock(ctx)
	if err != nil {
		return false, fmt.Errorf("query chain head: %w", err)
	}
	return head > lastSynced, nil
}

// Proof returns the authentication path for one leaf of the current tree.
func (s *TreeSyncService) Proof(leafIndex uint64) (*merkle.Proof, error) {
	s.mu.RLock()
	tree := s.tree
	s.mu.RUnlock()
	if tree == nil {
		return nil, ErrTreeNotInitialized
	}
	return tree.Proof(leafIndex)
}

// Root returns the current local root.
func (s *TreeSyncService) Root() (string, error) {
	s.mu.RLock()
	tree := s.tree
	s.mu.RUnlock()
	if tree == nil {
		return "", ErrTreeNotInitialized
	}
	return zkhash.ToDecimal(tree.Root()), nil
}

// Status returns the current externally visible sync condition.
func (s *TreeSyncService) Status() models.SyncStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statusSnapshot()
}

// statusSnapshot assembles a status copy. Callers hold at least a read lock.
func (s *TreeSyncService) statusSnapshot() models.SyncStatus {
	status := models.SyncStatus{
		State:           s.state,
		ChainID:         s.network.ChainID,
		PoolAddress:     s.poolLabel(),
		TreeHeight:      s.network.TreeHeight,
		RootMatch:       s.rootMatch,
		OnChainRoot:     s.onChainRoot,
		LastSyncedBlock: s.lastSyncedBlock,
		Persisted:       s.persisted,
		LastError:       s.lastError,
	}
	if s.tree != nil {
		status.LeafCount = s.tree.LeafCount()
		status.LocalRoot = zkhash.ToDecimal(s.tree.Root())
	}
	if s.lastSyncAt != nil {
		at := *s.lastSyncAt
		status.LastSyncAt = &at
	}
	return status
}

func (s *TreeSyncService) currentLastSynced() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.syncedOnce {
		return 0
	}
	return s.lastSyncedBlock
}

// confirmNotes assigns leaf indexes to stored notes whose commitments appear
// in this window's deposits. Best effort; a miss just means the user
// confirms the note through the API instead.
func (s *TreeSyncService) confirmNotes(ctx context.Context, eventList []types.DepositEvent) {
	if s.notes == nil {
		return
	}
	for i := range eventList {
		event := &eventList[i]
		record, err := s.notes.GetByCommitment(ctx, zkhash.ToDecimal(event.Commitment))
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				s.log.WithError(err).Warn("Note lookup during sync failed")
			}
			continue
		}
		if record.LeafIndex != nil {
			continue
		}
		if err := s.notes.SetLeafIndex(ctx, record.ID, uint64(event.LeafIndex), event.TxHash); err != nil {
			s.log.WithError(err).WithField("note_id", record.ID).Warn("Failed to confirm note from deposit event")
			continue
		}
		s.log.WithFields(logrus.Fields{
			"note_id":    record.ID,
			"leaf_index": event.LeafIndex,
		}).Info("Confirmed note from deposit event")
	}
}

// announce publishes the run result to NATS and websocket subscribers.
func (s *TreeSyncService) announce(status models.SyncStatus, inserted int) {
	syncedAt := time.Now().UTC()
	if status.LastSyncAt != nil {
		syncedAt = *status.LastSyncAt
	}
	payload := events.TreeSyncedPayload{
		ChainID:         status.ChainID,
		PoolAddress:     status.PoolAddress,
		LeafCount:       status.LeafCount,
		InsertedLeaves:  inserted,
		LastSyncedBlock: status.LastSyncedBlock,
		LocalRoot:       status.LocalRoot,
		OnChainRoot:     status.OnChainRoot,
		RootMatch:       status.RootMatch,
		Persisted:       status.Persisted,
		SyncedAt:        syncedAt,
	}
	s.publish(events.SubjectTreeSynced, payload)
	if s.hub != nil {
		s.hub.Broadcast(events.SubjectTreeSynced, payload)
	}

	if !status.RootMatch {
		mismatch := events.RootMismatchPayload{
			ChainID:     status.ChainID,
			PoolAddress: status.PoolAddress,
			LocalRoot:   status.LocalRoot,
			OnChainRoot: status.OnChainRoot,
			LeafCount:   status.LeafCount,
			DetectedAt:  syncedAt,
		}
		s.publish(events.SubjectTreeRootMismatch, mismatch)
		if s.hub != nil {
			s.hub.Broadcast(events.SubjectTreeRootMismatch, mismatch)
		}
	}
}

func (s *TreeSyncService) publish(subject string, payload interface{}) {
	if s.nats == nil {
		return
	}
	if err := s.nats.Publish(subject, payload); err != nil {
		s.log.WithError(err).WithField("subject", subject).Warn("Failed to publish event")
	}
}

func (s *TreeSyncService) publishGauges(leafCount uint64) {
	metrics.TreeLeafCount.WithLabelValues(s.chainLabel(), s.poolLabel()).Set(float64(leafCount))
}

func (s *TreeSyncService) chainLabel() string {
	return strconv.FormatUint(s.network.ChainID, 10)
}

func (s *TreeSyncService) poolLabel() string {
	return strings.ToLower(s.network.PoolAddress)
}
