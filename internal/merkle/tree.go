// Package merkle implements the client-side mirror of the pool's on-chain
// commitment tree: a fixed-height, append-only binary Merkle tree with
// incremental root maintenance and authentication-path generation.
//
// Two trees fed the identical ordered leaf sequence produce bit-identical
// roots; that equality against the contract's published root is the
// synchronizer's consistency check, so insertion order is never optional.
package merkle

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"

	"shieldswap-client/internal/zkhash"
)

// MaxHeight bounds configurable tree heights. The production pools use 20.
const MaxHeight = 32

var (
	// ErrTreeFull is returned when an insert would exceed 2^height leaves.
	ErrTreeFull = errors.New("merkle: tree is full")
	// ErrLeafOutOfRange is returned for proof requests beyond the last leaf.
	ErrLeafOutOfRange = errors.New("merkle: leaf index out of range")
	// ErrHeightMismatch is returned when imported state was exported from a
	// tree of a different height. Mismatches are rejected, never coerced.
	ErrHeightMismatch = errors.New("merkle: state height mismatch")
	// ErrInvalidHeight is returned for heights outside [1, MaxHeight].
	ErrInvalidHeight = errors.New("merkle: invalid height")
)

// ZeroValue fills every unused leaf slot so a partially filled tree always
// has a well-defined root. It is keccak256("shieldswap") reduced into the
// scalar field, matching the constant baked into the pool contract.
var ZeroValue = new(big.Int).Mod(
	new(big.Int).SetBytes(crypto.Keccak256([]byte("shieldswap"))),
	zkhash.Modulus(),
)

// Tree is an incremental append-only Merkle tree. All exported methods are
// safe for concurrent use; mutation happens only through Insert and
// ImportState.
type Tree struct {
	mu     sync.RWMutex
	height int
	hasher zkhash.Hasher

	root   *big.Int
	leaves []*big.Int
	// nodes[level][index] holds every computed node on inserted paths;
	// absent entries are the zero-subtree hash for that level.
	nodes map[int]map[uint64]*big.Int
	// zeros[level] is the hash of an all-empty subtree of that depth.
	zeros []*big.Int
}

// State is the serializable form of a tree: its height and the ordered leaf
// sequence as decimal strings. Re-inserting the leaves in order into a fresh
// tree of the same height reconstructs the identical tree; this is also the
// persisted snapshot shape.
type State struct {
	Height int      `json:"height"`
	Leaves []string `json:"leaves"`
}

// NewTree returns an initialized empty tree of the given height using the
// supplied hasher. The empty root (height-fold hash of ZeroValue) is
// precomputed here so inserts never recompute empty-subtree hashes.
func NewTree(height int, hasher zkhash.Hasher) (*Tree, error) {
	if height < 1 || height > MaxHeight {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHeight, height)
	}
	zeros := make([]*big.Int, height+1)
	zeros[0] = new(big.Int).Set(ZeroValue)
	for i := 1; i <= height; i++ {
		zeros[i] = hasher.Hash(zeros[i-1], zeros[i-1])
	}
	return &Tree{
		height: height,
		hasher: hasher,
		root:   zeros[height],
		nodes:  make(map[int]map[uint64]*big.Int),
		zeros:  zeros,
	}, nil
}

// Height returns the configured tree height.
func (t *Tree) Height() int {
	return t.height
}

// Capacity returns the maximum number of leaves, 2^height.
func (t *Tree) Capacity() uint64 {
	return uint64(1) << uint(t.height)
}

// LeafCount returns the number of inserted leaves.
func (t *Tree) LeafCount() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return uint64(len(t.leaves))
}

// Root returns the current root. O(1): the root is maintained incrementally
// on insert, never recomputed here.
func (t *Tree) Root() *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return new(big.Int).Set(t.root)
}

// Leaf returns the leaf value at the given index.
func (t *Tree) Leaf(index uint64) (*big.Int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if index >= uint64(len(t.leaves)) {
		return nil, fmt.Errorf("%w: index %d, leaf count %d", ErrLeafOutOfRange, index, len(t.leaves))
	}
	return new(big.Int).Set(t.leaves[index]), nil
}

// Insert appends leaf at the next position and rehashes the path from it to
// the root. Returns the assigned leaf index. Duplicate leaf values are
// permitted; position, not value, identifies a leaf.
func (t *Tree) Insert(leaf *big.Int) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.insertLocked(leaf)
}

func (t *Tree) insertLocked(leaf *big.Int) (uint64, error) {
	index := uint64(len(t.leaves))
	if index >= t.capacityLocked() {
		return 0, fmt.Errorf("%w: capacity %d", ErrTreeFull, t.capacityLocked())
	}

	value := zkhash.Reduce(leaf)
	t.leaves = append(t.leaves, value)

	current := value
	idx := index
	for level := 0; level < t.height; level++ {
		t.setNode(level, idx, current)
		if idx%2 == 0 {
			current = t.hasher.Hash(current, t.node(level, idx+1))
		} else {
			current = t.hasher.Hash(t.node(level, idx-1), current)
		}
		idx /= 2
	}
	t.setNode(t.height, 0, current)
	t.root = current
	return index, nil
}

func (t *Tree) capacityLocked() uint64 {
	return uint64(1) << uint(t.height)
}

func (t *Tree) node(level int, index uint64) *big.Int {
	if byIndex, ok := t.nodes[level]; ok {
		if n, ok := byIndex[index]; ok {
			return n
		}
	}
	return t.zeros[level]
}

func (t *Tree) setNode(level int, index uint64, value *big.Int) {
	byIndex, ok := t.nodes[level]
	if !ok {
		byIndex = make(map[uint64]*big.Int)
		t.nodes[level] = byIndex
	}
	byIndex[index] = value
}

// Proof returns the authentication path for the leaf at index, current as of
// the latest insert. A proof becomes stale once a later insert changes the
// root; callers needing a chain-verifiable proof must fetch it immediately
// before use.
func (t *Tree) Proof(index uint64) (*Proof, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if index >= uint64(len(t.leaves)) {
		return nil, fmt.Errorf("%w: index %d, leaf count %d", ErrLeafOutOfRange, index, len(t.leaves))
	}

	siblings := make([]*big.Int, t.height)
	positions := make([]uint8, t.height)
	idx := index
	for level := 0; level < t.height; level++ {
		if idx%2 == 0 {
			siblings[level] = new(big.Int).Set(t.node(level, idx+1))
			positions[level] = 0
		} else {
			siblings[level] = new(big.Int).Set(t.node(level, idx-1))
			positions[level] = 1
		}
		idx /= 2
	}
	return &Proof{
		LeafIndex: index,
		Leaf:      new(big.Int).Set(t.leaves[index]),
		Siblings:  siblings,
		Positions: positions,
		Root:      new(big.Int).Set(t.root),
	}, nil
}

// ExportState captures the tree as its ordered leaf sequence. The node maps
// are deliberately not exported; they are derivable and the leaf list is the
// canonical persisted representation.
func (t *Tree) ExportState() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	leaves := make([]string, len(t.leaves))
	for i, leaf := range t.leaves {
		leaves[i] = zkhash.ToDecimal(leaf)
	}
	return State{Height: t.height, Leaves: leaves}
}

// ImportState resets the tree and re-inserts the exported leaves in order.
// State exported from a tree of a different height is rejected. A malformed
// leaf aborts the whole import: skipping one would shift every later
// position and silently diverge from the chain.
func (t *Tree) ImportState(state State) error {
	if state.Height != t.height {
		return fmt.Errorf("%w: state height %d, tree height %d", ErrHeightMismatch, state.Height, t.height)
	}
	parsed := make([]*big.Int, len(state.Leaves))
	for i, s := range state.Leaves {
		v, err := zkhash.FromDecimal(s)
		if err != nil {
			return fmt.Errorf("merkle: leaf %d: %w", i, err)
		}
		parsed[i] = v
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.leaves = nil
	t.nodes = make(map[int]map[uint64]*big.Int)
	t.root = t.zeros[t.height]
	for i, leaf := range parsed {
		if _, err := t.insertLocked(leaf); err != nil {
			return fmt.Errorf("merkle: reinsert leaf %d: %w", i, err)
		}
	}
	return nil
}

// Clone returns a structural copy sharing no mutable state with the
// original. Node values are shared (they are never mutated in place), so
// cloning costs map copies rather than rehashing.
func (t *Tree) Clone() *Tree {
	t.mu.RLock()
	defer t.mu.RUnlock()

	leaves := make([]*big.Int, len(t.leaves))
	copy(leaves, t.leaves)

	nodes := make(map[int]map[uint64]*big.Int, len(t.nodes))
	for level, byIndex := range t.nodes {
		levelCopy := make(map[uint64]*big.Int, len(byIndex))
		for idx, n := range byIndex {
			levelCopy[idx] = n
		}
		nodes[level] = levelCopy
	}

	return &Tree{
		height: t.height,
		hasher: t.hasher,
		root:   t.root,
		leaves: leaves,
		nodes:  nodes,
		zeros:  t.zeros,
	}
}
