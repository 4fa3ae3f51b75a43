package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"shieldswap-client/internal/models"
)

// memoryNoteRepository implements NoteRepository without a database. It backs
// ephemeral mode (no DSN configured) and unit tests. Lookup misses return
// gorm.ErrRecordNotFound so callers handle both implementations identically.
type memoryNoteRepository struct {
	mu     sync.RWMutex
	nextID uint64
	notes  map[uint64]*models.Note
}

// NewMemoryNoteRepository creates a NoteRepository backed by process memory.
func NewMemoryNoteRepository() NoteRepository {
	return &memoryNoteRepository{
		nextID: 1,
		notes:  make(map[uint64]*models.Note),
	}
}

func (r *memoryNoteRepository) Create(_ context.Context, note *models.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	note.ID = r.nextID
	r.nextID++
	now := time.Now()
	note.CreatedAt = now
	note.UpdatedAt = now
	stored := *note
	r.notes[note.ID] = &stored
	return nil
}

func (r *memoryNoteRepository) GetByID(_ context.Context, id uint64) (*models.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	note, ok := r.notes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *note
	return &copied, nil
}

func (r *memoryNoteRepository) GetByCommitment(_ context.Context, commitment string) (*models.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, note := range r.sortedLocked() {
		if note.Commitment == commitment {
			copied := *note
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memoryNoteRepository) GetAll(_ context.Context) ([]*models.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Note, 0, len(r.notes))
	for _, note := range r.sortedLocked() {
		copied := *note
		out = append(out, &copied)
	}
	return out, nil
}

func (r *memoryNoteRepository) GetUnspent(_ context.Context) ([]*models.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.Note
	for _, note := range r.sortedLocked() {
		if note.Spendable() {
			copied := *note
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memoryNoteRepository) SetLeafIndex(_ context.Context, id uint64, leafIndex uint64, depositTxHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	note, ok := r.notes[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	idx := leafIndex
	note.LeafIndex = &idx
	if depositTxHash != "" {
		note.DepositTxHash = depositTxHash
	}
	note.UpdatedAt = time.Now()
	return nil
}

func (r *memoryNoteRepository) MarkSpent(_ context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	note, ok := r.notes[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	now := time.Now()
	note.Spent = true
	note.SpentAt = &now
	note.UpdatedAt = now
	return nil
}

func (r *memoryNoteRepository) Delete(_ context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.notes[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.notes, id)
	return nil
}

func (r *memoryNoteRepository) Clear(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := int64(len(r.notes))
	r.notes = make(map[uint64]*models.Note)
	return removed, nil
}

func (r *memoryNoteRepository) Count(_ context.Context) (*models.NoteCounts, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := &models.NoteCounts{Total: int64(len(r.notes))}
	for _, note := range r.notes {
		if note.Spendable() {
			counts.Unspent++
		}
	}
	return counts, nil
}

func (r *memoryNoteRepository) sortedLocked() []*models.Note {
	out := make([]*models.Note, 0, len(r.notes))
	for _, note := range r.notes {
		out = append(out, note)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
