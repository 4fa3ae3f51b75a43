package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"shieldswap-client/internal/models"
)

// NoteRepository defines the interface for deposit note data access
type NoteRepository interface {
	Create(ctx context.Context, note *models.Note) error
	GetByID(ctx context.Context, id uint64) (*models.Note, error)
	GetByCommitment(ctx context.Context, commitment string) (*models.Note, error)
	GetAll(ctx context.Context) ([]*models.Note, error)
	GetUnspent(ctx context.Context) ([]*models.Note, error)
	SetLeafIndex(ctx context.Context, id uint64, leafIndex uint64, depositTxHash string) error
	MarkSpent(ctx context.Context, id uint64) error
	Delete(ctx context.Context, id uint64) error
	Clear(ctx context.Context) (int64, error)
	Count(ctx context.Context) (*models.NoteCounts, error)
}

// noteRepository implements NoteRepository on GORM
type noteRepository struct {
	db *gorm.DB
}

// NewNoteRepository creates a new NoteRepository instance
func NewNoteRepository(db *gorm.DB) NoteRepository {
	return &noteRepository{db: db}
}

func (r *noteRepository) Create(ctx context.Context, note *models.Note) error {
	return r.db.WithContext(ctx).Create(note).Error
}

func (r *noteRepository) GetByID(ctx context.Context, id uint64) (*models.Note, error) {
	var note models.Note
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&note).Error
	if err != nil {
		return nil, err
	}
	return &note, nil
}

func (r *noteRepository) GetByCommitment(ctx context.Context, commitment string) (*models.Note, error) {
	var note models.Note
	err := r.db.WithContext(ctx).Where("commitment = ?", commitment).First(&note).Error
	if err != nil {
		return nil, err
	}
	return &note, nil
}

func (r *noteRepository) GetAll(ctx context.Context) ([]*models.Note, error) {
	var notes []*models.Note
	err := r.db.WithContext(ctx).Order("id ASC").Find(&notes).Error
	if err != nil {
		return nil, err
	}
	return notes, nil
}

func (r *noteRepository) GetUnspent(ctx context.Context) ([]*models.Note, error) {
	var notes []*models.Note
	err := r.db.WithContext(ctx).
		Where("spent = ? AND leaf_index IS NOT NULL", false).
		Order("id ASC").
		Find(&notes).Error
	if err != nil {
		return nil, err
	}
	return notes, nil
}

func (r *noteRepository) SetLeafIndex(ctx context.Context, id uint64, leafIndex uint64, depositTxHash string) error {
	updates := map[string]interface{}{"leaf_index": leafIndex}
	if depositTxHash != "" {
		updates["deposit_tx_hash"] = depositTxHash
	}
	result := r.db.WithContext(ctx).Model(&models.Note{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *noteRepository) MarkSpent(ctx context.Context, id uint64) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.Note{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"spent": true, "spent_at": now})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *noteRepository) Delete(ctx context.Context, id uint64) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Note{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *noteRepository) Clear(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Where("1 = 1").Delete(&models.Note{})
	return result.RowsAffected, result.Error
}

func (r *noteRepository) Count(ctx context.Context) (*models.NoteCounts, error) {
	counts := &models.NoteCounts{}
	if err := r.db.WithContext(ctx).Model(&models.Note{}).Count(&counts.Total).Error; err != nil {
		return nil, err
	}
	err := r.db.WithContext(ctx).Model(&models.Note{}).
		Where("spent = ? AND leaf_index IS NOT NULL", false).
		Count(&counts.Unspent).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}
