package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"stockledger/internal/model"
	"stockledger/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var sha256Pattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

type BatchRepository interface {
	Create(ctx context.Context, batch *model.ImportBatch) error
	Update(ctx context.Context, batch *model.ImportBatch) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.ImportBatch, error)

	// FindActiveByHash returns the single active batch for a content hash, or
	// nil when the file has no live import.
	FindActiveByHash(ctx context.Context, hash string) (*model.ImportBatch, error)

	// Deactivate marks a batch replaced and frees its slot under the partial
	// unique index, so the successor batch can become the active one for the
	// same content hash.
	Deactivate(ctx context.Context, batchID uuid.UUID, at time.Time) error

	// LinkReplacedBy records which batch superseded this one.
	LinkReplacedBy(ctx context.Context, batchID, replacedByID uuid.UUID) error

	HistoryByHash(ctx context.Context, hash string) ([]model.ImportBatch, error)
	List(ctx context.Context, p pagination.Params) ([]model.ImportBatch, int64, error)
}

type batchRepository struct {
	db *gorm.DB
}

func NewBatchRepository(db *gorm.DB) BatchRepository {
	return &batchRepository{db: db}
}

func (r *batchRepository) Create(ctx context.Context, batch *model.ImportBatch) error {
	return GetDB(ctx, r.db).Create(batch).Error
}

func (r *batchRepository) Update(ctx context.Context, batch *model.ImportBatch) error {
	return GetDB(ctx, r.db).Save(batch).Error
}

func (r *batchRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.ImportBatch, error) {
	var batch model.ImportBatch
	if err := GetDB(ctx, r.db).First(&batch, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *batchRepository) FindActiveByHash(ctx context.Context, hash string) (*model.ImportBatch, error) {
	if !sha256Pattern.MatchString(hash) {
		return nil, fmt.Errorf("invalid file hash format: %q", hash)
	}

	var batch model.ImportBatch
	err := GetDB(ctx, r.db).
		Where("file_hash = ? AND is_active = ? AND status = ?", hash, true, model.BatchCompleted).
		First(&batch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &batch, nil
}

func (r *batchRepository) Deactivate(ctx context.Context, batchID uuid.UUID, at time.Time) error {
	res := GetDB(ctx, r.db).Model(&model.ImportBatch{}).
		Where("id = ?", batchID).
		Updates(map[string]interface{}{
			"is_active":   false,
			"status":      model.BatchReplaced,
			"replaced_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *batchRepository) LinkReplacedBy(ctx context.Context, batchID, replacedByID uuid.UUID) error {
	return GetDB(ctx, r.db).Model(&model.ImportBatch{}).
		Where("id = ?", batchID).
		Update("replaced_by_id", replacedByID).Error
}

func (r *batchRepository) HistoryByHash(ctx context.Context, hash string) ([]model.ImportBatch, error) {
	var batches []model.ImportBatch
	if err := GetDB(ctx, r.db).
		Where("file_hash = ?", hash).
		Order("created_at desc").
		Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

func (r *batchRepository) List(ctx context.Context, p pagination.Params) ([]model.ImportBatch, int64, error) {
	var batches []model.ImportBatch
	var total int64

	db := GetDB(ctx, r.db).Model(&model.ImportBatch{})
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Order("created_at desc").Offset(p.Offset).Limit(p.Limit).Find(&batches).Error; err != nil {
		return nil, 0, err
	}

	return batches, total, nil
}
