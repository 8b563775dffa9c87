package repository

import (
	"context"
	"time"

	"stockledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EntryRepository interface {
	Create(ctx context.Context, entry *model.LedgerEntry) error
	Update(ctx context.Context, entry *model.LedgerEntry) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.LedgerEntry, error)
	ListByItem(ctx context.Context, itemID uuid.UUID, limit int) ([]model.LedgerEntry, error)
	ListByBatch(ctx context.Context, batchID uuid.UUID) ([]model.LedgerEntry, error)

	// SoftDelete flags a single entry deleted. The stock reversal is the
	// caller's responsibility, inside the same unit of work.
	SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error

	// SoftDeleteByBatch flags every still-active entry of a batch deleted and
	// returns the number of rows affected.
	SoftDeleteByBatch(ctx context.Context, batchID uuid.UUID, at time.Time) (int64, error)

	// SumSignedByItem is the reconciliation sum: Σ signed_quantity over
	// non-deleted entries of one item. Entries pending approval are excluded
	// because their stock effect has not been applied yet.
	SumSignedByItem(ctx context.Context, itemID uuid.UUID) (float64, error)

	// BatchStockDeltas groups the still-active entries of a batch by item and
	// sums their signed quantities — the exact per-item effect a replace must
	// reverse.
	BatchStockDeltas(ctx context.Context, batchID uuid.UUID) (map[uuid.UUID]float64, error)

	// AmountsByItem aggregates total_amount per item for classification:
	// non-deleted, non-opening entries of the given kind and category since
	// the cutoff date, descending by amount.
	AmountsByItem(ctx context.Context, kind, category string, since time.Time, hotelID *uuid.UUID) ([]model.ItemAmount, error)

	HasOpeningForBatch(ctx context.Context, itemID, batchID uuid.UUID) (bool, error)
}

type entryRepository struct {
	db *gorm.DB
}

func NewEntryRepository(db *gorm.DB) EntryRepository {
	return &entryRepository{db: db}
}

func (r *entryRepository) Create(ctx context.Context, entry *model.LedgerEntry) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *entryRepository) Update(ctx context.Context, entry *model.LedgerEntry) error {
	return GetDB(ctx, r.db).Save(entry).Error
}

func (r *entryRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.LedgerEntry, error) {
	var entry model.LedgerEntry
	if err := GetDB(ctx, r.db).First(&entry, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *entryRepository) ListByItem(ctx context.Context, itemID uuid.UUID, limit int) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	db := GetDB(ctx, r.db).
		Where("item_id = ? AND is_deleted = ?", itemID, false).
		Order("entry_date asc, created_at asc")
	if limit > 0 {
		db = db.Limit(limit)
	}
	if err := db.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *entryRepository) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	if err := GetDB(ctx, r.db).
		Where("import_batch_id = ?", batchID).
		Order("created_at asc").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *entryRepository) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := GetDB(ctx, r.db).Model(&model.LedgerEntry{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Updates(map[string]interface{}{"is_deleted": true, "deleted_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *entryRepository) SoftDeleteByBatch(ctx context.Context, batchID uuid.UUID, at time.Time) (int64, error) {
	res := GetDB(ctx, r.db).Model(&model.LedgerEntry{}).
		Where("import_batch_id = ? AND is_deleted = ?", batchID, false).
		Updates(map[string]interface{}{"is_deleted": true, "deleted_at": at})
	return res.RowsAffected, res.Error
}

func (r *entryRepository) SumSignedByItem(ctx context.Context, itemID uuid.UUID) (float64, error) {
	var sum float64
	err := GetDB(ctx, r.db).Model(&model.LedgerEntry{}).
		Select("COALESCE(SUM(signed_quantity), 0)").
		Where("item_id = ? AND is_deleted = ?", itemID, false).
		Where("approval_status <> ?", model.ApprovalPending).
		Scan(&sum).Error
	return sum, err
}

func (r *entryRepository) BatchStockDeltas(ctx context.Context, batchID uuid.UUID) (map[uuid.UUID]float64, error) {
	var rows []struct {
		ItemID uuid.UUID
		Total  float64
	}
	err := GetDB(ctx, r.db).Model(&model.LedgerEntry{}).
		Select("item_id, COALESCE(SUM(signed_quantity), 0) as total").
		Where("import_batch_id = ? AND is_deleted = ?", batchID, false).
		Where("approval_status <> ?", model.ApprovalPending).
		Group("item_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	deltas := make(map[uuid.UUID]float64, len(rows))
	for _, row := range rows {
		deltas[row.ItemID] = row.Total
	}
	return deltas, nil
}

func (r *entryRepository) AmountsByItem(ctx context.Context, kind, category string, since time.Time, hotelID *uuid.UUID) ([]model.ItemAmount, error) {
	db := GetDB(ctx, r.db).Table("ledger_entries").
		Select("items.id as item_id, items.code as item_code, items.name as item_name, SUM(ledger_entries.total_amount) as amount").
		Joins("JOIN items ON items.id = ledger_entries.item_id").
		Where("ledger_entries.kind = ?", kind).
		Where("ledger_entries.category = ?", category).
		Where("ledger_entries.entry_date >= ?", since).
		Where("ledger_entries.is_deleted = ?", false).
		Where("ledger_entries.is_opening_balance = ?", false).
		Where("ledger_entries.approval_status <> ?", model.ApprovalPending)

	if hotelID != nil {
		db = db.Where("items.hotel_id = ?", *hotelID)
	}

	var amounts []model.ItemAmount
	err := db.Group("items.id, items.code, items.name").
		Order("amount DESC, items.code ASC").
		Scan(&amounts).Error
	if err != nil {
		return nil, err
	}
	return amounts, nil
}

func (r *entryRepository) HasOpeningForBatch(ctx context.Context, itemID, batchID uuid.UUID) (bool, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.LedgerEntry{}).
		Where("item_id = ? AND import_batch_id = ? AND is_opening_balance = ?", itemID, batchID, true).
		Count(&count).Error
	return count > 0, err
}
