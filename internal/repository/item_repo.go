package repository

import (
	"context"
	"fmt"

	"stockledger/internal/model"
	"stockledger/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ItemRepository interface {
	Create(ctx context.Context, item *model.Item) error
	Update(ctx context.Context, item *model.Item) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Item, error)
	FindByCode(ctx context.Context, code string) (*model.Item, error)
	FindByNameAndHotel(ctx context.Context, name string, hotelID *uuid.UUID) (*model.Item, error)
	List(ctx context.Context, p pagination.Params, search string) ([]model.Item, int64, error)
	ListActive(ctx context.Context, hotelID *uuid.UUID) ([]model.Item, error)

	// IncrementStock atomically adds delta to current_stock in a single
	// UPDATE statement. This is the only mutation path for stock: a
	// read-then-write pair loses updates under concurrent writers.
	IncrementStock(ctx context.Context, id uuid.UUID, delta float64) error

	// SetStock overwrites current_stock. Reserved for explicit reconciliation
	// repair, never for ordinary movements.
	SetStock(ctx context.Context, id uuid.UUID, stock float64) error

	MaxCodeForPrefix(ctx context.Context, prefix string) (string, error)
}

type itemRepository struct {
	db *gorm.DB
}

func NewItemRepository(db *gorm.DB) ItemRepository {
	return &itemRepository{db: db}
}

func (r *itemRepository) Create(ctx context.Context, item *model.Item) error {
	return GetDB(ctx, r.db).Create(item).Error
}

func (r *itemRepository) Update(ctx context.Context, item *model.Item) error {
	return GetDB(ctx, r.db).Save(item).Error
}

func (r *itemRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Item, error) {
	var item model.Item
	if err := GetDB(ctx, r.db).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *itemRepository) FindByCode(ctx context.Context, code string) (*model.Item, error) {
	var item model.Item
	if err := GetDB(ctx, r.db).Where("code = ?", code).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *itemRepository) FindByNameAndHotel(ctx context.Context, name string, hotelID *uuid.UUID) (*model.Item, error) {
	db := GetDB(ctx, r.db).Where("name = ?", name)
	if hotelID != nil {
		db = db.Where("hotel_id = ?", *hotelID)
	}
	var item model.Item
	if err := db.First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *itemRepository) List(ctx context.Context, p pagination.Params, search string) ([]model.Item, int64, error) {
	var items []model.Item
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Item{})
	if search != "" {
		db = db.Where("name LIKE ?", "%"+search+"%")
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Order("code asc").Offset(p.Offset).Limit(p.Limit).Find(&items).Error; err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

func (r *itemRepository) ListActive(ctx context.Context, hotelID *uuid.UUID) ([]model.Item, error) {
	db := GetDB(ctx, r.db).Where("is_active = ?", true)
	if hotelID != nil {
		db = db.Where("hotel_id = ?", *hotelID)
	}
	var items []model.Item
	if err := db.Order("code asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *itemRepository) IncrementStock(ctx context.Context, id uuid.UUID, delta float64) error {
	res := GetDB(ctx, r.db).Model(&model.Item{}).
		Where("id = ?", id).
		Update("current_stock", gorm.Expr("current_stock + ?", delta))
	if res.Error != nil {
		return fmt.Errorf("failed to increment stock for item %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *itemRepository) SetStock(ctx context.Context, id uuid.UUID, stock float64) error {
	res := GetDB(ctx, r.db).Model(&model.Item{}).
		Where("id = ?", id).
		Update("current_stock", stock)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MaxCodeForPrefix returns the highest item code starting with prefix, used
// to derive the next code in an import.
func (r *itemRepository) MaxCodeForPrefix(ctx context.Context, prefix string) (string, error) {
	var code string
	err := GetDB(ctx, r.db).Model(&model.Item{}).
		Select("code").
		Where("code LIKE ?", prefix+"%").
		Order("code desc").
		Limit(1).
		Scan(&code).Error
	if err != nil {
		return "", err
	}
	return code, nil
}
