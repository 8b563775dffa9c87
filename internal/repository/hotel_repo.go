package repository

import (
	"context"
	"strings"

	"stockledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type HotelRepository interface {
	Create(ctx context.Context, hotel *model.Hotel) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Hotel, error)
	FindByName(ctx context.Context, name string) (*model.Hotel, error)
	CreateAlias(ctx context.Context, alias *model.SheetAlias) error

	// AliasMap loads all sheet aliases keyed by lower-cased sheet name.
	AliasMap(ctx context.Context) (map[string]model.SheetAlias, error)
}

type hotelRepository struct {
	db *gorm.DB
}

func NewHotelRepository(db *gorm.DB) HotelRepository {
	return &hotelRepository{db: db}
}

func (r *hotelRepository) Create(ctx context.Context, hotel *model.Hotel) error {
	return GetDB(ctx, r.db).Create(hotel).Error
}

func (r *hotelRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Hotel, error) {
	var hotel model.Hotel
	if err := GetDB(ctx, r.db).First(&hotel, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &hotel, nil
}

func (r *hotelRepository) FindByName(ctx context.Context, name string) (*model.Hotel, error) {
	var hotel model.Hotel
	if err := GetDB(ctx, r.db).Where("name = ?", name).First(&hotel).Error; err != nil {
		return nil, err
	}
	return &hotel, nil
}

func (r *hotelRepository) CreateAlias(ctx context.Context, alias *model.SheetAlias) error {
	return GetDB(ctx, r.db).Create(alias).Error
}

func (r *hotelRepository) AliasMap(ctx context.Context) (map[string]model.SheetAlias, error) {
	var aliases []model.SheetAlias
	if err := GetDB(ctx, r.db).Find(&aliases).Error; err != nil {
		return nil, err
	}

	mapping := make(map[string]model.SheetAlias, len(aliases))
	for _, alias := range aliases {
		mapping[strings.ToLower(alias.SheetName)] = alias
	}
	return mapping, nil
}
