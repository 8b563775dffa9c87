package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Item categories
const (
	CategoryFood    = "Food"
	CategoryNonFood = "NonFood"
)

// Item represents a stocked product. CurrentStock is a materialized value
// derived from the item's ledger entries: it must always equal the sum of
// signed_quantity over non-deleted entries, and is mutated only through the
// stock projector's atomic increment.
type Item struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Code     string    `gorm:"type:varchar(20);uniqueIndex;not null" json:"code"`
	Name     string    `gorm:"type:varchar(100);not null;index" json:"name"`
	NameAlt  string    `gorm:"type:varchar(100)" json:"name_alt"`
	Category string    `gorm:"type:varchar(20);not null;index" json:"category"` // Food or NonFood

	// Unit is the display unit; BaseUnit is the normalized unit in which
	// CurrentStock is accounted.
	Unit     string `gorm:"type:varchar(20);not null" json:"unit"`
	BaseUnit string `gorm:"type:varchar(20)" json:"base_unit"`

	HotelID *uuid.UUID `gorm:"type:uuid;index" json:"hotel_id"`
	Hotel   *Hotel     `gorm:"foreignKey:HotelID" json:"hotel,omitempty"`

	// Reference price per base unit, admin-controlled. Movements priced
	// differently are price overrides and require explicit permission.
	UnitPrice decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"unit_price"`

	CurrentStock float64 `gorm:"not null;default:0;check:current_stock >= 0" json:"current_stock"` // in BaseUnit
	MinStock     float64 `gorm:"default:0" json:"min_stock"`
	MaxStock     float64 `gorm:"default:0" json:"max_stock"`

	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (i *Item) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
