package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Hotel scopes items, entries and import batches to one property.
type Hotel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (h *Hotel) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

// SheetAlias maps a workbook sheet name to the hotel (and optionally the
// default item category) its rows belong to. The importer consults these
// before falling back to keyword detection.
type SheetAlias struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SheetName string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"sheet_name"`
	HotelID   uuid.UUID `gorm:"type:uuid;not null;index" json:"hotel_id"`
	Category  string    `gorm:"type:varchar(20)" json:"category"` // optional default category
	CreatedAt time.Time `json:"created_at"`
}

func (a *SheetAlias) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
