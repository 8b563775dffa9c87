package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Import batch statuses
const (
	BatchPending   = "pending"
	BatchCompleted = "completed"
	BatchReplaced  = "replaced"
	BatchFailed    = "failed"
)

// ImportBatch tracks one ingestion attempt of a source workbook.
//
// FileHash is intentionally NOT globally unique: replace mode keeps every
// historical batch for the same file. The "at most one active batch per hash"
// invariant is enforced by a partial unique index on (file_hash) WHERE
// is_active, created in database.Connect. Replace chains are modelled with
// plain optional id links rather than live object references.
type ImportBatch struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Filename string    `gorm:"type:varchar(255);not null" json:"filename"`
	FileHash string    `gorm:"type:varchar(64);not null;index" json:"file_hash"`
	FileSize int64     `json:"file_size"`

	HotelID      *uuid.UUID `gorm:"type:uuid;index" json:"hotel_id"`
	UploadedByID *uuid.UUID `gorm:"type:uuid" json:"uploaded_by_id"`

	IsActive bool   `gorm:"not null;default:true;index" json:"is_active"`
	Status   string `gorm:"type:varchar(20);default:'pending'" json:"status"`

	ItemsCreated   int    `gorm:"default:0" json:"items_created"`
	ItemsUpdated   int    `gorm:"default:0" json:"items_updated"`
	EntriesCreated int    `gorm:"default:0" json:"entries_created"`
	ErrorsCount    int    `gorm:"default:0" json:"errors_count"`
	ErrorDetails   string `gorm:"type:text" json:"error_details,omitempty"` // JSON: [{sheet, row, error}]

	ReplacesBatchID *uuid.UUID `gorm:"type:uuid" json:"replaces_batch_id"`
	ReplacedByID    *uuid.UUID `gorm:"type:uuid" json:"replaced_by_id"`
	ReplacedAt      *time.Time `json:"replaced_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *ImportBatch) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
