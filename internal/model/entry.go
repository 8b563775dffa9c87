package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Movement kinds
const (
	KindPurchase    = "purchase"
	KindConsumption = "consumption"
	KindWaste       = "waste"
	KindAdjustment  = "adjustment"
)

// KindDirection maps a movement kind to its stock direction. Adjustments are
// deliberately absent: their direction must be supplied explicitly by the
// caller, never defaulted.
var KindDirection = map[string]int{
	KindPurchase:    1,
	KindConsumption: -1,
	KindWaste:       -1,
}

// Entry provenance
const (
	SourceManual     = "manual"
	SourceImport     = "import"
	SourceOpening    = "opening_import"
	SourceAdjustment = "adjustment"
)

// Approval statuses
const (
	ApprovalNotRequired = "not_required"
	ApprovalPending     = "pending"
	ApprovalApproved    = "approved"
	ApprovalRejected    = "rejected"
)

// Waste reasons (required for waste movements)
const (
	WasteExpiry         = "expiry"
	WasteDamage         = "damage"
	WasteTransport      = "transport"
	WasteOverproduction = "overproduction"
	WasteQuality        = "quality"
	WasteTheft          = "theft"
	WasteOther          = "other"
)

// ValidWasteReasons lists the accepted waste reason codes.
var ValidWasteReasons = map[string]bool{
	WasteExpiry:         true,
	WasteDamage:         true,
	WasteTransport:      true,
	WasteOverproduction: true,
	WasteQuality:        true,
	WasteTheft:          true,
	WasteOther:          true,
}

// LedgerEntry is one signed stock movement. Quantity is always stored
// positive; Direction (+1/-1) carries the sign; SignedQuantity is the derived
// quantity*factor*direction expressed in the item's base unit and is the only
// value ever summed to produce stock. Entries are immutable after commit
// except for the soft-delete flag and the approval status.
type LedgerEntry struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	EntryDate time.Time `gorm:"not null;index;index:idx_entries_item_date,priority:2;index:idx_entries_hotel_kind_date,priority:3" json:"entry_date"`

	ItemID uuid.UUID `gorm:"type:uuid;not null;index;index:idx_entries_item_date,priority:1" json:"item_id"`
	Item   *Item     `gorm:"foreignKey:ItemID" json:"-"`

	Kind     string     `gorm:"type:varchar(20);not null;index;index:idx_entries_hotel_kind_date,priority:2" json:"kind"`
	Category string     `gorm:"type:varchar(20);not null" json:"category"`
	HotelID  *uuid.UUID `gorm:"type:uuid;index;index:idx_entries_hotel_kind_date,priority:1" json:"hotel_id"`
	UserID   uuid.UUID  `gorm:"type:uuid;not null" json:"user_id"`

	Quantity  float64 `gorm:"not null;check:quantity >= 0" json:"quantity"`
	Direction int     `gorm:"not null;default:1;check:direction IN (1,-1)" json:"direction"`

	// Unit as supplied on the source document, plus the factor converting one
	// such unit into the item's base unit.
	Unit             string  `gorm:"type:varchar(20)" json:"unit"`
	ConversionFactor float64 `gorm:"column:conversion_factor;default:1" json:"conversion_factor"`

	SignedQuantity float64 `gorm:"not null;default:0" json:"signed_quantity"`

	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"unit_price"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"total_amount"`

	PriceWasOverridden  bool   `gorm:"default:false" json:"price_was_overridden"`
	PriceOverrideReason string `gorm:"type:text" json:"price_override_reason,omitempty"`

	Description string `gorm:"type:text" json:"description,omitempty"`

	Source           string     `gorm:"type:varchar(50);default:'manual'" json:"source"`
	IsOpeningBalance bool       `gorm:"default:false;index:idx_entries_opening_deleted,priority:1" json:"is_opening_balance"`
	ImportBatchID    *uuid.UUID `gorm:"type:uuid;index" json:"import_batch_id"`

	// Warehouse management context.
	WasteReason           string `gorm:"type:varchar(50)" json:"waste_reason,omitempty"`
	WasteReasonDetail     string `gorm:"type:text" json:"waste_reason_detail,omitempty"`
	ReferenceNumber       string `gorm:"type:varchar(100)" json:"reference_number,omitempty"`
	DestinationDepartment string `gorm:"type:varchar(100)" json:"destination_department,omitempty"`

	// Approval workflow: while pending, the entry is persisted but its stock
	// effect is withheld.
	RequiresApproval bool       `gorm:"default:false" json:"requires_approval"`
	ApprovalStatus   string     `gorm:"type:varchar(20);default:'not_required'" json:"approval_status"`
	ApprovedByID     *uuid.UUID `gorm:"type:uuid" json:"approved_by_id"`
	ApprovedAt       *time.Time `json:"approved_at"`

	IsDeleted bool       `gorm:"default:false;index:idx_entries_opening_deleted,priority:2" json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (e *LedgerEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
