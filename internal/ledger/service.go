package ledger

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"stockledger/internal/model"
	"stockledger/internal/repository"
	"stockledger/internal/unit"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Config carries the ledger policy knobs. A zero threshold disables the
// corresponding approval trigger.
type Config struct {
	// ApprovalAmountThreshold: entries whose total amount reaches this value
	// are persisted pending approval instead of hitting stock immediately.
	ApprovalAmountThreshold decimal.Decimal

	// ApprovalQuantityThreshold triggers the same workflow on the base-unit
	// quantity.
	ApprovalQuantityThreshold float64
}

// EntryInput is the request to record one stock movement.
type EntryInput struct {
	ItemID    uuid.UUID
	Kind      string
	Quantity  float64
	EntryDate time.Time

	// Direction is mandatory for adjustments (+1 or -1). For every other kind
	// it may be omitted; when supplied it must agree with the kind.
	Direction int

	// Unit of the source document. Empty means the item's base unit.
	Unit string

	// ConversionFactor overrides registry resolution; required when the unit
	// is not convertible to the item's base unit.
	ConversionFactor *float64

	// UnitPrice, when set, prices this movement instead of the item reference
	// price. Any divergence is an override and must be allowed and justified.
	UnitPrice           *decimal.Decimal
	AllowPriceOverride  bool
	PriceOverrideReason string

	HotelID *uuid.UUID
	UserID  uuid.UUID

	Description string
	Source      string

	IsOpeningBalance bool
	ImportBatchID    *uuid.UUID

	WasteReason           string
	WasteReasonDetail     string
	ReferenceNumber       string
	DestinationDepartment string
}

// Service validates and records ledger entries and keeps the stock
// projection in step with them.
type Service struct {
	itemRepo  repository.ItemRepository
	entryRepo repository.EntryRepository
	txManager repository.TransactionManager
	projector *StockProjector
	units     *unit.Registry
	cfg       Config
	log       *logrus.Logger
}

func NewService(
	itemRepo repository.ItemRepository,
	entryRepo repository.EntryRepository,
	txManager repository.TransactionManager,
	projector *StockProjector,
	units *unit.Registry,
	cfg Config,
	log *logrus.Logger,
) *Service {
	return &Service{
		itemRepo:  itemRepo,
		entryRepo: entryRepo,
		txManager: txManager,
		projector: projector,
		units:     units,
		cfg:       cfg,
		log:       log,
	}
}

// CreateEntry validates a movement, persists it and applies its stock effect
// in one transaction. Entries above the approval thresholds are persisted
// with a pending status and no stock effect; the caller inspects
// ApprovalStatus on the returned entry.
func (s *Service) CreateEntry(ctx context.Context, in EntryInput) (*model.LedgerEntry, error) {
	if in.Quantity <= 0 || math.IsNaN(in.Quantity) || math.IsInf(in.Quantity, 0) {
		return nil, ErrInvalidQuantity
	}

	direction, err := resolveDirection(in.Kind, in.Direction)
	if err != nil {
		return nil, err
	}

	item, err := s.itemRepo.FindByID(ctx, in.ItemID)
	if err != nil {
		return nil, fmt.Errorf("item lookup: %w", err)
	}

	entryUnit := strings.TrimSpace(in.Unit)
	if entryUnit == "" {
		entryUnit = item.BaseUnit
	}
	factor, err := s.resolveFactor(entryUnit, item.BaseUnit, in.ConversionFactor)
	if err != nil {
		return nil, err
	}

	if in.Kind == model.KindWaste && !model.ValidWasteReasons[in.WasteReason] {
		return nil, ErrWasteReasonRequired
	}

	price := item.UnitPrice
	overridden := false
	if in.UnitPrice != nil && !in.UnitPrice.Equal(item.UnitPrice) {
		// Opening balances are system-generated and priced as given (zero on
		// imports); the override audit applies to user-entered movements.
		if in.IsOpeningBalance {
			price = *in.UnitPrice
		} else {
			if !in.AllowPriceOverride {
				return nil, ErrPriceOverrideDenied
			}
			if strings.TrimSpace(in.PriceOverrideReason) == "" {
				return nil, ErrReasonRequired
			}
			price = *in.UnitPrice
			overridden = true
		}
	}

	if in.HotelID != nil && item.HotelID != nil && *in.HotelID != *item.HotelID {
		return nil, ErrHotelMismatch
	}
	hotelID := in.HotelID
	if hotelID == nil {
		hotelID = item.HotelID
	}

	baseQuantity := in.Quantity * factor
	signed := baseQuantity * float64(direction)
	// Price applies to the quantity as entered; only signed_quantity is
	// converted to base units.
	total := decimal.NewFromFloat(in.Quantity).Mul(price).Round(2)

	entryDate := in.EntryDate
	if entryDate.IsZero() {
		entryDate = time.Now()
	}
	source := in.Source
	if source == "" {
		source = model.SourceManual
	}

	entry := &model.LedgerEntry{
		EntryDate:             entryDate,
		ItemID:                item.ID,
		Kind:                  in.Kind,
		Category:              item.Category,
		HotelID:               hotelID,
		UserID:                in.UserID,
		Quantity:              in.Quantity,
		Direction:             direction,
		Unit:                  entryUnit,
		ConversionFactor:      factor,
		SignedQuantity:        signed,
		UnitPrice:             price.Round(2),
		TotalAmount:           total,
		PriceWasOverridden:    overridden,
		PriceOverrideReason:   in.PriceOverrideReason,
		Description:           in.Description,
		Source:                source,
		IsOpeningBalance:      in.IsOpeningBalance,
		ImportBatchID:         in.ImportBatchID,
		WasteReason:           in.WasteReason,
		WasteReasonDetail:     in.WasteReasonDetail,
		ReferenceNumber:       in.ReferenceNumber,
		DestinationDepartment: in.DestinationDepartment,
		ApprovalStatus:        model.ApprovalNotRequired,
	}

	if s.requiresApproval(in, baseQuantity, total) {
		entry.RequiresApproval = true
		entry.ApprovalStatus = model.ApprovalPending
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.entryRepo.Create(txCtx, entry); err != nil {
			return err
		}
		if entry.ApprovalStatus == model.ApprovalPending {
			return nil
		}
		return s.projector.Apply(txCtx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"entry_id":  entry.ID,
		"item_code": item.Code,
		"kind":      entry.Kind,
		"signed":    entry.SignedQuantity,
		"status":    entry.ApprovalStatus,
	}).Info("ledger entry recorded")
	return entry, nil
}

// SoftDeleteEntry flags an entry deleted and reverses its stock effect when
// one was applied. A reason is mandatory and is appended to the entry
// description for the audit trail.
func (s *Service) SoftDeleteEntry(ctx context.Context, entryID uuid.UUID, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return ErrReasonRequired
	}
	entry, err := s.entryRepo.FindByID(ctx, entryID)
	if err != nil {
		return err
	}
	if entry.IsDeleted {
		return ErrEntryDeleted
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		entry.Description = appendNote(entry.Description, "deleted: "+reason)
		if err := s.entryRepo.Update(txCtx, entry); err != nil {
			return err
		}
		if err := s.entryRepo.SoftDelete(txCtx, entry.ID, time.Now()); err != nil {
			return err
		}
		if entry.ApprovalStatus == model.ApprovalPending {
			return nil
		}
		return s.projector.Revert(txCtx, entry)
	})
}

// Approve releases a pending entry: its stock effect is applied and the
// approval is recorded.
func (s *Service) Approve(ctx context.Context, entryID, approverID uuid.UUID) (*model.LedgerEntry, error) {
	entry, err := s.entryRepo.FindByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.IsDeleted {
		return nil, ErrEntryDeleted
	}
	if entry.ApprovalStatus != model.ApprovalPending {
		return nil, ErrNotPendingApproval
	}

	now := time.Now()
	entry.ApprovalStatus = model.ApprovalApproved
	entry.ApprovedByID = &approverID
	entry.ApprovedAt = &now

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.entryRepo.Update(txCtx, entry); err != nil {
			return err
		}
		return s.projector.Apply(txCtx, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Reject refuses a pending entry. It never touched stock, so it is simply
// marked rejected and soft deleted.
func (s *Service) Reject(ctx context.Context, entryID, approverID uuid.UUID, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return ErrReasonRequired
	}
	entry, err := s.entryRepo.FindByID(ctx, entryID)
	if err != nil {
		return err
	}
	if entry.IsDeleted {
		return ErrEntryDeleted
	}
	if entry.ApprovalStatus != model.ApprovalPending {
		return ErrNotPendingApproval
	}

	now := time.Now()
	entry.ApprovalStatus = model.ApprovalRejected
	entry.ApprovedByID = &approverID
	entry.ApprovedAt = &now
	entry.Description = appendNote(entry.Description, "rejected: "+reason)

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.entryRepo.Update(txCtx, entry); err != nil {
			return err
		}
		return s.entryRepo.SoftDelete(txCtx, entry.ID, now)
	})
}

// StockHistoryPoint is one applied movement with the stock level after it.
type StockHistoryPoint struct {
	Entry        model.LedgerEntry `json:"entry"`
	RunningStock float64           `json:"running_stock"`
}

// StockHistory replays an item's entries in date order and returns the
// running stock after each applied movement. Pending entries appear nowhere
// in the history because their effect is withheld.
func (s *Service) StockHistory(ctx context.Context, itemID uuid.UUID, limit int) ([]StockHistoryPoint, error) {
	entries, err := s.entryRepo.ListByItem(ctx, itemID, limit)
	if err != nil {
		return nil, err
	}
	points := make([]StockHistoryPoint, 0, len(entries))
	running := 0.0
	for _, e := range entries {
		if e.ApprovalStatus == model.ApprovalPending {
			continue
		}
		running += e.SignedQuantity
		points = append(points, StockHistoryPoint{Entry: e, RunningStock: running})
	}
	return points, nil
}

func (s *Service) requiresApproval(in EntryInput, baseQuantity float64, total decimal.Decimal) bool {
	if in.IsOpeningBalance {
		return false
	}
	if s.cfg.ApprovalAmountThreshold.IsPositive() && total.GreaterThanOrEqual(s.cfg.ApprovalAmountThreshold) {
		return true
	}
	if s.cfg.ApprovalQuantityThreshold > 0 && baseQuantity >= s.cfg.ApprovalQuantityThreshold {
		return true
	}
	return false
}

// resolveDirection derives the signed direction for a movement kind.
// Adjustments carry no default and must state theirs; any explicit direction
// on another kind must agree with the canonical one.
func resolveDirection(kind string, explicit int) (int, error) {
	if kind == model.KindAdjustment {
		switch explicit {
		case 1, -1:
			return explicit, nil
		case 0:
			return 0, ErrDirectionRequired
		default:
			return 0, ErrInvalidDirection
		}
	}
	derived, ok := model.KindDirection[kind]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownMovementKind, kind)
	}
	if explicit != 0 && explicit != derived {
		return 0, ErrInvalidDirection
	}
	return derived, nil
}

// resolveFactor converts an entry unit into the item base unit. An explicit
// factor wins; otherwise the registry resolves the pair, and a unit equal to
// the base unit falls back to 1.0 even when the registry does not know it.
func (s *Service) resolveFactor(entryUnit, baseUnit string, explicit *float64) (float64, error) {
	if explicit != nil {
		f := *explicit
		if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("%w: factor %v", ErrConversionRequired, f)
		}
		return f, nil
	}
	factor, err := s.units.Resolve(entryUnit, baseUnit)
	if err == nil {
		return factor, nil
	}
	if strings.EqualFold(strings.TrimSpace(entryUnit), strings.TrimSpace(baseUnit)) {
		return 1.0, nil
	}
	return 0, fmt.Errorf("%w: %v", ErrConversionRequired, err)
}

func appendNote(desc, note string) string {
	if strings.TrimSpace(desc) == "" {
		return note
	}
	return desc + "; " + note
}
