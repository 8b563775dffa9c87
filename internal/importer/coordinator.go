package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"stockledger/internal/ledger"
	"stockledger/internal/model"
	"stockledger/internal/numparse"
	"stockledger/internal/repository"
	"stockledger/internal/unit"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// Config bounds the resources one import may consume.
type Config struct {
	MaxFileSize int64
	HashTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxFileSize == 0 {
		c.MaxFileSize = DefaultMaxFileSize
	}
	if c.HashTimeout == 0 {
		c.HashTimeout = DefaultHashTimeout
	}
	return c
}

// Input describes one upload.
type Input struct {
	Reader   io.Reader
	Filename string

	HotelID *uuid.UUID
	UserID  uuid.UUID

	// AllowReplace lets a re-upload of an already imported file supersede the
	// earlier batch instead of being rejected as a duplicate.
	AllowReplace bool

	// SelectedSheets restricts the import to the named sheets. Empty means
	// every sheet in the workbook.
	SelectedSheets []string
}

// RowError is one rejected source row. The import continues past it.
type RowError struct {
	Sheet   string `json:"sheet"`
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Result summarizes a completed import.
type Result struct {
	BatchID         uuid.UUID  `json:"batch_id"`
	ItemsCreated    int        `json:"items_created"`
	ItemsUpdated    int        `json:"items_updated"`
	EntriesCreated  int        `json:"entries_created"`
	RowErrors       []RowError `json:"row_errors,omitempty"`
	ReplacedBatchID *uuid.UUID `json:"replaced_batch_id,omitempty"`
}

// DuplicateImportError rejects a file whose content already has an active
// batch and replacement was not requested.
type DuplicateImportError struct {
	ExistingBatchID uuid.UUID
	ImportedAt      time.Time
}

func (e *DuplicateImportError) Error() string {
	return fmt.Sprintf("file already imported as batch %s at %s", e.ExistingBatchID, e.ImportedAt.Format(time.RFC3339))
}

// ImportError wraps a failure with the stage it happened in.
type ImportError struct {
	Stage string
	Err   error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import %s: %v", e.Stage, e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }

// cacheClearer invalidates derived aggregates after the ledger changed.
type cacheClearer interface {
	ClearCache(ctx context.Context) error
}

// Coordinator drives a whole spreadsheet import: content hashing and
// duplicate detection, optional replacement of the previous batch, item
// creation with generated codes, and opening balance entries recorded through
// the ledger so the stock projection stays derived.
type Coordinator struct {
	itemRepo  repository.ItemRepository
	entryRepo repository.EntryRepository
	batchRepo repository.BatchRepository
	hotelRepo repository.HotelRepository
	txManager repository.TransactionManager
	ledgerSvc *ledger.Service
	units     *unit.Registry
	caches    cacheClearer
	cfg       Config
	log       *logrus.Logger
}

func NewCoordinator(
	itemRepo repository.ItemRepository,
	entryRepo repository.EntryRepository,
	batchRepo repository.BatchRepository,
	hotelRepo repository.HotelRepository,
	txManager repository.TransactionManager,
	ledgerSvc *ledger.Service,
	units *unit.Registry,
	caches cacheClearer,
	cfg Config,
	log *logrus.Logger,
) *Coordinator {
	return &Coordinator{
		itemRepo:  itemRepo,
		entryRepo: entryRepo,
		batchRepo: batchRepo,
		hotelRepo: hotelRepo,
		txManager: txManager,
		ledgerSvc: ledgerSvc,
		units:     units,
		caches:    caches,
		cfg:       cfg.withDefaults(),
		log:       log,
	}
}

// Import runs one upload end to end. Everything that touches the database
// happens in a single transaction, so a failure mid-file leaves neither a
// half-imported batch nor a half-reverted predecessor.
func (c *Coordinator) Import(ctx context.Context, in Input) (*Result, error) {
	hashCtx, cancel := context.WithTimeout(ctx, c.cfg.HashTimeout)
	defer cancel()
	hash, content, size, err := hashAndBuffer(hashCtx, in.Reader, c.cfg.MaxFileSize)
	if err != nil {
		return nil, &ImportError{Stage: "hash", Err: err}
	}

	existing, err := c.batchRepo.FindActiveByHash(ctx, hash)
	if err != nil {
		return nil, &ImportError{Stage: "duplicate check", Err: err}
	}
	if existing != nil && !in.AllowReplace {
		return nil, &DuplicateImportError{ExistingBatchID: existing.ID, ImportedAt: existing.CreatedAt}
	}

	workbook, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, &ImportError{Stage: "open workbook", Err: err}
	}
	defer workbook.Close()

	aliases, err := c.hotelRepo.AliasMap(ctx)
	if err != nil {
		return nil, &ImportError{Stage: "sheet aliases", Err: err}
	}

	result := &Result{}
	err = c.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if existing != nil {
			if err := c.revertBatch(txCtx, existing); err != nil {
				return fmt.Errorf("revert batch %s: %w", existing.ID, err)
			}
			result.ReplacedBatchID = &existing.ID
		}

		batch := &model.ImportBatch{
			Filename:     in.Filename,
			FileHash:     hash,
			FileSize:     size,
			HotelID:      in.HotelID,
			UploadedByID: &in.UserID,
			IsActive:     true,
			Status:       model.BatchPending,
		}
		if existing != nil {
			batch.ReplacesBatchID = &existing.ID
		}
		if err := c.batchRepo.Create(txCtx, batch); err != nil {
			return fmt.Errorf("create batch: %w", err)
		}
		if existing != nil {
			if err := c.batchRepo.LinkReplacedBy(txCtx, existing.ID, batch.ID); err != nil {
				return err
			}
		}
		result.BatchID = batch.ID

		for _, sheet := range selectSheets(workbook.GetSheetList(), in.SelectedSheets) {
			if err := c.importSheet(txCtx, workbook, sheet, batch, in, aliases, result); err != nil {
				return fmt.Errorf("sheet %s: %w", sheet, err)
			}
		}

		batch.Status = model.BatchCompleted
		batch.ItemsCreated = result.ItemsCreated
		batch.ItemsUpdated = result.ItemsUpdated
		batch.EntriesCreated = result.EntriesCreated
		batch.ErrorsCount = len(result.RowErrors)
		if len(result.RowErrors) > 0 {
			details, err := json.Marshal(result.RowErrors)
			if err != nil {
				return err
			}
			batch.ErrorDetails = string(details)
		}
		return c.batchRepo.Update(txCtx, batch)
	})
	if err != nil {
		return nil, err
	}

	if c.caches != nil {
		if err := c.caches.ClearCache(ctx); err != nil {
			c.log.WithError(err).Warn("classification cache invalidation failed")
		}
	}

	c.log.WithFields(logrus.Fields{
		"batch_id":        result.BatchID,
		"filename":        in.Filename,
		"items_created":   result.ItemsCreated,
		"items_updated":   result.ItemsUpdated,
		"entries_created": result.EntriesCreated,
		"row_errors":      len(result.RowErrors),
		"replaced":        result.ReplacedBatchID != nil,
	}).Info("import completed")
	return result, nil
}

// revertBatch undoes a superseded batch: its entries are soft deleted, their
// per-item stock effect is reversed, and the batch frees its active slot so
// the successor can take it.
func (c *Coordinator) revertBatch(ctx context.Context, batch *model.ImportBatch) error {
	deltas, err := c.entryRepo.BatchStockDeltas(ctx, batch.ID)
	if err != nil {
		return err
	}
	if _, err := c.entryRepo.SoftDeleteByBatch(ctx, batch.ID, time.Now()); err != nil {
		return err
	}
	for itemID, delta := range deltas {
		if delta == 0 {
			continue
		}
		if err := c.itemRepo.IncrementStock(ctx, itemID, -delta); err != nil {
			return fmt.Errorf("reverse stock for item %s: %w", itemID, err)
		}
	}
	return c.batchRepo.Deactivate(ctx, batch.ID, time.Now())
}

func (c *Coordinator) importSheet(
	ctx context.Context,
	workbook *excelize.File,
	sheet string,
	batch *model.ImportBatch,
	in Input,
	aliases map[string]model.SheetAlias,
	result *Result,
) error {
	rows, err := workbook.GetRows(sheet)
	if err != nil {
		return err
	}

	headerIdx, cols := findHeader(rows)
	if headerIdx < 0 {
		result.RowErrors = append(result.RowErrors, RowError{
			Sheet:   sheet,
			Row:     0,
			Message: "no recognizable header row",
		})
		return nil
	}

	sheetCategory := DetectSheetCategory(sheet)
	hotelID := in.HotelID
	if alias, ok := aliases[strings.ToLower(strings.TrimSpace(sheet))]; ok {
		hotelID = &alias.HotelID
		if alias.Category != "" {
			sheetCategory = alias.Category
		}
	}

	for i := headerIdx + 1; i < len(rows); i++ {
		row := rows[i]
		rowNum := i + 1

		name := cellAt(row, cols.Name)
		if numparse.IsBlank(name) {
			continue
		}

		stockCell := cellAt(row, cols.Stock)
		stock := 0.0
		if !numparse.IsBlank(stockCell) {
			stock, err = numparse.ParseFloat(stockCell, false)
			if err != nil {
				result.RowErrors = append(result.RowErrors, RowError{
					Sheet:   sheet,
					Row:     rowNum,
					Message: fmt.Sprintf("unparseable stock %q: %v", stockCell, err),
				})
				continue
			}
		}

		// Prices on source documents are frequently text ("purchased by the
		// company"); those rows import with a zero price rather than failing.
		price := decimal.Zero
		if priceCell := cellAt(row, cols.Price); !numparse.IsBlank(priceCell) {
			if parsed, err := numparse.Parse(priceCell, false); err == nil {
				price = parsed.Round(2)
			}
		}

		category := sheetCategory
		if category == "" {
			category = DetectWarehouseCategory(cellAt(row, cols.Warehouse))
		}
		if category == "" {
			category = GuessCategory(name)
		}

		itemUnit := StandardizeUnit(cellAt(row, cols.Unit))

		item, created, err := c.findOrCreateItem(ctx, strings.TrimSpace(name), itemUnit, category, price, hotelID)
		if err != nil {
			result.RowErrors = append(result.RowErrors, RowError{
				Sheet:   sheet,
				Row:     rowNum,
				Message: fmt.Sprintf("item %q: %v", name, err),
			})
			continue
		}
		if created {
			result.ItemsCreated++
		} else {
			result.ItemsUpdated++
		}

		if stock <= 0 {
			continue
		}
		// The same item can appear on several sheets; only the first row with
		// stock contributes the opening balance.
		opened, err := c.entryRepo.HasOpeningForBatch(ctx, item.ID, batch.ID)
		if err != nil {
			return err
		}
		if opened {
			continue
		}
		openingPrice := decimal.Zero
		_, err = c.ledgerSvc.CreateEntry(ctx, ledger.EntryInput{
			ItemID:           item.ID,
			Kind:             model.KindAdjustment,
			Quantity:         stock,
			Direction:        1,
			Unit:             itemUnit,
			UnitPrice:        &openingPrice,
			HotelID:          hotelID,
			UserID:           in.UserID,
			Description:      fmt.Sprintf("opening balance from %s", in.Filename),
			Source:           model.SourceOpening,
			IsOpeningBalance: true,
			ImportBatchID:    &batch.ID,
		})
		if err != nil {
			result.RowErrors = append(result.RowErrors, RowError{
				Sheet:   sheet,
				Row:     rowNum,
				Message: fmt.Sprintf("opening balance for %q: %v", name, err),
			})
			continue
		}
		result.EntriesCreated++
	}
	return nil
}

// findOrCreateItem resolves a source row to an item. New items get a
// generated code (F prefix for Food, N for NonFood) and the row's price as
// their reference price; existing items only gain a price when they had none.
func (c *Coordinator) findOrCreateItem(
	ctx context.Context,
	name, itemUnit, category string,
	price decimal.Decimal,
	hotelID *uuid.UUID,
) (*model.Item, bool, error) {
	existing, err := c.itemRepo.FindByNameAndHotel(ctx, name, hotelID)
	if err == nil {
		if existing.UnitPrice.IsZero() && price.IsPositive() {
			existing.UnitPrice = price
			if err := c.itemRepo.Update(ctx, existing); err != nil {
				return nil, false, err
			}
		}
		return existing, false, nil
	}
	if !isNotFound(err) {
		return nil, false, err
	}

	code, err := c.nextItemCode(ctx, category)
	if err != nil {
		return nil, false, err
	}
	baseUnit := itemUnit
	if b, err := c.units.BaseUnit(itemUnit); err == nil {
		baseUnit = b
	}
	item := &model.Item{
		Code:      code,
		Name:      name,
		Category:  category,
		Unit:      itemUnit,
		BaseUnit:  baseUnit,
		HotelID:   hotelID,
		UnitPrice: price,
		IsActive:  true,
	}
	if err := c.itemRepo.Create(ctx, item); err != nil {
		return nil, false, err
	}
	return item, true, nil
}

var codeDigits = regexp.MustCompile(`\d+`)

func (c *Coordinator) nextItemCode(ctx context.Context, category string) (string, error) {
	prefix := "N"
	if category == model.CategoryFood {
		prefix = "F"
	}
	maxCode, err := c.itemRepo.MaxCodeForPrefix(ctx, prefix)
	if err != nil {
		return "", err
	}
	next := 1
	if m := codeDigits.FindString(maxCode); m != "" {
		n, err := strconv.Atoi(m)
		if err == nil {
			next = n + 1
		}
	}
	return fmt.Sprintf("%s%04d", prefix, next), nil
}

func selectSheets(all, selected []string) []string {
	if len(selected) == 0 {
		return all
	}
	want := make(map[string]bool, len(selected))
	for _, s := range selected {
		want[strings.ToLower(strings.TrimSpace(s))] = true
	}
	var out []string
	for _, s := range all {
		if want[strings.ToLower(s)] {
			out = append(out, s)
		}
	}
	return out
}

// findHeader locates the first row that exposes at least a name and a stock
// column. Sheets commonly carry title rows above the real header.
func findHeader(rows [][]string) (int, ColumnMap) {
	limit := len(rows)
	if limit > 10 {
		limit = 10
	}
	for i := 0; i < limit; i++ {
		cols := DetectColumns(rows[i])
		if cols.Name >= 0 && cols.Stock >= 0 {
			return i, cols
		}
	}
	return -1, ColumnMap{}
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
