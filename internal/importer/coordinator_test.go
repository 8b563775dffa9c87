package importer_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"stockledger/internal/cache"
	"stockledger/internal/database"
	"stockledger/internal/importer"
	"stockledger/internal/ledger"
	"stockledger/internal/model"
	"stockledger/internal/repository"
	"stockledger/internal/unit"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type importEnv struct {
	db          *gorm.DB
	items       repository.ItemRepository
	entries     repository.EntryRepository
	batches     repository.BatchRepository
	hotels      repository.HotelRepository
	tx          repository.TransactionManager
	svc         *ledger.Service
	units       *unit.Registry
	log         *logrus.Logger
	coordinator *importer.Coordinator
}

func newImportEnv(t *testing.T, cfg importer.Config) *importEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	items := repository.NewItemRepository(db)
	entries := repository.NewEntryRepository(db)
	batches := repository.NewBatchRepository(db)
	hotels := repository.NewHotelRepository(db)
	tx := repository.NewTransactionManager(db)
	units := unit.NewRegistry()
	projector := ledger.NewStockProjector(items, entries, tx, log)
	svc := ledger.NewService(items, entries, tx, projector, units, ledger.Config{}, log)
	classifier := ledger.NewClassificationEngine(entries, cache.NewMemory(16), log)

	return &importEnv{
		db:      db,
		items:   items,
		entries: entries,
		batches: batches,
		hotels:  hotels,
		tx:      tx,
		svc:     svc,
		units:   units,
		log:     log,
		coordinator: importer.NewCoordinator(
			items, entries, batches, hotels, tx, svc, units, classifier, cfg, log,
		),
	}
}

// buildWorkbook assembles an xlsx with one sheet from raw cell rows.
func buildWorkbook(t *testing.T, sheet string, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		t.Fatalf("rename sheet: %v", err)
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			t.Fatalf("set row %d: %v", i+1, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func inventoryWorkbook(t *testing.T) []byte {
	return buildWorkbook(t, "Food", [][]interface{}{
		{"Item Name", "Unit", "Stock", "Price"},
		{"برنج", "کیلو", "100", "25,000"},
		{"روغن", "لیتر", "۴۰", "18000"},
		{"napkin", "pack", "0", "500"},
	})
}

func runImport(t *testing.T, env *importEnv, content []byte, replace bool) *importer.Result {
	t.Helper()
	result, err := env.coordinator.Import(context.Background(), importer.Input{
		Reader:       bytes.NewReader(content),
		Filename:     "inventory.xlsx",
		UserID:       uuid.New(),
		AllowReplace: replace,
	})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	return result
}

func TestImportCreatesItemsAndOpeningBalances(t *testing.T) {
	env := newImportEnv(t, importer.Config{})
	ctx := context.Background()

	result := runImport(t, env, inventoryWorkbook(t), false)

	if result.ItemsCreated != 3 {
		t.Errorf("items created = %d, want 3", result.ItemsCreated)
	}
	// The zero-stock row yields an item but no opening entry.
	if result.EntriesCreated != 2 {
		t.Errorf("entries created = %d, want 2", result.EntriesCreated)
	}
	if len(result.RowErrors) != 0 {
		t.Errorf("row errors = %v, want none", result.RowErrors)
	}

	rice, err := env.items.FindByNameAndHotel(ctx, "برنج", nil)
	if err != nil {
		t.Fatalf("find rice: %v", err)
	}
	if rice.CurrentStock != 100 {
		t.Errorf("rice stock = %v, want 100", rice.CurrentStock)
	}
	if rice.Category != model.CategoryFood {
		t.Errorf("rice category = %s, want Food (sheet named Food)", rice.Category)
	}
	if rice.Code[0] != 'F' {
		t.Errorf("rice code = %s, want F prefix", rice.Code)
	}
	if rice.Unit != "کیلوگرم" {
		t.Errorf("rice unit = %q, want standardized کیلوگرم", rice.Unit)
	}
	if want := "25000"; rice.UnitPrice.String() != want {
		t.Errorf("rice price = %s, want %s", rice.UnitPrice, want)
	}

	// The projection must equal the ledger sum right after an import.
	sum, err := env.entries.SumSignedByItem(ctx, rice.ID)
	if err != nil {
		t.Fatalf("SumSignedByItem failed: %v", err)
	}
	if sum != rice.CurrentStock {
		t.Errorf("ledger sum %v != stock %v", sum, rice.CurrentStock)
	}

	batch, err := env.batches.FindByID(ctx, result.BatchID)
	if err != nil {
		t.Fatalf("find batch: %v", err)
	}
	if batch.Status != model.BatchCompleted || !batch.IsActive {
		t.Errorf("batch status=%s active=%v, want completed and active", batch.Status, batch.IsActive)
	}
}

func TestImportDuplicateRejected(t *testing.T) {
	env := newImportEnv(t, importer.Config{})
	content := inventoryWorkbook(t)

	first := runImport(t, env, content, false)

	_, err := env.coordinator.Import(context.Background(), importer.Input{
		Reader:   bytes.NewReader(content),
		Filename: "inventory.xlsx",
		UserID:   uuid.New(),
	})
	var dup *importer.DuplicateImportError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateImportError, got %v", err)
	}
	if dup.ExistingBatchID != first.BatchID {
		t.Errorf("duplicate points at batch %s, want %s", dup.ExistingBatchID, first.BatchID)
	}

	// The rejection must leave stock untouched.
	rice, err := env.items.FindByNameAndHotel(context.Background(), "برنج", nil)
	if err != nil {
		t.Fatalf("find rice: %v", err)
	}
	if rice.CurrentStock != 100 {
		t.Errorf("rice stock = %v, want 100 after rejected duplicate", rice.CurrentStock)
	}
}

func TestImportReplaceSupersedesBatch(t *testing.T) {
	env := newImportEnv(t, importer.Config{})
	ctx := context.Background()
	content := inventoryWorkbook(t)

	first := runImport(t, env, content, false)
	second := runImport(t, env, content, true)

	if second.ReplacedBatchID == nil || *second.ReplacedBatchID != first.BatchID {
		t.Fatalf("replaced batch = %v, want %s", second.ReplacedBatchID, first.BatchID)
	}
	if second.ItemsCreated != 0 || second.ItemsUpdated != 3 {
		t.Errorf("items created/updated = %d/%d, want 0/3", second.ItemsCreated, second.ItemsUpdated)
	}

	// Stock reflects only the replacement batch, not both.
	rice, err := env.items.FindByNameAndHotel(ctx, "برنج", nil)
	if err != nil {
		t.Fatalf("find rice: %v", err)
	}
	if rice.CurrentStock != 100 {
		t.Errorf("rice stock = %v, want 100 (replacement must revert the old batch)", rice.CurrentStock)
	}

	old, err := env.batches.FindByID(ctx, first.BatchID)
	if err != nil {
		t.Fatalf("find old batch: %v", err)
	}
	if old.IsActive || old.Status != model.BatchReplaced {
		t.Errorf("old batch active=%v status=%s, want replaced and inactive", old.IsActive, old.Status)
	}
	if old.ReplacedByID == nil || *old.ReplacedByID != second.BatchID {
		t.Errorf("old batch replaced_by = %v, want %s", old.ReplacedByID, second.BatchID)
	}

	// The old batch's entries are soft deleted.
	oldEntries, err := env.entries.ListByBatch(ctx, first.BatchID)
	if err != nil {
		t.Fatalf("list old entries: %v", err)
	}
	for _, e := range oldEntries {
		if !e.IsDeleted {
			t.Errorf("entry %s of the replaced batch is still live", e.ID)
		}
	}

	// A third upload of the same content is again a duplicate of the new
	// active batch.
	_, err = env.coordinator.Import(ctx, importer.Input{
		Reader:   bytes.NewReader(content),
		Filename: "inventory.xlsx",
		UserID:   uuid.New(),
	})
	var dup *importer.DuplicateImportError
	if !errors.As(err, &dup) || dup.ExistingBatchID != second.BatchID {
		t.Errorf("expected duplicate of batch %s, got %v", second.BatchID, err)
	}
}

// finalizeFailingBatchRepo simulates the database dropping out on the final
// batch write, after every row of the file has already been processed.
type finalizeFailingBatchRepo struct {
	repository.BatchRepository
}

func (r *finalizeFailingBatchRepo) Update(ctx context.Context, batch *model.ImportBatch) error {
	return errors.New("database connection lost")
}

func TestImportFailureRollsBackEverything(t *testing.T) {
	env := newImportEnv(t, importer.Config{})
	ctx := context.Background()
	content := inventoryWorkbook(t)

	first := runImport(t, env, content, false)

	rice, err := env.items.FindByNameAndHotel(ctx, "برنج", nil)
	if err != nil {
		t.Fatalf("find rice: %v", err)
	}
	if rice.CurrentStock != 100 {
		t.Fatalf("rice stock = %v, want 100 before the failed replace", rice.CurrentStock)
	}

	broken := importer.NewCoordinator(
		env.items, env.entries, &finalizeFailingBatchRepo{env.batches}, env.hotels,
		env.tx, env.svc, env.units, nil, importer.Config{}, env.log,
	)
	_, err = broken.Import(ctx, importer.Input{
		Reader:       bytes.NewReader(content),
		Filename:     "inventory.xlsx",
		UserID:       uuid.New(),
		AllowReplace: true,
	})
	if err == nil {
		t.Fatal("expected the replace import to fail")
	}

	// The failed attempt had already reverted the old batch and written new
	// entries inside its transaction; none of that may survive the rollback.
	rice, err = env.items.FindByNameAndHotel(ctx, "برنج", nil)
	if err != nil {
		t.Fatalf("find rice after failure: %v", err)
	}
	if rice.CurrentStock != 100 {
		t.Errorf("rice stock = %v, want 100 after rollback", rice.CurrentStock)
	}
	sum, err := env.entries.SumSignedByItem(ctx, rice.ID)
	if err != nil {
		t.Fatalf("SumSignedByItem failed: %v", err)
	}
	if sum != rice.CurrentStock {
		t.Errorf("ledger sum %v != stock %v after rollback", sum, rice.CurrentStock)
	}

	old, err := env.batches.FindByID(ctx, first.BatchID)
	if err != nil {
		t.Fatalf("find old batch: %v", err)
	}
	if !old.IsActive || old.Status != model.BatchCompleted {
		t.Errorf("old batch active=%v status=%s, want active and completed", old.IsActive, old.Status)
	}
	oldEntries, err := env.entries.ListByBatch(ctx, first.BatchID)
	if err != nil {
		t.Fatalf("list old entries: %v", err)
	}
	for _, e := range oldEntries {
		if e.IsDeleted {
			t.Errorf("entry %s of the surviving batch was left soft deleted", e.ID)
		}
	}

	var batchCount int64
	if err := env.db.Model(&model.ImportBatch{}).Count(&batchCount).Error; err != nil {
		t.Fatalf("count batches: %v", err)
	}
	if batchCount != 1 {
		t.Errorf("batch count = %d, want 1 (failed batch must not persist)", batchCount)
	}
}

func TestImportCollectsRowErrors(t *testing.T) {
	env := newImportEnv(t, importer.Config{})

	content := buildWorkbook(t, "Food", [][]interface{}{
		{"Item Name", "Unit", "Stock", "Price"},
		{"برنج", "kg", "100", "25000"},
		{"شکر", "kg", "12.3.4", "9000"},
		{"چای", "kg", "50", "40000"},
	})
	result := runImport(t, env, content, false)

	if result.ItemsCreated != 2 {
		t.Errorf("items created = %d, want 2 (bad row skipped)", result.ItemsCreated)
	}
	if len(result.RowErrors) != 1 {
		t.Fatalf("row errors = %d, want 1", len(result.RowErrors))
	}
	re := result.RowErrors[0]
	if re.Sheet != "Food" || re.Row != 3 {
		t.Errorf("row error at %s:%d, want Food:3", re.Sheet, re.Row)
	}

	batch, err := env.batches.FindByID(context.Background(), result.BatchID)
	if err != nil {
		t.Fatalf("find batch: %v", err)
	}
	if batch.ErrorsCount != 1 || batch.ErrorDetails == "" {
		t.Errorf("batch errors=%d details=%q, want the row error persisted", batch.ErrorsCount, batch.ErrorDetails)
	}
}

func TestImportSheetAliasOverridesHotelAndCategory(t *testing.T) {
	env := newImportEnv(t, importer.Config{})
	ctx := context.Background()

	hotel := &model.Hotel{Name: "North Wing"}
	if err := env.hotels.Create(ctx, hotel); err != nil {
		t.Fatalf("create hotel: %v", err)
	}
	err := env.hotels.CreateAlias(ctx, &model.SheetAlias{
		SheetName: "Storeroom 2",
		HotelID:   hotel.ID,
		Category:  model.CategoryNonFood,
	})
	if err != nil {
		t.Fatalf("create alias: %v", err)
	}

	content := buildWorkbook(t, "Storeroom 2", [][]interface{}{
		{"Item Name", "Unit", "Stock", "Price"},
		{"detergent", "bottle", "30", "1200"},
	})
	runImport(t, env, content, false)

	item, err := env.items.FindByNameAndHotel(ctx, "detergent", nil)
	if err != nil {
		t.Fatalf("find item: %v", err)
	}
	if item.HotelID == nil || *item.HotelID != hotel.ID {
		t.Errorf("item hotel = %v, want %s from the sheet alias", item.HotelID, hotel.ID)
	}
	if item.Category != model.CategoryNonFood {
		t.Errorf("item category = %s, want NonFood from the sheet alias", item.Category)
	}
	if item.Code[0] != 'N' {
		t.Errorf("item code = %s, want N prefix", item.Code)
	}
}

func TestImportSkipsTitleRowsAboveHeader(t *testing.T) {
	env := newImportEnv(t, importer.Config{})

	content := buildWorkbook(t, "Food", [][]interface{}{
		{"Hotel inventory count"},
		{},
		{"Item Name", "Unit", "Stock", "Price"},
		{"برنج", "kg", "10", "100"},
	})
	result := runImport(t, env, content, false)

	if result.ItemsCreated != 1 || result.EntriesCreated != 1 {
		t.Errorf("created %d items / %d entries, want 1/1", result.ItemsCreated, result.EntriesCreated)
	}
}

func TestImportFileTooLarge(t *testing.T) {
	env := newImportEnv(t, importer.Config{MaxFileSize: 16})

	_, err := env.coordinator.Import(context.Background(), importer.Input{
		Reader:   bytes.NewReader(inventoryWorkbook(t)),
		Filename: "inventory.xlsx",
		UserID:   uuid.New(),
	})
	var tooLarge *importer.FileTooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("expected FileTooLargeError, got %v", err)
	}
	if tooLarge.Limit != 16 {
		t.Errorf("error limit = %d, want 16", tooLarge.Limit)
	}
}

// slowReader stalls on every read so the hashing deadline fires mid-stream.
type slowReader struct {
	r     io.Reader
	delay time.Duration
}

func (s *slowReader) Read(p []byte) (int, error) {
	time.Sleep(s.delay)
	if len(p) > 64 {
		p = p[:64]
	}
	return s.r.Read(p)
}

func TestImportHashTimeout(t *testing.T) {
	env := newImportEnv(t, importer.Config{HashTimeout: 20 * time.Millisecond})

	_, err := env.coordinator.Import(context.Background(), importer.Input{
		Reader:   &slowReader{r: bytes.NewReader(inventoryWorkbook(t)), delay: 15 * time.Millisecond},
		Filename: "inventory.xlsx",
		UserID:   uuid.New(),
	})
	if !errors.Is(err, importer.ErrHashTimeout) {
		t.Fatalf("expected ErrHashTimeout, got %v", err)
	}
}
