package ledger_test

import (
	"context"
	"io"
	"testing"

	"stockledger/internal/cache"
	"stockledger/internal/database"
	"stockledger/internal/ledger"
	"stockledger/internal/model"
	"stockledger/internal/repository"
	"stockledger/internal/unit"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testEnv struct {
	db         *gorm.DB
	items      repository.ItemRepository
	entries    repository.EntryRepository
	tx         repository.TransactionManager
	projector  *ledger.StockProjector
	svc        *ledger.Service
	classifier *ledger.ClassificationEngine
}

// newTestEnv wires the ledger stack against an in-memory sqlite database.
// The pool is pinned to one connection so concurrent goroutines serialize on
// it instead of racing separate in-memory databases.
func newTestEnv(t *testing.T, cfg ledger.Config) *testEnv {
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
	tx := repository.NewTransactionManager(db)
	projector := ledger.NewStockProjector(items, entries, tx, log)
	svc := ledger.NewService(items, entries, tx, projector, unit.NewRegistry(), cfg, log)
	classifier := ledger.NewClassificationEngine(entries, cache.NewMemory(16), log)

	return &testEnv{
		db:         db,
		items:      items,
		entries:    entries,
		tx:         tx,
		projector:  projector,
		svc:        svc,
		classifier: classifier,
	}
}

func createTestItem(t *testing.T, env *testEnv, code, baseUnit string, price float64) *model.Item {
	t.Helper()
	item := &model.Item{
		Code:      code,
		Name:      "item " + code,
		Category:  model.CategoryFood,
		Unit:      baseUnit,
		BaseUnit:  baseUnit,
		UnitPrice: decimal.NewFromFloat(price),
		IsActive:  true,
	}
	if err := env.items.Create(context.Background(), item); err != nil {
		t.Fatalf("create item %s: %v", code, err)
	}
	return item
}

func currentStock(t *testing.T, env *testEnv, item *model.Item) float64 {
	t.Helper()
	fresh, err := env.items.FindByID(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("reload item: %v", err)
	}
	return fresh.CurrentStock
}
