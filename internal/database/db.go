package database

import (
	"fmt"

	"stockledger/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Connect opens a postgres connection pool and migrates the schema.
func Connect(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates the schema plus the partial unique index guarding the
// import idempotency invariant. AutoMigrate cannot express partial indexes,
// so that one is raw SQL; the statement is valid on postgres and sqlite
// alike, which keeps test databases identical in behavior.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.Hotel{},
		&model.SheetAlias{},
		&model.Item{},
		&model.LedgerEntry{},
		&model.ImportBatch{},
	)
	if err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}

	// At most one ACTIVE import batch per content hash. Historical
	// (replaced/failed) batches may share a hash freely.
	err = db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_import_batches_active_hash
		 ON import_batches (file_hash) WHERE is_active`,
	).Error
	if err != nil {
		return fmt.Errorf("failed to create active-hash index: %w", err)
	}

	return nil
}
