package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"stockledger/internal/cache"
	"stockledger/internal/database"
	"stockledger/internal/importer"
	"stockledger/internal/ledger"
	"stockledger/internal/logging"
	"stockledger/internal/repository"
	"stockledger/internal/unit"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	file := flag.String("file", "", "Required: path to the .xlsx workbook")
	hotelID := flag.String("hotel-id", "", "Optional: hotel id (uuid) the import belongs to")
	userID := flag.String("user-id", "", "Required: user id (uuid) recorded on the batch")
	replace := flag.Bool("replace", false, "Replace a previously imported version of the same file")
	sheets := flag.String("sheets", "", "Optional: comma-separated sheet names, default all")
	flag.Parse()

	if strings.TrimSpace(*file) == "" {
		fmt.Fprintln(os.Stderr, "--file is required")
		os.Exit(1)
	}
	uploader, err := uuid.Parse(strings.TrimSpace(*userID))
	if err != nil {
		fmt.Fprintln(os.Stderr, "--user-id must be a valid uuid")
		os.Exit(1)
	}
	var hotel *uuid.UUID
	if strings.TrimSpace(*hotelID) != "" {
		id, err := uuid.Parse(strings.TrimSpace(*hotelID))
		if err != nil {
			fmt.Fprintln(os.Stderr, "--hotel-id must be a valid uuid")
			os.Exit(1)
		}
		hotel = &id
	}

	if err := godotenv.Load("configs/.env"); err != nil {
		fmt.Fprintln(os.Stderr, "no configs/.env file found, using environment")
	}
	log := logging.New(os.Getenv("LOG_LEVEL"))

	db, err := database.Connect(databaseDSN())
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}

	itemRepo := repository.NewItemRepository(db)
	entryRepo := repository.NewEntryRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	hotelRepo := repository.NewHotelRepository(db)
	txManager := repository.NewTransactionManager(db)

	units := unit.NewRegistry()
	projector := ledger.NewStockProjector(itemRepo, entryRepo, txManager, log)
	ledgerSvc := ledger.NewService(itemRepo, entryRepo, txManager, projector, units, ledger.Config{}, log)
	classifier := ledger.NewClassificationEngine(entryRepo, resultCache(), log)

	coordinator := importer.NewCoordinator(
		itemRepo, entryRepo, batchRepo, hotelRepo, txManager,
		ledgerSvc, units, classifier, importer.Config{}, log,
	)

	f, err := os.Open(*file)
	if err != nil {
		log.WithError(err).Fatal("cannot open workbook")
	}
	defer f.Close()

	in := importer.Input{
		Reader:       f,
		Filename:     *file,
		HotelID:      hotel,
		UserID:       uploader,
		AllowReplace: *replace,
	}
	if strings.TrimSpace(*sheets) != "" {
		in.SelectedSheets = strings.Split(*sheets, ",")
	}

	result, err := coordinator.Import(context.Background(), in)
	if err != nil {
		var dup *importer.DuplicateImportError
		if errors.As(err, &dup) {
			fmt.Fprintf(os.Stderr, "duplicate file, already imported as batch %s (use --replace to supersede it)\n", dup.ExistingBatchID)
			os.Exit(2)
		}
		log.WithError(err).Fatal("import failed")
	}

	fmt.Printf("batch %s: %d items created, %d updated, %d entries, %d row errors\n",
		result.BatchID, result.ItemsCreated, result.ItemsUpdated, result.EntriesCreated, len(result.RowErrors))
	for _, re := range result.RowErrors {
		fmt.Printf("  %s row %d: %s\n", re.Sheet, re.Row, re.Message)
	}
	if result.ReplacedBatchID != nil {
		fmt.Printf("replaced batch %s\n", *result.ReplacedBatchID)
	}
}

// resultCache prefers a shared redis when one is configured, so cache
// invalidation after an import reaches every worker.
func resultCache() cache.Cache {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return cache.NewMemory(0)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	return cache.NewRedis(client, "stockledger")
}

func databaseDSN() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}
	host := envOr("DB_HOST", "localhost")
	port := envOr("DB_PORT", "5432")
	user := envOr("DB_USER", "postgres")
	password := envOr("DB_PASSWORD", "postgres")
	name := envOr("DB_NAME", "stockledger")
	sslMode := envOr("DB_SSLMODE", "disable")
	return "postgres://" + user + ":" + password + "@" + host + ":" + port + "/" + name + "?sslmode=" + sslMode
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
