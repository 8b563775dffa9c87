package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"stockledger/internal/database"
	"stockledger/internal/ledger"
	"stockledger/internal/logging"
	"stockledger/internal/repository"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	itemID := flag.String("item-id", "", "Optional: rebuild a single item (uuid), default all active items")
	repair := flag.Bool("repair", false, "Overwrite mismatched stock values with the ledger sum")
	flag.Parse()

	var target *uuid.UUID
	if strings.TrimSpace(*itemID) != "" {
		id, err := uuid.Parse(strings.TrimSpace(*itemID))
		if err != nil {
			fmt.Fprintln(os.Stderr, "--item-id must be a valid uuid")
			os.Exit(1)
		}
		target = &id
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
	txManager := repository.NewTransactionManager(db)
	projector := ledger.NewStockProjector(itemRepo, entryRepo, txManager, log)

	report, err := projector.Rebuild(context.Background(), target, *repair)
	if err != nil {
		log.WithError(err).Fatal("rebuild failed")
	}

	fmt.Printf("%d items checked, %d mismatches, %d repaired\n",
		report.ItemsChecked, len(report.Mismatches), report.Repaired)
	for _, m := range report.Mismatches {
		fmt.Printf("  %s (%s): stored %.3f, calculated %.3f, diff %.3f\n",
			m.ItemCode, m.ItemName, m.Stored, m.Calculated, m.Diff)
	}
	if len(report.Mismatches) > 0 && !*repair {
		fmt.Println("run again with --repair to fix")
	}
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
