package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/raine/kasko-bot/config"
	"github.com/raine/kasko-bot/internal/pricing"
	"github.com/raine/kasko-bot/internal/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <xlsx-path> [db-path]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nThe database defaults to KASKO_DB_PATH or %s.\n", config.DefaultDBPath)
		os.Exit(1)
	}

	config.LoadEnvFile()

	dbPath := os.Getenv("KASKO_DB_PATH")
	if len(os.Args) >= 3 {
		dbPath = os.Args[2]
	}
	if dbPath == "" {
		dbPath = config.DefaultDBPath
	}

	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read workbook")
	}

	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer store.Close()

	importer := pricing.NewImporter(pricing.NewCatalog(nil), store)
	summary, err := importer.ImportXLSX(data)
	if err != nil {
		var importErr *pricing.ImportError
		if errors.As(err, &importErr) {
			fmt.Fprintf(os.Stderr, "Import rejected: %v\n", importErr)
		} else {
			fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		}
		store.Close()
		os.Exit(1)
	}

	fmt.Printf("Batch:    %s\n", summary.BatchID)
	fmt.Printf("Entries:  %d (%d rows)\n", summary.Entries, summary.Rows)
	fmt.Printf("Brands:   %d\n", summary.Stats.Brands)
	fmt.Printf("Years:    %d-%d\n", summary.Stats.MinYear, summary.Stats.MaxYear)
	if summary.Wide {
		fmt.Printf("Layout:   wide (%d blank cells skipped)\n", summary.BlankCells)
	}
	fmt.Printf("Database: %s\n", dbPath)
}
