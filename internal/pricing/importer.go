package pricing

import (
	"fmt"
	"sync"
	"time"

	"github.com/raine/kasko-bot/internal/vehicle"
	"github.com/rs/zerolog/log"
)

// PriceStore persists the reference table between restarts.
type PriceStore interface {
	// ReplacePrices replaces all stored entries in one transaction and
	// returns an identifier for the import batch.
	ReplacePrices(entries []vehicle.PriceEntry) (string, error)
	LoadPrices() ([]vehicle.PriceEntry, error)
}

// ImportSummary describes a committed import.
type ImportSummary struct {
	BatchID    string
	Entries    int
	Rows       int
	BlankCells int
	Wide       bool
	Stats      Stats
}

// Importer validates uploaded price lists, persists them and swaps them
// into the catalog. An import either fully replaces the active table or
// leaves it untouched.
type Importer struct {
	catalog *Catalog
	store   PriceStore // May be nil for in-memory use
	now     func() time.Time
	mu      sync.Mutex // Serializes imports so store and catalog agree
}

// NewImporter creates an importer for the catalog.
func NewImporter(catalog *Catalog, store PriceStore) *Importer {
	return &Importer{catalog: catalog, store: store, now: time.Now}
}

// Load replaces the catalog table with the persisted entries.
func (im *Importer) Load() error {
	if im.store == nil {
		return nil
	}
	im.mu.Lock()
	defer im.mu.Unlock()

	entries, err := im.store.LoadPrices()
	if err != nil {
		return fmt.Errorf("failed to load reference prices: %w", err)
	}
	im.catalog.Replace(NewTable(entries))
	log.Info().Int("entries", len(entries)).Msg("reference price table loaded")
	return nil
}

// ImportXLSX imports the first sheet of an xlsx workbook.
func (im *Importer) ImportXLSX(data []byte) (*ImportSummary, error) {
	rows, err := ReadXLSX(data)
	if err != nil {
		return nil, &ImportError{Reason: err.Error()}
	}
	return im.ImportRows(rows)
}

// ImportRows imports already decoded spreadsheet rows.
func (im *Importer) ImportRows(rows [][]string) (*ImportSummary, error) {
	entries, parseStats, err := ParseRows(rows, im.now())
	if err != nil {
		log.Warn().Err(err).Msg("reference price import rejected")
		return nil, err
	}

	im.mu.Lock()
	defer im.mu.Unlock()

	var batchID string
	if im.store != nil {
		batchID, err = im.store.ReplacePrices(entries)
		if err != nil {
			return nil, fmt.Errorf("failed to store reference prices: %w", err)
		}
	}

	table := NewTable(entries)
	im.catalog.Replace(table)

	summary := &ImportSummary{
		BatchID:    batchID,
		Entries:    len(entries),
		Rows:       parseStats.Rows,
		BlankCells: parseStats.BlankCells,
		Wide:       parseStats.Wide,
		Stats:      table.Stats(),
	}

	log.Info().
		Str("batchID", batchID).
		Int("entries", summary.Entries).
		Int("rows", summary.Rows).
		Bool("wide", summary.Wide).
		Msg("reference price table replaced")

	return summary, nil
}
