package storage

import (
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raine/kasko-bot/internal/vehicle"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// PriceImport describes a committed reference table import.
type PriceImport struct {
	ID         string
	EntryCount int
	ImportedAt time.Time
}

// SQLiteStore persists the reference price table and the vision cache.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (and creates if needed) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Configure SQLite with WAL mode and busy timeout for better concurrency
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}

	// Set file permissions (only works once the file exists)
	if err := os.Chmod(dbPath, 0600); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("dbPath", dbPath).Msg("failed to set database permissions")
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	pricesQuery := `
	CREATE TABLE IF NOT EXISTS reference_prices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id TEXT NOT NULL,
		brand_code TEXT NOT NULL,
		type_code TEXT NOT NULL,
		brand_name TEXT NOT NULL,
		type_name TEXT NOT NULL,
		year INTEGER NOT NULL,
		price REAL NOT NULL
	);
	`
	if _, err := s.db.Exec(pricesQuery); err != nil {
		return fmt.Errorf("failed to create reference_prices table: %w", err)
	}

	importsQuery := `
	CREATE TABLE IF NOT EXISTS price_imports (
		id TEXT PRIMARY KEY,
		entry_count INTEGER NOT NULL,
		imported_at DATETIME NOT NULL
	);
	`
	if _, err := s.db.Exec(importsQuery); err != nil {
		return fmt.Errorf("failed to create price_imports table: %w", err)
	}

	visionCacheQuery := `
	CREATE TABLE IF NOT EXISTS vision_cache (
		image_hash TEXT PRIMARY KEY,
		make TEXT NOT NULL,
		model TEXT NOT NULL,
		year INTEGER NOT NULL,
		fuel_type TEXT,
		chassis_last4 TEXT,
		estimated_min REAL NOT NULL,
		estimated_max REAL NOT NULL,
		confidence REAL NOT NULL,
		description TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := s.db.Exec(visionCacheQuery); err != nil {
		return fmt.Errorf("failed to create vision_cache table: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ReplacePrices replaces the whole reference table in a single transaction.
// Readers never see a partially written table.
func (s *SQLiteStore) ReplacePrices(entries []vehicle.PriceEntry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batchID := uuid.New().String()

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM reference_prices"); err != nil {
		return "", fmt.Errorf("failed to clear reference prices: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO reference_prices (batch_id, brand_code, type_code, brand_name, type_name, year, price)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(batchID, e.BrandCode, e.TypeCode, e.BrandName, e.TypeName, e.Year, e.Price); err != nil {
			return "", fmt.Errorf("failed to insert reference price: %w", err)
		}
	}

	if _, err := tx.Exec(
		"INSERT INTO price_imports (id, entry_count, imported_at) VALUES (?, ?, ?)",
		batchID, len(entries), time.Now().UTC(),
	); err != nil {
		return "", fmt.Errorf("failed to record import: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit reference prices: %w", err)
	}

	return batchID, nil
}

// LoadPrices returns all stored reference entries.
func (s *SQLiteStore) LoadPrices() ([]vehicle.PriceEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT brand_code, type_code, brand_name, type_name, year, price
		FROM reference_prices ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query reference prices: %w", err)
	}
	defer rows.Close()

	var entries []vehicle.PriceEntry
	for rows.Next() {
		var e vehicle.PriceEntry
		if err := rows.Scan(&e.BrandCode, &e.TypeCode, &e.BrandName, &e.TypeName, &e.Year, &e.Price); err != nil {
			return nil, fmt.Errorf("failed to scan reference price: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// LastImport returns the most recent import, or nil if there has been none.
func (s *SQLiteStore) LastImport() (*PriceImport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var imp PriceImport
	err := s.db.QueryRow(
		"SELECT id, entry_count, imported_at FROM price_imports ORDER BY imported_at DESC LIMIT 1",
	).Scan(&imp.ID, &imp.EntryCount, &imp.ImportedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last import: %w", err)
	}

	return &imp, nil
}

// GetVisionCache retrieves cached attributes by image hash.
// Returns nil, nil if no cache entry exists.
func (s *SQLiteStore) GetVisionCache(imageHash string) (*vehicle.Attributes, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var attrs vehicle.Attributes
	var fuelType, chassis, description sql.NullString
	err := s.db.QueryRow(`
		SELECT make, model, year, fuel_type, chassis_last4, estimated_min, estimated_max, confidence, description
		FROM vision_cache WHERE image_hash = ?
	`, imageHash).Scan(
		&attrs.Make, &attrs.Model, &attrs.Year, &fuelType, &chassis,
		&attrs.EstimatedValueMin, &attrs.EstimatedValueMax, &attrs.ConfidenceScore, &description,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query vision cache: %w", err)
	}

	attrs.FuelType = fuelType.String
	attrs.ChassisLast4 = chassis.String
	attrs.Description = description.String

	return &attrs, nil
}

// SetVisionCache stores validated attributes for an image hash.
func (s *SQLiteStore) SetVisionCache(imageHash string, attrs *vehicle.Attributes) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO vision_cache (image_hash, make, model, year, fuel_type, chassis_last4, estimated_min, estimated_max, confidence, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(image_hash) DO UPDATE SET
			make = excluded.make,
			model = excluded.model,
			year = excluded.year,
			fuel_type = excluded.fuel_type,
			chassis_last4 = excluded.chassis_last4,
			estimated_min = excluded.estimated_min,
			estimated_max = excluded.estimated_max,
			confidence = excluded.confidence,
			description = excluded.description,
			created_at = CURRENT_TIMESTAMP
	`, imageHash, attrs.Make, attrs.Model, attrs.Year, attrs.FuelType, attrs.ChassisLast4,
		attrs.EstimatedValueMin, attrs.EstimatedValueMax, attrs.ConfidenceScore, attrs.Description)

	if err != nil {
		return fmt.Errorf("failed to cache vision result: %w", err)
	}
	return nil
}

// PruneVisionCache deletes cache entries older than maxAge and returns the
// number of removed rows.
func (s *SQLiteStore) PruneVisionCache(maxAge time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxAge).UTC().Format("2006-01-02 15:04:05")
	res, err := s.db.Exec("DELETE FROM vision_cache WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune vision cache: %w", err)
	}
	return res.RowsAffected()
}
