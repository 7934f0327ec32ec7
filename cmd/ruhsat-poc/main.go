package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/raine/kasko-bot/config"
	"github.com/raine/kasko-bot/internal/llm"
	"github.com/raine/kasko-bot/internal/pricing"
	"github.com/raine/kasko-bot/internal/storage"
	"github.com/raine/kasko-bot/internal/vehicle"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <image-path> [db-path]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment variables:\n")
		fmt.Fprintf(os.Stderr, "  GEMINI_API_KEY - Required\n")
		fmt.Fprintf(os.Stderr, "  GEMINI_MODEL   - Optional, defaults to %s\n", llm.DefaultGeminiModel)
		fmt.Fprintf(os.Stderr, "\nWith a db-path the result is also matched against the stored price list.\n")
		os.Exit(1)
	}

	config.LoadEnvFile()

	imagePath := os.Args[1]
	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read image: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	extractor, err := llm.NewGeminiExtractor(ctx, os.Getenv("GEMINI_API_KEY"), os.Getenv("GEMINI_MODEL"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating Gemini extractor: %v\n", err)
		os.Exit(1)
	}

	result, err := extractor.Extract(ctx, imageData, getMimeType(imagePath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error extracting attributes: %v\n", err)
		os.Exit(1)
	}

	var out any = result.Attributes
	if len(os.Args) >= 3 {
		rec, err := lookup(os.Args[2], *result.Attributes)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error matching price list: %v\n", err)
			os.Exit(1)
		}
		out = rec
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding result: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Tokens: %d in / %d out / %d total, cost $%.6f\n",
		result.Usage.InputTokens, result.Usage.OutputTokens, result.Usage.TotalTokens, result.Usage.CostUSD)
}

func lookup(dbPath string, attrs vehicle.Attributes) (vehicle.Record, error) {
	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		return vehicle.Record{}, err
	}
	defer store.Close()

	catalog := pricing.NewCatalog(nil)
	if err := pricing.NewImporter(catalog, store).Load(); err != nil {
		return vehicle.Record{}, err
	}
	return vehicle.Resolve(attrs, catalog.Lookup(attrs.Make, attrs.Model, attrs.Year)), nil
}

func getMimeType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	default:
		return "image/jpeg"
	}
}
