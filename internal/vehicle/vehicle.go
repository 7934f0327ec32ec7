package vehicle

import (
	"fmt"
	"time"
)

// MinYear is the oldest model year accepted anywhere in the pipeline.
const MinYear = 1900

// MaxYear returns the newest plausible model year at the given time.
// Next year's models are sold from autumn onwards.
func MaxYear(now time.Time) int {
	return now.Year() + 1
}

// PlausibleYear reports whether year is within MinYear..MaxYear(now).
func PlausibleYear(year int, now time.Time) bool {
	return year >= MinYear && year <= MaxYear(now)
}

// Attributes contains the validated vehicle data read from a registration
// document photo.
type Attributes struct {
	Make              string  `json:"make"`
	Model             string  `json:"model"`
	Year              int     `json:"year"`
	FuelType          string  `json:"fuelType"`
	ChassisLast4      string  `json:"chassisLast4,omitempty"` // Empty if not readable
	EstimatedValueMin float64 `json:"estimatedValueMin"`
	EstimatedValueMax float64 `json:"estimatedValueMax"`
	ConfidenceScore   float64 `json:"confidenceScore"` // Always within [0,1]
	Description       string  `json:"description"`
}

// PriceEntry is a single row of the official reference price list.
type PriceEntry struct {
	BrandCode string  `json:"brandCode"`
	TypeCode  string  `json:"typeCode"`
	BrandName string  `json:"brandName"`
	TypeName  string  `json:"typeName"`
	Year      int     `json:"year"`
	Price     float64 `json:"price"`
}

// MatchResult is the outcome of a reference table lookup.
// The zero value means no entry was found.
type MatchResult struct {
	Found       bool
	Min         float64
	Max         float64
	VariantName string
}

// NotFound is the MatchResult for an absent entry.
var NotFound = MatchResult{}

// Matched builds a found MatchResult from a reference entry.
func Matched(e PriceEntry) MatchResult {
	return MatchResult{
		Found:       true,
		Min:         e.Price,
		Max:         e.Price,
		VariantName: e.TypeName,
	}
}

// Record is the final valuation shown to the user.
type Record struct {
	Attributes
	IsOfficialData  bool   `json:"isOfficialData"`
	OfficialVariant string `json:"officialVariant,omitempty"`
}

const officialNoteFormat = "(Not: Fiyat veritabanındaki %s kaydından alınmıştır.)"

// OfficialNote returns the annotation appended to the description when the
// value comes from the reference table.
func OfficialNote(variant string) string {
	return fmt.Sprintf(officialNoteFormat, variant)
}

// Resolve merges extracted attributes with a reference match.
// A found match always replaces the AI estimate.
func Resolve(attrs Attributes, match MatchResult) Record {
	rec := Record{Attributes: attrs}

	if match.Found {
		rec.EstimatedValueMin = match.Min
		rec.EstimatedValueMax = match.Max
		rec.IsOfficialData = true
		rec.OfficialVariant = match.VariantName
		note := OfficialNote(match.VariantName)
		if rec.Description == "" {
			rec.Description = note
		} else {
			rec.Description = rec.Description + " " + note
		}
	}

	if rec.EstimatedValueMin > rec.EstimatedValueMax {
		rec.EstimatedValueMin, rec.EstimatedValueMax = rec.EstimatedValueMax, rec.EstimatedValueMin
	}

	return rec
}
