package pricing

import (
	"math"
	"sort"
	"sync/atomic"

	"github.com/raine/kasko-bot/internal/vehicle"
	"github.com/rs/zerolog/log"
)

type tableKey struct {
	brand string
	typ   string
	year  int
}

func keyOf(brandName, typeName string, year int) tableKey {
	return tableKey{brand: NormalizeName(brandName), typ: NormalizeName(typeName), year: year}
}

// Table is an immutable snapshot of the reference price list keyed by
// normalized (brand name, type name, year).
type Table struct {
	entries map[tableKey][]vehicle.PriceEntry
	size    int
}

// Stats summarizes a table for admin output.
type Stats struct {
	Entries int
	Brands  int
	MinYear int
	MaxYear int
}

// NewTable builds a table from entries. The slice is copied.
//
// Entries sharing a normalized key are kept and ordered by the tie-break used
// in Lookup: smallest raw type name, then smallest price, then smallest type
// code.
func NewTable(entries []vehicle.PriceEntry) *Table {
	t := &Table{entries: make(map[tableKey][]vehicle.PriceEntry, len(entries))}
	for _, e := range entries {
		k := keyOf(e.BrandName, e.TypeName, e.Year)
		t.entries[k] = append(t.entries[k], e)
		t.size++
	}

	for k, candidates := range t.entries {
		if len(candidates) < 2 {
			continue
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			return lessEntry(candidates[i], candidates[j])
		})
		log.Warn().
			Str("brand", k.brand).
			Str("type", k.typ).
			Int("year", k.year).
			Int("count", len(candidates)).
			Msg("duplicate reference price key")
	}

	return t
}

func lessEntry(a, b vehicle.PriceEntry) bool {
	if a.TypeName != b.TypeName {
		return a.TypeName < b.TypeName
	}
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	return a.TypeCode < b.TypeCode
}

// Len returns the number of entries in the table.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return t.size
}

// Lookup finds the official price for an exact normalized make, model and
// year. There is no fuzzy or nearest-year matching: a missing year for a
// known model is NotFound.
func (t *Table) Lookup(brand, model string, year int) vehicle.MatchResult {
	if t == nil {
		return vehicle.NotFound
	}

	candidates := t.entries[keyOf(brand, model, year)]
	if len(candidates) == 0 {
		return vehicle.NotFound
	}

	e := candidates[0]
	if e.Price < 0 || math.IsNaN(e.Price) || math.IsInf(e.Price, 0) {
		log.Error().
			Str("brand", e.BrandName).
			Str("type", e.TypeName).
			Int("year", e.Year).
			Float64("price", e.Price).
			Msg("corrupt reference price entry, ignoring match")
		return vehicle.NotFound
	}

	return vehicle.Matched(e)
}

// Entries returns all entries ordered by brand, type and year.
func (t *Table) Entries() []vehicle.PriceEntry {
	if t == nil {
		return nil
	}
	out := make([]vehicle.PriceEntry, 0, t.size)
	for _, candidates := range t.entries {
		out = append(out, candidates...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.BrandName != b.BrandName {
			return a.BrandName < b.BrandName
		}
		if a.TypeName != b.TypeName {
			return a.TypeName < b.TypeName
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return lessEntry(a, b)
	})
	return out
}

// Stats computes summary figures for the table.
func (t *Table) Stats() Stats {
	var s Stats
	if t == nil {
		return s
	}
	brands := make(map[string]struct{})
	for k := range t.entries {
		brands[k.brand] = struct{}{}
		if s.MinYear == 0 || k.year < s.MinYear {
			s.MinYear = k.year
		}
		if k.year > s.MaxYear {
			s.MaxYear = k.year
		}
	}
	s.Entries = t.size
	s.Brands = len(brands)
	return s
}

// Catalog holds the active reference table. Replace swaps the whole table
// atomically, so a concurrent Lookup sees either the old or the new one.
type Catalog struct {
	current atomic.Pointer[Table]
}

// NewCatalog creates a catalog serving the given table. A nil table is
// treated as empty.
func NewCatalog(t *Table) *Catalog {
	c := &Catalog{}
	if t == nil {
		t = NewTable(nil)
	}
	c.current.Store(t)
	return c
}

// Table returns the current snapshot.
func (c *Catalog) Table() *Table {
	return c.current.Load()
}

// Replace makes t the active table.
func (c *Catalog) Replace(t *Table) {
	if t == nil {
		t = NewTable(nil)
	}
	c.current.Store(t)
}

// Lookup searches the current snapshot.
func (c *Catalog) Lookup(brand, model string, year int) vehicle.MatchResult {
	return c.current.Load().Lookup(brand, model, year)
}
