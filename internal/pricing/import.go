package pricing

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/raine/kasko-bot/internal/vehicle"
)

// ImportError rejects a whole reference table import. Row is the 1-based
// spreadsheet row; zero means the problem is not tied to a row.
type ImportError struct {
	Row    int
	Column string
	Reason string
}

func (e *ImportError) Error() string {
	switch {
	case e.Row > 0 && e.Column != "":
		return fmt.Sprintf("import rejected: row %d, column %q: %s", e.Row, e.Column, e.Reason)
	case e.Row > 0:
		return fmt.Sprintf("import rejected: row %d: %s", e.Row, e.Reason)
	default:
		return fmt.Sprintf("import rejected: %s", e.Reason)
	}
}

type column int

const (
	colBrandCode column = iota
	colTypeCode
	colBrandName
	colTypeName
	colYear
	colPrice
)

var columnNames = map[column]string{
	colBrandCode: "Marka Kodu",
	colTypeCode:  "Tip Kodu",
	colBrandName: "Marka Adı",
	colTypeName:  "Tip Adı",
	colYear:      "Model Yılı",
	colPrice:     "Fiyat",
}

// headerAliases maps normalized header text to a column.
var headerAliases = map[string]column{
	"markakodu":   colBrandCode,
	"markakod":    colBrandCode,
	"brandcode":   colBrandCode,
	"tipkodu":     colTypeCode,
	"tipkod":      colTypeCode,
	"typecode":    colTypeCode,
	"markaadi":    colBrandName,
	"marka":       colBrandName,
	"brandname":   colBrandName,
	"brand":       colBrandName,
	"make":        colBrandName,
	"tipadi":      colTypeName,
	"tip":         colTypeName,
	"typename":    colTypeName,
	"type":        colTypeName,
	"model":       colTypeName,
	"modelyili":   colYear,
	"modelyil":    colYear,
	"yil":         colYear,
	"year":        colYear,
	"fiyat":       colPrice,
	"price":       colPrice,
	"kaskodeger":  colPrice,
	"kaskodegeri": colPrice,
	"deger":       colPrice,
}

// layout describes where the fields of a price list live.
type layout struct {
	columns  map[column]int
	yearCols map[int]int // column index -> model year, wide layout only
	header   []string
}

func (l *layout) wide() bool {
	_, hasYear := l.columns[colYear]
	_, hasPrice := l.columns[colPrice]
	return !(hasYear && hasPrice)
}

// ParseStats reports what ParseRows did besides producing entries.
type ParseStats struct {
	Rows         int // data rows read
	BlankCells   int // empty price cells skipped in the wide layout
	Wide         bool
	HeaderRowNum int
}

// ParseRows turns spreadsheet rows into reference entries.
//
// The first non-blank row is the header. Two layouts are accepted: a long
// list with "Model Yılı" and "Fiyat" columns, or the TSB style list where
// every column whose header is a model year holds the price for that year.
// Any malformed row rejects the whole import.
func ParseRows(rows [][]string, now time.Time) ([]vehicle.PriceEntry, ParseStats, error) {
	var stats ParseStats

	headerIdx := -1
	for i, row := range rows {
		if !blankRow(row) {
			headerIdx = i
			break
		}
	}
	if headerIdx == -1 {
		return nil, stats, &ImportError{Reason: "no rows"}
	}
	stats.HeaderRowNum = headerIdx + 1

	l, err := detectLayout(rows[headerIdx], headerIdx+1, now)
	if err != nil {
		return nil, stats, err
	}
	stats.Wide = l.wide()

	var entries []vehicle.PriceEntry
	for i := headerIdx + 1; i < len(rows); i++ {
		row := rows[i]
		if blankRow(row) {
			continue
		}
		stats.Rows++
		rowNum := i + 1

		base := vehicle.PriceEntry{
			BrandCode: cell(row, l.columns, colBrandCode),
			TypeCode:  cell(row, l.columns, colTypeCode),
			BrandName: cell(row, l.columns, colBrandName),
			TypeName:  cell(row, l.columns, colTypeName),
		}
		if base.BrandName == "" {
			return nil, stats, &ImportError{Row: rowNum, Column: columnNames[colBrandName], Reason: "missing value"}
		}
		if base.TypeName == "" {
			return nil, stats, &ImportError{Row: rowNum, Column: columnNames[colTypeName], Reason: "missing value"}
		}

		if !stats.Wide {
			e := base
			yearText := cell(row, l.columns, colYear)
			e.Year, err = parseYear(yearText, now)
			if err != nil {
				return nil, stats, &ImportError{Row: rowNum, Column: columnNames[colYear], Reason: err.Error()}
			}
			priceText := cell(row, l.columns, colPrice)
			if priceText == "" {
				return nil, stats, &ImportError{Row: rowNum, Column: columnNames[colPrice], Reason: "missing value"}
			}
			e.Price, err = ParsePrice(priceText)
			if err != nil {
				return nil, stats, &ImportError{Row: rowNum, Column: columnNames[colPrice], Reason: err.Error()}
			}
			entries = append(entries, e)
			continue
		}

		for _, idx := range sortedYearColumns(l.yearCols) {
			priceText := ""
			if idx < len(row) {
				priceText = strings.TrimSpace(row[idx])
			}
			if priceText == "" || priceText == "-" {
				stats.BlankCells++
				continue
			}
			price, err := ParsePrice(priceText)
			if err != nil {
				return nil, stats, &ImportError{Row: rowNum, Column: l.header[idx], Reason: err.Error()}
			}
			e := base
			e.Year = l.yearCols[idx]
			e.Price = price
			entries = append(entries, e)
		}
	}

	if len(entries) == 0 {
		return nil, stats, &ImportError{Reason: "no price rows"}
	}

	return entries, stats, nil
}

func detectLayout(header []string, rowNum int, now time.Time) (*layout, error) {
	l := &layout{
		columns:  make(map[column]int),
		yearCols: make(map[int]int),
		header:   make([]string, len(header)),
	}

	for i, h := range header {
		h = strings.TrimSpace(h)
		l.header[i] = h
		if h == "" {
			continue
		}
		if year, err := strconv.Atoi(h); err == nil && len(h) == 4 {
			if !vehicle.PlausibleYear(year, now) {
				return nil, &ImportError{Row: rowNum, Column: h, Reason: "implausible model year"}
			}
			l.yearCols[i] = year
			continue
		}
		if c, ok := headerAliases[normalizeHeader(h)]; ok {
			if _, dup := l.columns[c]; dup {
				return nil, &ImportError{Row: rowNum, Column: h, Reason: "duplicate column"}
			}
			l.columns[c] = i
		}
	}

	for _, c := range []column{colBrandName, colTypeName} {
		if _, ok := l.columns[c]; !ok {
			return nil, &ImportError{Row: rowNum, Reason: fmt.Sprintf("missing %q column", columnNames[c])}
		}
	}

	_, hasYear := l.columns[colYear]
	_, hasPrice := l.columns[colPrice]
	switch {
	case hasYear && hasPrice:
		l.yearCols = map[int]int{}
	case hasYear || hasPrice:
		return nil, &ImportError{Row: rowNum, Reason: fmt.Sprintf("%q and %q columns must both be present", columnNames[colYear], columnNames[colPrice])}
	case len(l.yearCols) == 0:
		return nil, &ImportError{Row: rowNum, Reason: "no price columns"}
	}

	return l, nil
}

func sortedYearColumns(yearCols map[int]int) []int {
	idx := make([]int, 0, len(yearCols))
	for i := range yearCols {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

func cell(row []string, columns map[column]int, c column) string {
	idx, ok := columns[c]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseYear(s string, now time.Time) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("missing value")
	}
	// Spreadsheet numeric cells may render as "2020.0".
	s = strings.TrimSuffix(s, ".0")
	year, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid year %q", s)
	}
	if !vehicle.PlausibleYear(year, now) {
		return 0, fmt.Errorf("implausible year %d", year)
	}
	return year, nil
}

var (
	dotThousands   = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)
	commaThousands = regexp.MustCompile(`^\d{1,3}(,\d{3})+$`)
	currencyTrim   = strings.NewReplacer("₺", "", "TL", "", "tl", "", "TRY", "", " ", "", "\u00a0", "")
)

// ParsePrice parses a TRY amount as written in Turkish or English
// spreadsheets: "550000", "550.000", "550.000,50", "550,000.50", "₺550.000".
// A lone dot or comma followed by exactly three digit groups is a thousands
// separator; otherwise it is the decimal separator.
func ParsePrice(s string) (float64, error) {
	raw := s
	s = currencyTrim.Replace(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("missing value")
	}

	hasDot := strings.Contains(s, ".")
	hasComma := strings.Contains(s, ",")
	switch {
	case hasDot && hasComma:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case hasDot && dotThousands.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
	case hasComma && commaThousands.MatchString(s):
		s = strings.ReplaceAll(s, ",", "")
	case hasComma:
		s = strings.Replace(s, ",", ".", 1)
	}

	price, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, fmt.Errorf("invalid price %q", raw)
	}
	if price < 0 {
		return 0, fmt.Errorf("negative price %q", raw)
	}
	return price, nil
}
