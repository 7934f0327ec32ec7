package pricing

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Turkish dotted/dotless i variants fold to plain "i" so that "FIAT", "Fiat"
// and "fıat" compare equal regardless of the keyboard they were typed on.
var dotlessReplacer = strings.NewReplacer("İ", "i", "I", "i", "ı", "i", "i\u0307", "i")

// NormalizeName returns the comparison form of a brand or type name:
// NFC, trimmed, single-spaced and case folded.
// The same function is applied to table keys and lookup input.
func NormalizeName(s string) string {
	s = norm.NFC.String(s)
	s = strings.Join(strings.Fields(s), " ")
	s = dotlessReplacer.Replace(s)
	// Casers are stateful, so one per call.
	return cases.Fold().String(s)
}

// normalizeHeader folds a column header and drops separators so that
// "Marka Adı", "MARKA_ADI" and "markaadi" are the same column.
func normalizeHeader(s string) string {
	s = NormalizeName(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', '.', '/':
			return -1
		}
		return r
	}, s)
}
