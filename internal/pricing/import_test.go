package pricing

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/raine/kasko-bot/internal/vehicle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

var testNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func TestParseRows_LongLayout(t *testing.T) {
	rows := [][]string{
		{"Marka Kodu", "Tip Kodu", "Marka Adı", "Tip Adı", "Model Yılı", "Fiyat"},
		{"144", "101", "Toyota", "Corolla", "2020", "550.000"},
		{"", "", "", "", "", ""},
		{"057", "210", "Fiat", "Egea", "2019", "410000,50"},
	}

	entries, stats, err := ParseRows(rows, testNow)
	require.NoError(t, err)

	assert.False(t, stats.Wide)
	assert.Equal(t, 2, stats.Rows)
	assert.Equal(t, []vehicle.PriceEntry{
		{BrandCode: "144", TypeCode: "101", BrandName: "Toyota", TypeName: "Corolla", Year: 2020, Price: 550000},
		{BrandCode: "057", TypeCode: "210", BrandName: "Fiat", TypeName: "Egea", Year: 2019, Price: 410000.5},
	}, entries)
}

func TestParseRows_WideLayout(t *testing.T) {
	rows := [][]string{
		{},
		{"MARKA KODU", "TIP KODU", "MARKA ADI", "TIP ADI", "2026", "2025", "2024"},
		{"144", "101", "TOYOTA", "COROLLA 1.5 VISION", "1.650.000", "", "1.420.000"},
		{"144", "102", "TOYOTA", "YARIS 1.5", "-", "980.000", "910.000"},
	}

	entries, stats, err := ParseRows(rows, testNow)
	require.NoError(t, err)

	assert.True(t, stats.Wide)
	assert.Equal(t, 2, stats.HeaderRowNum)
	assert.Equal(t, 2, stats.BlankCells)
	require.Len(t, entries, 4)
	assert.Equal(t, vehicle.PriceEntry{
		BrandCode: "144", TypeCode: "101", BrandName: "TOYOTA", TypeName: "COROLLA 1.5 VISION", Year: 2026, Price: 1650000,
	}, entries[0])
	assert.Equal(t, 2024, entries[1].Year)
	assert.Equal(t, 2025, entries[2].Year)
	assert.Equal(t, 980000.0, entries[2].Price)
}

func TestParseRows_RejectsWholeImport(t *testing.T) {
	header := []string{"Marka Adı", "Tip Adı", "Model Yılı", "Fiyat"}
	cases := []struct {
		name   string
		rows   [][]string
		row    int
		column string
	}{
		{"non-numeric price", [][]string{header, {"Toyota", "Corolla", "2020", "1"}, {"Fiat", "Egea", "2019", "abc"}}, 3, "Fiyat"},
		{"negative price", [][]string{header, {"Toyota", "Corolla", "2020", "-5"}}, 2, "Fiyat"},
		{"missing price", [][]string{header, {"Toyota", "Corolla", "2020", ""}}, 2, "Fiyat"},
		{"missing brand", [][]string{header, {"", "Corolla", "2020", "1"}}, 2, "Marka Adı"},
		{"missing type", [][]string{header, {"Toyota", " ", "2020", "1"}}, 2, "Tip Adı"},
		{"implausible year", [][]string{header, {"Toyota", "Corolla", "1850", "1"}}, 2, "Model Yılı"},
		{"bad year", [][]string{header, {"Toyota", "Corolla", "yirmi", "1"}}, 2, "Model Yılı"},
		{"wide bad cell", [][]string{{"Marka Adı", "Tip Adı", "2024"}, {"Toyota", "Corolla", "x"}}, 2, "2024"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entries, _, err := ParseRows(tc.rows, testNow)
			assert.Nil(t, entries)

			var importErr *ImportError
			require.True(t, errors.As(err, &importErr), "expected ImportError, got %v", err)
			assert.Equal(t, tc.row, importErr.Row)
			assert.Equal(t, tc.column, importErr.Column)
		})
	}
}

func TestParseRows_HeaderProblems(t *testing.T) {
	cases := []struct {
		name string
		rows [][]string
	}{
		{"empty", nil},
		{"blank rows only", [][]string{{""}, {" "}}},
		{"no type column", [][]string{{"Marka Adı", "Model Yılı", "Fiyat"}}},
		{"no price columns", [][]string{{"Marka Adı", "Tip Adı"}, {"Toyota", "Corolla"}}},
		{"year without price", [][]string{{"Marka Adı", "Tip Adı", "Model Yılı"}}},
		{"implausible year column", [][]string{{"Marka Adı", "Tip Adı", "1850"}}},
		{"header only", [][]string{{"Marka Adı", "Tip Adı", "Model Yılı", "Fiyat"}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := ParseRows(tc.rows, testNow)
			var importErr *ImportError
			assert.True(t, errors.As(err, &importErr), "expected ImportError, got %v", err)
		})
	}
}

func TestParsePrice(t *testing.T) {
	valid := map[string]float64{
		"550000":     550000,
		"550.000":    550000,
		"1.650.000":  1650000,
		"550.000,50": 550000.5,
		"550,000.50": 550000.5,
		"550,000":    550000,
		"1.5":        1.5,
		"12,5":       12.5,
		"₺550.000":   550000,
		"550.000 TL": 550000,
		" 0 ":        0,
		"1\u00a0250": 1250,
	}
	for in, want := range valid {
		got, err := ParsePrice(in)
		if assert.NoError(t, err, in) {
			assert.Equal(t, want, got, in)
		}
	}

	for _, in := range []string{"", "abc", "-1", "1.2.3,4,5", "NaN", "Inf"} {
		_, err := ParsePrice(in)
		assert.Error(t, err, in)
	}
}

func TestImportError_Message(t *testing.T) {
	assert.Equal(t, `import rejected: row 3, column "Fiyat": invalid price "abc"`,
		(&ImportError{Row: 3, Column: "Fiyat", Reason: `invalid price "abc"`}).Error())
	assert.Equal(t, "import rejected: no rows", (&ImportError{Reason: "no rows"}).Error())
}

type fakePriceStore struct {
	entries   []vehicle.PriceEntry
	replaceFn func([]vehicle.PriceEntry) error
	calls     int
}

func (s *fakePriceStore) ReplacePrices(entries []vehicle.PriceEntry) (string, error) {
	s.calls++
	if s.replaceFn != nil {
		if err := s.replaceFn(entries); err != nil {
			return "", err
		}
	}
	s.entries = entries
	return "batch-1", nil
}

func (s *fakePriceStore) LoadPrices() ([]vehicle.PriceEntry, error) {
	return s.entries, nil
}

func newTestImporter(store PriceStore) (*Importer, *Catalog) {
	catalog := NewCatalog(NewTable([]vehicle.PriceEntry{corolla2020()}))
	im := NewImporter(catalog, store)
	im.now = func() time.Time { return testNow }
	return im, catalog
}

func TestImporter_ImportRowsReplacesTable(t *testing.T) {
	store := &fakePriceStore{}
	im, catalog := newTestImporter(store)

	summary, err := im.ImportRows([][]string{
		{"Marka Adı", "Tip Adı", "Model Yılı", "Fiyat"},
		{"Fiat", "Egea", "2019", "410000"},
	})
	require.NoError(t, err)

	assert.Equal(t, "batch-1", summary.BatchID)
	assert.Equal(t, 1, summary.Entries)
	assert.Len(t, store.entries, 1)
	assert.True(t, catalog.Lookup("Fiat", "Egea", 2019).Found)
	assert.False(t, catalog.Lookup("Toyota", "Corolla", 2020).Found, "old table must be fully replaced")
}

func TestImporter_RejectedImportKeepsPreviousTable(t *testing.T) {
	store := &fakePriceStore{}
	im, catalog := newTestImporter(store)

	_, err := im.ImportRows([][]string{
		{"Marka Adı", "Tip Adı", "Model Yılı", "Fiyat"},
		{"Fiat", "Egea", "2019", "410000"},
		{"Fiat", "Doblo", "2019", "bozuk"},
	})

	var importErr *ImportError
	require.True(t, errors.As(err, &importErr))
	assert.Equal(t, 0, store.calls)
	assert.True(t, catalog.Lookup("Toyota", "Corolla", 2020).Found)
	assert.False(t, catalog.Lookup("Fiat", "Egea", 2019).Found)
}

func TestImporter_StoreFailureKeepsPreviousTable(t *testing.T) {
	store := &fakePriceStore{replaceFn: func([]vehicle.PriceEntry) error { return errors.New("disk full") }}
	im, catalog := newTestImporter(store)

	_, err := im.ImportRows([][]string{
		{"Marka Adı", "Tip Adı", "Model Yılı", "Fiyat"},
		{"Fiat", "Egea", "2019", "410000"},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.True(t, catalog.Lookup("Toyota", "Corolla", 2020).Found)
}

func TestImporter_Load(t *testing.T) {
	store := &fakePriceStore{entries: []vehicle.PriceEntry{
		{BrandName: "Renault", TypeName: "Clio", Year: 2021, Price: 630000},
	}}
	im, catalog := newTestImporter(store)

	require.NoError(t, im.Load())
	assert.True(t, catalog.Lookup("renault", "clio", 2021).Found)
	assert.Equal(t, 1, catalog.Table().Len())
}

func createTestXLSX(t *testing.T, rows [][]string) []byte {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Kasko")
	require.NoError(t, err)
	for _, rowData := range rows {
		row := sheet.AddRow()
		for _, cellData := range rowData {
			row.AddCell().SetString(cellData)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestImporter_ImportXLSX(t *testing.T) {
	data := createTestXLSX(t, [][]string{
		{"Marka Kodu", "Tip Kodu", "Marka Adı", "Tip Adı", "2025", "2024"},
		{"144", "101", "Toyota", "Corolla", "1.400.000", "1.300.000"},
	})
	im, catalog := newTestImporter(nil)

	summary, err := im.ImportXLSX(data)
	require.NoError(t, err)

	assert.True(t, summary.Wide)
	assert.Equal(t, 2, summary.Entries)
	m := catalog.Lookup("TOYOTA", "corolla", 2024)
	require.True(t, m.Found)
	assert.Equal(t, 1300000.0, m.Min)
}

func TestImporter_ImportXLSXRejectsGarbage(t *testing.T) {
	im, catalog := newTestImporter(nil)

	_, err := im.ImportXLSX([]byte("not a workbook"))

	var importErr *ImportError
	assert.True(t, errors.As(err, &importErr))
	assert.Equal(t, 1, catalog.Table().Len())
}

func TestReadXLSX(t *testing.T) {
	data := createTestXLSX(t, [][]string{
		{"Marka Adı", "Tip Adı"},
		{"Toyota", "Corolla"},
	})

	rows, err := ReadXLSX(data)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Toyota", "Corolla"}, rows[1])
}
