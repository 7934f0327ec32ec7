package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/raine/kasko-bot/internal/vehicle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestReplacePrices_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	entries := []vehicle.PriceEntry{
		{BrandCode: "144", TypeCode: "101", BrandName: "Toyota", TypeName: "Corolla", Year: 2020, Price: 550000},
		{BrandCode: "057", TypeCode: "210", BrandName: "Fiat", TypeName: "Egea", Year: 2019, Price: 410000.5},
	}

	batchID, err := store.ReplacePrices(entries)
	require.NoError(t, err)
	assert.NotEmpty(t, batchID)

	loaded, err := store.LoadPrices()
	require.NoError(t, err)
	assert.Equal(t, entries, loaded)

	imp, err := store.LastImport()
	require.NoError(t, err)
	require.NotNil(t, imp)
	assert.Equal(t, batchID, imp.ID)
	assert.Equal(t, 2, imp.EntryCount)
}

func TestReplacePrices_ReplacesWholeTable(t *testing.T) {
	store := newTestStore(t)

	_, err := store.ReplacePrices([]vehicle.PriceEntry{
		{BrandName: "Toyota", TypeName: "Corolla", Year: 2020, Price: 1},
		{BrandName: "Toyota", TypeName: "Yaris", Year: 2020, Price: 1},
	})
	require.NoError(t, err)

	second := []vehicle.PriceEntry{{BrandName: "Fiat", TypeName: "Egea", Year: 2019, Price: 2}}
	_, err = store.ReplacePrices(second)
	require.NoError(t, err)

	loaded, err := store.LoadPrices()
	require.NoError(t, err)
	assert.Equal(t, second, loaded)
}

func TestLastImport_None(t *testing.T) {
	store := newTestStore(t)

	imp, err := store.LastImport()
	require.NoError(t, err)
	assert.Nil(t, imp)
}

func TestVisionCache(t *testing.T) {
	store := newTestStore(t)

	cached, err := store.GetVisionCache("missing")
	require.NoError(t, err)
	assert.Nil(t, cached)

	attrs := &vehicle.Attributes{
		Make:              "Toyota",
		Model:             "Corolla",
		Year:              2020,
		FuelType:          "Benzin",
		ChassisLast4:      "4821",
		EstimatedValueMin: 500000,
		EstimatedValueMax: 600000,
		ConfidenceScore:   0.8,
		Description:       "Beyaz sedan.",
	}
	require.NoError(t, store.SetVisionCache("abc", attrs))

	cached, err = store.GetVisionCache("abc")
	require.NoError(t, err)
	assert.Equal(t, attrs, cached)

	attrs.Year = 2021
	require.NoError(t, store.SetVisionCache("abc", attrs))
	cached, err = store.GetVisionCache("abc")
	require.NoError(t, err)
	assert.Equal(t, 2021, cached.Year)
}

func TestPruneVisionCache(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.SetVisionCache("abc", &vehicle.Attributes{Make: "Fiat", Model: "Egea", Year: 2019}))

	removed, err := store.PruneVisionCache(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed)

	removed, err = store.PruneVisionCache(-time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}
