package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/INSPIRATIONlabs/ofmlgo/internal/ocd"
)

func testModel() *ocd.Model {
	return &ocd.Model{
		Manufacturer: "sedus",
		Series:       "ai",
		Articles: map[string]*ocd.Article{
			"SE:AI-100": {ArticleNr: "SE:AI-100", Description: "Drehstuhl", PropClasses: []string{"PC"}},
		},
		ArticleOrder: []string{"SE:AI-100"},
		PropClasses:  map[string][]string{"PC": {"S_MODELLFARBE"}},
		Properties: map[string]*ocd.Property{
			"S_MODELLFARBE": {ID: "S_MODELLFARBE", Class: "PC", Label: "Modellfarbe", Required: true},
		},
		PropertyValues: map[string][]*ocd.PropertyValue{
			"S_MODELLFARBE": {{ID: "166", Label: "Blau", InferredVarCond: "S_166"}},
		},
		Prices: []*ocd.PriceRecord{
			{ArticleNr: "SE:AI-100", PriceLevel: "B", Price: 599, IsFix: true,
				Currency: "EUR", DateFrom: ocd.DateMin, DateTo: ocd.DateMax},
		},
		PricesByArt: map[string][]*ocd.PriceRecord{},
		PriceTexts:  map[string]map[string]string{"T1": {"DE": "Text"}},
		VarConds: map[ocd.VarCondKey]string{
			{Class: "PC", Property: "S_MODELLFARBE", Value: "166"}: "S_166",
		},
		RuleTables: map[string]map[string]map[string]string{},
		Warnings: []ocd.DataWarning{
			{Severity: ocd.SeverityInfo, Code: "TABLE_MISSING", Message: "x"},
		},
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "snap"), nil)
	require.NoError(t, err)
	defer store.Close()

	key := []byte("sedus|ai|1|2")
	require.NoError(t, store.Put(key, testModel()))

	m, err := store.Get(key)
	require.NoError(t, err)

	assert.Equal(t, "sedus", m.Manufacturer)
	require.Contains(t, m.Articles, "SE:AI-100")
	assert.Equal(t, []string{"PC"}, m.Articles["SE:AI-100"].PropClasses)
	assert.Equal(t, "S_166", m.PropertyValues["S_MODELLFARBE"][0].InferredVarCond)
	assert.Equal(t, "S_166", m.VarConds[ocd.VarCondKey{Class: "PC", Property: "S_MODELLFARBE", Value: "166"}])
	require.Len(t, m.PricesByArt["SE:AI-100"], 1, "price index rebuilt on decode")
	assert.Equal(t, 599.0, m.PricesByArt["SE:AI-100"][0].Price)
	assert.Len(t, m.Warnings, 1)
}

func TestGetMissing(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "snap"), nil)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Get([]byte("nope"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCorruptSnapshotIsDeleted(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "snap"), nil)
	require.NoError(t, err)
	defer store.Close()

	key := []byte("k")
	require.NoError(t, store.db.Set(key, []byte{0, 0, 0, 9, 'x'}, nil))

	_, err = store.Get(key)
	require.ErrorIs(t, err, ErrCorrupt)

	// The corrupt entry is gone afterwards.
	_, err = store.Get(key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSourceKeyChangesWithFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pdata.ebase")
	require.NoError(t, os.WriteFile(path, []byte("one"), 0o644))
	k1, err := SourceKey("m", "s", path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("longer content"), 0o644))
	k2, err := SourceKey("m", "s", path)
	require.NoError(t, err)
	assert.NotEqual(t, string(k1), string(k2))
}

func TestEncodeDecodeSmallPayload(t *testing.T) {
	// Tiny models are often incompressible; the raw-JSON path must round
	// trip too.
	m := &ocd.Model{Manufacturer: "m", Series: "s"}
	blob, err := encode(m)
	require.NoError(t, err)
	out, err := decode(blob)
	require.NoError(t, err)
	assert.Equal(t, "m", out.Manufacturer)
}
