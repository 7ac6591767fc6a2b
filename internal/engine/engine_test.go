package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/INSPIRATIONlabs/ofmlgo/internal/ebase"
	"github.com/INSPIRATIONlabs/ofmlgo/internal/ebase/ebasetest"
)

// writeSeries lays out <root>/sedus/ai/DE/2/db/pdata.ebase with one chair
// article, a colour property and its surcharge.
func writeSeries(t *testing.T) string {
	t.Helper()
	img := ebasetest.New().AddTable(ebasetest.Table{
		Name: "ocd_article",
		Columns: []ebasetest.Column{
			{Name: "article_nr", Type: ebase.TypeStringRef},
			{Name: "textnr", Type: ebase.TypeStringRef},
		},
		Rows: [][]any{{"SE:AI-100", ""}},
	}).AddTable(ebasetest.Table{
		Name: "ocd_propertyclass",
		Columns: []ebasetest.Column{
			{Name: "article_nr", Type: ebase.TypeStringRef},
			{Name: "prop_class", Type: ebase.TypeStringRef},
			{Name: "pos", Type: ebase.TypeUint16},
		},
		Rows: [][]any{{"SE:AI-100", "PC_CHAIR", 1}},
	}).AddTable(ebasetest.Table{
		Name: "ocd_property",
		Columns: []ebasetest.Column{
			{Name: "prop_class", Type: ebase.TypeStringRef},
			{Name: "property", Type: ebase.TypeStringRef},
			{Name: "pos_prop", Type: ebase.TypeUint16},
			{Name: "need_input", Type: ebase.TypeUint8},
		},
		Rows: [][]any{{"PC_CHAIR", "S_MODELLFARBE", 1, 1}},
	}).AddTable(ebasetest.Table{
		Name: "ocd_propertyvalue",
		Columns: []ebasetest.Column{
			{Name: "prop_class", Type: ebase.TypeStringRef},
			{Name: "property", Type: ebase.TypeStringRef},
			{Name: "value_from", Type: ebase.TypeStringRef},
			{Name: "pos_pval", Type: ebase.TypeUint16},
			{Name: "is_default", Type: ebase.TypeUint8},
		},
		Rows: [][]any{
			{"PC_CHAIR", "S_MODELLFARBE", "100", 1, 1},
			{"PC_CHAIR", "S_MODELLFARBE", "166", 2, 0},
		},
	}).AddTable(ebasetest.Table{
		Name: "ocd_price",
		Columns: []ebasetest.Column{
			{Name: "article_nr", Type: ebase.TypeStringRef},
			{Name: "var_cond", Type: ebase.TypeStringRef},
			{Name: "price_level", Type: ebase.TypeInlineString, InlineLen: 2},
			{Name: "price", Type: ebase.TypeFloat64},
			{Name: "is_fix", Type: ebase.TypeUint8},
			{Name: "currency", Type: ebase.TypeInlineString, InlineLen: 3},
		},
		Rows: [][]any{
			{"SE:AI-100", "", "B ", 599.0, 1, "EUR"},
			{"SE:AI-100", "S_166", "X ", 44.0, 1, "EUR"},
		},
	}).Build()

	root := t.TempDir()
	path := filepath.Join(root, "sedus", "ai", "DE", "2", "db", "pdata.ebase")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, img, 0o644))
	return root
}

func TestEngineEndToEnd(t *testing.T) {
	e := New(Options{DataRoot: writeSeries(t)})

	ms := e.DiscoverManufacturers()
	require.Len(t, ms, 1)
	assert.Equal(t, "sedus", ms[0].ID)

	model, err := e.LoadSeries("sedus", "ai")
	require.NoError(t, err)
	require.NotNil(t, model)

	families := e.ListFamilies(model)
	require.Len(t, families, 1)
	assert.Equal(t, "SE:AI-100", families[0].RepresentativeArticleNr)

	cfg, err := e.CreateConfiguration(model, "SE:AI-100")
	require.NoError(t, err)
	assert.Equal(t, "100", cfg.Selections["S_MODELLFARBE"],
		"required property defaults to its flagged value")

	// Default configuration: base only.
	p := e.CalculatePrice(cfg, "2025-06-01")
	assert.Equal(t, 599.0, p.Base)
	assert.Equal(t, 599.0, p.Total)
	assert.Empty(t, p.Surcharges)

	// Fabric 166 adds its surcharge.
	require.NoError(t, e.SetProperty(cfg, "S_MODELLFARBE", "166"))
	p = e.CalculatePrice(cfg, "2025-06-01")
	require.Len(t, p.Surcharges, 1)
	assert.Equal(t, "S_166", p.Surcharges[0].VarCond)
	assert.Equal(t, 643.0, p.Total)
}

func TestEngineSelectionValidation(t *testing.T) {
	e := New(Options{DataRoot: writeSeries(t)})
	model, err := e.LoadSeries("sedus", "ai")
	require.NoError(t, err)

	_, err = e.CreateConfiguration(model, "NOPE")
	assert.ErrorIs(t, err, ErrArticleNotFound)

	cfg, err := e.CreateConfiguration(model, "SE:AI-100")
	require.NoError(t, err)
	assert.ErrorIs(t, e.SetProperty(cfg, "S_NOPE", "1"), ErrPropertyNotFound)
	assert.ErrorIs(t, e.SetProperty(cfg, "S_MODELLFARBE", "999"), ErrInvalidValue)
}

func TestEngineMissingSeries(t *testing.T) {
	e := New(Options{DataRoot: t.TempDir()})
	model, err := e.LoadSeries("sedus", "ai")
	assert.NoError(t, err)
	assert.Nil(t, model)
}

func TestEngineCachesModels(t *testing.T) {
	e := New(Options{DataRoot: writeSeries(t)})
	m1, err := e.LoadSeries("sedus", "ai")
	require.NoError(t, err)
	m2, err := e.LoadSeries("sedus", "ai")
	require.NoError(t, err)
	assert.Same(t, m1, m2, "second load hits the cache")

	e.ClearCache()
	m3, err := e.LoadSeries("sedus", "ai")
	require.NoError(t, err)
	assert.NotSame(t, m1, m3)
}

func TestConfigurationClone(t *testing.T) {
	e := New(Options{DataRoot: writeSeries(t)})
	model, err := e.LoadSeries("sedus", "ai")
	require.NoError(t, err)
	cfg, err := e.CreateConfiguration(model, "SE:AI-100")
	require.NoError(t, err)

	clone := cfg.Clone()
	require.NoError(t, e.SetProperty(clone, "S_MODELLFARBE", "166"))
	assert.Equal(t, "100", cfg.Selections["S_MODELLFARBE"], "clone is independent")
	assert.Same(t, cfg.Model, clone.Model)
}
