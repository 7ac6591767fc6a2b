package export

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/INSPIRATIONlabs/ofmlgo/internal/engine"
	"github.com/INSPIRATIONlabs/ofmlgo/internal/ocd"
	"github.com/INSPIRATIONlabs/ofmlgo/internal/pricing"
)

func testConfiguration() *engine.Configuration {
	m := &ocd.Model{
		Manufacturer: "sedus",
		Series:       "ai",
		Articles: map[string]*ocd.Article{
			"SE:AI-100": {ArticleNr: "SE:AI-100"},
		},
		Properties: map[string]*ocd.Property{
			"S_MODELLFARBE": {ID: "S_MODELLFARBE", Class: "PC_CHAIR", Label: "Modellfarbe"},
			"S_GESTELL":     {ID: "S_GESTELL", Class: "PC_CHAIR", Label: "Gestell"},
		},
		PropertyValues: map[string][]*ocd.PropertyValue{
			"S_MODELLFARBE": {{ID: "166", Label: "Blau"}},
			"S_GESTELL":     {{ID: "CHROM", Label: "Chrom"}},
		},
	}
	return &engine.Configuration{
		Model:     m,
		ArticleNr: "SE:AI-100",
		Selections: pricing.Selections{
			"S_MODELLFARBE": "166",
			"S_GESTELL":     "CHROM",
		},
	}
}

func testPrice() pricing.Price {
	return pricing.Price{
		Base:     599.0,
		Currency: "EUR",
		Surcharges: []pricing.LineItem{
			{VarCond: "S_166", Description: "Mehrpreis Stoffgruppe", Amount: 44.0},
		},
		Discounts: []pricing.LineItem{
			{VarCond: "RABATT", Amount: 10.0, Rule: "1", IsPercentage: true},
		},
		Total:     633.0,
		PriceDate: "20250601",
		ValidFrom: "20240101",
		ValidTo:   "99991231",
	}
}

func TestBuildDocument(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	doc := Build(testConfiguration(), testPrice(), nil, now)

	assert.Equal(t, "SE:AI-100", doc.ArticleNr)
	assert.Equal(t, "sedus", doc.Manufacturer)
	assert.Equal(t, "ai", doc.Series)
	require.NotNil(t, doc.VariantCode)
	assert.Equal(t, "S_GESTELL=CHROM;S_MODELLFARBE=166", *doc.VariantCode,
		"variant code keys in ASCII order")

	require.Len(t, doc.PropertyDetails, 2)
	assert.Equal(t, "S_GESTELL", doc.PropertyDetails[0].Key)
	assert.Equal(t, "Chrom", doc.PropertyDetails[0].ValueLabel)
	assert.Equal(t, "PC_CHAIR", doc.PropertyDetails[0].Group)

	assert.Equal(t, 599.0, doc.Pricing.Base)
	assert.Equal(t, 633.0, doc.Pricing.Total)
	require.NotNil(t, doc.Pricing.PriceDate)
	assert.Equal(t, "2025-06-01", *doc.Pricing.PriceDate)
	require.NotNil(t, doc.Pricing.ValidFrom)
	assert.Equal(t, "2024-01-01", *doc.Pricing.ValidFrom)
	require.Len(t, doc.Pricing.Discounts, 1)
	assert.Equal(t, "1", doc.Pricing.Discounts[0].Rule)
	assert.Equal(t, "2025-06-01T12:00:00Z", doc.ExportedAt)
}

// Round-trip: the configuration block of the marshalled document carries the
// selections back unchanged.
func TestExportRoundTrip(t *testing.T) {
	cfg := testConfiguration()
	doc := Build(cfg, testPrice(), nil, time.Now())

	out, err := Marshal(doc)
	require.NoError(t, err)

	var parsed struct {
		Configuration map[string]string `json:"configuration"`
	}
	require.NoError(t, json.Unmarshal(out, &parsed))
	assert.Equal(t, map[string]string(cfg.Selections), parsed.Configuration)
}

func TestEmptySelections(t *testing.T) {
	cfg := testConfiguration()
	cfg.Selections = pricing.Selections{}
	doc := Build(cfg, pricing.Price{Currency: "EUR"}, nil, time.Now())

	assert.Nil(t, doc.VariantCode)
	assert.NotNil(t, doc.Configuration)
	assert.Empty(t, doc.PropertyDetails)
	assert.Nil(t, doc.Pricing.ValidFrom)
}

func TestWarningsRendered(t *testing.T) {
	warns := []ocd.DataWarning{
		{Severity: ocd.SeverityWarning, Code: "NO_BASE_PRICE", Message: "no base", Source: "calculator"},
	}
	doc := Build(testConfiguration(), testPrice(), warns, time.Now())
	require.Len(t, doc.Warnings, 1)
	assert.Equal(t, "warning", doc.Warnings[0].Severity)
	assert.Equal(t, "NO_BASE_PRICE", doc.Warnings[0].Code)
}
