package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/INSPIRATIONlabs/ofmlgo/internal/ocd"
)

// newModel builds an empty frozen-shape model for resolver tests.
func newModel() *ocd.Model {
	return &ocd.Model{
		Articles:       make(map[string]*ocd.Article),
		PropClasses:    make(map[string][]string),
		Properties:     make(map[string]*ocd.Property),
		PropertyValues: make(map[string][]*ocd.PropertyValue),
		PricesByArt:    make(map[string][]*ocd.PriceRecord),
		PriceTexts:     make(map[string]map[string]string),
		VarConds:       make(map[ocd.VarCondKey]string),
		RuleTables:     make(map[string]map[string]map[string]string),
	}
}

func addPrice(m *ocd.Model, rec *ocd.PriceRecord) *ocd.PriceRecord {
	if rec.Currency == "" {
		rec.Currency = "EUR"
	}
	if rec.DateFrom == "" {
		rec.DateFrom = ocd.DateMin
	}
	if rec.DateTo == "" {
		rec.DateTo = ocd.DateMax
	}
	rec.Seq = len(m.Prices)
	m.Prices = append(m.Prices, rec)
	m.PricesByArt[rec.ArticleNr] = append(m.PricesByArt[rec.ArticleNr], rec)
	return rec
}

func surcharge(m *ocd.Model, article, varCond string, price float64, fix bool) *ocd.PriceRecord {
	return addPrice(m, &ocd.PriceRecord{
		ArticleNr:  article,
		VarCond:    varCond,
		PriceType:  "S",
		PriceLevel: "X",
		Price:      price,
		IsFix:      fix,
	})
}

func TestIsBaseIndicator(t *testing.T) {
	for _, vc := range []string{"", "S_PGX", "BASE", "standard", " base "} {
		assert.True(t, IsBaseIndicator(vc), "var_cond %q", vc)
	}
	for _, vc := range []string{"S_166", "PG_TABLE_H110", "KEY=1"} {
		assert.False(t, IsBaseIndicator(vc), "var_cond %q", vc)
	}
}

func TestResolveExplicitTable(t *testing.T) {
	m := newModel()
	m.Properties["S_STOFF"] = &ocd.Property{ID: "S_STOFF", Class: "PC"}
	m.PropertyValues["S_STOFF"] = []*ocd.PropertyValue{
		{ID: "F66", InferredVarCond: "S_FABRIC66"},
	}
	m.VarConds[ocd.VarCondKey{Value: "F66"}] = "S_FABRIC66"
	surcharge(m, "A-1", "S_FABRIC66", 25, true)

	matches := ResolveMatches(m, "A-1", Selections{"S_STOFF": "F66"}, "X")
	require.Len(t, matches, 1)
	assert.Equal(t, "S_STOFF", matches[0].Property)
	assert.Equal(t, "S_FABRIC66", matches[0].Record.VarCond)
}

func TestResolveTableRule(t *testing.T) {
	m := newModel()
	m.TableRules = []ocd.TableRule{
		{Table: "fabric_map", MatchCol: "FABRIC", MatchVal: "$S_STOFF", ResultCol: "VARCOND"},
	}
	m.RuleTables["fabric_map"] = map[string]map[string]string{
		"FABRIC": {"F66": "S_F66"},
	}
	surcharge(m, "A-1", "S_F66", 30, true)

	matches := ResolveMatches(m, "A-1", Selections{"S_STOFF": "F66"}, "X")
	require.Len(t, matches, 1)
	assert.Equal(t, "S_F66", matches[0].Record.VarCond)

	// No selection for the referenced property: no match (the value would
	// not trigger the suffix convention either).
	assert.Empty(t, ResolveMatches(m, "A-1", Selections{"OTHER": "X1"}, "X"))
}

func TestResolveFormula(t *testing.T) {
	m := newModel()
	surcharge(m, "A-1", "HEIGHT>110", 50, true)
	surcharge(m, "A-1", "COLOR=RED;SIZE=XL", 10, true)
	surcharge(m, "A-1", "WIDTH<80", 5, true)

	matches := ResolveMatches(m, "A-1", Selections{
		"HEIGHT": "120",
		"COLOR":  "red",
		"SIZE":   "XL",
		"WIDTH":  "90",
	}, "X")
	conds := matchedConds(matches)
	assert.ElementsMatch(t, []string{"HEIGHT>110", "COLOR=RED;SIZE=XL"}, conds)

	// Numeric comparison, not lexicographic: "90" > "110" holds as strings
	// but not as numbers.
	matches = ResolveMatches(m, "A-1", Selections{"HEIGHT": "90"}, "X")
	assert.Empty(t, matches)

	// Partial conjunction does not fire.
	matches = ResolveMatches(m, "A-1", Selections{"COLOR": "RED"}, "X")
	assert.Empty(t, matches)
}

func TestResolveSuffixConvention(t *testing.T) {
	m := newModel()
	surcharge(m, "A-1", "S_166", 44, true)
	surcharge(m, "A-1", "S_CHROM", 20, true)

	// Exact value.
	assert.Len(t, ResolveMatches(m, "A-1", Selections{"P": "166"}, "X"), 1)
	// Suffix.
	assert.Len(t, ResolveMatches(m, "A-1", Selections{"P": "STOFF_CHROM"}, "X"), 1)
	// Digit code as prefix.
	assert.Len(t, ResolveMatches(m, "A-1", Selections{"P": "166B"}, "X"), 1)
	// Unrelated.
	assert.Empty(t, ResolveMatches(m, "A-1", Selections{"P": "200"}, "X"))
}

func TestResolveLiteral(t *testing.T) {
	m := newModel()
	surcharge(m, "A-1", "Kunstleder", 15, true)

	matches := ResolveMatches(m, "A-1", Selections{"S_BEZUG": "KUNSTLEDER"}, "X")
	require.Len(t, matches, 1)
	assert.Equal(t, "S_BEZUG", matches[0].Property)
}

func TestDeduplicationFirstWins(t *testing.T) {
	m := newModel()
	first := surcharge(m, "A-1", "S_166", 44, true)
	surcharge(m, "A-1", "S_166", 99, true)

	matches := ResolveMatches(m, "A-1", Selections{"P": "166"}, "X")
	require.Len(t, matches, 1, "identical var_cond matches once, silently")
	assert.Same(t, first, matches[0].Record)
}

func TestWildcardRecordsAfterExact(t *testing.T) {
	m := newModel()
	surcharge(m, "*", "PG_TABLE_H110", 135, true)
	surcharge(m, "A-1", "S_166", 44, true)

	matches := ResolveMatches(m, "A-1", Selections{"P": "166", "Q": "PG_TABLE_H110"}, "X")
	require.Len(t, matches, 2)
	assert.Equal(t, "S_166", matches[0].Record.VarCond, "exact article records first")
	assert.Equal(t, "PG_TABLE_H110", matches[1].Record.VarCond)
}

func matchedConds(matches []Match) []string {
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Record.VarCond)
	}
	return out
}
