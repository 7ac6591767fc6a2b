// Package pricing resolves variant conditions against property selections
// and computes itemized prices under the OCD 4.3 ordering rules. Everything
// here is pure computation over a frozen ocd.Model; no I/O and no errors,
// data problems surface as warnings on the result.
package pricing

import (
	"sort"
	"strconv"
	"strings"

	"github.com/INSPIRATIONlabs/ofmlgo/internal/ocd"
)

// Selections maps property id to the selected value id.
type Selections map[string]string

// keys returns the property ids in sorted order so that resolution is
// deterministic regardless of map iteration order.
func (s Selections) keys() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Match pairs a surcharge or discount record with the selection that
// triggered it.
type Match struct {
	Record   *ocd.PriceRecord
	Property string
	Value    string
}

// baseIndicators are var_cond tokens that mark a base price record rather
// than a surcharge.
var baseIndicators = map[string]bool{
	"":         true,
	"S_PGX":    true,
	"BASE":     true,
	"STANDARD": true,
}

// IsBaseIndicator reports whether a var_cond on a price_level "B" record
// denotes the base price itself.
func IsBaseIndicator(varCond string) bool {
	return baseIndicators[strings.ToUpper(strings.TrimSpace(varCond))]
}

// resolveContext carries the inputs of one resolution pass.
type resolveContext struct {
	model      *ocd.Model
	selections Selections
	record     *ocd.PriceRecord
}

// strategy inspects one candidate record against the selections and reports
// the triggering (property, value), if any. The set is closed; resolution is
// first-success composition over the ordered list below.
type strategy func(resolveContext) (Match, bool)

var strategies = []strategy{
	resolveExplicitTable,
	resolveTableRules,
	resolveFormula,
	resolveSuffixConvention,
	resolveLiteral,
}

// ResolveMatches returns the surcharge/discount records of the given level
// that the selections trigger, in source record order, deduplicated by
// var_cond (first match wins). Exact-article records are considered before
// wildcard records per OCD 4.3.
func ResolveMatches(model *ocd.Model, articleNr string, selections Selections, level string) []Match {
	var out []Match
	seen := make(map[string]bool)

	appendMatches := func(records []*ocd.PriceRecord, wildcard bool) {
		for _, rec := range records {
			if rec.PriceLevel != level || rec.Wildcard() != wildcard {
				continue
			}
			if rec.PriceLevel == "B" {
				continue
			}
			if seen[rec.VarCond] {
				// Identical var_cond already matched; first wins, silently.
				continue
			}
			if m, ok := resolveRecord(model, selections, rec); ok {
				seen[rec.VarCond] = true
				out = append(out, m)
			}
		}
	}

	appendMatches(model.PricesByArt[articleNr], false)
	appendMatches(model.PricesByArt["*"], true)
	return out
}

func resolveRecord(model *ocd.Model, selections Selections, rec *ocd.PriceRecord) (Match, bool) {
	if rec.VarCond == "" {
		return Match{}, false
	}
	ctx := resolveContext{model: model, selections: selections, record: rec}
	for _, s := range strategies {
		if m, ok := s(ctx); ok {
			m.Record = rec
			return m, true
		}
	}
	return Match{}, false
}

// resolveExplicitTable consults propvalue2varcond: a selection whose mapped
// var_cond equals the record's var_cond triggers it. Authoritative when the
// manufacturer ships the table.
func resolveExplicitTable(ctx resolveContext) (Match, bool) {
	if len(ctx.model.VarConds) == 0 {
		return Match{}, false
	}
	for _, prop := range ctx.selections.keys() {
		val := ctx.selections[prop]
		if pv, ok := ctx.model.PropertyValue(prop, val); ok && pv.InferredVarCond != "" {
			if pv.InferredVarCond == ctx.record.VarCond {
				return Match{Property: prop, Value: val}, true
			}
			continue
		}
		// Fall back to the raw lookup chain for selections whose value list
		// was not enriched during load.
		p := ctx.model.Properties[prop]
		if vc := lookupChain(ctx.model, p, prop, val); vc != "" && vc == ctx.record.VarCond {
			return Match{Property: prop, Value: val}, true
		}
	}
	return Match{}, false
}

func lookupChain(m *ocd.Model, p *ocd.Property, prop, val string) string {
	if p != nil {
		if vc, ok := m.VarConds[ocd.VarCondKey{Class: p.Class, Property: prop, Value: val}]; ok {
			return vc
		}
	}
	if vc, ok := m.VarConds[ocd.VarCondKey{Property: prop, Value: val}]; ok {
		return vc
	}
	if vc, ok := m.VarConds[ocd.VarCondKey{Value: val}]; ok {
		return vc
	}
	return ""
}

// resolveTableRules evaluates the stored pure table-lookup relation rules:
// the rule's match value (a literal or a $PROPERTY reference) is looked up in
// the pre-indexed rule table; the result must equal the record's var_cond.
func resolveTableRules(ctx resolveContext) (Match, bool) {
	for _, rule := range ctx.model.TableRules {
		byVal := ruleIndex(ctx.model, rule)
		if byVal == nil {
			continue
		}
		if strings.HasPrefix(rule.MatchVal, "$") {
			prop := strings.TrimPrefix(rule.MatchVal, "$")
			val, ok := ctx.selections[prop]
			if !ok {
				continue
			}
			if byVal[val] == ctx.record.VarCond {
				return Match{Property: prop, Value: val}, true
			}
			continue
		}
		// Literal match value: the rule fires independent of a particular
		// selection, but only attaches when the looked-up token matches.
		if byVal[rule.MatchVal] == ctx.record.VarCond {
			return Match{}, true
		}
	}
	return Match{}, false
}

func ruleIndex(m *ocd.Model, rule ocd.TableRule) map[string]string {
	cols, ok := m.RuleTables[rule.Table]
	if !ok {
		return nil
	}
	return cols[rule.MatchCol]
}

// resolveFormula matches var_cond expressions of the forms KEY=value,
// KEY>value, KEY<value, and conjunctions joined with ";". Comparisons are
// numeric when both sides parse as numbers, string comparisons otherwise.
func resolveFormula(ctx resolveContext) (Match, bool) {
	vc := ctx.record.VarCond
	if !strings.ContainsAny(vc, "=<>") {
		return Match{}, false
	}

	first := Match{}
	for _, term := range strings.Split(vc, ";") {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		op, idx := formulaOp(term)
		if idx < 0 {
			return Match{}, false
		}
		key := strings.TrimSpace(term[:idx])
		want := strings.TrimSpace(term[idx+1:])
		have, ok := ctx.selections[key]
		if !ok {
			return Match{}, false
		}
		if !compare(have, op, want) {
			return Match{}, false
		}
		if first.Property == "" {
			first = Match{Property: key, Value: have}
		}
	}
	if first.Property == "" {
		return Match{}, false
	}
	return first, true
}

func formulaOp(term string) (byte, int) {
	for i := 0; i < len(term); i++ {
		switch term[i] {
		case '=', '<', '>':
			return term[i], i
		}
	}
	return 0, -1
}

func compare(have string, op byte, want string) bool {
	hf, herr := strconv.ParseFloat(have, 64)
	wf, werr := strconv.ParseFloat(want, 64)
	numeric := herr == nil && werr == nil
	switch op {
	case '=':
		if numeric {
			return hf == wf
		}
		return strings.EqualFold(have, want)
	case '>':
		if numeric {
			return hf > wf
		}
		return have > want
	case '<':
		if numeric {
			return hf < wf
		}
		return have < want
	default:
		return false
	}
}

// resolveSuffixConvention handles the widespread "S_<code>" naming scheme:
// the surcharge matches when a selected value equals the code, ends with it,
// or (for all-digit codes) starts with it.
func resolveSuffixConvention(ctx resolveContext) (Match, bool) {
	vc := ctx.record.VarCond
	if !strings.HasPrefix(vc, "S_") {
		return Match{}, false
	}
	code := vc[len("S_"):]
	if code == "" {
		return Match{}, false
	}
	digits := allDigits(code)
	for _, prop := range ctx.selections.keys() {
		val := ctx.selections[prop]
		if val == code || strings.HasSuffix(val, code) {
			return Match{Property: prop, Value: val}, true
		}
		if digits && strings.HasPrefix(val, code) {
			return Match{Property: prop, Value: val}, true
		}
	}
	return Match{}, false
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

// resolveLiteral matches a var_cond that simply spells a selected value,
// case-insensitively. The last resort for manufacturers that use descriptive
// tokens.
func resolveLiteral(ctx resolveContext) (Match, bool) {
	for _, prop := range ctx.selections.keys() {
		val := ctx.selections[prop]
		if strings.EqualFold(val, ctx.record.VarCond) {
			return Match{Property: prop, Value: val}, true
		}
	}
	return Match{}, false
}
