package ocd

import (
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/INSPIRATIONlabs/ofmlgo/internal/ebase"
)

// DefaultLanguages is the text language preference order.
var DefaultLanguages = []string{"DE", "EN", "*"}

// LoadOptions parameterizes one series load.
type LoadOptions struct {
	Manufacturer string
	Series       string
	// Languages is the text preference order; DefaultLanguages when empty.
	Languages []string
	// Overrides optionally confirms recovered price records.
	Overrides OverrideSource
	Logger    *zap.Logger
}

// Load opens pdata.ebase at path and builds the series model.
func Load(path string, opts LoadOptions) (*Model, error) {
	f, err := ebase.Open(path)
	if err != nil {
		return nil, err
	}
	return LoadFile(f, opts)
}

// LoadFile builds a Model from an opened EBase file. Tables are decoded in
// parallel into per-table builders and merged; the returned model is frozen
// and safe to share.
func LoadFile(f *ebase.File, opts LoadOptions) (*Model, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if len(opts.Languages) == 0 {
		opts.Languages = DefaultLanguages
	}

	m := &Model{
		Manufacturer:   opts.Manufacturer,
		Series:         opts.Series,
		Articles:       make(map[string]*Article),
		PropClasses:    make(map[string][]string),
		Properties:     make(map[string]*Property),
		PropertyValues: make(map[string][]*PropertyValue),
		PricesByArt:    make(map[string][]*PriceRecord),
		PriceTexts:     make(map[string]map[string]string),
		VarConds:       make(map[VarCondKey]string),
		RuleTables:     make(map[string]map[string]map[string]string),
	}

	b := &builders{}

	// Tables occupy disjoint byte ranges of the file; decode them in
	// parallel and merge on the main goroutine afterwards.
	var g errgroup.Group
	g.Go(func() error { b.articles = readArticles(f); return nil })
	g.Go(func() error { b.classes = readPropertyClasses(f); return nil })
	g.Go(func() error { b.properties = readProperties(f); return nil })
	g.Go(func() error { b.values = readPropertyValues(f); return nil })
	g.Go(func() error { b.texts = readTexts(f); return nil })
	g.Go(func() error { b.prices = readPrices(f); return nil })
	g.Go(func() error { b.varConds = readVarConds(f); return nil })
	g.Go(func() error { b.rules = readRelationRules(f); return nil })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	b.merge(m, opts)
	m.indexRuleTables(f, b.rules.tables)
	m.freeze()

	opts.Logger.Debug("series loaded",
		zap.String("manufacturer", m.Manufacturer),
		zap.String("series", m.Series),
		zap.Int("articles", len(m.Articles)),
		zap.Int("prices", len(m.Prices)),
		zap.Int("warnings", len(m.Warnings)))
	return m, nil
}

// tableResult carries decoded rows plus the warnings from the iterator.
type tableResult struct {
	rows    []ebase.Record
	warns   []ebase.Warning
	missing string // table name when absent
}

type builders struct {
	articles   tableResult
	classes    tableResult
	properties tableResult
	values     tableResult
	prices     pricesResult
	texts      map[string]map[string]string
	varConds   tableResult
	rules      rulesResult
}

type pricesResult struct {
	rows  []rawPrice
	warns []ebase.Warning
}

type rulesResult struct {
	rules  []TableRule
	tables map[string]bool // tables referenced by parsed rules
	warns  []ebase.Warning
}

func readAll(f *ebase.File, name string, columns ...string) tableResult {
	t, ok := f.Table(name)
	if !ok {
		return tableResult{missing: name}
	}
	it := t.Records(columns...)
	var res tableResult
	for rec := it.Next(); rec != nil; rec = it.Next() {
		res.rows = append(res.rows, rec)
	}
	res.warns = it.Warnings()
	return res
}

func readArticles(f *ebase.File) tableResult {
	return readAll(f, "ocd_article")
}

func readPropertyClasses(f *ebase.File) tableResult {
	return readAll(f, "ocd_propertyclass")
}

func readProperties(f *ebase.File) tableResult {
	return readAll(f, "ocd_property")
}

func readPropertyValues(f *ebase.File) tableResult {
	return readAll(f, "ocd_propertyvalue")
}

func readVarConds(f *ebase.File) tableResult {
	return readAll(f, "propvalue2varcond")
}

// Text tables joined on text id. Any of them may be missing; that is normal.
var textTableNames = []string{
	"ocd_propertytext",
	"ocd_propvaluetext",
	"ocd_artshorttext",
	"ocd_pricetext",
}

func readTexts(f *ebase.File) map[string]map[string]string {
	texts := make(map[string]map[string]string)
	for _, name := range textTableNames {
		t, ok := f.Table(name)
		if !ok {
			continue
		}
		it := t.Records()
		for rec := it.Next(); rec != nil; rec = it.Next() {
			textID := FirstField(rec, aliasTextID)
			if textID == "" {
				continue
			}
			lang := strings.ToUpper(FirstField(rec, aliasLanguage))
			if lang == "" {
				lang = "*"
			}
			line := FirstField(rec, aliasTextLine)
			byLang := texts[textID]
			if byLang == nil {
				byLang = make(map[string]string)
				texts[textID] = byLang
			}
			// Multi-line texts arrive as consecutive rows.
			if prev := byLang[lang]; prev != "" && line != "" {
				byLang[lang] = prev + " " + line
			} else if line != "" {
				byLang[lang] = line
			}
		}
	}
	return texts
}

func readPrices(f *ebase.File) pricesResult {
	t, ok := f.Table("ocd_price")
	if !ok {
		return pricesResult{}
	}
	it := t.Records()
	var out []rawPrice
	for rec := it.Next(); rec != nil; rec = it.Next() {
		raw := rawPrice{
			articleNr: FirstField(rec, aliasArticleNr),
			varCond:   FirstField(rec, aliasVarCond),
			priceType: FirstField(rec, aliasPriceType),
			level:     FirstField(rec, aliasPriceLevel),
			rule:      FirstField(rec, aliasRule),
			currency:  FirstField(rec, aliasCurrency),
			dateFrom:  FirstField(rec, aliasDateFrom),
			dateTo:    FirstField(rec, aliasDateTo),
			textID:    FirstField(rec, aliasTextID),
		}
		if v, ok := FirstValue(rec, aliasPrice); ok {
			raw.price = v
		}
		if v, ok := FirstValue(rec, aliasIsFix); ok {
			raw.isFix = v
		}
		if v, ok := FirstValue(rec, aliasScaleQty); ok {
			raw.scaleQty = v.Int()
		}
		out = append(out, raw)
	}
	return pricesResult{rows: out, warns: it.Warnings()}
}

// tableRulePattern matches the only relation form the engine evaluates:
// $VARCOND = TABLE(<table>, <col>=<value>, <result-col>). Anything else in
// ocd_relation is skipped.
var tableRulePattern = regexp.MustCompile(
	`^\s*\$VARCOND\s*=\s*TABLE\(\s*([A-Za-z0-9_]+)\s*,\s*([A-Za-z0-9_]+)\s*=\s*(\$?[A-Za-z0-9_.:-]+)\s*,\s*([A-Za-z0-9_]+)\s*\)\s*$`)

func readRelationRules(f *ebase.File) rulesResult {
	res := rulesResult{tables: make(map[string]bool)}

	relT, okRel := f.Table("ocd_relation")
	objT, okObj := f.Table("ocd_relationobj")
	if !okRel || !okObj {
		return res
	}

	// rel_name -> code block (single line per row, concatenated).
	blocks := make(map[string]string)
	it := relT.Records()
	for rec := it.Next(); rec != nil; rec = it.Next() {
		name := FirstField(rec, aliasRelName)
		if name == "" {
			continue
		}
		line := FirstField(rec, aliasRelBlock)
		if blocks[name] != "" && line != "" {
			blocks[name] += "\n" + line
		} else if line != "" {
			blocks[name] = line
		}
	}
	res.warns = append(res.warns, it.Warnings()...)

	it = objT.Records()
	for rec := it.Next(); rec != nil; rec = it.Next() {
		scope := FirstField(rec, aliasRelObj)
		name := FirstField(rec, aliasRelName)
		block, ok := blocks[name]
		if !ok {
			continue
		}
		for _, line := range strings.Split(block, "\n") {
			sub := tableRulePattern.FindStringSubmatch(line)
			if sub == nil {
				// General relation code is out of scope; skip silently.
				continue
			}
			res.rules = append(res.rules, TableRule{
				Scope:     scope,
				Table:     sub[1],
				MatchCol:  sub[2],
				MatchVal:  sub[3],
				ResultCol: sub[4],
			})
			res.tables[sub[1]] = true
		}
	}
	res.warns = append(res.warns, it.Warnings()...)
	return res
}

// merge folds the per-table builders into the model, single-threaded.
func (b *builders) merge(m *Model, opts LoadOptions) {
	attachEbaseWarnings := func(source string, warns []ebase.Warning) {
		for _, w := range warns {
			m.warnf(SeverityWarning, w.Code, source, "%s", w.Message)
		}
	}
	missing := func(res tableResult, required bool) bool {
		if res.missing == "" {
			return false
		}
		sev := SeverityInfo
		if required {
			sev = SeverityWarning
		}
		m.warnf(sev, WarnTableMissing, res.missing, "table %s absent", res.missing)
		return true
	}

	// Articles.
	if !missing(b.articles, true) {
		attachEbaseWarnings("ocd_article", b.articles.warns)
		for _, rec := range b.articles.rows {
			nr := NormalizeArticleNr(FirstField(rec, aliasArticleNr))
			if nr == "" {
				continue
			}
			if _, dup := m.Articles[nr]; dup {
				continue
			}
			a := &Article{ArticleNr: nr}
			if textID := FirstField(rec, aliasTextID); textID != "" {
				a.Description = textAt(b.texts, textID, opts.Languages)
			}
			m.Articles[nr] = a
			m.ArticleOrder = append(m.ArticleOrder, nr)
		}
	}

	// Property classes: article -> classes, in position order.
	type classRef struct {
		article string
		class   string
		pos     int64
	}
	var classRefs []classRef
	if !missing(b.classes, true) {
		attachEbaseWarnings("ocd_propertyclass", b.classes.warns)
		for _, rec := range b.classes.rows {
			ref := classRef{
				article: NormalizeArticleNr(FirstField(rec, aliasArticleNr)),
				class:   FirstField(rec, aliasPropClass),
			}
			if v, ok := FirstValue(rec, aliasPosProp); ok {
				ref.pos = v.Int()
			}
			if ref.article == "" || ref.class == "" {
				continue
			}
			classRefs = append(classRefs, ref)
		}
	}
	sort.SliceStable(classRefs, func(i, j int) bool { return classRefs[i].pos < classRefs[j].pos })
	for _, ref := range classRefs {
		a, ok := m.Articles[ref.article]
		if !ok {
			continue
		}
		a.PropClasses = append(a.PropClasses, ref.class)
	}

	// Properties.
	if !missing(b.properties, true) {
		attachEbaseWarnings("ocd_property", b.properties.warns)
		type propRow struct {
			p   *Property
			pos int64
		}
		var rows []propRow
		for _, rec := range b.properties.rows {
			id := FirstField(rec, aliasProperty)
			class := FirstField(rec, aliasPropClass)
			if id == "" {
				continue
			}
			p := &Property{
				ID:    id,
				Class: class,
				Type:  FirstField(rec, []string{"prop_type", "type"}),
			}
			if textID := FirstField(rec, aliasTextID); textID != "" {
				p.Label = textAt(b.texts, textID, opts.Languages)
			}
			if p.Label == "" {
				p.Label = id
			}
			if v, ok := FirstValue(rec, []string{"need_input", "required"}); ok {
				p.Required, _ = parseBoolish(v)
			}
			if v, ok := FirstValue(rec, []string{"multi_option", "multi"}); ok {
				p.Multi, _ = parseBoolish(v)
			}
			var pos int64
			if v, ok := FirstValue(rec, aliasPosProp); ok {
				pos = v.Int()
			}
			p.Pos = int(pos)
			rows = append(rows, propRow{p: p, pos: pos})
		}
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].pos < rows[j].pos })
		for _, row := range rows {
			if _, dup := m.Properties[row.p.ID]; dup {
				continue
			}
			m.Properties[row.p.ID] = row.p
			m.PropClasses[row.p.Class] = append(m.PropClasses[row.p.Class], row.p.ID)
		}
	}

	// Property values.
	if !missing(b.values, true) {
		attachEbaseWarnings("ocd_propertyvalue", b.values.warns)
		type valRow struct {
			prop string
			v    *PropertyValue
			pos  int64
		}
		var rows []valRow
		for _, rec := range b.values.rows {
			prop := FirstField(rec, aliasProperty)
			id := FirstField(rec, aliasPropValue)
			if prop == "" || id == "" {
				continue
			}
			v := &PropertyValue{ID: id}
			if textID := FirstField(rec, aliasTextID); textID != "" {
				v.Label = textAt(b.texts, textID, opts.Languages)
			}
			if v.Label == "" {
				v.Label = id
			}
			if fv, ok := FirstValue(rec, []string{"is_default", "default"}); ok {
				v.Default, _ = parseBoolish(fv)
			}
			var pos int64
			if fv, ok := FirstValue(rec, aliasPosValue); ok {
				pos = fv.Int()
			}
			v.Pos = int(pos)
			rows = append(rows, valRow{prop: prop, v: v, pos: pos})
		}
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].pos < rows[j].pos })
		for _, row := range rows {
			m.PropertyValues[row.prop] = append(m.PropertyValues[row.prop], row.v)
		}
	}

	// Texts.
	m.PriceTexts = b.texts

	// Prices, through the recovery layer and validation filters.
	attachEbaseWarnings("ocd_price", b.prices.warns)
	seq := 0
	for i := range b.prices.rows {
		raw := &b.prices.rows[i]
		var rec *PriceRecord
		if shiftedRecord(raw) {
			rec = recoverShifted(m, raw, seq, opts.Overrides)
		} else {
			rec = normalizePrice(m, raw, seq)
		}
		if rec == nil {
			continue
		}
		seq++
		m.Prices = append(m.Prices, rec)
	}

	// propvalue2varcond.
	if b.varConds.missing == "" {
		attachEbaseWarnings("propvalue2varcond", b.varConds.warns)
		for _, rec := range b.varConds.rows {
			key := VarCondKey{
				Class:    FirstField(rec, aliasPropClass),
				Property: FirstField(rec, aliasProperty),
				Value:    FirstField(rec, aliasPropValue),
			}
			vc := FirstField(rec, aliasVarCond)
			if vc == "" || key.Value == "" {
				continue
			}
			if _, dup := m.VarConds[key]; !dup {
				m.VarConds[key] = vc
			}
		}
	} else {
		m.warnf(SeverityInfo, WarnTableMissing, "propvalue2varcond", "table propvalue2varcond absent")
	}

	// Relation rules for the TABLE-lookup strategy.
	attachEbaseWarnings("ocd_relation", b.rules.warns)
	m.TableRules = b.rules.rules
}

func textAt(texts map[string]map[string]string, textID string, langs []string) string {
	byLang, ok := texts[textID]
	if !ok {
		return ""
	}
	for _, lang := range langs {
		if s := byLang[strings.ToUpper(lang)]; s != "" {
			return s
		}
	}
	for _, s := range byLang {
		if s != "" {
			return s
		}
	}
	return ""
}

// freeze builds the derived indexes and the inferred variant conditions. The
// model must not be mutated afterwards.
func (m *Model) freeze() {
	for _, p := range m.Prices {
		m.PricesByArt[p.ArticleNr] = append(m.PricesByArt[p.ArticleNr], p)
	}

	// Surcharge-only detection: no article carries a base price.
	hasBase := false
	for _, p := range m.Prices {
		if p.PriceLevel == "B" {
			hasBase = true
			break
		}
	}
	m.SurchargeOnly = !hasBase && len(m.Prices) > 0
	if m.SurchargeOnly {
		m.warnf(SeverityInfo, WarnSurchargeOnly, "ocd_price",
			"series has no base price records; totals are surcharge sums")
	}

	// Inferred var_cond per property value: the explicit table wins, then
	// the surcharge naming patterns observed in field data.
	surchargeConds := make(map[string]bool)
	for _, p := range m.Prices {
		if p.PriceLevel != "B" && p.VarCond != "" {
			surchargeConds[p.VarCond] = true
		}
	}
	explicitMisses := 0
	for propID, values := range m.PropertyValues {
		prop := m.Properties[propID]
		for _, v := range values {
			if vc := m.lookupVarCond(prop, propID, v.ID); vc != "" {
				v.InferredVarCond = vc
				continue
			}
			if len(m.VarConds) > 0 {
				explicitMisses++
			}
			if surchargeConds["S_"+v.ID] {
				v.InferredVarCond = "S_" + v.ID
			} else if surchargeConds[v.ID] {
				v.InferredVarCond = v.ID
			}
		}
	}
	// propvalue2varcond entries are sometimes shared across series within a
	// manufacturer; lookups stay local to this series by design.
	if explicitMisses > 0 {
		m.warnf(SeverityInfo, WarnVarCondCrossSeries, "propvalue2varcond",
			"%d property values missing from propvalue2varcond; lookup not broadened across series",
			explicitMisses)
	}
}

// lookupVarCond performs the explicit propvalue2varcond lookup with its
// class -> property -> value fallback chain.
func (m *Model) lookupVarCond(prop *Property, propID, valueID string) string {
	if prop != nil {
		if vc, ok := m.VarConds[VarCondKey{Class: prop.Class, Property: propID, Value: valueID}]; ok {
			return vc
		}
	}
	if vc, ok := m.VarConds[VarCondKey{Property: propID, Value: valueID}]; ok {
		return vc
	}
	if vc, ok := m.VarConds[VarCondKey{Value: valueID}]; ok {
		return vc
	}
	return ""
}

// indexRuleTables decodes the lookup tables referenced by TABLE rules. For
// every (table, match column) pair used by a rule it builds a value-to-result
// index; a rule whose table the file does not carry simply never matches.
func (m *Model) indexRuleTables(f *ebase.File, referenced map[string]bool) {
	for name := range referenced {
		t, ok := f.Table(name)
		if !ok {
			m.warnf(SeverityInfo, WarnTableMissing, name,
				"table %s referenced by relation rule is absent", name)
			continue
		}
		var rows []ebase.Record
		it := t.Records()
		for rec := it.Next(); rec != nil; rec = it.Next() {
			rows = append(rows, rec)
		}

		cols := make(map[string]map[string]string)
		for _, rule := range m.TableRules {
			if rule.Table != name || cols[rule.MatchCol] != nil {
				continue
			}
			byVal := make(map[string]string)
			for _, rec := range rows {
				match := strings.TrimSpace(rec.Str(rule.MatchCol))
				result := strings.TrimSpace(rec.Str(rule.ResultCol))
				if match != "" && result != "" {
					byVal[match] = result
				}
			}
			cols[rule.MatchCol] = byVal
		}
		m.RuleTables[name] = cols
	}
}
