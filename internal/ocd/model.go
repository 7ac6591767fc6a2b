// Package ocd parses OCD commercial data out of EBase files into a uniform
// in-memory model. Manufacturer data is heterogeneous and partially corrupt;
// everything recoverable becomes a DataWarning on the model instead of an
// error.
package ocd

import "fmt"

// Severity grades a DataWarning.
type Severity uint8

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", uint8(s))
	}
}

// Warning codes attached to models and configurations. The codes are part of
// the exported JSON surface and stay stable.
const (
	WarnCorruptedRecordRecovered = "CORRUPTED_RECORD_RECOVERED"
	WarnPriceDropped             = "PRICE_DROPPED"
	WarnStringRefOutOfRange      = "STRING_REF_OUT_OF_RANGE"
	WarnRecordDecodeFailed       = "RECORD_DECODE_FAILED"
	WarnTableMissing             = "TABLE_MISSING"
	WarnBadDate                  = "BAD_DATE"
	WarnCurrencyInvalid          = "CURRENCY_INVALID"
	WarnCurrencyMixed            = "CURRENCY_MIXED"
	WarnWildcardBaseDropped      = "WILDCARD_BASE_DROPPED"
	WarnNoBasePrice              = "NO_BASE_PRICE"
	WarnWildcardBaseUsed         = "WILDCARD_BASE_USED"
	WarnSurchargeOnly            = "SURCHARGE_ONLY_PRICING"
	WarnFamilyConflict           = "FAMILY_CONFLICT"
	WarnDiscountChain            = "DISCOUNT_CHAIN"
	WarnVarCondCrossSeries       = "VARCOND_CROSS_SERIES"
)

// DataWarning is a recoverable data quality finding.
type DataWarning struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Source   string   `json:"source,omitempty"`
}

// Article is one configurable product.
type Article struct {
	ArticleNr   string
	Description string
	// PropClasses lists the property classes attached to the article, in
	// ocd_propertyclass position order.
	PropClasses []string
}

// Property is one configurable attribute of a property class.
type Property struct {
	ID       string
	Class    string
	Label    string
	Type     string
	Pos      int
	Required bool
	Multi    bool
}

// PropertyValue is one selectable option of a property.
type PropertyValue struct {
	ID    string
	Label string
	Pos   int
	// Default marks the manufacturer supplied default option.
	Default bool
	// InferredVarCond is the variant condition this value maps to, when the
	// data supplies one (propvalue2varcond or a recognizable naming pattern).
	InferredVarCond string
}

// PriceRecord is one normalized row of ocd_price.
type PriceRecord struct {
	ArticleNr  string
	VarCond    string
	PriceType  string // "S" sale, "P" purchase
	PriceLevel string // "B" base, "X" surcharge, "D" discount
	Price      float64
	IsFix      bool
	Rule       string // discount rule "1" (of base) or "2" (of running total)
	Currency   string
	DateFrom   string // YYYYMMDD
	DateTo     string // YYYYMMDD
	TextID     string
	ScaleQty   int64
	// Seq preserves source file order; the calculator uses it for
	// first-match tie breaking.
	Seq int
}

// Wildcard reports whether the record applies to every article of the series.
func (p *PriceRecord) Wildcard() bool { return p.ArticleNr == "*" }

// TableRule is a stored relation rule restricted to the pure table-lookup
// form `$VARCOND = TABLE(<table>, <col>=<value>, <result-col>)`. General
// relation code blocks are not evaluated.
type TableRule struct {
	// Scope is the article or property class the rule is attached to.
	Scope     string
	Table     string
	MatchCol  string
	MatchVal  string
	ResultCol string
}

// VarCondKey addresses a propvalue2varcond entry. Class may be empty for the
// manufacturers that key only on property and value.
type VarCondKey struct {
	Class    string
	Property string
	Value    string
}

// Model is the canonical per-series data set. It is frozen after Load and
// safe for unsynchronized concurrent reads.
type Model struct {
	Manufacturer string
	Series       string

	Articles       map[string]*Article
	ArticleOrder   []string
	PropClasses    map[string][]string          // class -> property ids, pos order
	Properties     map[string]*Property         // property id -> property
	PropertyValues map[string][]*PropertyValue  // property id -> values, pos order
	Prices         []*PriceRecord               // source order
	PricesByArt    map[string][]*PriceRecord    // article_nr -> records, source order
	PriceTexts     map[string]map[string]string // text id -> lang -> text
	VarConds       map[VarCondKey]string        // propvalue2varcond
	TableRules     []TableRule
	// RuleTables pre-indexes every table referenced by a TableRule:
	// table -> match column -> cell value -> result value.
	RuleTables map[string]map[string]map[string]string

	// SurchargeOnly is set when no article in the series carries a base
	// price record; totals are then the sum of matching surcharges.
	SurchargeOnly bool

	Warnings []DataWarning
}

// Lookup tables indexed during freeze.

// Article returns the article by number.
func (m *Model) Article(nr string) (*Article, bool) {
	a, ok := m.Articles[nr]
	return a, ok
}

// PropertyValue returns one value of a property, by id.
func (m *Model) PropertyValue(propertyID, valueID string) (*PropertyValue, bool) {
	for _, v := range m.PropertyValues[propertyID] {
		if v.ID == valueID {
			return v, true
		}
	}
	return nil, false
}

// Text resolves a text id against the preference-ordered language list.
func (m *Model) Text(textID string, langs []string) string {
	byLang, ok := m.PriceTexts[textID]
	if !ok {
		return ""
	}
	for _, lang := range langs {
		if s, ok := byLang[lang]; ok && s != "" {
			return s
		}
	}
	// Any language beats none.
	for _, s := range byLang {
		if s != "" {
			return s
		}
	}
	return ""
}

func (m *Model) warnf(sev Severity, code, source, format string, args ...any) {
	m.Warnings = append(m.Warnings, DataWarning{
		Severity: sev,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Source:   source,
	})
}
