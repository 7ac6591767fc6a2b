package ocd

import (
	"strings"

	"github.com/INSPIRATIONlabs/ofmlgo/internal/ebase"
)

// Column alias lists observed across manufacturer data sets. Every field the
// engine reads goes through FirstField with one of these lists so the rest of
// the code can assume a single vocabulary.
var (
	aliasArticleNr  = []string{"article_nr", "ArticleID", "artikel_nr", "art_nr"}
	aliasVarCond    = []string{"var_cond", "varcond", "variant_cond", "VariantCondition"}
	aliasPriceType  = []string{"price_type", "ptype", "PriceType"}
	aliasPriceLevel = []string{"price_level", "plevel", "level", "PriceLevel"}
	aliasPrice      = []string{"price", "amount", "Price"}
	aliasIsFix      = []string{"is_fix", "fix", "IsFix"}
	aliasRule       = []string{"rule", "discount_rule", "calc_rule"}
	aliasCurrency   = []string{"currency", "curr", "Currency"}
	aliasDateFrom   = []string{"date_from", "valid_from", "DateFrom"}
	aliasDateTo     = []string{"date_to", "valid_to", "DateTo"}
	aliasTextID     = []string{"price_textnr", "textnr", "text_id", "TextID"}
	aliasScaleQty   = []string{"scale_quantity", "scale_qty", "quantity"}

	aliasPropClass = []string{"prop_class", "property_class", "class", "PropClass"}
	aliasProperty  = []string{"property", "prop", "property_id", "Property"}
	aliasPropValue = []string{"value_from", "value", "pval", "value_id", "Value"}
	aliasPosProp   = []string{"pos_prop", "position", "pos"}
	aliasPosValue  = []string{"pos_pval", "position", "pos"}
	aliasLanguage  = []string{"language", "lang", "Language"}
	aliasTextLine  = []string{"text", "text_line", "line", "Text"}
	aliasRelName   = []string{"rel_name", "relation", "name"}
	aliasRelBlock  = []string{"rel_block", "block", "code", "text"}
	aliasRelObj    = []string{"rel_obj", "article_nr", "prop_class"}
)

// Defaults applied by the date normalizer.
const (
	DateMin = "19000101"
	DateMax = "99991231"
)

// FirstField returns the first non-empty value among the alias candidates,
// trimmed of surrounding whitespace.
func FirstField(rec ebase.Record, candidates []string) string {
	for _, name := range candidates {
		if v, ok := rec[name]; ok {
			if s := strings.TrimSpace(v.Str()); s != "" {
				return s
			}
		}
	}
	return ""
}

// FirstValue returns the raw Value of the first present alias, decoded or
// not, so numeric fields keep their type.
func FirstValue(rec ebase.Record, candidates []string) (ebase.Value, bool) {
	for _, name := range candidates {
		if v, ok := rec[name]; ok {
			return v, true
		}
	}
	return ebase.Value{}, false
}

// NormalizePriceLevel trims and uppercases a price level. Anything outside
// {"B","X","D"} comes back as the empty string.
func NormalizePriceLevel(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch s {
	case "B", "X", "D":
		return s
	default:
		return ""
	}
}

// NormalizeCurrency maps empty to EUR and validates 3-letter ASCII codes.
// Invalid codes come back empty; the caller attaches the warning.
func NormalizeCurrency(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "EUR"
	}
	if len(s) != 3 {
		return ""
	}
	for i := 0; i < 3; i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return ""
		}
	}
	return s
}

// NormalizeDate parses a lenient date string into 8-digit YYYYMMDD, or the
// default when empty. The boolean is false when a non-empty input could not
// be parsed; the caller then treats the record as always valid.
func NormalizeDate(s, def string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, true
	}
	// Strip common separators: 2024-01-01, 2024.01.01, 2024/01/01.
	var digits []byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			digits = append(digits, c)
		case c == '-' || c == '.' || c == '/' || c == ' ':
			// separator
		default:
			return def, false
		}
	}
	switch len(digits) {
	case 8:
		return string(digits), true
	case 6:
		// YYYYMM, day defaults to 01.
		return string(digits) + "01", true
	case 4:
		// Bare year.
		return string(digits) + "0101", true
	default:
		return def, false
	}
}

// NormalizeArticleNr trims and uppercases an article number. OCD data mixes
// cases for the same article between tables.
func NormalizeArticleNr(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// parseBoolish interprets the 0/1 flags found in OCD data, tolerating string
// encodings.
func parseBoolish(v ebase.Value) (value, ok bool) {
	switch strings.TrimSpace(v.Str()) {
	case "1", "J", "Y", "true":
		return true, true
	case "0", "", "N", "false":
		return false, true
	default:
		return false, false
	}
}
