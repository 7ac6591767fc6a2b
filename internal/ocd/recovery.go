package ocd

import (
	"math"
	"strings"

	"github.com/INSPIRATIONlabs/ofmlgo/internal/ebase"
)

// OverrideSource supplies known-good prices for articles whose ocd_price
// records had to be reconstructed. The sqlite-backed store in
// internal/storage/overrides implements it; a nil source disables the check.
type OverrideSource interface {
	Lookup(manufacturer, series, articleNr string) (Override, bool)
}

// Override is one known-good replacement price.
type Override struct {
	Price      float64
	Currency   string
	PriceLevel string
}

// rawPrice is one ocd_price row before normalization. The recovery layer
// works on raw values because the corruption signature lives in the
// unnormalized fields.
type rawPrice struct {
	articleNr string
	varCond   string
	priceType string
	level     string
	price     ebase.Value
	isFix     ebase.Value
	rule      string
	currency  string
	dateFrom  string
	dateTo    string
	textID    string
	scaleQty  int64
}

// shiftedRecord reports whether a row exhibits the 8-byte shift corruption
// seen in field data: the article number lands in price_type, a lone price
// level letter in text_id, and garbage in is_fix.
func shiftedRecord(r *rawPrice) bool {
	if r.articleNr != "" {
		return false
	}
	if !articleShaped(r.priceType) {
		return false
	}
	level := strings.ToUpper(strings.TrimSpace(r.textID))
	if level != "B" && level != "X" {
		return false
	}
	_, ok := parseBoolish(r.isFix)
	return !ok
}

// articleShaped reports whether a string looks like an article number:
// at least two characters, alphanumeric with the separators articles use,
// at least two letters or digits.
func articleShaped(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return false
	}
	alnum := 0
	for _, c := range s {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			alnum++
		case c == ':' || c == '-' || c == '_' || c == '.' || c == '/':
			// separators used by article numbering schemes
		default:
			return false
		}
	}
	return alnum >= 2
}

// recoverShifted synthesizes a replacement for a shifted row. The price slot
// is unreliable, so the record only enters the model with a price when the
// override source knows one; otherwise it is surfaced through the warning
// alone.
func recoverShifted(m *Model, r *rawPrice, seq int, overrides OverrideSource) *PriceRecord {
	articleNr := NormalizeArticleNr(r.priceType)
	level := strings.ToUpper(strings.TrimSpace(r.textID))

	m.warnf(SeverityWarning, WarnCorruptedRecordRecovered, "ocd_price",
		"shifted record recovered: article %s, level %s", articleNr, level)

	if overrides == nil {
		return nil
	}
	ov, ok := overrides.Lookup(m.Manufacturer, m.Series, articleNr)
	if !ok {
		return nil
	}
	currency := NormalizeCurrency(ov.Currency)
	if currency == "" {
		currency = "EUR"
	}
	if lv := NormalizePriceLevel(ov.PriceLevel); lv != "" {
		level = lv
	}
	return &PriceRecord{
		ArticleNr:  articleNr,
		PriceType:  "S", // assumed; the slot held the article number
		PriceLevel: level,
		Price:      ov.Price,
		IsFix:      true,
		Currency:   currency,
		DateFrom:   DateMin,
		DateTo:     DateMax,
		Seq:        seq,
	}
}

// normalizePrice validates one raw row into a PriceRecord, or nil when the
// row must be dropped. Every drop leaves a warning on the model.
func normalizePrice(m *Model, r *rawPrice, seq int) *PriceRecord {
	level := NormalizePriceLevel(r.level)
	if level == "" {
		m.warnf(SeverityWarning, WarnPriceDropped, "ocd_price",
			"article %s: price level %q outside B/X/D", r.articleNr, r.level)
		return nil
	}

	price := r.price.Float()
	if math.IsNaN(price) {
		m.warnf(SeverityWarning, WarnPriceDropped, "ocd_price",
			"article %s: NaN price", r.articleNr)
		return nil
	}
	// Nonzero values below a tenth of a cent are decoded garbage.
	if price != 0 && math.Abs(price) < 0.001 {
		m.warnf(SeverityWarning, WarnPriceDropped, "ocd_price",
			"article %s: implausible price %g", r.articleNr, price)
		return nil
	}

	articleNr := NormalizeArticleNr(r.articleNr)
	if articleNr == "*" && level == "B" {
		m.warnf(SeverityWarning, WarnWildcardBaseDropped, "ocd_price",
			"wildcard base price record dropped (var_cond %q)", r.varCond)
		return nil
	}

	currency := NormalizeCurrency(r.currency)
	if currency == "" {
		m.warnf(SeverityWarning, WarnCurrencyInvalid, "ocd_price",
			"article %s: invalid currency %q", articleNr, r.currency)
		currency = "EUR"
	}

	dateFrom, ok := NormalizeDate(r.dateFrom, DateMin)
	if !ok {
		m.warnf(SeverityWarning, WarnBadDate, "ocd_price",
			"article %s: unparseable date_from %q", articleNr, r.dateFrom)
		dateFrom = DateMin
	}
	dateTo, ok := NormalizeDate(r.dateTo, DateMax)
	if !ok {
		m.warnf(SeverityWarning, WarnBadDate, "ocd_price",
			"article %s: unparseable date_to %q", articleNr, r.dateTo)
		dateTo = DateMax
	}

	priceType := strings.ToUpper(strings.TrimSpace(r.priceType))
	if priceType != "S" && priceType != "P" {
		priceType = "S"
	}

	isFix, ok := parseBoolish(r.isFix)
	if !ok {
		// Unrecognized flag; percentage application of a garbage flag is the
		// more damaging failure mode, treat as fixed.
		isFix = true
	}

	return &PriceRecord{
		ArticleNr:  articleNr,
		VarCond:    strings.TrimSpace(r.varCond),
		PriceType:  priceType,
		PriceLevel: level,
		Price:      price,
		IsFix:      isFix,
		Rule:       strings.TrimSpace(r.rule),
		Currency:   currency,
		DateFrom:   dateFrom,
		DateTo:     dateTo,
		TextID:     strings.TrimSpace(r.textID),
		ScaleQty:   r.scaleQty,
		Seq:        seq,
	}
}
