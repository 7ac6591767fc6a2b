package pricing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/INSPIRATIONlabs/ofmlgo/internal/ocd"
)

// LineItem is one surcharge or discount applied to a price.
type LineItem struct {
	VarCond      string
	Description  string
	Amount       float64 // the applied amount, already resolved to currency
	RawPrice     float64 // the record's price field
	IsPercentage bool
	Rule         string // discount rule, empty on surcharges
	Property     string // triggering selection, when known
	Value        string
}

// Price is a fully itemized calculation result. It is always well-formed;
// data problems are carried in Warnings.
type Price struct {
	Base       float64
	Currency   string
	Surcharges []LineItem
	Discounts  []LineItem
	Total      float64
	PriceDate  string // effective date the calculation ran at, YYYYMMDD
	ValidFrom  string // YYYYMMDD of the selected base record, empty if none
	ValidTo    string
	Warnings   []ocd.DataWarning
}

// Request parameterizes one calculation.
type Request struct {
	ArticleNr  string
	Selections Selections
	// PriceDate is the effective date, YYYYMMDD. Records are valid when
	// date_from <= PriceDate <= date_to, endpoints inclusive.
	PriceDate string
	// Currency restricts the calculation to one currency when set. If the
	// filter eliminates every base price the calculation retries without it.
	Currency string
	// Languages orders description lookups; ocd.DefaultLanguages when nil.
	Languages []string
}

// Calculate computes the itemized price for a configuration. It is a pure
// function of (model, request); it never fails and never performs I/O.
func Calculate(model *ocd.Model, req Request) Price {
	if req.PriceDate == "" {
		req.PriceDate = ocd.DateMin
	}
	if len(req.Languages) == 0 {
		req.Languages = ocd.DefaultLanguages
	}

	p := Price{Currency: req.Currency, PriceDate: req.PriceDate}

	base := selectBase(model, &p, req, req.Currency != "")
	if base != nil {
		p.Base = base.Price
		p.Currency = base.Currency
		p.ValidFrom = base.DateFrom
		p.ValidTo = base.DateTo
	}

	applySurcharges(model, &p, req)

	if base == nil {
		if model.SurchargeOnly && len(p.Surcharges) > 0 {
			// Surcharge-only series: the total is the sum of matches and the
			// currency follows the first surcharge.
			warn(&p, ocd.SeverityWarning, ocd.WarnSurchargeOnly,
				"article %s: no base price, total is the surcharge sum", req.ArticleNr)
		} else {
			warn(&p, ocd.SeverityWarning, ocd.WarnNoBasePrice,
				"article %s: no base price record matches", req.ArticleNr)
		}
	}

	applyDiscounts(model, &p, req)

	total := p.Base
	for _, li := range p.Surcharges {
		total += li.Amount
	}
	for _, li := range p.Discounts {
		total -= li.Amount
	}
	p.Total = total
	if p.Currency == "" {
		p.Currency = "EUR"
	}
	return p
}

// selectBase picks the base price per OCD 4.3: exact article first, wildcard
// as a tolerated fallback; base-indicator var_cond preferred; most recent
// date_from among the remainder.
func selectBase(model *ocd.Model, p *Price, req Request, currencyFiltered bool) *ocd.PriceRecord {
	pick := func(records []*ocd.PriceRecord) *ocd.PriceRecord {
		var indicator, latest *ocd.PriceRecord
		for _, rec := range records {
			if rec.PriceLevel != "B" || !dateValid(rec, req.PriceDate) {
				continue
			}
			if currencyFiltered && rec.Currency != strings.ToUpper(req.Currency) {
				continue
			}
			if IsBaseIndicator(rec.VarCond) {
				if indicator == nil || rec.DateFrom > indicator.DateFrom {
					indicator = rec
				}
			}
			if latest == nil || rec.DateFrom > latest.DateFrom {
				latest = rec
			}
		}
		if indicator != nil {
			return indicator
		}
		return latest
	}

	if rec := pick(model.PricesByArt[req.ArticleNr]); rec != nil {
		return rec
	}
	// Wildcard base records are dropped at load time per OCD 4.3; the
	// fallback still scans the wildcard records in case the model holds one.
	if rec := pick(model.PricesByArt["*"]); rec != nil {
		warn(p, ocd.SeverityWarning, ocd.WarnWildcardBaseUsed,
			"article %s: using wildcard base price", req.ArticleNr)
		return rec
	}
	if currencyFiltered {
		warn(p, ocd.SeverityWarning, ocd.WarnCurrencyMixed,
			"article %s: no base price in %s, retrying without currency filter",
			req.ArticleNr, req.Currency)
		return selectBase(model, p, req, false)
	}
	return nil
}

func applySurcharges(model *ocd.Model, p *Price, req Request) {
	for _, m := range ResolveMatches(model, req.ArticleNr, req.Selections, "X") {
		rec := m.Record
		if !dateValid(rec, req.PriceDate) {
			continue
		}
		if !currencyCompatible(p, rec) {
			warn(p, ocd.SeverityWarning, ocd.WarnCurrencyMixed,
				"surcharge %s in %s dropped, price is in %s", rec.VarCond, rec.Currency, p.Currency)
			continue
		}
		li := LineItem{
			VarCond:      rec.VarCond,
			Description:  model.Text(rec.TextID, req.Languages),
			RawPrice:     rec.Price,
			IsPercentage: !rec.IsFix,
			Property:     m.Property,
			Value:        m.Value,
		}
		if rec.IsFix {
			li.Amount = rec.Price
		} else {
			li.Amount = p.Base * rec.Price / 100
		}
		if p.Currency == "" {
			p.Currency = rec.Currency
		}
		p.Surcharges = append(p.Surcharges, li)
	}
}

func applyDiscounts(model *ocd.Model, p *Price, req Request) {
	matches := ResolveMatches(model, req.ArticleNr, req.Selections, "D")

	// Running-total discounts (rule "2") chain in date_from descending
	// order; the exact ordering is undocumented in OCD 4.3, so the choice is
	// surfaced with a warning when more than one chains.
	sort.SliceStable(matches, func(i, j int) bool {
		ri, rj := matches[i].Record, matches[j].Record
		if isRunningTotal(ri) != isRunningTotal(rj) {
			return !isRunningTotal(ri)
		}
		if isRunningTotal(ri) {
			return ri.DateFrom > rj.DateFrom
		}
		return false
	})

	running := p.Base
	for _, li := range p.Surcharges {
		running += li.Amount
	}
	chained := 0

	for _, m := range matches {
		rec := m.Record
		if !dateValid(rec, req.PriceDate) {
			continue
		}
		if !currencyCompatible(p, rec) {
			warn(p, ocd.SeverityWarning, ocd.WarnCurrencyMixed,
				"discount %s in %s dropped, price is in %s", rec.VarCond, rec.Currency, p.Currency)
			continue
		}
		li := LineItem{
			VarCond:      rec.VarCond,
			Description:  model.Text(rec.TextID, req.Languages),
			RawPrice:     rec.Price,
			IsPercentage: !rec.IsFix,
			Rule:         rec.Rule,
			Property:     m.Property,
			Value:        m.Value,
		}
		switch {
		case rec.IsFix:
			li.Amount = rec.Price
		case rec.Rule == "2":
			li.Amount = running * rec.Price / 100
			chained++
		default:
			// Rule "1" and unmarked percentage discounts apply to the base.
			li.Amount = p.Base * rec.Price / 100
		}
		running -= li.Amount
		p.Discounts = append(p.Discounts, li)
	}

	if chained > 1 {
		warn(p, ocd.SeverityWarning, ocd.WarnDiscountChain,
			"%d running-total discounts chained; applied in date_from descending order", chained)
	}
}

// dateValid tests date_from <= date <= date_to with inclusive endpoints.
// Normalized dates compare correctly as strings.
func dateValid(rec *ocd.PriceRecord, date string) bool {
	from := rec.DateFrom
	if from == "" {
		from = ocd.DateMin
	}
	to := rec.DateTo
	if to == "" {
		to = ocd.DateMax
	}
	return from <= date && date <= to
}

// currencyCompatible enforces the single-currency policy: once the result
// has a currency, records in a different one are dropped.
func currencyCompatible(p *Price, rec *ocd.PriceRecord) bool {
	return p.Currency == "" || rec.Currency == "" || rec.Currency == p.Currency
}

func isRunningTotal(rec *ocd.PriceRecord) bool {
	return !rec.IsFix && rec.Rule == "2"
}

func warn(p *Price, sev ocd.Severity, code, format string, args ...any) {
	p.Warnings = append(p.Warnings, ocd.DataWarning{
		Severity: sev,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Source:   "calculator",
	})
}
