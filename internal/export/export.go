// Package export renders configurations as the stable JSON document shared
// with downstream consumers.
package export

import (
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/INSPIRATIONlabs/ofmlgo/internal/engine"
	"github.com/INSPIRATIONlabs/ofmlgo/internal/ocd"
	"github.com/INSPIRATIONlabs/ofmlgo/internal/pricing"
)

// Document is the export shape. Field order and names are part of the
// contract and must not change.
type Document struct {
	ArticleNr       string            `json:"article_nr"`
	Manufacturer    string            `json:"manufacturer"`
	Series          string            `json:"series"`
	VariantCode     *string           `json:"variant_code"`
	Configuration   map[string]string `json:"configuration"`
	PropertyDetails []PropertyDetail  `json:"property_details"`
	Pricing         Pricing           `json:"pricing"`
	Warnings        []Warning         `json:"warnings"`
	ExportedAt      string            `json:"exported_at"`
}

// PropertyDetail describes one selected property with its labels.
type PropertyDetail struct {
	Key        string `json:"key"`
	Label      string `json:"label"`
	Value      string `json:"value"`
	ValueLabel string `json:"value_label"`
	Group      string `json:"group,omitempty"`
}

// Pricing is the itemized price block.
type Pricing struct {
	Base       float64     `json:"base"`
	Surcharges []Surcharge `json:"surcharges"`
	Discounts  []Discount  `json:"discounts"`
	Net        float64     `json:"net"`
	Total      float64     `json:"total"`
	Currency   string      `json:"currency"`
	PriceDate  *string     `json:"price_date"`
	ValidFrom  *string     `json:"valid_from"`
	ValidTo    *string     `json:"valid_to"`
}

// Surcharge is one applied surcharge line.
type Surcharge struct {
	VarCond      string  `json:"var_cond"`
	Description  string  `json:"description"`
	Amount       float64 `json:"amount"`
	IsPercentage bool    `json:"is_percentage"`
}

// Discount is one applied discount line.
type Discount struct {
	VarCond     string  `json:"var_cond"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Rule        string  `json:"rule"`
}

// Warning mirrors ocd.DataWarning with a string severity.
type Warning struct {
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Source   string `json:"source,omitempty"`
}

// Build assembles the document for a configuration and its calculated price.
// now is injected for reproducible output.
func Build(cfg *engine.Configuration, price pricing.Price, warnings []ocd.DataWarning, now time.Time) Document {
	doc := Document{
		ArticleNr:     cfg.ArticleNr,
		Manufacturer:  cfg.Model.Manufacturer,
		Series:        cfg.Model.Series,
		VariantCode:   variantCode(cfg.Selections),
		Configuration: map[string]string(cfg.Selections),
		Pricing: Pricing{
			Base:      price.Base,
			Net:       price.Total,
			Total:     price.Total,
			Currency:  price.Currency,
			PriceDate: isoDate(price.PriceDate),
			ValidFrom: isoDate(price.ValidFrom),
			ValidTo:   isoDate(price.ValidTo),
		},
		ExportedAt: now.UTC().Format(time.RFC3339),
	}
	if doc.Configuration == nil {
		doc.Configuration = map[string]string{}
	}

	for _, key := range sortedKeys(cfg.Selections) {
		val := cfg.Selections[key]
		detail := PropertyDetail{Key: key, Value: val, Label: key, ValueLabel: val}
		if p, ok := cfg.Model.Properties[key]; ok {
			if p.Label != "" {
				detail.Label = p.Label
			}
			detail.Group = p.Class
		}
		if pv, ok := cfg.Model.PropertyValue(key, val); ok && pv.Label != "" {
			detail.ValueLabel = pv.Label
		}
		doc.PropertyDetails = append(doc.PropertyDetails, detail)
	}

	doc.Pricing.Surcharges = make([]Surcharge, 0, len(price.Surcharges))
	for _, li := range price.Surcharges {
		doc.Pricing.Surcharges = append(doc.Pricing.Surcharges, Surcharge{
			VarCond:      li.VarCond,
			Description:  li.Description,
			Amount:       li.Amount,
			IsPercentage: li.IsPercentage,
		})
	}
	doc.Pricing.Discounts = make([]Discount, 0, len(price.Discounts))
	for _, li := range price.Discounts {
		doc.Pricing.Discounts = append(doc.Pricing.Discounts, Discount{
			VarCond:     li.VarCond,
			Description: li.Description,
			Amount:      li.Amount,
			Rule:        li.Rule,
		})
	}

	doc.Warnings = make([]Warning, 0, len(warnings))
	for _, w := range warnings {
		doc.Warnings = append(doc.Warnings, Warning{
			Severity: w.Severity.String(),
			Code:     w.Code,
			Message:  w.Message,
			Source:   w.Source,
		})
	}
	return doc
}

// Marshal renders the document with stable formatting.
func Marshal(doc Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// variantCode renders selections as "KEY=val;KEY2=val2" with keys in ASCII
// order, nil when nothing is selected.
func variantCode(sel pricing.Selections) *string {
	if len(sel) == 0 {
		return nil
	}
	keys := sortedKeys(sel)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+sel[k])
	}
	s := strings.Join(parts, ";")
	return &s
}

// isoDate converts YYYYMMDD to YYYY-MM-DD, nil on empty or short input.
func isoDate(d string) *string {
	if len(d) != 8 {
		return nil
	}
	s := d[:4] + "-" + d[4:6] + "-" + d[6:]
	return &s
}

func sortedKeys(sel pricing.Selections) []string {
	keys := make([]string, 0, len(sel))
	for k := range sel {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
