// Package catalog groups a series' articles into configurable product
// families and enumerates their properties.
package catalog

import (
	"sort"
	"strings"

	"github.com/INSPIRATIONlabs/ofmlgo/internal/ocd"
)

// Family is a group of articles sharing a property-class tuple.
type Family struct {
	ID                      string
	Name                    string
	RepresentativeArticleNr string
	VariantCount            int
	Articles                []string // member article numbers, sorted
	classes                 []string
	Warnings                []ocd.DataWarning
}

// PropertyWithValues pairs one property with its selectable values.
type PropertyWithValues struct {
	Property *ocd.Property
	Values   []*ocd.PropertyValue
}

// ListFamilies groups the model's articles. The grouping key is the tuple of
// property-class ids; articles without classes fall back to their article
// number prefix. Families are returned sorted by representative article.
func ListFamilies(model *ocd.Model) []*Family {
	groups := make(map[string]*Family)
	var order []string

	for _, nr := range model.ArticleOrder {
		a := model.Articles[nr]
		key, classes := groupKey(a)
		fam, ok := groups[key]
		if !ok {
			fam = &Family{ID: key, classes: append([]string(nil), classes...)}
			groups[key] = fam
			order = append(order, key)
		}
		fam.Articles = append(fam.Articles, nr)
	}

	// Families with the same property-class tuple (as a set) are merged. A
	// merge of families whose ordered class lists disagree exposes the union
	// and flags the family.
	merged := make(map[string]*Family)
	var mergedOrder []string
	for _, key := range order {
		fam := groups[key]
		mkey := mergeKey(fam.classes, key)
		dst, ok := merged[mkey]
		if !ok {
			merged[mkey] = fam
			mergedOrder = append(mergedOrder, mkey)
			continue
		}
		dst.Articles = append(dst.Articles, fam.Articles...)
		if !equalStrings(dst.classes, fam.classes) {
			dst.classes = unionStrings(dst.classes, fam.classes)
			dst.Warnings = append(dst.Warnings, ocd.DataWarning{
				Severity: ocd.SeverityWarning,
				Code:     ocd.WarnFamilyConflict,
				Message:  "family " + mkey + ": conflicting property sets merged",
				Source:   "catalog",
			})
		}
	}

	var out []*Family
	for _, mkey := range mergedOrder {
		fam := merged[mkey]
		fam.ID = mkey
		sort.Strings(fam.Articles)
		fam.VariantCount = len(fam.Articles)
		fam.RepresentativeArticleNr = representative(model, fam.Articles)
		fam.Name = familyName(model, fam)
		out = append(out, fam)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RepresentativeArticleNr < out[j].RepresentativeArticleNr
	})
	return out
}

// groupKey returns the grouping key for an article: its ordered class tuple,
// or the article number prefix when the article carries no property classes.
func groupKey(a *ocd.Article) (string, []string) {
	if len(a.PropClasses) > 0 {
		return "c:" + strings.Join(a.PropClasses, "|"), a.PropClasses
	}
	return "p:" + articlePrefix(a.ArticleNr), nil
}

// mergeKey canonicalizes the class tuple as a set so that families listing
// the same classes in different order merge.
func mergeKey(classes []string, fallback string) string {
	if len(classes) == 0 {
		return fallback
	}
	sorted := append([]string(nil), classes...)
	sort.Strings(sorted)
	return "c:" + strings.Join(sorted, "|")
}

// articlePrefix takes the leading segment of an article number up to the
// first separator, falling back to the alphabetic head.
func articlePrefix(nr string) string {
	if i := strings.IndexAny(nr, ":-_/."); i > 0 {
		return nr[:i]
	}
	for i := 0; i < len(nr); i++ {
		if nr[i] >= '0' && nr[i] <= '9' {
			return nr[:i]
		}
	}
	return nr
}

// representative picks the lexicographically smallest member that has a base
// price, falling back to the smallest member.
func representative(model *ocd.Model, articles []string) string {
	for _, nr := range articles {
		for _, rec := range model.PricesByArt[nr] {
			if rec.PriceLevel == "B" {
				return nr
			}
		}
	}
	if len(articles) > 0 {
		return articles[0]
	}
	return ""
}

func familyName(model *ocd.Model, fam *Family) string {
	if a, ok := model.Articles[fam.RepresentativeArticleNr]; ok && a.Description != "" {
		return a.Description
	}
	return strings.TrimPrefix(strings.TrimPrefix(fam.ID, "c:"), "p:")
}

// PropertiesFor returns the family's properties with their values, ordered
// by pos_prop within class order.
func PropertiesFor(model *ocd.Model, fam *Family) []PropertyWithValues {
	var out []PropertyWithValues
	seen := make(map[string]bool)
	for _, class := range fam.classes {
		for _, propID := range model.PropClasses[class] {
			if seen[propID] {
				continue
			}
			seen[propID] = true
			p, ok := model.Properties[propID]
			if !ok {
				continue
			}
			out = append(out, PropertyWithValues{
				Property: p,
				Values:   model.PropertyValues[propID],
			})
		}
	}
	return out
}

// DefaultConfiguration returns the default selections for a family: each
// required property gets its flagged default, or the first listed value;
// optional properties stay unset.
func DefaultConfiguration(model *ocd.Model, fam *Family) map[string]string {
	selections := make(map[string]string)
	for _, pwv := range PropertiesFor(model, fam) {
		if !pwv.Property.Required {
			continue
		}
		if len(pwv.Values) == 0 {
			continue
		}
		chosen := pwv.Values[0]
		for _, v := range pwv.Values {
			if v.Default {
				chosen = v
				break
			}
		}
		selections[pwv.Property.ID] = chosen.ID
	}
	return selections
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := append([]string(nil), a...)
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		if !seen[s] {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
