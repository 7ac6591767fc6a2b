package snapshot

import "github.com/INSPIRATIONlabs/ofmlgo/internal/ocd"

// modelDTO is the JSON shape of a persisted model. Struct-keyed maps in
// ocd.Model are flattened into slices for encoding.
type modelDTO struct {
	Manufacturer  string                                  `json:"manufacturer"`
	Series        string                                  `json:"series"`
	Articles      []*ocd.Article                          `json:"articles"`
	PropClasses   map[string][]string                     `json:"prop_classes"`
	Properties    map[string]*ocd.Property                `json:"properties"`
	Values        map[string][]*ocd.PropertyValue         `json:"values"`
	Prices        []*ocd.PriceRecord                      `json:"prices"`
	Texts         map[string]map[string]string            `json:"texts"`
	VarConds      []varCondDTO                            `json:"var_conds,omitempty"`
	TableRules    []ocd.TableRule                         `json:"table_rules,omitempty"`
	RuleTables    map[string]map[string]map[string]string `json:"rule_tables,omitempty"`
	SurchargeOnly bool                                    `json:"surcharge_only"`
	Warnings      []ocd.DataWarning                       `json:"warnings,omitempty"`
}

type varCondDTO struct {
	Class    string `json:"class,omitempty"`
	Property string `json:"property,omitempty"`
	Value    string `json:"value"`
	VarCond  string `json:"var_cond"`
}

func toDTO(m *ocd.Model) *modelDTO {
	dto := &modelDTO{
		Manufacturer:  m.Manufacturer,
		Series:        m.Series,
		PropClasses:   m.PropClasses,
		Properties:    m.Properties,
		Values:        m.PropertyValues,
		Prices:        m.Prices,
		Texts:         m.PriceTexts,
		TableRules:    m.TableRules,
		RuleTables:    m.RuleTables,
		SurchargeOnly: m.SurchargeOnly,
		Warnings:      m.Warnings,
	}
	for _, nr := range m.ArticleOrder {
		dto.Articles = append(dto.Articles, m.Articles[nr])
	}
	for key, vc := range m.VarConds {
		dto.VarConds = append(dto.VarConds, varCondDTO{
			Class:    key.Class,
			Property: key.Property,
			Value:    key.Value,
			VarCond:  vc,
		})
	}
	return dto
}

func fromDTO(dto *modelDTO) *ocd.Model {
	m := &ocd.Model{
		Manufacturer:   dto.Manufacturer,
		Series:         dto.Series,
		Articles:       make(map[string]*ocd.Article, len(dto.Articles)),
		PropClasses:    dto.PropClasses,
		Properties:     dto.Properties,
		PropertyValues: dto.Values,
		Prices:         dto.Prices,
		PricesByArt:    make(map[string][]*ocd.PriceRecord),
		PriceTexts:     dto.Texts,
		VarConds:       make(map[ocd.VarCondKey]string, len(dto.VarConds)),
		TableRules:     dto.TableRules,
		RuleTables:     dto.RuleTables,
		SurchargeOnly:  dto.SurchargeOnly,
		Warnings:       dto.Warnings,
	}
	if m.PropClasses == nil {
		m.PropClasses = make(map[string][]string)
	}
	if m.Properties == nil {
		m.Properties = make(map[string]*ocd.Property)
	}
	if m.PropertyValues == nil {
		m.PropertyValues = make(map[string][]*ocd.PropertyValue)
	}
	if m.PriceTexts == nil {
		m.PriceTexts = make(map[string]map[string]string)
	}
	if m.RuleTables == nil {
		m.RuleTables = make(map[string]map[string]map[string]string)
	}
	for _, a := range dto.Articles {
		m.Articles[a.ArticleNr] = a
		m.ArticleOrder = append(m.ArticleOrder, a.ArticleNr)
	}
	for _, vc := range dto.VarConds {
		m.VarConds[ocd.VarCondKey{Class: vc.Class, Property: vc.Property, Value: vc.Value}] = vc.VarCond
	}
	for _, p := range m.Prices {
		m.PricesByArt[p.ArticleNr] = append(m.PricesByArt[p.ArticleNr], p)
	}
	return m
}
