package pipeline

import (
	"github.com/rotisserie/eris"

	"groupwatch/internal"
	"groupwatch/internal/config"
	"groupwatch/internal/util"
)

// Classification is the outcome of the three rule passes.
type Classification struct {
	Type              internal.GroupType
	RiskLevel         internal.RiskLevel
	Category          string
	MonitoringEnabled bool

	TypeRule string
	RiskRule string
}

type Classifier struct {
	types   RuleSet[internal.GroupType]
	risk    RuleSet[internal.RiskLevel]
	labels  map[internal.GroupType]string
	generic Predicate
}

// NewClassifier compiles rule tables. Sheet rules of every type come before
// any name rule, so a sheet hint always wins over a name keyword.
func NewClassifier(r Rules) *Classifier {
	c := &Classifier{
		types:   RuleSet[internal.GroupType]{Default: internal.TypeOther},
		risk:    RuleSet[internal.RiskLevel]{Default: internal.RiskLow},
		labels:  r.Category.Labels,
		generic: SheetIn(r.Category.GenericSheets...),
	}

	for _, tr := range r.Type {
		if len(tr.Sheet) > 0 {
			c.types.Rules = append(c.types.Rules, Rule[internal.GroupType]{
				Name: "sheet:" + string(tr.Value), When: SheetHas(tr.Sheet...), Then: tr.Value,
			})
		}
	}
	for _, tr := range r.Type {
		if len(tr.Name) > 0 {
			c.types.Rules = append(c.types.Rules, Rule[internal.GroupType]{
				Name: "name:" + string(tr.Value), When: NameHas(tr.Name...), Then: tr.Value,
			})
		}
	}

	threshold := r.Risk.MemberThreshold
	if threshold <= 0 {
		threshold = DefaultMemberThreshold
	}
	c.risk.Rules = []Rule[internal.RiskLevel]{
		{Name: "name-keyword", When: NameHas(r.Risk.HighKeywords...), Then: internal.RiskHigh},
		{Name: "sheet-keyword", When: SheetHas(r.Risk.HighKeywords...), Then: internal.RiskHigh},
		{Name: "high-scrutiny-sheet", When: SheetIn(r.Risk.HighSheets...), Then: internal.RiskHigh},
		{Name: "member-threshold", When: MembersAbove(threshold), Then: internal.RiskMedium},
		{Name: "affiliation-sheet", When: SheetIn(r.Risk.MediumSheets...), Then: internal.RiskMedium},
	}
	return c
}

// ClassifierFromConfig builds the classifier for a run: built-in tables,
// then the rules file, then the sheet lists and threshold from config.
func ClassifierFromConfig(cfg config.PipelineConfig) (*Classifier, error) {
	rules := DefaultRules()
	if cfg.RulesFile != "" {
		loaded, err := LoadRules(cfg.RulesFile, rules)
		if err != nil {
			return nil, eris.Wrap(err, "classifier")
		}
		rules = loaded
	}
	if cfg.MemberThreshold > 0 {
		rules.Risk.MemberThreshold = cfg.MemberThreshold
	}
	if len(cfg.HighScrutinySheets) > 0 {
		rules.Risk.HighSheets = cfg.HighScrutinySheets
	}
	if len(cfg.AffiliationSheets) > 0 {
		rules.Risk.MediumSheets = cfg.AffiliationSheets
	}
	return NewClassifier(rules), nil
}

// Classify never fails: unmatched input lands on OTHER and LOW.
func (c *Classifier) Classify(in Input) Classification {
	typ, typeRule := c.types.Eval(in)
	risk, riskRule := c.risk.Eval(in)
	return Classification{
		Type:              typ,
		RiskLevel:         risk,
		Category:          c.category(in, typ),
		MonitoringEnabled: risk == internal.RiskHigh,
		TypeRule:          typeRule,
		RiskRule:          riskRule,
	}
}

// category is the sheet name when it says something, otherwise the label of
// the type.
func (c *Classifier) category(in Input, typ internal.GroupType) string {
	sheet := util.CleanText(in.Sheet)
	if sheet != "" && !c.generic(in) {
		return sheet
	}
	if label, ok := c.labels[typ]; ok && label != "" {
		return label
	}
	return string(typ)
}

// Apply writes the classification onto a group.
func (cl Classification) Apply(g *internal.CanonicalGroup) {
	g.Type = cl.Type
	g.RiskLevel = cl.RiskLevel
	g.Category = cl.Category
	g.MonitoringEnabled = cl.MonitoringEnabled
}
