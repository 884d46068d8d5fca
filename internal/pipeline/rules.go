package pipeline

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"groupwatch/internal"
	"groupwatch/internal/util"
)

// Input is everything classification may look at. Classify is a pure
// function of it.
type Input struct {
	Name        string
	Sheet       string
	MemberCount int
}

type Predicate func(Input) bool

// Rule maps a predicate to a value. Name identifies the rule in logs.
type Rule[T any] struct {
	Name string
	When Predicate
	Then T
}

// RuleSet is a first-match-wins ordered rule list with a default, so
// evaluation always terminates in a value.
type RuleSet[T any] struct {
	Rules   []Rule[T]
	Default T
}

// Eval returns the value of the first matching rule and its name, or the
// default and "default".
func (rs RuleSet[T]) Eval(in Input) (T, string) {
	for _, r := range rs.Rules {
		if r.When(in) {
			return r.Then, r.Name
		}
	}
	return rs.Default, "default"
}

func anyPhrase(text string, keywords []string) bool {
	for _, kw := range keywords {
		if util.ContainsPhrase(text, kw) {
			return true
		}
	}
	return false
}

func SheetHas(keywords ...string) Predicate {
	return func(in Input) bool { return anyPhrase(in.Sheet, keywords) }
}

func NameHas(keywords ...string) Predicate {
	return func(in Input) bool { return anyPhrase(in.Name, keywords) }
}

// SheetIn matches a sheet whose folded name equals one of sheets.
func SheetIn(sheets ...string) Predicate {
	set := map[string]struct{}{}
	for _, s := range sheets {
		if k := util.FoldKey(s); k != "" {
			set[k] = struct{}{}
		}
	}
	return func(in Input) bool {
		_, ok := set[util.FoldKey(in.Sheet)]
		return ok
	}
}

func MembersAbove(n int) Predicate {
	return func(in Input) bool { return in.MemberCount > n }
}

// Rules is the data form of the classifier tables, as read from a rules file.
type Rules struct {
	Type     []TypeRule    `yaml:"type"`
	Risk     RiskRules     `yaml:"risk"`
	Category CategoryRules `yaml:"category"`
}

// TypeRule assigns Value when the sheet or, failing every sheet rule, the
// name contains one of the keywords.
type TypeRule struct {
	Value internal.GroupType `yaml:"value"`
	Sheet []string           `yaml:"sheet"`
	Name  []string           `yaml:"name"`
}

type RiskRules struct {
	HighKeywords    []string `yaml:"high_keywords"`
	HighSheets      []string `yaml:"high_sheets"`
	MediumSheets    []string `yaml:"medium_sheets"`
	// MemberThreshold comes from pipeline.member_threshold.
	MemberThreshold int      `yaml:"-"`
}

type CategoryRules struct {
	Labels        map[internal.GroupType]string `yaml:"labels"`
	GenericSheets []string                      `yaml:"generic_sheets"`
}

const DefaultMemberThreshold = 50000

// DefaultRules are the built-in keyword tables.
func DefaultRules() Rules {
	return Rules{
		Type: []TypeRule{
			{
				Value: internal.TypeReligious,
				Sheet: []string{"hindu", "muslim", "islamic", "christian", "sikh", "buddhist", "jain", "religious", "temple", "mandir", "masjid", "church", "dharmic"},
				Name: []string{"temple", "mandir", "masjid", "mosque", "madrasa", "church", "gurudwara", "dharma", "dharmic", "hindu", "muslim", "islamic",
					"christian", "sikh", "jain", "buddhist", "vedic", "bhakti", "sanatan", "sangh parivar", "ashram", "waqf"},
			},
			{
				Value: internal.TypePolitical,
				Sheet: []string{"political", "politics", "party", "parties", "left", "leftist", "communist", "maoist", "naxal"},
				Name:  []string{"party", "morcha", "front", "congress", "league", "communist", "socialist", "political", "janata", "lok dal", "maoist"},
			},
			{
				Value: internal.TypeProfessional,
				Sheet: []string{"professional", "association", "associations", "trade", "business", "chamber", "unions", "union"},
				Name:  []string{"association", "chamber", "union", "federation", "council", "institute", "guild", "lawyers", "advocates", "doctors", "teachers", "traders", "merchants", "bar association"},
			},
			{
				Value: internal.TypeCultural,
				Sheet: []string{"cultural", "culture", "arts", "sports", "literary", "heritage"},
				Name:  []string{"cultural", "culture", "arts", "sangeet", "music", "dance", "theatre", "theater", "literary", "sahitya", "heritage", "festival", "sports", "kala"},
			},
			{
				Value: internal.TypeSocial,
				Sheet: []string{"social", "welfare", "ngo", "ngos", "youth", "women", "student", "students", "community"},
				Name:  []string{"welfare", "foundation", "ngo", "society", "youth", "mahila", "women", "seva", "samiti", "trust", "club", "students", "community", "sanstha"},
			},
		},
		Risk: RiskRules{
			HighKeywords: []string{"militant", "militants", "militia", "jihad", "jihadi", "mujahideen", "fidayeen", "lashkar", "jaish", "brigade",
				"commando", "commandos", "armed", "extremist", "extremists", "radical", "terror", "terrorist", "insurgent", "insurgents",
				"liberation army"},
			HighSheets:      []string{"extremist groups", "radical groups", "banned organisations", "banned organizations", "militant groups"},
			MediumSheets:    []string{"right hindu groups", "right wing groups", "left groups", "left wing groups"},
			MemberThreshold: DefaultMemberThreshold,
		},
		Category: CategoryRules{
			Labels:        defaultLabels(),
			GenericSheets: []string{"sheet", "sheet1", "sheet 1", "sheet2", "sheet 2", "sheet3", "sheet 3", "data", "export", "list", "table", "groups", "default"},
		},
	}
}

func defaultLabels() map[internal.GroupType]string {
	caser := cases.Title(language.English)
	out := map[internal.GroupType]string{}
	for _, t := range groupTypes {
		out[t] = caser.String(string(t))
	}
	return out
}

var groupTypes = []internal.GroupType{
	internal.TypeReligious, internal.TypePolitical, internal.TypeSocial,
	internal.TypeProfessional, internal.TypeCultural, internal.TypeOther,
}

func validGroupType(t internal.GroupType) bool {
	for _, have := range groupTypes {
		if have == t {
			return true
		}
	}
	return false
}

// LoadRules reads a rules file over base. A section present in the file
// replaces the same section of base; category labels merge per type.
func LoadRules(path string, base Rules) (Rules, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return base, eris.Wrapf(err, "rules: read %s", path)
	}
	var file Rules
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return base, eris.Wrapf(err, "rules: parse %s", path)
	}

	out := base
	if len(file.Type) > 0 {
		for i, tr := range file.Type {
			tr.Value = internal.GroupType(strings.ToUpper(strings.TrimSpace(string(tr.Value))))
			if !validGroupType(tr.Value) {
				return base, eris.Errorf("rules: %s: type rule %d: unknown type %q", path, i+1, tr.Value)
			}
			file.Type[i] = tr
		}
		out.Type = file.Type
	}
	if len(file.Risk.HighKeywords) > 0 {
		out.Risk.HighKeywords = file.Risk.HighKeywords
	}
	if len(file.Risk.HighSheets) > 0 {
		out.Risk.HighSheets = file.Risk.HighSheets
	}
	if len(file.Risk.MediumSheets) > 0 {
		out.Risk.MediumSheets = file.Risk.MediumSheets
	}
	if len(file.Category.Labels) > 0 {
		labels := map[internal.GroupType]string{}
		for k, v := range base.Category.Labels {
			labels[k] = v
		}
		for k, v := range file.Category.Labels {
			labels[internal.GroupType(strings.ToUpper(string(k)))] = v
		}
		out.Category.Labels = labels
	}
	if len(file.Category.GenericSheets) > 0 {
		out.Category.GenericSheets = file.Category.GenericSheets
	}
	return out, nil
}
