package pipeline

import (
	"groupwatch/internal"
	"groupwatch/internal/source"
)

// BuildGroup turns one non-empty row into a CanonicalGroup. It depends only
// on the row, the sheet's column mapping and the classifier. It also returns
// the classification and whether any field survived normalization.
func BuildGroup(row internal.RawRow, cols source.Resolved, c *Classifier) (internal.CanonicalGroup, Classification, bool) {
	rf := ExtractFields(row, cols)
	links := ResolveLinks(rf)
	name, origin := ResolveName(rf, links, row.Source, row.Ordinal)

	g := internal.CanonicalGroup{
		ID:          GroupID(row.Source, row.Ordinal),
		Name:        name,
		NameOrigin:  origin,
		SourceSheet: row.Source,
		SourceRow:   row.Ordinal,
		MemberCount: NormalizeCount(rf.Get(source.FieldMembers)),
		Platforms:   links.Platforms,
		SocialLinks: links.URLs,
		Contact: internal.Contact{
			Phone: rf.Get(source.FieldPhone).Ptr(),
			Email: rf.Get(source.FieldEmail).Ptr(),
		},
		Location:       rf.Get(source.FieldLocation).Ptr(),
		InfluencerRefs: rf.Get(source.FieldInfluencers).Ptr(),
		Status:         internal.StatusActive,
	}
	if g.Platforms == nil {
		g.Platforms = []internal.Platform{}
	}
	cl := classifyGroup(&g, c)
	return g, cl, rf.Signal()
}

func classifyGroup(g *internal.CanonicalGroup, c *Classifier) Classification {
	cl := c.Classify(Input{Name: g.Name, Sheet: g.SourceSheet, MemberCount: g.MemberCount})
	cl.Apply(g)
	return cl
}
