package source

import (
	"github.com/rotisserie/eris"

	"groupwatch/internal/util"
)

// Field is a logical column that different sheets label differently.
type Field string

const (
	FieldName        Field = "name"
	FieldMembers     Field = "member_count"
	FieldFacebook    Field = "facebook"
	FieldInstagram   Field = "instagram"
	FieldTwitter     Field = "twitter"
	FieldYouTube     Field = "youtube"
	FieldTelegram    Field = "telegram"
	FieldWhatsApp    Field = "whatsapp"
	FieldWebsite     Field = "website"
	FieldProfileLink Field = "profile_link"
	FieldPhone       Field = "phone"
	FieldEmail       Field = "email"
	FieldLocation    Field = "location"
	FieldInfluencers Field = "influencers"
)

type fieldCandidates struct {
	field      Field
	candidates []string
}

// defaultCandidates lists, per logical field and in priority order, the
// header labels seen across the group sheets. Labels are compared after
// util.FoldKey, so case and punctuation do not matter.
var defaultCandidates = []fieldCandidates{
	{FieldName, []string{
		"organisation name", "organization name", "name of organisation", "name of organization",
		"organisation", "organization", "organisation type", "organization type",
		"group name", "name of group", "name of the group", "name",
		"page name", "facebook page name", "fb page name", "channel name",
		"संगठन का नाम", "संगठन", "नाम",
	}},
	{FieldMembers, []string{
		"total members", "members", "member count", "no of members", "number of members",
		"total followers", "followers", "subscribers", "likes", "सदस्य संख्या", "सदस्य",
	}},
	{FieldFacebook, []string{
		"facebook profile url", "facebook url", "facebook link", "facebook page url", "facebook page link",
		"facebook profile", "facebook", "fb link", "fb url", "fb", "facebook id",
	}},
	{FieldInstagram, []string{"instagram url", "instagram link", "instagram handle", "instagram", "insta", "instagram id"}},
	{FieldTwitter, []string{"twitter url", "twitter link", "twitter handle", "twitter", "x handle", "x url", "twitter id"}},
	{FieldYouTube, []string{"youtube url", "youtube link", "youtube channel", "youtube"}},
	{FieldTelegram, []string{"telegram url", "telegram link", "telegram channel", "telegram"}},
	{FieldWhatsApp, []string{"whatsapp group link", "whatsapp link", "whatsapp number", "whatsapp"}},
	{FieldWebsite, []string{"website", "website url", "web site", "homepage"}},
	{FieldProfileLink, []string{
		"profile url", "profile link", "page url", "page link", "social media link", "social media url", "link", "url",
	}},
	{FieldPhone, []string{"phone", "phone number", "mobile", "mobile number", "contact number", "contact no", "contact", "मोबाइल"}},
	{FieldEmail, []string{"email", "email id", "email address", "mail id"}},
	{FieldLocation, []string{"address", "location", "city", "district", "place", "area", "पता"}},
	{FieldInfluencers, []string{
		"influencers", "key influencers", "influencer", "key persons", "key people", "leaders", "office bearers", "admins", "admin",
	}},
}

// Fields returns all logical fields in mapping order.
func Fields() []Field {
	out := make([]Field, 0, len(defaultCandidates))
	for _, fc := range defaultCandidates {
		out = append(out, fc.field)
	}
	return out
}

// Mapping is the declarative column table for one source.
type Mapping struct {
	order      []Field
	candidates map[Field][]string
	known      map[string]struct{}
}

// NewMapping builds the table, with per-source overrides tried before the
// defaults of the same field.
func NewMapping(overrides map[string][]string) (*Mapping, error) {
	m := &Mapping{
		candidates: map[Field][]string{},
		known:      map[string]struct{}{},
	}
	for _, fc := range defaultCandidates {
		m.order = append(m.order, fc.field)
	}

	valid := map[Field]struct{}{}
	for _, f := range m.order {
		valid[f] = struct{}{}
	}
	for key := range overrides {
		if _, ok := valid[Field(key)]; !ok {
			return nil, eris.Errorf("source: unknown column field %q", key)
		}
	}

	for _, fc := range defaultCandidates {
		list := append([]string{}, overrides[string(fc.field)]...)
		list = append(list, fc.candidates...)
		for _, c := range list {
			key := util.FoldKey(c)
			if key == "" {
				continue
			}
			m.candidates[fc.field] = append(m.candidates[fc.field], key)
			m.known[key] = struct{}{}
		}
	}
	return m, nil
}

// Known reports whether a header label matches any candidate of any field.
func (m *Mapping) Known(label string) bool {
	_, ok := m.known[util.FoldKey(label)]
	return ok
}

// Resolved maps each logical field to the header labels present in one
// sheet, ordered by candidate priority.
type Resolved map[Field][]string

// Resolve matches a header row against the table. A header label is claimed
// by the first field that lists it, so "Facebook Page Name" stays a name
// column and never becomes a link column.
func (m *Mapping) Resolve(header []string) Resolved {
	byKey := map[string][]string{}
	for _, h := range header {
		key := util.FoldKey(h)
		if key == "" {
			continue
		}
		byKey[key] = append(byKey[key], h)
	}

	claimed := map[string]struct{}{}
	out := Resolved{}
	for _, f := range m.order {
		for _, c := range m.candidates[f] {
			for _, label := range byKey[c] {
				if _, taken := claimed[label]; taken {
					continue
				}
				claimed[label] = struct{}{}
				out[f] = append(out[f], label)
			}
		}
	}
	return out
}

// Columns returns the labels to try, in order, for a field.
func (r Resolved) Columns(f Field) []string {
	return r[f]
}
