package pipeline

import "groupwatch/internal"

// Dedupe merges groups that share an id, keeping first-seen order. The first
// non-absent value of each field wins, except the name, which goes to the
// more confident origin. Merged groups are classified again. The returned
// map counts merges per source sheet.
func Dedupe(groups []internal.CanonicalGroup, c *Classifier) ([]internal.CanonicalGroup, map[string]int) {
	index := make(map[string]int, len(groups))
	out := make([]internal.CanonicalGroup, 0, len(groups))
	merged := map[string]int{}
	touched := map[int]bool{}

	for _, g := range groups {
		i, seen := index[g.ID]
		if !seen {
			index[g.ID] = len(out)
			out = append(out, g)
			continue
		}
		mergeInto(&out[i], g)
		touched[i] = true
		merged[g.SourceSheet]++
	}

	for i := range touched {
		classifyGroup(&out[i], c)
	}
	return out, merged
}

func mergeInto(dst *internal.CanonicalGroup, src internal.CanonicalGroup) {
	if src.NameOrigin.Rank() > dst.NameOrigin.Rank() {
		dst.Name = src.Name
		dst.NameOrigin = src.NameOrigin
	}
	if dst.MemberCount == 0 {
		dst.MemberCount = src.MemberCount
	}
	dst.Platforms = sortPlatforms(append(append([]internal.Platform{}, dst.Platforms...), src.Platforms...))

	links := make(map[internal.Platform]string, len(dst.SocialLinks)+len(src.SocialLinks))
	for p, link := range src.SocialLinks {
		links[p] = link
	}
	for p, link := range dst.SocialLinks {
		links[p] = link
	}
	dst.SocialLinks = links
	dst.Contact.Phone = firstPtr(dst.Contact.Phone, src.Contact.Phone)
	dst.Contact.Email = firstPtr(dst.Contact.Email, src.Contact.Email)
	dst.Location = firstPtr(dst.Location, src.Location)
	dst.InfluencerRefs = firstPtr(dst.InfluencerRefs, src.InfluencerRefs)
}

func firstPtr(a, b *string) *string {
	if a != nil {
		return a
	}
	return b
}

func sortPlatforms(in []internal.Platform) []internal.Platform {
	out := make([]internal.Platform, 0, len(in))
	for _, p := range platformOrder {
		for _, have := range in {
			if have == p {
				out = append(out, p)
				break
			}
		}
	}
	return out
}
