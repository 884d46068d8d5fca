package pipeline

import (
	"net/url"
	"regexp"
	"strings"

	"groupwatch/internal"
	"groupwatch/internal/source"
)

// platformOrder is the canonical platform order: the order of Platforms on
// a group and the order URLs are tried when deriving a name.
var platformOrder = []internal.Platform{
	internal.PlatformFacebook,
	internal.PlatformInstagram,
	internal.PlatformTwitter,
	internal.PlatformYouTube,
	internal.PlatformTelegram,
	internal.PlatformWhatsApp,
	internal.PlatformWebsite,
}

var platformFields = map[internal.Platform]source.Field{
	internal.PlatformFacebook:  source.FieldFacebook,
	internal.PlatformInstagram: source.FieldInstagram,
	internal.PlatformTwitter:   source.FieldTwitter,
	internal.PlatformYouTube:   source.FieldYouTube,
	internal.PlatformTelegram:  source.FieldTelegram,
	internal.PlatformWhatsApp:  source.FieldWhatsApp,
	internal.PlatformWebsite:   source.FieldWebsite,
}

var handleBase = map[internal.Platform]string{
	internal.PlatformFacebook:  "https://www.facebook.com/",
	internal.PlatformInstagram: "https://www.instagram.com/",
	internal.PlatformTwitter:   "https://twitter.com/",
	internal.PlatformYouTube:   "https://www.youtube.com/@",
	internal.PlatformTelegram:  "https://t.me/",
}

var (
	reHandle    = regexp.MustCompile(`^@([\pL\pN_.\-]{2,})$`)
	rePhoneLike = regexp.MustCompile(`^\+?[\d\s\-()]{7,}$`)
	reHostLike  = regexp.MustCompile(`(?i)^(www\.)?[a-z0-9\-]+(\.[a-z0-9\-]+)*\.[a-z]{2,}(/|$|\?)`)
)

// Links is the platform set of one row plus the URLs known for them.
type Links struct {
	Platforms []internal.Platform
	URLs      map[internal.Platform]string
}

// ResolveLinks decides which platforms a row is present on. A platform
// column with any value counts; a URL in it is recorded under the platform
// its host belongs to. Generic link columns infer the platform from the host
// and fall back to website.
func ResolveLinks(rf RowFields) Links {
	present := map[internal.Platform]bool{}
	urls := map[internal.Platform]string{}
	record := func(p internal.Platform, link string) {
		present[p] = true
		if link != "" {
			if _, ok := urls[p]; !ok {
				urls[p] = link
			}
		}
	}

	for _, p := range platformOrder {
		v, ok := rf.Get(platformFields[p]).Value()
		if !ok {
			continue
		}
		link := linkFor(p, v)
		if link == "" {
			record(p, "")
			continue
		}
		if hp, known := platformForURL(link); known && hp != p && p != internal.PlatformWebsite {
			// A URL for another network pasted in this column.
			record(p, "")
			record(hp, link)
			continue
		}
		record(p, link)
	}

	for _, v := range rf.ProfileLinks() {
		link := absoluteURL(v)
		if link == "" {
			continue
		}
		p, known := platformForURL(link)
		if !known {
			p = internal.PlatformWebsite
		}
		record(p, link)
	}

	out := Links{URLs: urls}
	for _, p := range platformOrder {
		if present[p] {
			out.Platforms = append(out.Platforms, p)
		}
	}
	return out
}

// linkFor turns a platform column value into a URL, or "" when the value is
// neither a URL nor a handle.
func linkFor(p internal.Platform, v string) string {
	if link := absoluteURL(v); link != "" {
		return link
	}
	if m := reHandle.FindStringSubmatch(v); m != nil {
		if base, ok := handleBase[p]; ok {
			return base + m[1]
		}
	}
	if p == internal.PlatformWhatsApp && rePhoneLike.MatchString(v) {
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, v)
		return "https://wa.me/" + digits
	}
	return ""
}

// absoluteURL returns v as an absolute http(s) URL, adding a scheme to
// host-looking values. Anything else yields "".
func absoluteURL(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	v = strings.ReplaceAll(v, " ", "%20")
	lower := strings.ToLower(v)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
	case strings.HasPrefix(v, "//"):
		v = "https:" + v
	case reHostLike.MatchString(v):
		v = "https://" + v
	default:
		return ""
	}
	u, err := url.Parse(v)
	if err != nil || u.Host == "" {
		return ""
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return u.String()
}

// hostOf returns the lowercased host without "www." or mobile prefixes.
func hostOf(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	for _, prefix := range []string{"www.", "m.", "mobile.", "web."} {
		host = strings.TrimPrefix(host, prefix)
	}
	return host
}

func platformForHost(host string) (internal.Platform, bool) {
	match := func(domains ...string) bool {
		for _, d := range domains {
			if host == d || strings.HasSuffix(host, "."+d) {
				return true
			}
		}
		return false
	}
	switch {
	case match("facebook.com", "fb.com", "fb.me", "fb.watch"):
		return internal.PlatformFacebook, true
	case match("instagram.com", "instagr.am"):
		return internal.PlatformInstagram, true
	case match("twitter.com", "x.com"):
		return internal.PlatformTwitter, true
	case match("youtube.com", "youtu.be"):
		return internal.PlatformYouTube, true
	case match("t.me", "telegram.me", "telegram.org"):
		return internal.PlatformTelegram, true
	case match("wa.me", "whatsapp.com"):
		return internal.PlatformWhatsApp, true
	}
	return "", false
}

func platformForURL(link string) (internal.Platform, bool) {
	u, err := url.Parse(link)
	if err != nil {
		return "", false
	}
	return platformForHost(hostOf(u))
}
