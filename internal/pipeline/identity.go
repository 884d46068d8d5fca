package pipeline

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"groupwatch/internal"
	"groupwatch/internal/source"
	"groupwatch/internal/util"
)

var groupNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("groupwatch/canonical-group"))

// GroupID is the stable identifier of the group read from a source row. The
// same (source, ordinal) pair always yields the same id.
func GroupID(sourceName string, ordinal int) string {
	return uuid.NewSHA1(groupNamespace, []byte(sourceName+"\x00"+strconv.Itoa(ordinal))).String()
}

var (
	rePercentRun = regexp.MustCompile(`(%[0-9A-Fa-f]{2})+`)
	reSeparators = regexp.MustCompile(`[\-_.+]+`)
	reDigits     = regexp.MustCompile(`^\d+$`)
)

// Path segments that never carry a name, per host family.
var (
	facebookRejects = setOf("share", "sharer.php", "watch", "p", "reel", "reels", "stories", "story.php",
		"hashtag", "home.php", "permalink.php", "photo.php", "photos", "events", "login", "login.php",
		"dialog", "plugins", "media", "search", "marketplace", "gaming")
	instagramRejects = setOf("p", "reel", "reels", "stories", "explore", "tv", "accounts")
	twitterRejects   = setOf("i", "intent", "hashtag", "search", "home", "share", "status")
	telegramRejects  = setOf("joinchat", "addstickers", "share")
	youtubeRejects   = setOf("watch", "shorts", "playlist", "embed", "results", "live", "feed")
)

func setOf(values ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}

// ResolveName picks the display name of a row: an explicit name column, else
// a name derived from the best profile URL, else a placeholder that carries
// the sheet and row so the record can be traced back.
func ResolveName(rf RowFields, links Links, sheet string, ordinal int) (string, internal.NameOrigin) {
	if name, ok := rf.Get(source.FieldName).Value(); ok {
		return name, internal.NameExplicit
	}
	for _, p := range platformOrder {
		link, ok := links.URLs[p]
		if !ok {
			continue
		}
		if name, ok := NameFromURL(link); ok {
			return name, internal.NameFromURL
		}
	}
	return fmt.Sprintf("Unknown %s #%d", sheet, ordinal), internal.NameSynthetic
}

// NameFromURL derives a display name from a social profile or page URL.
func NameFromURL(raw string) (string, bool) {
	link := absoluteURL(raw)
	if link == "" {
		return "", false
	}
	u, err := url.Parse(link)
	if err != nil {
		return "", false
	}
	host := hostOf(u)
	segs := pathSegments(u)
	platform, _ := platformForHost(host)

	switch platform {
	case internal.PlatformFacebook:
		return facebookName(u, segs)
	case internal.PlatformYouTube:
		return youtubeName(host, segs)
	case internal.PlatformInstagram:
		return firstSegmentName(segs, instagramRejects)
	case internal.PlatformTwitter:
		return firstSegmentName(segs, twitterRejects)
	case internal.PlatformTelegram:
		if len(segs) >= 2 && segs[0] == "s" {
			return cleanSegment(segs[1])
		}
		if len(segs) > 0 && strings.HasPrefix(segs[0], "+") {
			return "", false
		}
		return firstSegmentName(segs, telegramRejects)
	case internal.PlatformWhatsApp:
		// Invite codes and phone numbers are not names.
		return "", false
	}

	return siteName(host)
}

func facebookName(u *url.URL, segs []string) (string, bool) {
	if len(segs) == 0 {
		return "", false
	}
	head := strings.ToLower(segs[0])
	switch head {
	case "profile.php":
		id := strings.TrimSpace(u.Query().Get("id"))
		if id == "" || !reDigits.MatchString(id) {
			return "", false
		}
		return "Facebook Profile " + id, true
	case "groups":
		if len(segs) < 2 {
			return "", false
		}
		id, _ := decodeSegment(segs[1])
		id = util.CleanText(id)
		if id == "" {
			return "", false
		}
		return "Group: " + id, true
	case "pages":
		if len(segs) >= 2 && strings.ToLower(segs[1]) != "category" {
			return cleanSegment(segs[1])
		}
		return "", false
	case "people":
		if len(segs) >= 2 {
			return cleanSegment(segs[1])
		}
		return "", false
	}
	if _, rejected := facebookRejects[head]; rejected {
		return "", false
	}
	if reDigits.MatchString(segs[0]) {
		return "Facebook Profile " + segs[0], true
	}
	return cleanSegment(segs[0])
}

func youtubeName(host string, segs []string) (string, bool) {
	if host == "youtu.be" || len(segs) == 0 {
		return "", false
	}
	head := strings.ToLower(segs[0])
	switch {
	case strings.HasPrefix(segs[0], "@"):
		return cleanSegment(strings.TrimPrefix(segs[0], "@"))
	case head == "c" || head == "user" || head == "channel":
		if len(segs) >= 2 {
			return cleanSegment(segs[1])
		}
		return "", false
	}
	return firstSegmentName(segs, youtubeRejects)
}

func firstSegmentName(segs []string, rejects map[string]struct{}) (string, bool) {
	if len(segs) == 0 {
		return "", false
	}
	if _, rejected := rejects[strings.ToLower(segs[0])]; rejected {
		return "", false
	}
	return cleanSegment(strings.TrimPrefix(segs[0], "@"))
}

// siteName uses the leading host label of a plain website, so
// "sampletrust.org/about" becomes "sampletrust".
func siteName(host string) (string, bool) {
	label, _, ok := strings.Cut(host, ".")
	if !ok {
		return "", false
	}
	return cleanSegment(label)
}

// pathSegments splits the escaped path so percent runs survive until
// cleanSegment decides what to do with them.
func pathSegments(u *url.URL) []string {
	var out []string
	for _, s := range strings.Split(u.EscapedPath(), "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// decodeSegment percent-decodes a segment when the result is valid UTF-8.
func decodeSegment(seg string) (string, bool) {
	seg = strings.ReplaceAll(seg, "%20", " ")
	decoded, err := url.PathUnescape(seg)
	if err != nil || !utf8.ValidString(decoded) {
		return rePercentRun.ReplaceAllString(seg, ""), false
	}
	return decoded, true
}

// cleanSegment turns a path segment into a name: separators become spaces,
// undecodable percent runs are dropped and whitespace is collapsed.
func cleanSegment(seg string) (string, bool) {
	s, _ := decodeSegment(seg)
	s = rePercentRun.ReplaceAllString(s, "")
	s = reSeparators.ReplaceAllString(s, " ")
	s = util.CleanText(s)
	if s == "" {
		return "", false
	}
	return s, true
}
