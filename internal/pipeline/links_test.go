package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"groupwatch/internal"
)

func TestResolveLinks(t *testing.T) {
	header := []string{"Name", "Facebook", "Instagram", "WhatsApp", "Website", "Profile Link", "Email", "Phone"}
	cols := resolvedFor(t, header)

	rf := ExtractFields(rowOf("S", 2, header,
		"Sample Trust",
		"facebook.com/sampletrust",
		"@sample.trust",
		"+91 98765 43210",
		"Nil",
		"https://t.me/sampletrust",
		"info@sampletrust.org",
		"98765 43210",
	), cols)
	links := ResolveLinks(rf)

	assert.Equal(t, []internal.Platform{
		internal.PlatformFacebook, internal.PlatformInstagram, internal.PlatformTelegram, internal.PlatformWhatsApp,
	}, links.Platforms)
	assert.Equal(t, "https://facebook.com/sampletrust", links.URLs[internal.PlatformFacebook])
	assert.Equal(t, "https://www.instagram.com/sample.trust", links.URLs[internal.PlatformInstagram])
	assert.Equal(t, "https://wa.me/919876543210", links.URLs[internal.PlatformWhatsApp])
	assert.Equal(t, "https://t.me/sampletrust", links.URLs[internal.PlatformTelegram])
	_, hasWebsite := links.URLs[internal.PlatformWebsite]
	assert.False(t, hasWebsite)
}

func TestResolveLinksPresenceWithoutURL(t *testing.T) {
	header := []string{"Facebook", "YouTube"}
	cols := resolvedFor(t, header)
	links := ResolveLinks(ExtractFields(rowOf("S", 2, header, "Yes", "NA"), cols))

	assert.Equal(t, []internal.Platform{internal.PlatformFacebook}, links.Platforms)
	assert.Empty(t, links.URLs)
}

func TestResolveLinksMisfiledURL(t *testing.T) {
	header := []string{"Facebook"}
	cols := resolvedFor(t, header)
	links := ResolveLinks(ExtractFields(rowOf("S", 2, header, "https://www.instagram.com/sampletrust"), cols))

	assert.Equal(t, []internal.Platform{internal.PlatformFacebook, internal.PlatformInstagram}, links.Platforms)
	assert.Equal(t, "https://www.instagram.com/sampletrust", links.URLs[internal.PlatformInstagram])
	assert.NotContains(t, links.URLs, internal.PlatformFacebook)
}

func TestResolveLinksProfileColumnsInferPlatform(t *testing.T) {
	header := []string{"Profile Link", "URL"}
	cols := resolvedFor(t, header)
	links := ResolveLinks(ExtractFields(rowOf("S", 2, header, "https://x.com/sample", "www.sampletrust.org"), cols))

	assert.Equal(t, []internal.Platform{internal.PlatformTwitter, internal.PlatformWebsite}, links.Platforms)
	assert.Equal(t, "https://www.sampletrust.org", links.URLs[internal.PlatformWebsite])
}

func TestAbsoluteURL(t *testing.T) {
	assert.Equal(t, "https://facebook.com/a", absoluteURL("facebook.com/a"))
	assert.Equal(t, "http://example.org", absoluteURL("http://example.org"))
	assert.Equal(t, "https://cdn.example.org/x", absoluteURL("//cdn.example.org/x"))
	assert.Equal(t, "https://facebook.com/Sample%20Trust", absoluteURL("https://facebook.com/Sample Trust"))
	assert.Equal(t, "https://facebook.com/SampleTrust", absoluteURL("Facebook.com/SampleTrust"))
	assert.Equal(t, "https://www.facebook.com/sampletrust", absoluteURL("Www.facebook.com/sampletrust"))
	assert.Equal(t, "https://www.facebook.com/sampletrust", absoluteURL("WWW.FACEBOOK.COM/sampletrust"))
	assert.Equal(t, "https://example.org/About", absoluteURL("HTTPS://Example.ORG/About"))
	assert.Equal(t, "", absoluteURL("Sample Trust"))
	assert.Equal(t, "", absoluteURL("info@sampletrust.org"))
	assert.Equal(t, "", absoluteURL("98765 43210"))
}

func TestResolveLinksCapitalizedHost(t *testing.T) {
	header := []string{"Name", "Link"}
	cols := resolvedFor(t, header)
	rf := ExtractFields(rowOf("S", 2, header, "", "Facebook.com/sampletrust"), cols)
	links := ResolveLinks(rf)

	assert.Equal(t, []internal.Platform{internal.PlatformFacebook}, links.Platforms)
	assert.Equal(t, "https://facebook.com/sampletrust", links.URLs[internal.PlatformFacebook])

	name, origin := ResolveName(rf, links, "S", 2)
	assert.Equal(t, "sampletrust", name)
	assert.Equal(t, internal.NameFromURL, origin)

	header = []string{"Facebook"}
	cols = resolvedFor(t, header)
	rf = ExtractFields(rowOf("S", 3, header, "WWW.FACEBOOK.COM/sampletrust"), cols)
	links = ResolveLinks(rf)
	assert.Equal(t, "https://www.facebook.com/sampletrust", links.URLs[internal.PlatformFacebook])
	name, origin = ResolveName(rf, links, "S", 3)
	assert.Equal(t, "sampletrust", name)
	assert.Equal(t, internal.NameFromURL, origin)
}
