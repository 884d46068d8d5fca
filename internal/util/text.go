package util

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var (
	reSpaces = regexp.MustCompile(`\s+`)

	// Byte-order marks, zero-width joiners and the replacement rune show up
	// in sheets that went through a lossy export.
	artifacts = strings.NewReplacer(
		"\ufeff", "",
		"\u200b", "",
		"\u200c", "",
		"\u200d", "",
		"\u2060", "",
		"\ufffd", "",
		"\u00a0", " ",
	)
)

// CleanText NFKC-normalizes input, drops encoding artifacts and control
// characters, and collapses whitespace runs.
func CleanText(input string) string {
	s := norm.NFKC.String(input)
	s = artifacts.Replace(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// FoldKey produces a comparison key: cleaned, case-folded, with everything
// that is not a letter, digit or combining mark turned into a single space.
func FoldKey(input string) string {
	// Casers carry state, so each call gets its own.
	s := cases.Fold().String(CleanText(input))
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) {
			return r
		}
		return ' '
	}, s)
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// ContainsPhrase reports whether the folded phrase occurs in the folded text
// on word boundaries, so "ram" does not match "program".
func ContainsPhrase(text, phrase string) bool {
	p := FoldKey(phrase)
	if p == "" {
		return false
	}
	return strings.Contains(" "+FoldKey(text)+" ", " "+p+" ")
}

func StringPtr(v string) *string { return &v }
