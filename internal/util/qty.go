package util

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	countPattern     = regexp.MustCompile(`(?i)(\d{1,3}(?:[\s.,]\d{3})+|\d+(?:[.,]\d+)?)\s*(k|thousand|m|mn|million|lakh|lakhs|lac|cr|crore|crores)?\b`)
	reThousandsDot   = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+$`)
	reThousandsComma = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+$`)
)

var countMultipliers = map[string]float64{
	"k":        1e3,
	"thousand": 1e3,
	"m":        1e6,
	"mn":       1e6,
	"million":  1e6,
	"lakh":     1e5,
	"lakhs":    1e5,
	"lac":      1e5,
	"cr":       1e7,
	"crore":    1e7,
	"crores":   1e7,
}

// ParseCount reads a member count such as "1,200", "12K+", "2.5 lakh" or
// "approx 5000". The first number in the input wins. Anything unparsable or
// negative yields 0.
func ParseCount(input string) int {
	line := strings.ReplaceAll(input, "\u00a0", " ")
	m := countPattern.FindStringSubmatch(line)
	if m == nil {
		return 0
	}
	if idx := strings.Index(line, m[0]); idx > 0 && line[idx-1] == '-' {
		return 0
	}

	parsed, err := strconv.ParseFloat(normalizeNumericToken(m[1]), 64)
	if err != nil {
		return 0
	}
	if mul, ok := countMultipliers[strings.ToLower(m[2])]; ok {
		parsed *= mul
	}
	if parsed < 0 || parsed > math.MaxInt32 {
		return 0
	}
	return int(math.Round(parsed))
}

func normalizeNumericToken(token string) string {
	compact := strings.ReplaceAll(token, " ", "")
	if reThousandsDot.MatchString(compact) {
		return strings.ReplaceAll(compact, ".", "")
	}
	if reThousandsComma.MatchString(compact) {
		return strings.ReplaceAll(compact, ",", "")
	}
	if strings.Contains(compact, ",") && !strings.Contains(compact, ".") {
		return strings.ReplaceAll(compact, ",", ".")
	}
	return compact
}
