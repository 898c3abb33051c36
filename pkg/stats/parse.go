package stats

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// IsNotApplicable reports whether an answer carries no usable value: blank or "n/a" in any case.
func IsNotApplicable(text string) bool {
	text = strings.TrimSpace(text)
	return text == "" || strings.EqualFold(text, "n/a")
}

// ParseResult reads a signed decimal amount such as "+120", "-50" or "30.5 DTS". Every occurrence of
// unit (case-insensitive) and all whitespace are stripped first. The second return is false when the
// text is not a finite number.
func ParseResult(text, unit string) (float64, bool) {
	return parseResult(text, unitPattern(unit))
}

// unitPattern matches unit case-insensitively, or is nil for an empty unit.
func unitPattern(unit string) *regexp.Regexp {
	if unit == "" {
		return nil
	}
	return regexp.MustCompile("(?i)" + regexp.QuoteMeta(unit))
}

func parseResult(text string, unit *regexp.Regexp) (float64, bool) {
	if unit != nil {
		text = unit.ReplaceAllString(text, "")
	}
	text = strings.Join(strings.Fields(text), "")
	if text == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ParseCount reads a non-negative integer count.
func ParseCount(text string) (int, bool) {
	if IsNotApplicable(text) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
