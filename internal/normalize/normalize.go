// Package normalize turns raw page text into typed values. Every function
// is pure and total: empty input means the value was not on the page and
// yields an absent result with a nil error, while text that is present but
// does not have the expected shape yields an error wrapping
// types.ErrMalformedValue or types.ErrStructuralMismatch.
package normalize

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/IshaanNene/TableScout/internal/types"
)

var (
	digitsRegexp = regexp.MustCompile(`\d+`)
	brRegexp     = regexp.MustCompile(`(?i)<br\s*/?>`)
)

// Ellipsis is the placeholder the site appends to truncated tag lists.
const Ellipsis = "..."

// ParsePrice returns the last run of digits in text, so that a price range
// resolves to its upper bound.
func ParsePrice(text string) types.OptInt {
	runs := digitsRegexp.FindAllString(text, -1)
	if len(runs) == 0 {
		return types.OptInt{}
	}
	return atoiOpt(runs[len(runs)-1])
}

// ParseCount returns the first run of digits in text.
func ParseCount(text string) types.OptInt {
	run := digitsRegexp.FindString(text)
	if run == "" {
		return types.OptInt{}
	}
	return atoiOpt(run)
}

func atoiOpt(s string) types.OptInt {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return types.OptInt{}
	}
	return types.SomeInt(v)
}

// ParseNumeric reads a number written either with a decimal comma, a
// decimal point, or as a plain integer.
func ParseNumeric(text string) (types.Numeric, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return types.Numeric{}, nil
	}

	if strings.ContainsAny(s, ",.") {
		f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
		if err != nil || !finite(f) {
			return types.Numeric{}, fmt.Errorf("%w: %q is not a number", types.ErrMalformedValue, s)
		}
		return types.FloatNumeric(f), nil
	}

	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return types.Numeric{}, fmt.Errorf("%w: %q is not a number", types.ErrMalformedValue, s)
	}
	return types.IntNumeric(i), nil
}

// ParseRating reads a rating such as "8,3" as a float.
func ParseRating(text string) (types.OptFloat, error) {
	n, err := ParseNumeric(text)
	if err != nil {
		return types.OptFloat{}, err
	}
	return n.OptFloat(), nil
}

// ParseFloat reads a plain decimal such as a coordinate.
func ParseFloat(text string) (types.OptFloat, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return types.OptFloat{}, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || !finite(f) {
		return types.OptFloat{}, fmt.Errorf("%w: %q is not a number", types.ErrMalformedValue, s)
	}
	return types.SomeFloat(f), nil
}

// finite rejects the NaN and Inf spellings strconv accepts.
func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// OptText wraps trimmed text, absent when blank.
func OptText(text string) types.OptString {
	s := CollapseText(text)
	if s == "" {
		return types.OptString{}
	}
	return types.SomeString(s)
}

// CleanTags trims tags, drops blank ones and the trailing ellipsis.
func CleanTags(raw []string) []string {
	tags := make([]string, 0, len(raw))
	for _, t := range raw {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	if n := len(tags); n > 0 && isEllipsis(tags[n-1]) {
		tags = tags[:n-1]
	}
	return tags
}

func isEllipsis(s string) bool {
	return s == Ellipsis || s == "…"
}

// CollapseText turns line breaks, literal <br> markup and whitespace runs
// into single spaces.
func CollapseText(text string) string {
	return strings.Join(strings.Fields(brRegexp.ReplaceAllString(text, " ")), " ")
}
