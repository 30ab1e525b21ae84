package normalize

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/IshaanNene/TableScout/internal/types"
)

// VisitDateMarker precedes the visit date in a review block.
const VisitDateMarker = "Datum van je bezoek:"

var dutchMonths = map[string]string{
	"jan": "01", "feb": "02", "mrt": "03", "apr": "04",
	"mei": "05", "jun": "06", "jul": "07", "aug": "08",
	"sep": "09", "okt": "10", "nov": "11", "dec": "12",
}

var punctRegexp = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)

// ParseVisitDate reads a date such as "Datum van je bezoek: 3 mrt. 2018"
// and renders it as "2018-03-03". Text without the marker is read whole; a
// marker followed by nothing is malformed.
func ParseVisitDate(text string) (string, error) {
	s := strings.TrimSpace(text)
	_, after, marked := strings.Cut(s, VisitDateMarker)
	if marked {
		s = after
	}
	s = strings.TrimSpace(punctRegexp.ReplaceAllString(strings.ToLower(s), " "))
	if s == "" {
		if marked {
			return "", fmt.Errorf("%w: visit date %q has no date after the marker", types.ErrMalformedValue, text)
		}
		return "", nil
	}

	parts := strings.Fields(s)
	if len(parts) != 3 {
		return "", fmt.Errorf("%w: visit date %q is not day month year", types.ErrMalformedValue, text)
	}
	month, ok := dutchMonths[parts[1]]
	if !ok {
		return "", fmt.Errorf("%w: unknown month %q", types.ErrMalformedValue, parts[1])
	}

	t, err := time.Parse("2 01 2006", parts[0]+" "+month+" "+parts[2])
	if err != nil {
		return "", fmt.Errorf("%w: visit date %q: %v", types.ErrMalformedValue, text, err)
	}
	return t.Format("2006-01-02"), nil
}
