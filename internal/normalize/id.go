package normalize

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/IshaanNene/TableScout/internal/types"
)

// ParseEntityID reads the restaurant id from the last path segment of a
// detail page URL.
func ParseEntityID(rawURL string) (int64, error) {
	s := strings.TrimSpace(rawURL)
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimRight(s, "/")
	seg := s[strings.LastIndex(s, "/")+1:]

	id, err := strconv.ParseInt(seg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: no numeric id at the end of %q", types.ErrMissingField, rawURL)
	}
	return id, nil
}
