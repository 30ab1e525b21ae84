package normalize

import (
	"fmt"
	"strings"

	"github.com/IshaanNene/TableScout/internal/types"
)

// addressLines is the number of non-blank lines in the address block: the
// restaurant label, street with house number, postal code, city, country.
const addressLines = 5

// ParseAddress splits the multi-line address block of a restaurant page.
// Any other line count is reported as a structural mismatch and every
// field is left absent.
func ParseAddress(text string) (types.Address, error) {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return types.Address{}, nil
	}
	if len(lines) != addressLines {
		return types.Address{}, fmt.Errorf("%w: address has %d lines, want %d", types.ErrStructuralMismatch, len(lines), addressLines)
	}

	var addr types.Address
	street, number, found := strings.Cut(lines[1], " ")
	addr.Street = types.SomeString(street)
	if found {
		addr.HouseNumber = OptText(number)
	}
	addr.PostalCode = types.SomeString(lines[2])
	addr.City = types.SomeString(lines[3])
	addr.Country = types.SomeString(lines[4])
	return addr, nil
}
