package enums

import (
	"fmt"
	"slices"
	"strings"
)

// parse matches value against valid after trimming surrounding whitespace. Matching is
// case sensitive since these values are stored verbatim.
func parse[T ~string](kind, value string, valid []T) (T, error) {
	candidate := T(strings.TrimSpace(value))
	if slices.Contains(valid, candidate) {
		return candidate, nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, value)
}
