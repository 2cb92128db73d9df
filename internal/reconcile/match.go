package reconcile

import "strings"

// named is anything carrying a product name the matcher can rank against.
type named interface {
	productName() string
}

// matchIndex finds the candidate best matching name with the priority
// exact → case-insensitive → substring → first candidate. Returns -1 only
// when there are no candidates at all.
func matchIndex[T named](name string, candidates []T) int {
	if len(candidates) == 0 {
		return -1
	}

	for i, c := range candidates {
		if c.productName() == name {
			return i
		}
	}
	for i, c := range candidates {
		if strings.EqualFold(c.productName(), name) {
			return i
		}
	}
	lower := strings.ToLower(name)
	if lower != "" {
		for i, c := range candidates {
			candidate := strings.ToLower(c.productName())
			if candidate == "" {
				continue
			}
			if strings.Contains(candidate, lower) || strings.Contains(lower, candidate) {
				return i
			}
		}
	}
	return 0
}
