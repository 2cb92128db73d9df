package supplier

import (
	"strings"
	"unicode"

	"github.com/alimansour/cardvault-backend/pkg/db/models"
)

// Match is the catalog entry the fuzzy matcher settled on.
type Match struct {
	Code  string
	Score float64
}

// BestMatch fuzzy-matches a product display name against a supplier's known
// code catalog. An exact normalized-name match wins outright; otherwise the
// best overlap score at or above threshold is returned.
func BestMatch(productName string, catalog []models.SupplierProductCode, threshold float64) (Match, bool) {
	target := normalizeName(productName)
	if target == "" || len(catalog) == 0 {
		return Match{}, false
	}

	best := Match{}
	for _, entry := range catalog {
		candidate := normalizeName(entry.DisplayName)
		if candidate == "" {
			continue
		}
		if candidate == target {
			return Match{Code: entry.Code, Score: 1}, true
		}
		score := similarity(target, candidate)
		if score > best.Score {
			best = Match{Code: entry.Code, Score: score}
		}
	}

	if best.Score >= threshold {
		return best, true
	}
	return Match{}, false
}

// normalizeName lowercases and strips currency symbols, parenthetical notes
// and punctuation, so "Steam $50 (US)" and "steam 50 us" compare equal.
func normalizeName(name string) string {
	var b strings.Builder
	depth := 0
	for _, r := range strings.ToLower(name) {
		switch {
		case r == '(' || r == '[':
			depth++
		case r == ')' || r == ']':
			if depth > 0 {
				depth--
			}
		case depth > 0:
			// inside a parenthetical note
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// similarity combines substring containment with a character-bigram Dice
// coefficient. Containment short-circuits high so "steam 50" matches
// "steam wallet 50".
func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		shorter, longer := len(a), len(b)
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		return 0.7 + 0.3*float64(shorter)/float64(longer)
	}
	return diceCoefficient(bigrams(a), bigrams(b))
}

func bigrams(s string) map[string]int {
	runes := []rune(s)
	grams := map[string]int{}
	for i := 0; i+1 < len(runes); i++ {
		grams[string(runes[i:i+2])]++
	}
	return grams
}

func diceCoefficient(a, b map[string]int) float64 {
	total := 0
	for _, n := range a {
		total += n
	}
	for _, n := range b {
		total += n
	}
	if total == 0 {
		return 0
	}
	overlap := 0
	for gram, n := range a {
		if m, ok := b[gram]; ok {
			if m < n {
				overlap += m
			} else {
				overlap += n
			}
		}
	}
	return 2 * float64(overlap) / float64(total)
}
