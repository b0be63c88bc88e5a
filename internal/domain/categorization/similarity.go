package categorization

import (
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Similarity scores two merchant names in [0,1] as a Levenshtein ratio over
// their association keys. Identical keys score 1.
func Similarity(a, b string) float64 {
	ka, kb := NormalizeKey(a), NormalizeKey(b)
	if ka == kb {
		return 1
	}

	maxLen := len([]rune(ka))
	if n := len([]rune(kb)); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 0
	}

	distance := fuzzy.LevenshteinDistance(ka, kb)
	return 1 - float64(distance)/float64(maxLen)
}
