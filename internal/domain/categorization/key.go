// Package categorization learns merchant to category associations from user
// edits and suggests categories for new transactions.
package categorization

import (
	"regexp"
	"strings"
)

var (
	// Transaction-ID suffixes appended by processors: "*1234", "#98765",
	// "ref 123456", or a bare trailing run of digits.
	idSuffix = regexp.MustCompile(`(?i)(?:\s*[*#]\s*[a-z0-9]*\d[a-z0-9]*|\s+ref(?:\s*no)?\.?\s*:?\s*[a-z0-9]*\d[a-z0-9]*|\s*\d{4,})$`)
	spaces   = regexp.MustCompile(`\s+`)
)

// NormalizeKey maps a merchant name to its association key: case-folded,
// trimmed, single-spaced and without transaction-ID suffixes.
func NormalizeKey(merchant string) string {
	key := strings.ToLower(strings.TrimSpace(merchant))
	key = spaces.ReplaceAllString(key, " ")

	for {
		stripped := strings.TrimSpace(idSuffix.ReplaceAllString(key, ""))
		if stripped == key || stripped == "" {
			break
		}
		key = stripped
	}
	return key
}
