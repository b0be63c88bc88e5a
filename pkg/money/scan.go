package money

import (
	"regexp"
	"sort"

	"github.com/shopspring/decimal"
)

// Match is a currency-tagged amount found in free text.
type Match struct {
	Start, End int
	Amount     decimal.Decimal
	Currency   string
}

const number = `([0-9][0-9,]*(?:\.[0-9]+)?)`

var (
	prefixAmount = regexp.MustCompile(`(?i)(\b(?:rs\.?|inr|usd|us\$|eur|gbp|aed|sgd)|₹|\$|€|£)\s*` + number)
	suffixAmount = regexp.MustCompile(`(?i)\b` + number + `\s*(rs|inr|usd|eur|gbp|aed|sgd)\b`)
)

// FindAmounts returns every currency-tagged amount in text, ordered by position.
// Both prefix ("Rs.500", "₹ 1,200") and suffix ("250 INR") forms are recognized.
func FindAmounts(text string) []Match {
	var out []Match

	for _, loc := range prefixAmount.FindAllStringSubmatchIndex(text, -1) {
		if m, ok := buildMatch(loc[0], loc[1], text[loc[2]:loc[3]], text[loc[4]:loc[5]]); ok {
			out = append(out, m)
		}
	}
	for _, loc := range suffixAmount.FindAllStringSubmatchIndex(text, -1) {
		if overlaps(out, loc[0], loc[1]) {
			continue
		}
		if m, ok := buildMatch(loc[0], loc[1], text[loc[4]:loc[5]], text[loc[2]:loc[3]]); ok {
			out = append(out, m)
		}
	}

	sortMatches(out)
	return out
}

// FirstAmount returns the first currency-tagged amount in text.
func FirstAmount(text string) (Match, bool) {
	matches := FindAmounts(text)
	if len(matches) == 0 {
		return Match{}, false
	}
	return matches[0], true
}

func buildMatch(start, end int, currencyToken, raw string) (Match, bool) {
	code, ok := ResolveCurrency(currencyToken)
	if !ok {
		return Match{}, false
	}
	amount, err := ParseAmount(raw)
	if err != nil {
		return Match{}, false
	}
	return Match{Start: start, End: end, Amount: amount, Currency: code}, true
}

func overlaps(ms []Match, start, end int) bool {
	for _, m := range ms {
		if start < m.End && m.Start < end {
			return true
		}
	}
	return false
}

func sortMatches(ms []Match) {
	sort.Slice(ms, func(i, j int) bool { return ms[i].Start < ms[j].Start })
}
