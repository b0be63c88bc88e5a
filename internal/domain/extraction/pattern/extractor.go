// Package pattern extracts transactions from bank notifications using an
// ordered set of deterministic message families.
package pattern

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/cloudflare/ahocorasick"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/echo-ledger/internal/domain/extraction"
	"github.com/FACorreiaa/echo-ledger/internal/domain/transaction"
	"github.com/FACorreiaa/echo-ledger/pkg/money"
)

// Name is the strategy name of the pattern extractor.
const Name = "pattern"

// Extractor runs the family list against canonical text. It is safe for
// concurrent use and deterministic for a given input.
type Extractor struct {
	families []Family
	keywords []string
	triggers [][]int // per family, indices into keywords

	mu      sync.Mutex // ahocorasick.Matcher keeps per-match state
	matcher *ahocorasick.Matcher
}

var _ extraction.Strategy = (*Extractor)(nil)

// New builds an extractor. With no families the defaults are used.
func New(families ...Family) *Extractor {
	if len(families) == 0 {
		families = DefaultFamilies()
	}

	e := &Extractor{families: families, triggers: make([][]int, len(families))}

	index := make(map[string]int)
	for i, f := range families {
		for _, kw := range f.Triggers {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			idx, ok := index[kw]
			if !ok {
				idx = len(e.keywords)
				index[kw] = idx
				e.keywords = append(e.keywords, kw)
			}
			e.triggers[i] = append(e.triggers[i], idx)
		}
	}

	if len(e.keywords) > 0 {
		e.matcher = ahocorasick.NewStringMatcher(e.keywords)
	}
	return e
}

// Name implements extraction.Strategy
func (e *Extractor) Name() string { return Name }

// TryExtract returns the first family match or extraction.ErrNoMatch.
func (e *Extractor) TryExtract(_ context.Context, in extraction.Input) (*extraction.Result, error) {
	text := strings.TrimSpace(in.Canonical)
	if text == "" {
		return nil, extraction.ErrNoMatch
	}

	balance, balanceSpans := findBalance(text)
	amount, ok := firstAmountOutside(text, balanceSpans)
	if !ok {
		return nil, extraction.ErrNoMatch
	}

	hits := e.triggerHits(strings.ToLower(text))

	for i, f := range e.families {
		if len(f.Triggers) > 0 && !anyHit(hits, e.triggers[i]) {
			continue
		}
		if f.Require != nil && !f.Require.MatchString(text) {
			continue
		}

		res := &extraction.Result{
			Amount:     amount.Amount,
			Currency:   amount.Currency,
			Type:       f.Type,
			Balance:    balance,
			Confidence: f.Confidence,
			Family:     f.Name,
			Date:       findDate(text, location(in.ReceivedAt)),
		}

		if f.FixedMerchant != "" {
			res.Merchant = f.FixedMerchant
		} else {
			res.Merchant = findMerchant(text, f.Merchants)
		}

		res.AccountLastDigits = findAccount(text)
		if res.AccountLastDigits == nil && f.UPI {
			res.AccountLastDigits = transaction.StringPtr(transaction.UPIAccount)
		}
		return res, nil
	}

	return nil, extraction.ErrNoMatch
}

func (e *Extractor) triggerHits(lower string) map[int]bool {
	if e.matcher == nil {
		return nil
	}

	e.mu.Lock()
	matched := e.matcher.Match([]byte(lower))
	e.mu.Unlock()

	hits := make(map[int]bool, len(matched))
	for _, idx := range matched {
		hits[idx] = true
	}
	return hits
}

func anyHit(hits map[int]bool, indices []int) bool {
	for _, idx := range indices {
		if hits[idx] {
			return true
		}
	}
	return false
}

func location(t time.Time) *time.Location {
	if t.IsZero() {
		return time.UTC
	}
	return t.Location()
}

// ----------------------------------------------------------------------------
// Amounts and balances
// ----------------------------------------------------------------------------

var balanceClause = regexp.MustCompile(`(?i)\b(?:avl\.?\s*bal(?:ance)?|avbl\.?\s*bal(?:ance)?|available\s+bal(?:ance)?|avail\.?\s*bal(?:ance)?|bal(?:ance)?)\b[\s:.\-]*(?:is\s*)?(?:(?:rs\.?|inr|usd|eur|gbp)\s*|[₹$€£]\s*)?(-?[0-9][0-9,]*(?:\.[0-9]+)?)`)

type span struct{ start, end int }

func findBalance(text string) (*decimal.Decimal, []span) {
	var (
		balance *decimal.Decimal
		spans   []span
	)
	for _, loc := range balanceClause.FindAllStringSubmatchIndex(text, -1) {
		spans = append(spans, span{loc[0], loc[1]})
		if balance != nil {
			continue
		}
		if d, err := money.ParseAmount(text[loc[2]:loc[3]]); err == nil {
			balance = &d
		}
	}
	return balance, spans
}

func firstAmountOutside(text string, spans []span) (money.Match, bool) {
	for _, m := range money.FindAmounts(text) {
		inside := false
		for _, s := range spans {
			if m.Start < s.end && s.start < m.End {
				inside = true
				break
			}
		}
		if !inside {
			return m, true
		}
	}
	return money.Match{}, false
}

// ----------------------------------------------------------------------------
// Accounts
// ----------------------------------------------------------------------------

var (
	accountRef = regexp.MustCompile(`(?i)\b(?:a/c|acct|account|ac)\b(?:\s*(?:no\.?|number|ending(?:\s+(?:with|in))?))?[\s:.#\-]*[x*]*(\d{3,6})\b`)
	cardRef    = regexp.MustCompile(`(?i)\bcard\b(?:\s*no\.?)?(?:\s+ending(?:\s+(?:with|in))?)?[\s:.#\-]*[x*]*(\d{4})\b`)
)

func findAccount(text string) *string {
	for _, re := range []*regexp.Regexp{accountRef, cardRef} {
		if m := re.FindStringSubmatch(text); m != nil {
			digits := m[1]
			if len(digits) > 4 {
				digits = digits[len(digits)-4:]
			}
			return &digits
		}
	}
	return nil
}

// ----------------------------------------------------------------------------
// Dates
// ----------------------------------------------------------------------------

var (
	isoDate     = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	numericDate = regexp.MustCompile(`\b(\d{1,2})[-/](\d{1,2})[-/](\d{4}|\d{2})\b`)
	monthDate   = regexp.MustCompile(`(?i)\b(\d{1,2})[-\s]?(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*[-\s,]*(\d{4}|\d{2})\b`)
)

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

func findDate(text string, loc *time.Location) *time.Time {
	if m := isoDate.FindStringSubmatch(text); m != nil {
		if t, ok := makeDate(atoi(m[1]), time.Month(atoi(m[2])), atoi(m[3]), loc); ok {
			return &t
		}
	}
	if m := numericDate.FindStringSubmatch(text); m != nil {
		if t, ok := makeDate(year(m[3]), time.Month(atoi(m[2])), atoi(m[1]), loc); ok {
			return &t
		}
	}
	if m := monthDate.FindStringSubmatch(text); m != nil {
		if t, ok := makeDate(year(m[3]), months[strings.ToLower(m[2])], atoi(m[1]), loc); ok {
			return &t
		}
	}
	return nil
}

func makeDate(y int, m time.Month, d int, loc *time.Location) (time.Time, bool) {
	if m < time.January || m > time.December || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, m, d, 0, 0, 0, 0, loc)
	// Reject dates that normalized into another month (31-02-2024).
	if t.Day() != d || t.Month() != m {
		return time.Time{}, false
	}
	return t, true
}

func year(s string) int {
	y := atoi(s)
	if len(s) == 2 {
		y += 2000
	}
	return y
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// ----------------------------------------------------------------------------
// Merchants
// ----------------------------------------------------------------------------

var (
	merchantPrefix = regexp.MustCompile(`(?i)^(?:vpa\s+|upi[/:\-]\s*|p2[am]/|mr\.?\s+|ms\.?\s+|m/s\.?\s+)+`)
	merchantRef    = regexp.MustCompile(`(?i)[\s*#/\-]*(?:ref(?:\s*no)?\.?\s*:?\s*)?\d{4,}$`)
	accountish     = regexp.MustCompile(`(?i)^(?:a/c|acct|account|ac|card|your|xx|\*+)\b|^[x*]*\d+$`)
	currencyish    = regexp.MustCompile(`(?i)^(?:rs\.?|inr|usd|eur|gbp|₹|\$|€|£)\s*\d`)
	spaces         = regexp.MustCompile(`\s+`)

	// Helpline instructions ("Call 1800 for dispute") name no counterparty.
	contactClause = regexp.MustCompile(`(?i)\b(?:call|sms|dial|contact|helpline|write\s+to)\b`)
)

func findMerchant(text string, res []*regexp.Regexp) string {
	for _, re := range res {
		for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
			if loc[2] < 0 || contactClause.MatchString(clauseBefore(text, loc[0])) {
				continue
			}
			if name := CleanMerchant(text[loc[2]:loc[3]]); validMerchant(name) {
				return name
			}
		}
	}
	return ""
}

// clauseBefore returns the part of the sentence that precedes end.
func clauseBefore(text string, end int) string {
	start := 0
	for _, sep := range []string{". ", "; ", "! ", "? "} {
		if i := strings.LastIndex(text[:end], sep); i >= 0 && i+len(sep) > start {
			start = i + len(sep)
		}
	}
	return text[start:end]
}

// CleanMerchant strips UPI prefixes, handles and trailing reference numbers
// from a captured counterparty.
func CleanMerchant(raw string) string {
	s := strings.TrimSpace(raw)
	s = merchantPrefix.ReplaceAllString(s, "")

	if at := strings.IndexByte(s, '@'); at > 0 {
		s = s[:at]
	}

	for {
		trimmed := merchantRef.ReplaceAllString(s, "")
		trimmed = strings.TrimRight(trimmed, " .,-/*:")
		if trimmed == s {
			break
		}
		s = trimmed
	}

	s = strings.Trim(s, " .,-/*:")
	return spaces.ReplaceAllString(s, " ")
}

func validMerchant(name string) bool {
	if name == "" || len(name) > 60 {
		return false
	}
	if accountish.MatchString(name) || currencyish.MatchString(name) {
		return false
	}
	for _, r := range name {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
