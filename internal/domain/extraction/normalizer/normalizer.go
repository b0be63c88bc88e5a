// Package normalizer canonicalizes raw bank notifications and computes the
// fingerprint used by the deduplication gate.
package normalizer

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"github.com/FACorreiaa/echo-ledger/pkg/money"
)

// EmptyFingerprint is the bucket assigned to empty input. It never counts as
// a duplicate.
const EmptyFingerprint = "empty"

// Normalized is the canonical form of a raw message
type Normalized struct {
	Canonical   string
	Fingerprint string
	// Headers is the leading email header block, one "Name: value" per line.
	Headers string
}

var (
	headerLine = regexp.MustCompile(`(?i)^\s*(from|to|cc|bcc|subject|date|reply-to|sent)\s*:`)
	greeting   = regexp.MustCompile(`(?i)^\s*(?:dear\s+(?:valued\s+)?(?:customer|sir|madam|sir/madam|user|card\s*holder|member)\s*[,:!]?|dear\s+[a-z]+\s*,|(?:hello|hi)\s*[,:!])`)

	// Footers are cut from the first match to the end of the message.
	footers = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(warm\s+)?regards\b`),
		regexp.MustCompile(`(?i)\bthank\s*(you|s)\s+for\s+banking\b`),
		regexp.MustCompile(`(?i)\bthis\s+is\s+(a|an)\s+(system|auto(matically)?)[\s-]*generated\b`),
		regexp.MustCompile(`(?i)\bdo\s+not\s+reply\b`),
		regexp.MustCompile(`(?i)\bplease\s+do\s+not\s+reply\b`),
		regexp.MustCompile(`(?i)\bt\s*&\s*c\s*apply\b`),
		regexp.MustCompile(`(?i)\bnot\s+you\s*\?`),
	}

	whitespace = regexp.MustCompile(`\s+`)
)

// Normalize returns the canonical text and fingerprint of raw. It never fails.
func Normalize(raw string, receivedAt time.Time) Normalized {
	canonical := Canonicalize(raw)
	if canonical == "" {
		return Normalized{Fingerprint: EmptyFingerprint, Headers: Headers(raw)}
	}
	return Normalized{
		Canonical:   canonical,
		Fingerprint: Fingerprint(canonical, receivedAt),
		Headers:     Headers(raw),
	}
}

// Canonicalize strips email headers, greetings and footers and collapses
// whitespace. Case is preserved.
func Canonicalize(raw string) string {
	text := stripHeaders(strings.ReplaceAll(raw, "\r\n", "\n"))
	text = greeting.ReplaceAllString(text, "")

	for _, footer := range footers {
		if loc := footer.FindStringIndex(text); loc != nil && loc[0] > 0 {
			text = text[:loc[0]]
		}
	}

	text = whitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Headers returns the leading "Name: value" block of an email with blank
// lines removed. It is empty when raw has no header block.
func Headers(raw string) string {
	head, _ := splitHeaders(strings.ReplaceAll(raw, "\r\n", "\n"))
	return head
}

// stripHeaders drops the leading block of "Name: value" lines of an email.
// Header-like lines inside the body are kept.
func stripHeaders(text string) string {
	_, body := splitHeaders(text)
	return body
}

func splitHeaders(text string) (string, string) {
	lines := strings.Split(text, "\n")
	i := 0
	var head []string
	for i < len(lines) {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			i++
			continue
		}
		if !headerLine.MatchString(line) {
			break
		}
		head = append(head, strings.TrimSpace(line))
		i++
	}
	// A single-line SMS that happens to start with "Date:" is not a header block.
	if i == len(lines) && len(lines) == 1 {
		return "", strings.TrimSpace(text)
	}
	return strings.Join(head, "\n"), strings.TrimSpace(strings.Join(lines[i:], "\n"))
}

// Fingerprint hashes the lower-cased canonical text together with the first
// amount rounded to whole units and the receipt date.
func Fingerprint(canonical string, receivedAt time.Time) string {
	if strings.TrimSpace(canonical) == "" {
		return EmptyFingerprint
	}

	lowered := strings.ToLower(canonical)
	var b strings.Builder
	b.WriteString(lowered)
	b.WriteByte('|')
	b.WriteString(roundedAmount(lowered))
	b.WriteByte('|')
	b.WriteString(receivedAt.Format("2006-01-02"))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:16])
}

func roundedAmount(text string) string {
	m, ok := money.FirstAmount(text)
	if !ok {
		return ""
	}
	return money.RoundWhole(m.Amount).String()
}
