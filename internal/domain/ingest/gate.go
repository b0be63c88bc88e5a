// Package ingest turns batches of raw messages into persisted, deduplicated
// transactions.
package ingest

import (
	"strings"
	"time"

	"github.com/FACorreiaa/echo-ledger/internal/domain/categorization"
	"github.com/FACorreiaa/echo-ledger/internal/domain/extraction/normalizer"
	"github.com/FACorreiaa/echo-ledger/internal/domain/transaction"
)

const (
	DefaultWindowDays         = 2
	DefaultMerchantSimilarity = 0.8
)

// Reason explains why a candidate was treated as a duplicate
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonFingerprint Reason = "fingerprint"
	ReasonSimilar     Reason = "similar"
)

// Gate decides whether a candidate transaction is already in the ledger.
type Gate struct {
	WindowDays         int
	MerchantSimilarity float64
}

// NewGate creates a gate; non-positive values fall back to the defaults.
func NewGate(windowDays int, similarity float64) *Gate {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	if similarity <= 0 || similarity > 1 {
		similarity = DefaultMerchantSimilarity
	}
	return &Gate{WindowDays: windowDays, MerchantSimilarity: similarity}
}

func (g *Gate) span() time.Duration {
	return time.Duration(g.WindowDays) * 24 * time.Hour
}

// Window returns the time range that must be loaded to check candidate.
func (g *Gate) Window(candidate *transaction.Transaction) (start, end time.Time) {
	return candidate.Timestamp.Add(-g.span()), candidate.Timestamp.Add(g.span())
}

// IsDuplicate compares candidate with already persisted transactions. Rows
// from other accounts or outside the window are ignored.
func (g *Gate) IsDuplicate(candidate *transaction.Transaction, window []*transaction.Transaction) (bool, Reason) {
	for _, existing := range window {
		if existing.ID == candidate.ID || !sameAccount(existing, candidate) {
			continue
		}
		if !g.withinWindow(existing.Timestamp, candidate.Timestamp) {
			continue
		}
		if sameFingerprint(existing.Fingerprint, candidate.Fingerprint) {
			return true, ReasonFingerprint
		}
		if g.similar(existing, candidate) {
			return true, ReasonSimilar
		}
	}
	return false, ReasonNone
}

func (g *Gate) withinWindow(a, b time.Time) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= g.span()
}

func (g *Gate) similar(a, b *transaction.Transaction) bool {
	if a.Amount == nil || b.Amount == nil || !a.Amount.Equal(*b.Amount) {
		return false
	}
	if a.Type != b.Type {
		return false
	}
	if strings.TrimSpace(a.Merchant) == "" || strings.TrimSpace(b.Merchant) == "" {
		return false
	}
	return categorization.Similarity(a.Merchant, b.Merchant) >= g.MerchantSimilarity
}

func sameFingerprint(a, b string) bool {
	if a == "" || a == normalizer.EmptyFingerprint {
		return false
	}
	return a == b
}

func sameAccount(a, b *transaction.Transaction) bool {
	if a.AccountLastDigits == nil || b.AccountLastDigits == nil {
		return a.AccountLastDigits == nil && b.AccountLastDigits == nil
	}
	return *a.AccountLastDigits == *b.AccountLastDigits
}
