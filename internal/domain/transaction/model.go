// Package transaction defines the ledger entry produced by the extraction
// pipeline and the repository contract used to persist it.
package transaction

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Uncategorized is the sentinel category assigned until the learner or the
// user supplies one.
const Uncategorized = "Uncategorized"

// UPIAccount marks transactions paid through a UPI handle rather than a card
// or account number.
const UPIAccount = "UPI"

// Type is the direction of money movement
type Type string

const (
	TypeDebit  Type = "debit"
	TypeCredit Type = "credit"
)

// Valid reports whether t is a known direction.
func (t Type) Valid() bool {
	return t == TypeDebit || t == TypeCredit
}

// Source identifies the channel a raw message arrived on
type Source string

const (
	SourceSMS   Source = "sms"
	SourceEmail Source = "email"
)

// Transaction is the atomic ledger entry.
type Transaction struct {
	ID              uuid.UUID
	RawMessage      string
	Fingerprint     string
	Source          Source
	SourceAccountID string
	ReceivedAt      time.Time
	Timestamp       time.Time

	Amount            *decimal.Decimal
	Type              Type
	Merchant          string
	Category          string
	AccountLastDigits *string
	Balance           *decimal.Decimal

	ParserType       ParserType
	ParserConfidence float64
	ParseTime        *float64
	ParsingError     *string

	AutoCategorized  bool
	OriginalCurrency *string
	OriginalAmount   *decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsParsed reports whether extraction produced a usable record: an amount and
// a merchant are present and no parsing error is outstanding.
func (t *Transaction) IsParsed() bool {
	return t.Amount != nil && strings.TrimSpace(t.Merchant) != "" && t.ParsingError == nil
}

// Account returns the account suffix or an empty string.
func (t *Transaction) Account() string {
	if t.AccountLastDigits == nil {
		return ""
	}
	return *t.AccountLastDigits
}

// ResetExtraction clears every extraction-derived field. Identity, the raw
// message, receipt metadata and the category are left untouched.
func (t *Transaction) ResetExtraction() {
	t.Amount = nil
	t.Type = TypeDebit
	t.Merchant = ""
	t.AccountLastDigits = nil
	t.Balance = nil
	t.ParserType = ParserType{}
	t.ParserConfidence = 0
	t.ParseTime = nil
	t.ParsingError = nil
	t.OriginalCurrency = nil
	t.OriginalAmount = nil
	t.Timestamp = t.ReceivedAt
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (t *Transaction) Clone() *Transaction {
	c := *t
	c.Amount = cloneDecimal(t.Amount)
	c.Balance = cloneDecimal(t.Balance)
	c.OriginalAmount = cloneDecimal(t.OriginalAmount)
	c.AccountLastDigits = cloneString(t.AccountLastDigits)
	c.ParsingError = cloneString(t.ParsingError)
	c.OriginalCurrency = cloneString(t.OriginalCurrency)
	if t.ParseTime != nil {
		v := *t.ParseTime
		c.ParseTime = &v
	}
	return &c
}

func cloneDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// StringPtr is a small helper for optional string fields.
func StringPtr(s string) *string {
	return &s
}

// DecimalPtr is a small helper for optional decimal fields.
func DecimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
