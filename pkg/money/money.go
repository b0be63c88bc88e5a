// Package money provides currency-safe amount handling for extracted transactions.
// Amounts travel as shopspring/decimal values; go-money supplies ISO-4217
// metadata (fraction digits, graphemes) for rounding and display.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Common currency codes (ISO-4217)
const (
	INR = "INR" // Indian Rupee
	USD = "USD" // US Dollar
	EUR = "EUR" // Euro
	GBP = "GBP" // British Pound
	AED = "AED" // UAE Dirham
	SGD = "SGD" // Singapore Dollar
)

// ErrInvalidAmount is returned when an amount string cannot be parsed.
var ErrInvalidAmount = errors.New("invalid amount")

// currencyTokens maps the symbols and abbreviations seen in bank messages to ISO codes.
var currencyTokens = map[string]string{
	"rs":  INR,
	"rs.": INR,
	"inr": INR,
	"₹":   INR,
	"usd": USD,
	"$":   USD,
	"us$": USD,
	"eur": EUR,
	"€":   EUR,
	"gbp": GBP,
	"£":   GBP,
	"aed": AED,
	"sgd": SGD,
}

// Money represents a monetary value with currency.
type Money struct {
	m *money.Money
}

// New creates a new Money value from minor units and currency code.
func New(amountMinor int64, currencyCode string) *Money {
	return &Money{m: money.New(amountMinor, currencyCode)}
}

// NewFromDecimal creates Money from a decimal.Decimal value, rounding to the
// currency's fraction digits.
func NewFromDecimal(amount decimal.Decimal, currencyCode string) *Money {
	currency := money.GetCurrency(currencyCode)
	if currency == nil {
		currency = money.GetCurrency(INR)
		currencyCode = INR
	}

	multiplier := decimal.New(1, int32(currency.Fraction))
	minor := amount.Mul(multiplier).Round(0).IntPart()

	return New(minor, currencyCode)
}

// Amount returns the amount in minor units
func (m *Money) Amount() int64 {
	if m == nil || m.m == nil {
		return 0
	}
	return m.m.Amount()
}

// Currency returns the ISO-4217 currency code
func (m *Money) Currency() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Currency().Code
}

// Display returns a formatted string for display (e.g., "₹1,234.56")
func (m *Money) Display() string {
	if m == nil || m.m == nil {
		return "0.00"
	}
	return m.m.Display()
}

// ToDecimal converts back to decimal.Decimal
func (m *Money) ToDecimal() decimal.Decimal {
	if m == nil || m.m == nil {
		return decimal.Zero
	}
	currency := m.m.Currency()
	d := decimal.NewFromInt(m.m.Amount())
	return d.Div(decimal.New(1, int32(currency.Fraction)))
}

// ParseAmount parses an amount as printed in bank messages. Thousands
// separators are stripped regardless of grouping style, so both "1,234.50"
// and the Indian "1,23,456.00" are accepted. A comma followed by exactly two
// trailing digits and no dot is read as a decimal comma ("12,50").
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	for _, sym := range []string{"₹", "$", "€", "£"} {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.ReplaceAll(s, " ", "")
	s = strings.TrimSuffix(s, ".")
	s = strings.TrimSuffix(s, "/-")

	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}

	if !strings.Contains(s, ".") {
		if idx := strings.LastIndex(s, ","); idx >= 0 && len(s)-idx-1 == 2 && strings.Count(s, ",") == 1 {
			s = s[:idx] + "." + s[idx+1:]
		}
	}
	s = strings.ReplaceAll(s, ",", "")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	return d, nil
}

// ResolveCurrency maps a symbol or abbreviation ("Rs.", "₹", "USD") to its ISO code.
func ResolveCurrency(token string) (string, bool) {
	t := strings.ToLower(strings.TrimSpace(token))
	if code, ok := currencyTokens[t]; ok {
		return code, true
	}
	if len(t) == 3 {
		if c := money.GetCurrency(strings.ToUpper(t)); c != nil {
			return c.Code, true
		}
	}
	return "", false
}

// RoundWhole rounds an amount to whole currency units.
func RoundWhole(d decimal.Decimal) decimal.Decimal {
	return d.Round(0)
}

// Display formats an amount in the given currency.
func Display(amount decimal.Decimal, currencyCode string) string {
	return NewFromDecimal(amount, currencyCode).Display()
}
