// Package fixtures generates realistic bank messages for tests.
package fixtures

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/echo-ledger/internal/domain/extraction"
	"github.com/FACorreiaa/echo-ledger/internal/domain/transaction"
)

var merchants = []string{
	"AMAZON", "FLIPKART", "SWIGGY", "ZOMATO", "BIGBASKET", "MYNTRA",
	"NETFLIX", "SPOTIFY", "UBER", "OLA", "DMART", "NYKAA",
}

var payers = []string{"ACME CORP", "INFOSYS LTD", "JOHN DOE", "PRIYA SHARMA"}

// Sample is a generated message and the fields extraction should recover.
type Sample struct {
	Message  extraction.Message
	Type     transaction.Type
	Amount   decimal.Decimal
	Merchant string
	Account  string
}

// Generator produces bank SMS messages in the shapes the pattern families
// recognize.
type Generator struct {
	faker *gofakeit.Faker
	start time.Time
	end   time.Time
}

// NewGenerator creates a generator with a random seed
func NewGenerator() *Generator {
	return NewGeneratorWithSeed(0)
}

// NewGeneratorWithSeed creates a generator with a specific seed for reproducibility.
func NewGeneratorWithSeed(seed int64) *Generator {
	end := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	return &Generator{
		faker: gofakeit.New(seed),
		start: end.AddDate(0, -6, 0),
		end:   end,
	}
}

// WithRange limits received timestamps to [start, end]
func (g *Generator) WithRange(start, end time.Time) *Generator {
	g.start, g.end = start, end
	return g
}

// Amount returns a positive amount with paise
func (g *Generator) Amount(min, max int) decimal.Decimal {
	rupees := g.faker.Number(min, max)
	paise := g.faker.Number(0, 99)
	return decimal.New(int64(rupees*100+paise), -2)
}

// Account returns four account digits
func (g *Generator) Account() string {
	return g.faker.Numerify("####")
}

// Merchant returns a well-known merchant name
func (g *Generator) Merchant() string {
	return g.faker.RandomString(merchants)
}

// Debit generates an account debit message
func (g *Generator) Debit() Sample {
	received := g.received()
	s := Sample{
		Type:     transaction.TypeDebit,
		Amount:   g.Amount(10, 20000),
		Merchant: g.Merchant(),
		Account:  g.Account(),
	}
	raw := fmt.Sprintf("Rs.%s debited from A/c XX%s at %s on %s",
		s.Amount.StringFixed(2), s.Account, s.Merchant, received.Format("02-01-2006"))
	s.Message = message(raw, received)
	return s
}

// CardSpend generates a card purchase message
func (g *Generator) CardSpend() Sample {
	received := g.received()
	s := Sample{
		Type:     transaction.TypeDebit,
		Amount:   g.Amount(10, 50000),
		Merchant: g.Merchant(),
		Account:  g.Account(),
	}
	raw := fmt.Sprintf("INR %s spent on HDFC Bank Card XX%s at %s on %s.",
		s.Amount.StringFixed(2), s.Account, s.Merchant, received.Format("2006-01-02"))
	s.Message = message(raw, received)
	return s
}

// Credit generates an account credit message with a balance clause
func (g *Generator) Credit() Sample {
	received := g.received()
	s := Sample{
		Type:     transaction.TypeCredit,
		Amount:   g.Amount(1000, 200000),
		Merchant: g.faker.RandomString(payers),
		Account:  g.Account(),
	}
	balance := s.Amount.Add(g.Amount(0, 100000))
	raw := fmt.Sprintf("Your A/c XX%s is credited with INR %s on %s by NEFT from %s. Avl Bal: INR %s",
		s.Account, s.Amount.StringFixed(2), received.Format("02-01-2006"), s.Merchant, balance.StringFixed(2))
	s.Message = message(raw, received)
	return s
}

// Noise generates a message no family should match
func (g *Generator) Noise() extraction.Message {
	raw := fmt.Sprintf("Your OTP for login is %s. Do not share it with anyone.", g.faker.Numerify("######"))
	return message(raw, g.received())
}

// Sample picks one of the transaction shapes at random
func (g *Generator) Sample() Sample {
	switch g.faker.Number(0, 2) {
	case 0:
		return g.Debit()
	case 1:
		return g.CardSpend()
	default:
		return g.Credit()
	}
}

// Samples generates n random samples
func (g *Generator) Samples(n int) []Sample {
	out := make([]Sample, n)
	for i := range out {
		out[i] = g.Sample()
	}
	return out
}

// Messages strips samples down to their messages
func Messages(samples []Sample) []extraction.Message {
	out := make([]extraction.Message, len(samples))
	for i, s := range samples {
		out[i] = s.Message
	}
	return out
}

func (g *Generator) received() time.Time {
	return g.faker.DateRange(g.start, g.end).UTC().Truncate(time.Minute)
}

func message(raw string, received time.Time) extraction.Message {
	return extraction.Message{
		Raw:        raw,
		ReceivedAt: received,
		Source:     transaction.SourceSMS,
	}
}
