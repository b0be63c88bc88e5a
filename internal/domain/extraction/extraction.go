// Package extraction turns raw bank notifications into transaction records
// through an ordered chain of strategies.
package extraction

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/echo-ledger/internal/domain/transaction"
)

// ErrNoMatch is returned by a strategy that found no transaction in the text.
// It is an expected outcome, not a failure.
var ErrNoMatch = errors.New("no matching pattern")

// Input is what a strategy sees: the canonical text plus receipt metadata.
type Input struct {
	Canonical  string
	Raw        string
	Source     transaction.Source
	ReceivedAt time.Time

	// Headers is the email header block (Subject, From, ...) removed from
	// Canonical. Empty for SMS.
	Headers string

	// Pace, when set, must be called by a fallback before each remote
	// request. It blocks until the request may be sent.
	Pace func(context.Context) error
}

// Result is a successful extraction. Amount is always set.
type Result struct {
	Amount            decimal.Decimal
	Type              transaction.Type
	Merchant          string
	AccountLastDigits *string
	Balance           *decimal.Decimal
	Currency          string
	Date              *time.Time
	Confidence        float64

	// Family names the pattern family that matched, empty for model results.
	Family string
}

// Strategy is one link of the extraction chain.
type Strategy interface {
	Name() string
	TryExtract(ctx context.Context, in Input) (*Result, error)
}

// Fallback is a model-backed strategy. Its results are tagged with the model
// name and it can be toggled at runtime.
type Fallback interface {
	Strategy
	ModelName() string
	SetModel(name string)
}

// Message is a raw notification handed to the coordinator.
type Message struct {
	Raw             string
	ReceivedAt      time.Time
	Source          transaction.Source
	SourceAccountID string
}
