// Package recurring derives recurring-bill series from the transaction
// history: grouping, periodicity inference and next-date prediction.
// Series are rebuilt wholesale on every run and are never the source of truth.
package recurring

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/echo-ledger/internal/domain/transaction"
)

// ErrNotFound is returned when a series does not exist
var ErrNotFound = errors.New("series not found")

// Frequency is the periodicity bucket of a series
type Frequency string

const (
	FrequencyNone      Frequency = "none"
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyBiweekly  Frequency = "biweekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
	FrequencyIrregular Frequency = "irregular"
)

// Status places a series relative to "now"
type Status string

const (
	StatusUpcoming Status = "upcoming"
	StatusOverdue  Status = "overdue"
	StatusQuiet    Status = "quiet"
)

// Series is one recurring obligation.
type Series struct {
	ID               uuid.UUID
	Merchant         string
	Category         string
	Type             transaction.Type
	Frequency        Frequency
	AverageAmount    decimal.Decimal
	OccurrenceCount  int
	FirstOccurrence  time.Time
	LastOccurrence   time.Time
	NextExpectedDate *time.Time
	ConfidenceScore  float64
	IsActive         bool
	UpdatedAt        time.Time

	// Status is computed at listing time and never stored.
	Status Status
}

var seriesNamespace = uuid.MustParse("6f1d3c52-8a0e-4b8e-9f57-2c4a1e0d7b93")

// SeriesID derives a stable ID from the grouping key so user choices survive
// a rebuild.
func SeriesID(merchant, category string) uuid.UUID {
	return uuid.NewSHA1(seriesNamespace, []byte(merchant+"\x00"+category))
}

func (s *Series) clone() *Series {
	c := *s
	if s.NextExpectedDate != nil {
		v := *s.NextExpectedDate
		c.NextExpectedDate = &v
	}
	return &c
}
