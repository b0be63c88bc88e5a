package recurring

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// irregularConfidenceCap bounds the confidence of series that fit no band
const irregularConfidenceCap = 0.4

// Band maps an inclusive range of median gap days to a frequency
type Band struct {
	Frequency Frequency
	MinDays   int
	MaxDays   int
}

// DefaultBands returns the gap bands used when none are configured.
func DefaultBands() []Band {
	return []Band{
		{FrequencyDaily, 1, 2},
		{FrequencyWeekly, 3, 10},
		{FrequencyBiweekly, 11, 17},
		{FrequencyMonthly, 25, 35},
		{FrequencyQuarterly, 80, 100},
		{FrequencyYearly, 350, 380},
	}
}

// Classification is the inferred periodicity of one candidate
type Classification struct {
	Frequency     Frequency
	Confidence    float64
	MedianGapDays float64
	AverageAmount decimal.Decimal
}

// Classify infers the frequency of a series from its ascending occurrence
// dates. The median gap is rounded to whole days before banding. Confidence is
// 1 - MAD/median where MAD is the mean absolute deviation of the gaps around
// their mean. With two occurrences there is one gap, so confidence is 1.
func Classify(dates []time.Time, amounts []decimal.Decimal, bands []Band) Classification {
	c := Classification{
		Frequency:     FrequencyNone,
		AverageAmount: mean(amounts),
	}
	if len(dates) < 2 {
		return c
	}
	if len(bands) == 0 {
		bands = DefaultBands()
	}

	gaps := make([]float64, 0, len(dates)-1)
	for i := 1; i < len(dates); i++ {
		gaps = append(gaps, float64(calendarDays(dates[i-1], dates[i])))
	}

	median := medianOf(gaps)
	c.MedianGapDays = median
	c.Frequency = band(int(math.Round(median)), bands)

	if median > 0 {
		c.Confidence = clamp(1 - meanAbsDeviation(gaps)/median)
	}
	if c.Frequency == FrequencyIrregular && c.Confidence > irregularConfidenceCap {
		c.Confidence = irregularConfidenceCap
	}
	return c
}

func band(days int, bands []Band) Frequency {
	for _, b := range bands {
		if days >= b.MinDays && days <= b.MaxDays {
			return b.Frequency
		}
	}
	return FrequencyIrregular
}

// calendarDays counts civil days between a and b, ignoring time of day.
func calendarDays(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

func medianOf(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func meanAbsDeviation(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	avg := sum / float64(len(values))

	var dev float64
	for _, v := range values {
		dev += math.Abs(v - avg)
	}
	return dev / float64(len(values))
}

func mean(amounts []decimal.Decimal) decimal.Decimal {
	if len(amounts) == 0 {
		return decimal.Zero
	}
	return decimal.Sum(amounts[0], amounts[1:]...).
		DivRound(decimal.NewFromInt(int64(len(amounts))), 2)
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
