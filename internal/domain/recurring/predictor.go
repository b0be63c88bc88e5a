package recurring

import "time"

// DefaultUpcomingDays is how far ahead a series counts as upcoming
const DefaultUpcomingDays = 7

// DefaultIntervals returns the day interval added per frequency.
func DefaultIntervals() map[Frequency]int {
	return map[Frequency]int{
		FrequencyDaily:     1,
		FrequencyWeekly:    7,
		FrequencyBiweekly:  14,
		FrequencyMonthly:   31,
		FrequencyQuarterly: 91,
		FrequencyYearly:    365,
	}
}

// NextExpected predicts the next occurrence. Frequencies without an interval,
// including irregular and none, get no prediction.
func NextExpected(last time.Time, freq Frequency, intervals map[Frequency]int) *time.Time {
	days, ok := intervals[freq]
	if !ok || days <= 0 {
		return nil
	}
	next := last.AddDate(0, 0, days)
	return &next
}

// Predictor holds the schedule thresholds
type Predictor struct {
	Intervals    map[Frequency]int
	UpcomingDays int
}

// NewPredictor creates a predictor with default intervals.
func NewPredictor(upcomingDays int) *Predictor {
	if upcomingDays <= 0 {
		upcomingDays = DefaultUpcomingDays
	}
	return &Predictor{Intervals: DefaultIntervals(), UpcomingDays: upcomingDays}
}

// NextExpected applies the predictor's intervals
func (p *Predictor) NextExpected(last time.Time, freq Frequency) *time.Time {
	return NextExpected(last, freq, p.Intervals)
}

// StatusAt classifies s relative to now. The three states partition time:
// overdue before now, upcoming within the window, quiet otherwise.
func (p *Predictor) StatusAt(s *Series, now time.Time) Status {
	if s.NextExpectedDate == nil {
		return StatusQuiet
	}
	next := *s.NextExpectedDate
	if next.Before(now) {
		return StatusOverdue
	}
	if !next.After(now.AddDate(0, 0, p.UpcomingDays)) {
		return StatusUpcoming
	}
	return StatusQuiet
}
