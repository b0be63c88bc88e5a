package model

import "sync"

// CallStats counts model invocations. One handle is shared by every extractor
// in the process and read by the diagnostics surface.
type CallStats struct {
	mu        sync.Mutex
	calls     int64
	lastError string
}

// StatsSnapshot is a consistent read of CallStats
type StatsSnapshot struct {
	Calls     int64
	LastError string
}

// NewCallStats creates an empty stats handle
func NewCallStats() *CallStats {
	return &CallStats{}
}

// Count records one request sent to the model
func (s *CallStats) Count() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
}

// Settle stores the outcome of one extraction once its answer has been
// decoded. A nil error clears the last error.
func (s *CallStats) Settle(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastError = err.Error()
	} else {
		s.lastError = ""
	}
}

// Reset clears the counters
func (s *CallStats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = 0
	s.lastError = ""
}

// Snapshot returns the current values
func (s *CallStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatsSnapshot{Calls: s.calls, LastError: s.lastError}
}
