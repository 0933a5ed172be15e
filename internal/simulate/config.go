// Package simulate generates synthetic student populations and drives a
// running coachlens server with them.
package simulate

import "time"

// Config holds configuration for a load run.
type Config struct {
	BaseURL string        // Base URL of the service
	Workers int           // Number of concurrent submitters
	Timeout time.Duration // HTTP request timeout
	Settle  time.Duration // Wait between submission and triage retrieval
	TopN    int           // Triage entries to fetch
	Ingest  bool          // Use the async ingest endpoint instead of evaluate
	Verbose bool          // Log every failed submission
}

// Stats holds run statistics.
type Stats struct {
	Submitted     int64
	Successful    int64
	Backpressured int64
	Failed        int64
	TriageEntries int
	StartTime     time.Time
	EndTime       time.Time
	Duration      time.Duration
}

// SuccessRate returns the successful share of submissions in percent.
func (s *Stats) SuccessRate() float64 {
	if s.Submitted == 0 {
		return 0
	}
	return float64(s.Successful) / float64(s.Submitted) * 100
}
