package types

import "time"

// ProfileStats are read-only aggregates over a profile's submission history.
type ProfileStats struct {
	From                 time.Time `json:"from"`
	To                   time.Time `json:"to"`
	Submitted            int       `json:"submitted"`
	FailedPermanent      int       `json:"failed_permanent"`
	Rejected             int       `json:"rejected"`
	InFlight             int       `json:"in_flight"`
	TotalAttempts        int       `json:"total_attempts"`
	SuccessRate          float64   `json:"success_rate"`
	AvgQuality           float64   `json:"avg_quality"`
	AvgPersonalization   float64   `json:"avg_personalization"`
	AvgAtsCompatibility  float64   `json:"avg_ats_compatibility"`
	ThroughputPerDay     float64   `json:"throughput_per_day"`
	AvgAttemptDurationMs float64   `json:"avg_attempt_duration_ms"`
}
