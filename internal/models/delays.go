package models

import "time"

// LineLateness is the lateness summary of one line, in ticks
type LineLateness struct {
	System           string  `json:"system"`
	Line             string  `json:"line"`
	ObservationCount int     `json:"observationCount"`
	MeanLateness     float64 `json:"meanLateness"`
	StdDev           float64 `json:"stdDev"`
	LateCount        int     `json:"lateCount"`
	OnTimePercent    float64 `json:"onTimePercent"`
	MaxLateness      int     `json:"maxLateness"`
}

// DelaySummary aggregates lateness across all lines
type DelaySummary struct {
	Observations  int     `json:"observations"`
	LateCount     int     `json:"lateCount"`
	OnTimePercent float64 `json:"onTimePercent"`
	MeanLateness  float64 `json:"meanLateness"`
	MaxLateness   int     `json:"maxLateness"`
	WorstLine     string  `json:"worstLine,omitempty"`
}

// DelayStatsResponse is the response for GET /api/delays/stats
type DelayStatsResponse struct {
	RunID       string         `json:"runId,omitempty"`
	Summary     DelaySummary   `json:"summary"`
	Lines       []LineLateness `json:"lines"`
	LastChecked time.Time      `json:"lastChecked"`
}

// OnTimePercent returns the share of on-time observations, 0 when there are none
func OnTimePercent(onTime, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(onTime) * 100 / float64(total)
}
