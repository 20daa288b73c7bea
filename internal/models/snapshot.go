package models

import (
	"time"
)

// Snapshot is one normalized sample of the campaign counter: the signature
// count and goal from the counter API, plus the closing deadline from the
// description API when it was reachable.
type Snapshot struct {
	CapturedAt      time.Time  `json:"captured_at"`
	Count           int64      `json:"count"`
	Goal            int64      `json:"goal"`
	Remaining       int64      `json:"remaining"` // may be negative once the goal is exceeded
	ProgressPercent float64    `json:"progress_percent"`
	Deadline        *time.Time `json:"deadline,omitempty"` // nil when the description source was unavailable
}

// NewSnapshot normalizes raw counter values into a Snapshot.
// Callers must have validated count >= 0 and goal > 0.
func NewSnapshot(capturedAt time.Time, count, goal int64, deadline *time.Time) Snapshot {
	return Snapshot{
		CapturedAt:      capturedAt,
		Count:           count,
		Goal:            goal,
		Remaining:       goal - count,
		ProgressPercent: 100 * float64(count) / float64(goal),
		Deadline:        deadline,
	}
}

// RequiredPace is the signing rate needed to close the remaining count by
// the deadline. A nil *RequiredPace means no deadline is known or it has
// already passed. Each unit floors its own time-remaining independently,
// so a unit whose floored remainder is zero is nil while coarser units
// may still carry a figure. required-per-day is therefore not a unit
// conversion of required-per-hour.
type RequiredPace struct {
	PerSecond *float64 `json:"per_second,omitempty"`
	PerMinute *float64 `json:"per_minute,omitempty"`
	PerHour   *float64 `json:"per_hour,omitempty"`
	PerDay    *float64 `json:"per_day,omitempty"`
	PerWeek   *float64 `json:"per_week,omitempty"`
}

// ObservedPace is the signing rate actually measured between the earliest
// and latest snapshot inside the trailing window. A nil *ObservedPace means
// fewer than two points were available (or zero elapsed time). Unlike
// RequiredPace, all units are derived from the same two endpoints without
// per-unit flooring, so they are always populated together.
type ObservedPace struct {
	PerMinute float64 `json:"per_minute"`
	PerHour   float64 `json:"per_hour"`
	PerDay    float64 `json:"per_day"`
	PerWeek   float64 `json:"per_week"`
}

// Trend classifies momentum: the last 24h hourly rate against the
// preceding 24h hourly rate.
type Trend string

const (
	TrendAccelerating Trend = "accelerating"
	TrendSlowing      Trend = "slowing"
	TrendSteady       Trend = "steady"
	TrendUnknown      Trend = "unknown"
)

// HistoryRecord is a Snapshot enriched with derived pace and trend
// figures, as stored in the history sequence.
type HistoryRecord struct {
	Snapshot
	Required      *RequiredPace `json:"required_pace,omitempty"`
	Observed      *ObservedPace `json:"observed_pace,omitempty"`
	OnTrackDaily  *bool         `json:"on_track_daily,omitempty"`
	OnTrackHourly *bool         `json:"on_track_hourly,omitempty"`
	Trend         Trend         `json:"trend"`
}

// HistoryStats summarizes the stored history sequence.
type HistoryStats struct {
	Count       int        `json:"count"`
	First       *time.Time `json:"first,omitempty"`
	Last        *time.Time `json:"last,omitempty"`
	MinCount    int64      `json:"min_count"`
	MaxCount    int64      `json:"max_count"`
	AvgCount    float64    `json:"avg_count"`
	TotalGrowth int64      `json:"total_growth"` // last count minus first count
}

// HistoryResponse is the API response for a history page, most recent first.
type HistoryResponse struct {
	Records []HistoryRecord `json:"records"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}
