// Package analytics derives pace and trend figures from sampled history.
// The engine is stateless: Compute is a pure function of the snapshot and
// the history it is handed, using only the snapshot's own capture time as
// "now" so identical inputs always yield identical records.
package analytics

import (
	"time"

	"github.com/kenn1ld/stop-killing-games-monitor/internal/models"
)

const (
	// Acceleration/deceleration thresholds for trend classification.
	trendAccelFactor = 1.10
	trendSlowFactor  = 0.90

	// DefaultWindow is the trailing window for observed pace.
	DefaultWindow = 7 * 24 * time.Hour
)

// Engine computes derived analytics for snapshots.
type Engine struct {
	window time.Duration
}

// NewEngine creates an engine with the given observed-pace window.
// A non-positive window falls back to DefaultWindow.
func NewEngine(window time.Duration) *Engine {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Engine{window: window}
}

// Compute enriches a snapshot with required pace, observed pace, on-track
// flags and a trend classification. The history sequence is borrowed
// read-only and must be in capture order.
func (e *Engine) Compute(snap models.Snapshot, history []models.HistoryRecord) models.HistoryRecord {
	rec := models.HistoryRecord{
		Snapshot: snap,
		Required: requiredPace(snap),
		Observed: e.observedPace(snap, history),
		Trend:    trend(snap, history),
	}
	rec.OnTrackDaily = onTrack(observedDaily(rec.Observed), requiredDaily(rec.Required))
	rec.OnTrackHourly = onTrack(observedHourly(rec.Observed), requiredHourly(rec.Required))
	return rec
}

// requiredPace computes the per-unit rates needed to close the remaining
// count by the deadline. Each unit floors the remaining time to its own
// granularity, so a unit can be nil while a coarser one still has a
// figure; the units are not conversions of each other.
func requiredPace(snap models.Snapshot) *models.RequiredPace {
	if snap.Deadline == nil {
		return nil
	}
	left := snap.Deadline.Sub(snap.CapturedAt)
	if left <= 0 {
		return nil
	}

	pace := &models.RequiredPace{
		PerSecond: perUnit(snap.Remaining, int64(left/time.Second)),
		PerMinute: perUnit(snap.Remaining, int64(left/time.Minute)),
		PerHour:   perUnit(snap.Remaining, int64(left/time.Hour)),
		PerDay:    perUnit(snap.Remaining, int64(left/(24*time.Hour))),
	}
	// The weekly figure scales the daily one rather than flooring the
	// remainder to whole weeks, so a 10-day runway still yields a
	// meaningful weekly target.
	if pace.PerDay != nil {
		weekly := *pace.PerDay * 7
		pace.PerWeek = &weekly
	}
	return pace
}

// perUnit divides remaining by a floored unit count, returning nil when
// the denominator floors to zero or below instead of producing Inf.
func perUnit(remaining, units int64) *float64 {
	if units <= 0 {
		return nil
	}
	v := float64(remaining) / float64(units)
	return &v
}

// observedPace measures the actual rate between the earliest and latest
// snapshot inside the trailing window ending at the snapshot's capture
// time. Fewer than two points, or zero elapsed time, means no figure.
func (e *Engine) observedPace(snap models.Snapshot, history []models.HistoryRecord) *models.ObservedPace {
	first, last, n := windowEndpoints(history, snap.CapturedAt.Add(-e.window), snap.CapturedAt)
	if n < 2 {
		return nil
	}
	elapsed := last.CapturedAt.Sub(first.CapturedAt)
	if elapsed <= 0 {
		return nil
	}
	diff := float64(last.Count - first.Count)
	return &models.ObservedPace{
		PerMinute: diff / elapsed.Minutes(),
		PerHour:   diff / elapsed.Hours(),
		PerDay:    diff / (elapsed.Hours() / 24),
		PerWeek:   diff / (elapsed.Hours() / (24 * 7)),
	}
}

// trend compares the last 24h hourly rate to the preceding 24h hourly
// rate. Either sub-window with fewer than two points yields unknown.
func trend(snap models.Snapshot, history []models.HistoryRecord) models.Trend {
	now := snap.CapturedAt
	recent, okRecent := subWindowRate(history, now.Add(-24*time.Hour), now)
	previous, okPrev := subWindowRate(history, now.Add(-48*time.Hour), now.Add(-24*time.Hour))
	if !okRecent || !okPrev {
		return models.TrendUnknown
	}
	if previous <= 0 {
		// No meaningful baseline rate to compare against.
		return models.TrendUnknown
	}
	switch ratio := recent / previous; {
	case ratio >= trendAccelFactor:
		return models.TrendAccelerating
	case ratio <= trendSlowFactor:
		return models.TrendSlowing
	default:
		return models.TrendSteady
	}
}

// subWindowRate computes the hourly rate between the first and last point
// inside [from, to). ok is false with fewer than two points or no elapsed
// time between them.
func subWindowRate(history []models.HistoryRecord, from, to time.Time) (rate float64, ok bool) {
	first, last, n := windowEndpoints(history, from, to)
	if n < 2 {
		return 0, false
	}
	hours := last.CapturedAt.Sub(first.CapturedAt).Hours()
	if hours <= 0 {
		return 0, false
	}
	return float64(last.Count-first.Count) / hours, true
}

// windowEndpoints returns the earliest and latest record captured within
// [from, to], along with how many records fell inside. History is assumed
// to be in capture order; out-of-order arrivals are a data-quality issue
// upstream and are tolerated here by scanning rather than slicing.
func windowEndpoints(history []models.HistoryRecord, from, to time.Time) (first, last models.HistoryRecord, n int) {
	for _, rec := range history {
		if rec.CapturedAt.Before(from) || rec.CapturedAt.After(to) {
			continue
		}
		if n == 0 || rec.CapturedAt.Before(first.CapturedAt) {
			first = rec
		}
		if n == 0 || rec.CapturedAt.After(last.CapturedAt) {
			last = rec
		}
		n++
	}
	return first, last, n
}

func onTrack(observed, required *float64) *bool {
	if observed == nil || required == nil {
		return nil
	}
	v := *observed >= *required
	return &v
}

func observedDaily(o *models.ObservedPace) *float64 {
	if o == nil {
		return nil
	}
	return &o.PerDay
}

func observedHourly(o *models.ObservedPace) *float64 {
	if o == nil {
		return nil
	}
	return &o.PerHour
}

func requiredDaily(r *models.RequiredPace) *float64 {
	if r == nil {
		return nil
	}
	return r.PerDay
}

func requiredHourly(r *models.RequiredPace) *float64 {
	if r == nil {
		return nil
	}
	return r.PerHour
}
