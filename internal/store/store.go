// Package store persists the sampled history and its "latest" projection
// on a versioned key -> blob medium. All mutation goes through an
// optimistic read-modify-write: read the current version token, write the
// new content conditioned on that token, retry once on a lost race. No
// lock is held across the medium round-trip.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/kenn1ld/stop-killing-games-monitor/internal/metrics"
	"github.com/kenn1ld/stop-killing-games-monitor/internal/models"
)

const (
	latestKey  = "latest"
	historyKey = "history"

	// DefaultRetentionCap bounds the history sequence: 30 days of
	// 5-minute samples.
	DefaultRetentionCap = 8640
)

// Store owns the durable history sequence and the latest projection.
// A Store built over a nil medium is disabled: writes are logged and
// skipped, reads behave as empty.
type Store struct {
	medium       Medium
	retentionCap int
}

// New creates a Store over the given medium. A nil medium disables the
// store (missing configuration is not an error). A non-positive cap
// falls back to DefaultRetentionCap.
func New(medium Medium, retentionCap int) *Store {
	if retentionCap <= 0 {
		retentionCap = DefaultRetentionCap
	}
	return &Store{medium: medium, retentionCap: retentionCap}
}

// Enabled reports whether the store has a configured medium.
func (s *Store) Enabled() bool {
	return s.medium != nil
}

// Append persists a record to the history sequence and then updates the
// latest projection, so latest is always the tail of history after a
// successful run. On a disabled store both writes are skipped.
func (s *Store) Append(ctx context.Context, rec models.HistoryRecord) error {
	if !s.Enabled() {
		log.Println("Store: disabled, skipping append")
		return nil
	}
	if err := s.AppendHistory(ctx, rec); err != nil {
		return err
	}
	return s.AppendLatest(ctx, rec)
}

// AppendLatest replaces the latest projection under optimistic
// concurrency, retrying once with a freshly read token on conflict.
func (s *Store) AppendLatest(ctx context.Context, rec models.HistoryRecord) error {
	if !s.Enabled() {
		log.Println("Store: disabled, skipping latest update")
		return nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal latest: %w", err)
	}
	return s.writeWithRetry(ctx, latestKey, func([]byte) ([]byte, error) {
		return data, nil
	})
}

// AppendHistory reads the existing sequence (absent = empty), appends the
// record, trims the oldest entries beyond the retention cap, and writes
// the sequence back conditioned on the version it read.
func (s *Store) AppendHistory(ctx context.Context, rec models.HistoryRecord) error {
	if !s.Enabled() {
		log.Println("Store: disabled, skipping history append")
		return nil
	}
	var length int
	err := s.writeWithRetry(ctx, historyKey, func(current []byte) ([]byte, error) {
		records, err := decodeHistory(current)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
		if len(records) > s.retentionCap {
			// Trim from the front only: the oldest samples go first.
			records = records[len(records)-s.retentionCap:]
		}
		length = len(records)
		return json.Marshal(records)
	})
	if err != nil {
		return err
	}
	metrics.HistoryLength.Set(float64(length))
	return nil
}

// writeWithRetry runs one read-modify-write cycle and retries exactly
// once when the conditional write reports a stale token.
func (s *Store) writeWithRetry(ctx context.Context, key string, modify func(current []byte) ([]byte, error)) error {
	for attempt := 0; ; attempt++ {
		current, version, err := s.medium.Read(ctx, key)
		if errors.Is(err, ErrNotFound) {
			current, version = nil, ""
		} else if err != nil {
			return err
		}
		data, err := modify(current)
		if err != nil {
			return err
		}
		_, err = s.medium.Write(ctx, key, data, version)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrConflict) {
			metrics.StoreConflictsTotal.Inc()
		}
		if !errors.Is(err, ErrConflict) || attempt >= 1 {
			return err
		}
		log.Printf("Store: conflict on %s, retrying with fresh token", key)
	}
}

// Latest returns the most recent record, or ErrNotFound when the store
// is disabled or has never been written.
func (s *Store) Latest(ctx context.Context) (models.HistoryRecord, error) {
	var rec models.HistoryRecord
	if !s.Enabled() {
		return rec, ErrNotFound
	}
	data, _, err := s.medium.Read(ctx, latestKey)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("decode latest: %w", err)
	}
	return rec, nil
}

// RecentHistory returns records captured within [now-window, now], in
// capture order. A disabled or empty store yields an empty slice.
func (s *Store) RecentHistory(ctx context.Context, now time.Time, window time.Duration) ([]models.HistoryRecord, error) {
	records, err := s.readHistory(ctx)
	if err != nil {
		return nil, err
	}
	from := now.Add(-window)
	out := make([]models.HistoryRecord, 0, len(records))
	for _, rec := range records {
		if rec.CapturedAt.Before(from) || rec.CapturedAt.After(now) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// History returns a page of records, most recent first.
func (s *Store) History(ctx context.Context, limit, offset int) ([]models.HistoryRecord, int, error) {
	records, err := s.readHistory(ctx)
	if err != nil {
		return nil, 0, err
	}
	total := len(records)

	// Reverse into newest-first order before paging.
	page := make([]models.HistoryRecord, 0, limit)
	for i := total - 1 - offset; i >= 0 && len(page) < limit; i-- {
		page = append(page, records[i])
	}
	return page, total, nil
}

// Stats summarizes the stored sequence.
func (s *Store) Stats(ctx context.Context) (models.HistoryStats, error) {
	records, err := s.readHistory(ctx)
	if err != nil {
		return models.HistoryStats{}, err
	}
	stats := models.HistoryStats{Count: len(records)}
	if len(records) == 0 {
		return stats, nil
	}

	first, last := records[0], records[len(records)-1]
	stats.First = &first.CapturedAt
	stats.Last = &last.CapturedAt
	stats.TotalGrowth = last.Count - first.Count
	stats.MinCount = first.Count
	stats.MaxCount = first.Count

	var sum int64
	for _, rec := range records {
		if rec.Count < stats.MinCount {
			stats.MinCount = rec.Count
		}
		if rec.Count > stats.MaxCount {
			stats.MaxCount = rec.Count
		}
		sum += rec.Count
	}
	stats.AvgCount = float64(sum) / float64(len(records))
	return stats, nil
}

func (s *Store) readHistory(ctx context.Context) ([]models.HistoryRecord, error) {
	if !s.Enabled() {
		return nil, nil
	}
	data, _, err := s.medium.Read(ctx, historyKey)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeHistory(data)
}

func decodeHistory(data []byte) ([]models.HistoryRecord, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var records []models.HistoryRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return records, nil
}
