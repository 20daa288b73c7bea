package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kenn1ld/stop-killing-games-monitor/internal/models"
)

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testRecord(offset time.Duration, count int64) models.HistoryRecord {
	return models.HistoryRecord{
		Snapshot: models.NewSnapshot(testTime.Add(offset), count, 1_000_000, nil),
		Trend:    models.TrendUnknown,
	}
}

func TestAppendAndLatest(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryMedium(), 100)

	if _, err := s.Latest(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Latest on empty store: err = %v, want ErrNotFound", err)
	}

	for i := int64(0); i < 3; i++ {
		if err := s.Append(ctx, testRecord(time.Duration(i)*time.Minute, 1000+i)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	latest, err := s.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.Count != 1002 {
		t.Errorf("Latest.Count = %d, want 1002", latest.Count)
	}

	// Latest must be the tail of history.
	page, total, err := s.History(ctx, 10, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(page) != 3 || page[0].Count != latest.Count {
		t.Errorf("history head = %+v, want latest %d first", page, latest.Count)
	}
}

func TestRetentionTrimsOldestOnly(t *testing.T) {
	ctx := context.Background()
	limit := 5
	s := New(NewMemoryMedium(), limit)

	for i := 0; i <= limit; i++ { // one past the cap
		if err := s.AppendHistory(ctx, testRecord(time.Duration(i)*time.Minute, int64(i))); err != nil {
			t.Fatalf("AppendHistory: %v", err)
		}
	}

	records, err := s.readHistory(ctx)
	if err != nil {
		t.Fatalf("readHistory: %v", err)
	}
	if len(records) != limit {
		t.Fatalf("len = %d, want %d", len(records), limit)
	}
	// Record 0 dropped, the rest intact and in order.
	for i, rec := range records {
		if rec.Count != int64(i+1) {
			t.Errorf("records[%d].Count = %d, want %d", i, rec.Count, i+1)
		}
	}
}

func TestRecentHistoryWindow(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryMedium(), 100)

	offsets := []time.Duration{-10 * 24 * time.Hour, -3 * 24 * time.Hour, -time.Hour, 0}
	for i, off := range offsets {
		if err := s.AppendHistory(ctx, testRecord(off, int64(i))); err != nil {
			t.Fatalf("AppendHistory: %v", err)
		}
	}

	recent, err := s.RecentHistory(ctx, testTime, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("RecentHistory: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("len = %d, want 3 (10-day-old sample excluded)", len(recent))
	}
	if recent[0].Count != 1 || recent[2].Count != 3 {
		t.Errorf("recent = %+v, want capture order 1..3", recent)
	}
}

func TestHistoryPagination(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryMedium(), 100)

	for i := 0; i < 10; i++ {
		if err := s.AppendHistory(ctx, testRecord(time.Duration(i)*time.Minute, int64(i))); err != nil {
			t.Fatalf("AppendHistory: %v", err)
		}
	}

	page, total, err := s.History(ctx, 3, 2)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if total != 10 {
		t.Errorf("total = %d, want 10", total)
	}
	// Most-recent-first: offset 2 skips counts 9 and 8.
	want := []int64{7, 6, 5}
	if len(page) != len(want) {
		t.Fatalf("len = %d, want %d", len(page), len(want))
	}
	for i, w := range want {
		if page[i].Count != w {
			t.Errorf("page[%d].Count = %d, want %d", i, page[i].Count, w)
		}
	}

	// Offset past the end yields an empty page, not an error.
	page, _, err = s.History(ctx, 3, 50)
	if err != nil || len(page) != 0 {
		t.Errorf("History(offset=50) = %v records, err %v; want empty, nil", len(page), err)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryMedium(), 100)

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats on empty store: %v", err)
	}
	if stats.Count != 0 || stats.First != nil {
		t.Errorf("empty stats = %+v", stats)
	}

	counts := []int64{100, 400, 250}
	for i, c := range counts {
		if err := s.AppendHistory(ctx, testRecord(time.Duration(i)*time.Hour, c)); err != nil {
			t.Fatalf("AppendHistory: %v", err)
		}
	}

	stats, err = s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Count != 3 || stats.MinCount != 100 || stats.MaxCount != 400 {
		t.Errorf("stats = %+v, want count 3 min 100 max 400", stats)
	}
	if stats.AvgCount != 250 {
		t.Errorf("AvgCount = %f, want 250", stats.AvgCount)
	}
	if stats.TotalGrowth != 150 {
		t.Errorf("TotalGrowth = %d, want 150", stats.TotalGrowth)
	}
	if stats.First == nil || !stats.First.Equal(testTime) {
		t.Errorf("First = %v, want %v", stats.First, testTime)
	}
}

// conflictOnceMedium wraps a medium and forces the first conditional
// write to lose, simulating a racing writer.
type conflictOnceMedium struct {
	Medium
	fired bool
}

func (m *conflictOnceMedium) Write(ctx context.Context, key string, data []byte, version string) (string, error) {
	if !m.fired {
		m.fired = true
		// Another writer bumps the version between our read and write.
		if _, err := m.Medium.Write(ctx, key, []byte(`[]`), version); err != nil {
			return "", fmt.Errorf("simulated racer: %w", err)
		}
		return "", ErrConflict
	}
	return m.Medium.Write(ctx, key, data, version)
}

func TestConflictRetriesOnce(t *testing.T) {
	ctx := context.Background()
	s := New(&conflictOnceMedium{Medium: NewMemoryMedium()}, 100)

	if err := s.AppendHistory(ctx, testRecord(0, 42)); err != nil {
		t.Fatalf("AppendHistory should succeed after one retry: %v", err)
	}

	records, err := s.readHistory(ctx)
	if err != nil {
		t.Fatalf("readHistory: %v", err)
	}
	if len(records) != 1 || records[0].Count != 42 {
		t.Errorf("records = %+v, want the retried append visible", records)
	}
}

// alwaysConflictMedium never lets a write through.
type alwaysConflictMedium struct {
	Medium
}

func (m *alwaysConflictMedium) Write(context.Context, string, []byte, string) (string, error) {
	return "", ErrConflict
}

func TestConflictSurfacedAfterRetry(t *testing.T) {
	ctx := context.Background()
	s := New(&alwaysConflictMedium{Medium: NewMemoryMedium()}, 100)

	err := s.AppendHistory(ctx, testRecord(0, 42))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict after retry exhausted", err)
	}
}

func TestStaleTokenConflict(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMedium()

	if _, err := m.Write(ctx, "k", []byte("a"), ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, stale, err := m.Read(ctx, "k")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if _, err := m.Write(ctx, "k", []byte("b"), stale); err != nil {
		t.Fatalf("first conditional write: %v", err)
	}

	// The old token is now stale.
	if _, err := m.Write(ctx, "k", []byte("c"), stale); !errors.Is(err, ErrConflict) {
		t.Errorf("stale write err = %v, want ErrConflict", err)
	}

	// A freshly read token succeeds.
	_, fresh, err := m.Read(ctx, "k")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if _, err := m.Write(ctx, "k", []byte("c"), fresh); err != nil {
		t.Errorf("fresh write err = %v, want success", err)
	}
}

func TestDisabledStore(t *testing.T) {
	ctx := context.Background()
	s := New(nil, 100)

	if s.Enabled() {
		t.Fatal("store with nil medium should be disabled")
	}
	if err := s.Append(ctx, testRecord(0, 1)); err != nil {
		t.Errorf("Append on disabled store: err = %v, want nil (skipped)", err)
	}
	if _, err := s.Latest(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("Latest on disabled store: err = %v, want ErrNotFound", err)
	}
	recent, err := s.RecentHistory(ctx, testTime, time.Hour)
	if err != nil || len(recent) != 0 {
		t.Errorf("RecentHistory on disabled store = %v, %v; want empty, nil", recent, err)
	}
}
