// Package collector fetches and normalizes campaign snapshots from the
// upstream counter and description APIs.
package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/kenn1ld/stop-killing-games-monitor/internal/models"
)

const (
	defaultCounterTimeout     = 10 * time.Second
	defaultDescriptionTimeout = 5 * time.Second

	deadlineCacheSize = 8
)

// Collector error taxonomy. Invalid means the counter source answered
// with unusable data; Unavailable means it could not be reached in time.
// Either one fails the whole fetch. Description-source failures never do.
var (
	ErrUpstreamInvalid     = errors.New("collector: upstream data invalid")
	ErrUpstreamUnavailable = errors.New("collector: upstream unavailable")
)

// counterResponse is the counter API body. The goal arrives alongside the
// current count.
type counterResponse struct {
	SignatureCount int64 `json:"signatureCount"`
	Goal           int64 `json:"goal"`
}

// descriptionResponse carries the campaign metadata; only the closing
// date is used.
type descriptionResponse struct {
	Initiative struct {
		ClosingDate string `json:"closingDate"` // DD/MM/YYYY
	} `json:"initiative"`
}

// Collector fetches the current counter value, goal and deadline and
// normalizes them into a Snapshot. It performs no retries; the next
// scheduled run is the retry.
type Collector struct {
	counterURL     string
	descriptionURL string

	counterClient     *http.Client
	descriptionClient *http.Client

	// Outbound limiter shared by timer and manual triggers.
	limiter *rate.Limiter

	// Deadlines are immutable once published, so a cached parse lets a
	// cycle keep its deadline through description-source hiccups.
	deadlineCache *lru.Cache[string, time.Time]
}

// Options tunes the collector; zero values pick defaults.
type Options struct {
	CounterTimeout     time.Duration
	DescriptionTimeout time.Duration
	RateLimit          rate.Limit // fetches per second; 0 means 1
	RateBurst          int        // 0 means 3
}

func New(counterURL, descriptionURL string, opts Options) *Collector {
	if opts.CounterTimeout <= 0 {
		opts.CounterTimeout = defaultCounterTimeout
	}
	if opts.DescriptionTimeout <= 0 {
		opts.DescriptionTimeout = defaultDescriptionTimeout
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 1
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 3
	}

	cache, _ := lru.New[string, time.Time](deadlineCacheSize)

	return &Collector{
		counterURL:        counterURL,
		descriptionURL:    descriptionURL,
		counterClient:     &http.Client{Timeout: opts.CounterTimeout},
		descriptionClient: &http.Client{Timeout: opts.DescriptionTimeout},
		limiter:           rate.NewLimiter(opts.RateLimit, opts.RateBurst),
		deadlineCache:     cache,
	}
}

// Fetch samples both upstream sources concurrently and returns a
// normalized Snapshot. A counter-source failure fails the fetch; a
// description-source failure only leaves the deadline absent.
func (c *Collector) Fetch(ctx context.Context) (models.Snapshot, error) {
	if !c.limiter.Allow() {
		return models.Snapshot{}, fmt.Errorf("%w: fetch rate limit exceeded", ErrUpstreamUnavailable)
	}

	type counterResult struct {
		count, goal int64
		err         error
	}
	counterCh := make(chan counterResult, 1)
	deadlineCh := make(chan *time.Time, 1)

	go func() {
		count, goal, err := c.fetchCounter(ctx)
		counterCh <- counterResult{count, goal, err}
	}()
	go func() {
		deadlineCh <- c.fetchDeadline(ctx)
	}()

	counter := <-counterCh
	deadline := <-deadlineCh

	if counter.err != nil {
		return models.Snapshot{}, counter.err
	}

	return models.NewSnapshot(time.Now().UTC(), counter.count, counter.goal, deadline), nil
}

func (c *Collector) fetchCounter(ctx context.Context) (count, goal int64, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.counterURL, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	resp, err := c.counterClient.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: counter request: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("%w: counter API returned status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	var body counterResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, 0, fmt.Errorf("%w: decode counter response: %v", ErrUpstreamInvalid, err)
	}
	if body.SignatureCount < 0 || body.Goal <= 0 {
		return 0, 0, fmt.Errorf("%w: count=%d goal=%d", ErrUpstreamInvalid, body.SignatureCount, body.Goal)
	}
	return body.SignatureCount, body.Goal, nil
}

// fetchDeadline returns the campaign closing instant, or nil when the
// description source is unavailable and nothing is cached. Failures here
// are degraded fetches, not errors.
func (c *Collector) fetchDeadline(ctx context.Context) *time.Time {
	if c.descriptionURL == "" {
		return nil
	}

	deadline, err := c.requestDeadline(ctx)
	if err != nil {
		if cached, ok := c.deadlineCache.Get(c.descriptionURL); ok {
			log.Printf("Collector: description fetch degraded, using cached deadline: %v", err)
			return &cached
		}
		log.Printf("Collector: description fetch degraded, no deadline: %v", err)
		return nil
	}

	c.deadlineCache.Add(c.descriptionURL, deadline)
	return &deadline
}

func (c *Collector) requestDeadline(ctx context.Context) (time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.descriptionURL, nil)
	if err != nil {
		return time.Time{}, err
	}
	resp, err := c.descriptionClient.Do(req)
	if err != nil {
		return time.Time{}, fmt.Errorf("description request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return time.Time{}, fmt.Errorf("description API returned status %d", resp.StatusCode)
	}

	var body descriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return time.Time{}, fmt.Errorf("decode description response: %w", err)
	}
	return ParseClosingDate(body.Initiative.ClosingDate)
}

// ParseClosingDate converts a DD/MM/YYYY closing date to the campaign's
// closing instant: 23:59:59 UTC on that date.
func ParseClosingDate(s string) (time.Time, error) {
	day, err := time.Parse("02/01/2006", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed closing date %q: %w", s, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, time.UTC), nil
}
