// Package scheduler decides when a region is due for another scrape pass and
// records the outcome of each pass in the region cache.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"local-events-aggregator/internal/models"
)

// CacheStore persists region cache entries
type CacheStore interface {
	// GetRegionCache returns nil, nil when the region has never been scraped
	GetRegionCache(ctx context.Context, r models.Region) (*models.RegionCacheEntry, error)
	PutRegionCache(ctx context.Context, entry *models.RegionCacheEntry) error
}

// EventCounter counts live events
type EventCounter interface {
	CountEvents(ctx context.Context, q models.EventQuery) (int, error)
}

// Config holds scheduling windows and thresholds
type Config struct {
	ScrapeWindow    time.Duration // healthy region
	ThinRetryWindow time.Duration // thin or failed region
	MinEvents       int           // below this a region is thin
}

// monotonicStep is the smallest advance of next_scrape_at per recorded outcome
const monotonicStep = time.Minute

// Scheduler is the region scheduler and cache
type Scheduler struct {
	store   CacheStore
	counter EventCounter
	cfg     Config
	now     func() time.Time
}

// New creates a scheduler. counter may be nil when AI refresh checks are not used.
func New(store CacheStore, counter EventCounter, cfg Config) *Scheduler {
	if cfg.ScrapeWindow <= 0 {
		cfg.ScrapeWindow = 6 * time.Hour
	}
	if cfg.ThinRetryWindow <= 0 {
		cfg.ThinRetryWindow = time.Hour
	}
	return &Scheduler{store: store, counter: counter, cfg: cfg, now: time.Now}
}

// WithClock replaces the scheduler's clock
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// ShouldScrape reports whether a region is due. It also returns the current
// cache entry, nil when the region has none.
func (s *Scheduler) ShouldScrape(ctx context.Context, r models.Region) (bool, *models.RegionCacheEntry, error) {
	entry, err := s.store.GetRegionCache(ctx, r)
	if err != nil {
		return false, nil, fmt.Errorf("failed to read region cache for %s: %w", r, err)
	}
	return s.isDue(entry), entry, nil
}

func (s *Scheduler) isDue(entry *models.RegionCacheEntry) bool {
	if entry == nil {
		return true
	}
	now := s.now()
	if !now.Before(entry.NextScrapeAt) {
		return true
	}
	// A thin region is retried on the short window even when a healthy
	// window was scheduled earlier
	if entry.EventCount < s.cfg.MinEvents && !now.Before(entry.LastScrapedAt.Add(s.cfg.ThinRetryWindow)) {
		return true
	}
	return false
}

// MarkRunning records that a pass for the region has started. entry is the
// current cache row when the caller has it; nil reads it from the store.
// Nothing is written when the row cannot be read, so history is never
// replaced by an empty entry.
func (s *Scheduler) MarkRunning(ctx context.Context, r models.Region, entry *models.RegionCacheEntry) (*models.RegionCacheEntry, error) {
	if entry == nil {
		current, err := s.store.GetRegionCache(ctx, r)
		if err != nil {
			return nil, fmt.Errorf("failed to read region cache for %s, leaving it unchanged: %w", r, err)
		}
		entry = current
	}
	if entry == nil {
		entry = models.NewRegionCacheEntry(r)
	}
	entry.ScrapingStatus = models.ScrapingStatusRunning
	entry.UpdatedAt = s.now()
	if err := s.store.PutRegionCache(ctx, entry); err != nil {
		return entry, fmt.Errorf("failed to mark region %s running: %w", r, err)
	}
	return entry, nil
}

// RecordScrapeOutcome stores the result of a pass. A failed or thin pass is
// retried on the short window, a healthy one on the regular window. The
// stored next_scrape_at never decreases.
func (s *Scheduler) RecordScrapeOutcome(ctx context.Context, r models.Region, eventCount int, passErr error) (*models.RegionCacheEntry, error) {
	entry, err := s.store.GetRegionCache(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("failed to read region cache for %s, outcome not recorded: %w", r, err)
	}
	if entry == nil {
		entry = models.NewRegionCacheEntry(r)
	}

	now := s.now()
	window := s.cfg.ScrapeWindow
	if passErr != nil || eventCount < s.cfg.MinEvents {
		window = s.cfg.ThinRetryWindow
	}

	next := now.Add(window)
	if !next.After(entry.NextScrapeAt) {
		next = entry.NextScrapeAt.Add(monotonicStep)
	}

	entry.EventCount = eventCount
	entry.LastScrapedAt = now
	entry.NextScrapeAt = next
	entry.UpdatedAt = now
	if passErr != nil {
		entry.ScrapingStatus = models.ScrapingStatusFailed
		entry.LastError = passErr.Error()
		entry.ConsecutiveFailures++
	} else {
		entry.ScrapingStatus = models.ScrapingStatusCompleted
		entry.LastError = ""
		entry.ConsecutiveFailures = 0
	}

	if err := s.store.PutRegionCache(ctx, entry); err != nil {
		return entry, fmt.Errorf("failed to record scrape outcome for %s: %w", r, err)
	}
	log.Printf("[SCHEDULER] %s: %d events, status %s, next scrape at %s",
		r, eventCount, entry.ScrapingStatus, next.Format(time.RFC3339))
	return entry, nil
}

// CityNeedsEventRefresh reports whether fewer than minEvents live AI-generated
// events were created for the city within the last hours
func (s *Scheduler) CityNeedsEventRefresh(ctx context.Context, city string, minEvents, hours int) (bool, error) {
	if s.counter == nil {
		return true, nil
	}
	now := s.now()
	count, err := s.counter.CountEvents(ctx, models.EventQuery{
		City:         city,
		Sources:      []models.Source{models.SourceAIGenerated},
		CreatedSince: now.Add(-time.Duration(hours) * time.Hour),
		Now:          now,
	})
	if err != nil {
		return false, fmt.Errorf("failed to count AI events for %s: %w", city, err)
	}
	return count < minEvents, nil
}
