package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"local-events-aggregator/internal/models"
)

type memCache struct {
	entries map[string]*models.RegionCacheEntry
	failGet bool
}

func newMemCache() *memCache {
	return &memCache{entries: map[string]*models.RegionCacheEntry{}}
}

func (m *memCache) GetRegionCache(_ context.Context, r models.Region) (*models.RegionCacheEntry, error) {
	if m.failGet {
		return nil, errors.New("table unavailable")
	}
	e, ok := m.entries[r.CacheKey()]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (m *memCache) PutRegionCache(_ context.Context, e *models.RegionCacheEntry) error {
	cp := *e
	m.entries[e.CacheKey] = &cp
	return nil
}

type fixedCounter struct {
	count int
	last  models.EventQuery
}

func (f *fixedCounter) CountEvents(_ context.Context, q models.EventQuery) (int, error) {
	f.last = q
	return f.count, nil
}

var mumbai = models.Region{Country: "IN", Region: "Maharashtra", City: "Mumbai"}

func testScheduler(store CacheStore, counter EventCounter, now *time.Time) *Scheduler {
	return New(store, counter, Config{
		ScrapeWindow:    6 * time.Hour,
		ThinRetryWindow: time.Hour,
		MinEvents:       10,
	}).WithClock(func() time.Time { return *now })
}

func TestShouldScrape(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	store := newMemCache()
	s := testScheduler(store, nil, &now)

	due, entry, err := s.ShouldScrape(ctx, mumbai)
	require.NoError(t, err)
	assert.True(t, due, "region without cache entry is due")
	assert.Nil(t, entry)

	store.entries[mumbai.CacheKey()] = &models.RegionCacheEntry{
		CacheKey: mumbai.CacheKey(), EventCount: 25,
		LastScrapedAt: now.Add(-time.Hour), NextScrapeAt: now.Add(5 * time.Hour),
	}
	due, _, err = s.ShouldScrape(ctx, mumbai)
	require.NoError(t, err)
	assert.False(t, due, "future next_scrape_at is not due")

	store.entries[mumbai.CacheKey()].NextScrapeAt = now.Add(-time.Minute)
	due, _, err = s.ShouldScrape(ctx, mumbai)
	require.NoError(t, err)
	assert.True(t, due, "past next_scrape_at is due")
}

func TestShouldScrapeThinRegion(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	store := newMemCache()
	s := testScheduler(store, nil, &now)

	store.entries[mumbai.CacheKey()] = &models.RegionCacheEntry{
		CacheKey: mumbai.CacheKey(), EventCount: 3,
		LastScrapedAt: now.Add(-2 * time.Hour), NextScrapeAt: now.Add(4 * time.Hour),
	}
	due, _, err := s.ShouldScrape(ctx, mumbai)
	require.NoError(t, err)
	assert.True(t, due, "thin region past the retry window is due")

	store.entries[mumbai.CacheKey()].LastScrapedAt = now.Add(-10 * time.Minute)
	due, _, err = s.ShouldScrape(ctx, mumbai)
	require.NoError(t, err)
	assert.False(t, due)
}

func TestShouldScrapePropagatesStoreError(t *testing.T) {
	now := time.Now()
	store := newMemCache()
	store.failGet = true
	s := testScheduler(store, nil, &now)

	_, _, err := s.ShouldScrape(context.Background(), mumbai)
	assert.Error(t, err)
}

func TestRecordScrapeOutcomeWindows(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	store := newMemCache()
	s := testScheduler(store, nil, &now)

	entry, err := s.RecordScrapeOutcome(ctx, mumbai, 30, nil)
	require.NoError(t, err)
	assert.Equal(t, now.Add(6*time.Hour), entry.NextScrapeAt)
	assert.Equal(t, models.ScrapingStatusCompleted, entry.ScrapingStatus)

	now = now.Add(7 * time.Hour)
	entry, err = s.RecordScrapeOutcome(ctx, mumbai, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), entry.NextScrapeAt, "thin result retries on the short window")

	now = now.Add(2 * time.Hour)
	entry, err = s.RecordScrapeOutcome(ctx, mumbai, 0, errors.New("all providers failed"))
	require.NoError(t, err)
	assert.Equal(t, models.ScrapingStatusFailed, entry.ScrapingStatus)
	assert.Equal(t, 1, entry.ConsecutiveFailures)
	assert.Equal(t, "all providers failed", entry.LastError)
	assert.Equal(t, now.Add(time.Hour), entry.NextScrapeAt)
}

func TestRecordScrapeOutcomeNeverMovesBackwards(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	store := newMemCache()
	s := testScheduler(store, nil, &now)

	first, err := s.RecordScrapeOutcome(ctx, mumbai, 50, nil)
	require.NoError(t, err)

	// A forced refresh shortly after produces a thin result
	now = now.Add(10 * time.Minute)
	second, err := s.RecordScrapeOutcome(ctx, mumbai, 1, nil)
	require.NoError(t, err)
	assert.True(t, second.NextScrapeAt.After(first.NextScrapeAt))

	third, err := s.RecordScrapeOutcome(ctx, mumbai, 1, nil)
	require.NoError(t, err)
	assert.True(t, third.NextScrapeAt.After(second.NextScrapeAt))
}

func TestMarkRunningCreatesEntry(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	store := newMemCache()
	s := testScheduler(store, nil, &now)

	entry, err := s.MarkRunning(context.Background(), mumbai, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ScrapingStatusRunning, entry.ScrapingStatus)
	assert.Equal(t, "REGION#in/maharashtra/mumbai", store.entries[mumbai.CacheKey()].PK)
}

func TestMarkRunningKeepsStoredHistory(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 4, 30, 0, 0, time.UTC)
	store := newMemCache()
	s := testScheduler(store, nil, &now)

	healthy := models.NewRegionCacheEntry(mumbai)
	healthy.EventCount = 40
	healthy.LastScrapedAt = now.Add(-time.Hour)
	healthy.NextScrapeAt = now.Add(5 * time.Hour)
	healthy.ScrapingStatus = models.ScrapingStatusCompleted
	require.NoError(t, store.PutRegionCache(ctx, healthy))

	entry, err := s.MarkRunning(ctx, mumbai, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ScrapingStatusRunning, entry.ScrapingStatus)
	assert.Equal(t, 40, entry.EventCount)
	assert.Equal(t, healthy.NextScrapeAt, store.entries[mumbai.CacheKey()].NextScrapeAt)

	// A thin result right after a forced start still may not move the schedule back
	next, err := s.RecordScrapeOutcome(ctx, mumbai, 1, nil)
	require.NoError(t, err)
	assert.True(t, next.NextScrapeAt.After(healthy.NextScrapeAt))
}

func TestSchedulerLeavesEntryWhenReadFails(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 4, 30, 0, 0, time.UTC)
	store := newMemCache()
	s := testScheduler(store, nil, &now)

	healthy := models.NewRegionCacheEntry(mumbai)
	healthy.EventCount = 40
	healthy.NextScrapeAt = now.Add(5 * time.Hour)
	require.NoError(t, store.PutRegionCache(ctx, healthy))
	store.failGet = true

	_, err := s.MarkRunning(ctx, mumbai, nil)
	assert.Error(t, err)
	_, err = s.RecordScrapeOutcome(ctx, mumbai, 1, nil)
	assert.Error(t, err)

	stored := store.entries[mumbai.CacheKey()]
	assert.Equal(t, 40, stored.EventCount)
	assert.Equal(t, healthy.NextScrapeAt, stored.NextScrapeAt)
}

func TestCityNeedsEventRefresh(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	counter := &fixedCounter{count: 3}
	s := testScheduler(newMemCache(), counter, &now)

	needs, err := s.CityNeedsEventRefresh(ctx, "Mumbai", 5, 24)
	require.NoError(t, err)
	assert.True(t, needs)
	assert.Equal(t, now.Add(-24*time.Hour), counter.last.CreatedSince)
	assert.Equal(t, []models.Source{models.SourceAIGenerated}, counter.last.Sources)

	counter.count = 5
	needs, err = s.CityNeedsEventRefresh(ctx, "Mumbai", 5, 24)
	require.NoError(t, err)
	assert.False(t, needs)
}
