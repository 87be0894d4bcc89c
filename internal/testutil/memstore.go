// Package testutil provides an in-memory store with the same conditional
// semantics as the DynamoDB store, for unit tests.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"local-events-aggregator/internal/dedup"
	"local-events-aggregator/internal/models"
)

// MemStore implements the event, region cache, job, analytics and lease
// stores in memory. Error fields inject failures.
type MemStore struct {
	mu sync.Mutex

	Policy dedup.Policy
	Now    func() time.Time

	events    map[string]models.Event
	caches    map[string]models.RegionCacheEntry
	jobs      map[string][]models.FetchJob
	analytics []models.AnalyticsEntry
	leases    map[string]models.Lease

	// InsertErr is consulted before every insert; a non-nil result fails it
	InsertErr     func(e *models.Event) error
	FindErr       error
	AnalyticsErr  error
	CacheReadErr  error
	CacheWriteErr error
}

// NewMemStore creates an empty store using the default dedup policy
func NewMemStore() *MemStore {
	return &MemStore{
		Policy: dedup.DefaultPolicy(),
		Now:    time.Now,
		events: make(map[string]models.Event),
		caches: make(map[string]models.RegionCacheEntry),
		jobs:   make(map[string][]models.FetchJob),
		leases: make(map[string]models.Lease),
	}
}

// InsertEventIfAbsent stores an event unless its (source, external_id) exists
func (m *MemStore) InsertEventIfAbsent(ctx context.Context, e *models.Event) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.InsertErr != nil {
		if err := m.InsertErr(e); err != nil {
			return false, err
		}
	}
	e.PopulateKeys()
	if _, ok := m.events[e.PK]; ok {
		return false, nil
	}
	m.events[e.PK] = *e
	return true, nil
}

// FindDuplicateEvent returns the newest live event matching q
func (m *MemStore) FindDuplicateEvent(ctx context.Context, q dedup.Query) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FindErr != nil {
		return "", m.FindErr
	}
	key := models.GenerateDedupKey(q.EventDate, q.TitleKey())
	now := m.Now()
	var candidates []models.Event
	for _, e := range m.events {
		if e.DedupKey == key && !e.IsExpired(now) {
			candidates = append(candidates, e)
		}
	}
	if best := m.Policy.Best(q, candidates); best != nil {
		return best.ID, nil
	}
	return "", nil
}

// QueryEvents returns matching live events ordered by start date
func (m *MemStore) QueryEvents(ctx context.Context, q models.EventQuery) ([]models.Event, error) {
	if !q.HasRadius() && q.City == "" {
		return nil, fmt.Errorf("event query needs a city or a point and radius")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if q.Now.IsZero() {
		q.Now = m.Now()
	}
	var out []models.Event
	for _, e := range m.events {
		e := e
		if q.Matches(&e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartDate.Before(out[j].StartDate)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// CountEvents counts matching live events
func (m *MemStore) CountEvents(ctx context.Context, q models.EventQuery) (int, error) {
	q.Limit = 0
	events, err := m.QueryEvents(ctx, q)
	return len(events), err
}

// Events returns every stored event, expired or not
func (m *MemStore) Events() []models.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Event, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PK < out[j].PK })
	return out
}

func (m *MemStore) GetRegionCache(ctx context.Context, r models.Region) (*models.RegionCacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CacheReadErr != nil {
		return nil, m.CacheReadErr
	}
	e, ok := m.caches[r.CacheKey()]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *MemStore) PutRegionCache(ctx context.Context, entry *models.RegionCacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CacheWriteErr != nil {
		return m.CacheWriteErr
	}
	m.caches[entry.CacheKey] = *entry
	return nil
}

func (m *MemStore) PutJob(ctx context.Context, job *models.FetchJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.JobID] = append(m.jobs[job.JobID], *job)
	return nil
}

// Jobs returns the latest version of every job
func (m *MemStore) Jobs() []models.FetchJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.FetchJob
	for _, versions := range m.jobs {
		out = append(out, versions[len(versions)-1])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

func (m *MemStore) PutAnalytics(ctx context.Context, entry *models.AnalyticsEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AnalyticsErr != nil {
		return m.AnalyticsErr
	}
	m.analytics = append(m.analytics, *entry)
	return nil
}

// Analytics returns the recorded entries in write order
func (m *MemStore) Analytics() []models.AnalyticsEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.AnalyticsEntry(nil), m.analytics...)
}

// AcquireLease claims a key unless an unexpired lease is held by someone else
func (m *MemStore) AcquireLease(ctx context.Context, locationKey, owner string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.Now()
	if cur, ok := m.leases[locationKey]; ok && cur.ExpiresAt >= now.UnixMilli() {
		return false, nil
	}
	m.leases[locationKey] = models.Lease{
		LocationKey: locationKey,
		Owner:       owner,
		AcquiredAt:  now,
		ExpiresAt:   now.Add(ttl).UnixMilli(),
	}
	return true, nil
}

// ReleaseLease deletes the lease if owner still holds it
func (m *MemStore) ReleaseLease(ctx context.Context, locationKey, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.leases[locationKey]; ok && cur.Owner == owner {
		delete(m.leases, locationKey)
	}
	return nil
}
