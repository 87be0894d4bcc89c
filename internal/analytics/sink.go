// Package analytics records one entry per source adapter invocation.
// Recording never blocks the pipeline: failures are logged and returned as
// a Result the caller may inspect or ignore.
package analytics

import (
	"context"
	"log"
	"time"

	"local-events-aggregator/internal/models"
)

// Writer stores analytics entries
type Writer interface {
	PutAnalytics(ctx context.Context, entry *models.AnalyticsEntry) error
}

// Invocation describes one adapter call and what became of its candidates
type Invocation struct {
	Source         models.Source
	Country        string
	City           string
	EventsScraped  int
	EventsInserted int
	Duplicates     int
	APICalls       int
	Duration       time.Duration
	Err            error
}

// Result is the outcome of recording an invocation
type Result struct {
	Entry models.AnalyticsEntry
	Err   error
}

// OK reports whether the entry was stored
func (r Result) OK() bool {
	return r.Err == nil
}

// Sink writes analytics entries and updates metrics
type Sink struct {
	writer    Writer
	metrics   *Metrics
	retention time.Duration
	now       func() time.Time
}

// NewSink creates a sink. writer and metrics may each be nil.
func NewSink(writer Writer, metrics *Metrics, retention time.Duration) *Sink {
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}
	return &Sink{writer: writer, metrics: metrics, retention: retention, now: time.Now}
}

// Record stores one invocation
func (s *Sink) Record(ctx context.Context, inv Invocation) Result {
	entry := models.AnalyticsEntry{
		SourcePlatform: string(inv.Source),
		Country:        inv.Country,
		City:           inv.City,
		EventsScraped:  inv.EventsScraped,
		EventsInserted: inv.EventsInserted,
		APICallsMade:   inv.APICalls,
		Success:        inv.Err == nil,
		ResponseTimeMS: inv.Duration.Milliseconds(),
		RecordedAt:     s.now(),
	}
	if inv.Err != nil {
		entry.ErrorMessage = inv.Err.Error()
	}
	entry.PopulateKeys(s.retention)

	s.metrics.observe(inv)

	if s.writer == nil {
		return Result{Entry: entry}
	}
	if err := s.writer.PutAnalytics(ctx, &entry); err != nil {
		log.Printf("[ANALYTICS] Failed to record %s invocation for %s: %v", inv.Source, inv.City, err)
		if s.metrics != nil {
			s.metrics.sinkFailures.Inc()
		}
		return Result{Entry: entry, Err: err}
	}
	return Result{Entry: entry}
}
