// Package sources holds the event source adapters. Each adapter turns one
// provider's response into candidate events and never lets a provider
// failure escape the fetch boundary.
package sources

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"local-events-aggregator/internal/models"
	"local-events-aggregator/internal/services"
)

var (
	// ErrNotConfigured marks a provider whose credentials or profile are missing
	ErrNotConfigured = errors.New("source not configured")
	// ErrMalformedBatch marks a generated batch rejected as a whole
	ErrMalformedBatch = services.ErrMalformedBatch
	// ErrAbandoned marks a call that kept running past its deadline
	ErrAbandoned = errors.New("source call abandoned after timeout")
)

// Request is the location an adapter fetches for
type Request struct {
	Region    models.Region
	Latitude  *float64
	Longitude *float64
	RadiusKm  float64
	Now       time.Time
}

// Center returns the request coordinates, falling back to the known center of
// the requested city
func (r Request) Center() (float64, float64, bool) {
	if r.Latitude != nil && r.Longitude != nil {
		return *r.Latitude, *r.Longitude, true
	}
	if c, ok := models.LookupCityCenter(r.Region.City); ok {
		return c.Latitude, c.Longitude, true
	}
	return 0, 0, false
}

func (r Request) now() time.Time {
	if r.Now.IsZero() {
		return time.Now()
	}
	return r.Now
}

// Result is what an adapter returns from one fetch
type Result struct {
	Candidates []models.CandidateEvent
	APICalls   int
	CostUSD    float64
	BatchID    string
}

// Adapter fetches candidate events from one provider
type Adapter interface {
	Source() models.Source
	Fetch(ctx context.Context, req Request) (Result, error)
}

// FetchOutcome is the result of a fetch taken through SafeFetch. Err is set
// when the provider failed; Candidates is empty in that case.
type FetchOutcome struct {
	Source     models.Source
	Candidates []models.CandidateEvent
	APICalls   int
	CostUSD    float64
	BatchID    string
	Duration   time.Duration
	Err        error
}

// OK reports whether the provider call succeeded
func (o FetchOutcome) OK() bool {
	return o.Err == nil
}

// SafeFetch runs an adapter under a timeout. A call that ignores its context
// is abandoned at the deadline, and a panic is reported as a provider error.
func SafeFetch(ctx context.Context, a Adapter, req Request, timeout time.Duration) FetchOutcome {
	start := time.Now()
	src := a.Source()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type fetchResult struct {
		res Result
		err error
	}
	done := make(chan fetchResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- fetchResult{err: fmt.Errorf("%s adapter panicked: %v", src, p)}
			}
		}()
		res, err := a.Fetch(ctx, req)
		done <- fetchResult{res: res, err: err}
	}()

	outcome := FetchOutcome{Source: src}
	select {
	case r := <-done:
		outcome.Err = r.err
		if r.err == nil {
			outcome.Candidates = r.res.Candidates
		}
		outcome.APICalls = r.res.APICalls
		outcome.CostUSD = r.res.CostUSD
		outcome.BatchID = r.res.BatchID
	case <-ctx.Done():
		outcome.Err = fmt.Errorf("%w: %s: %v", ErrAbandoned, src, ctx.Err())
		outcome.APICalls = 1
	}
	outcome.Duration = time.Since(start)

	if outcome.Err != nil {
		log.Printf("[%s] Fetch for %s failed after %v: %v", logTag(src), req.Region, outcome.Duration, outcome.Err)
	} else {
		log.Printf("[%s] Fetched %d candidates for %s in %v", logTag(src), len(outcome.Candidates), req.Region, outcome.Duration)
	}
	return outcome
}

func logTag(src models.Source) string {
	switch src {
	case models.SourceTicketing:
		return "TICKETING"
	case models.SourcePlaces:
		return "PLACES"
	case models.SourceCountryScrape:
		return "COUNTRY_SCRAPE"
	case models.SourceWebScrape:
		return "WEB_SCRAPE"
	case models.SourceAIGenerated:
		return "AI"
	}
	return "SOURCE"
}
