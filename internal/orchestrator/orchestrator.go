// Package orchestrator runs aggregation passes: for one region it consults the
// scheduler, calls each source adapter in turn, and takes every candidate
// through normalization, duplicate detection and persistence before
// recording the outcome in the region cache.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"local-events-aggregator/internal/analytics"
	"local-events-aggregator/internal/config"
	"local-events-aggregator/internal/dedup"
	"local-events-aggregator/internal/models"
	"local-events-aggregator/internal/normalize"
	"local-events-aggregator/internal/scheduler"
	"local-events-aggregator/internal/services"
	"local-events-aggregator/internal/sources"
)

// State is a step of a region pass
type State string

const (
	StateCheckingCache State = "checking-cache"
	StateSkip          State = "skip"
	StateScraping      State = "scraping"
	StateNormalizing   State = "normalizing"
	StateDeduplicating State = "deduplicating"
	StatePersisting    State = "persisting"
	StateUpdatingCache State = "updating-cache"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// Where the events of a pass result came from
const (
	ResultSourceCache = "cache"
	ResultSourceFresh = "fresh"
)

// Skip reasons
const (
	SkipNotDue   = "not_due"
	SkipInFlight = "in_flight"
)

const defaultResponseLimit = 200

var (
	// ErrNoSources is returned when none of the requested sources is configured
	ErrNoSources = errors.New("no requested source is available")
	// ErrAllSourcesFailed is returned when every adapter of a pass failed
	ErrAllSourcesFailed = errors.New("every source failed")
)

// EventStore persists and queries canonical events
type EventStore interface {
	dedup.Lookup
	InsertEventIfAbsent(ctx context.Context, e *models.Event) (bool, error)
	QueryEvents(ctx context.Context, q models.EventQuery) ([]models.Event, error)
	CountEvents(ctx context.Context, q models.EventQuery) (int, error)
}

// JobStore stores fetch job audit records
type JobStore interface {
	PutJob(ctx context.Context, job *models.FetchJob) error
}

// LeaseStore claims a region for one pass at a time
type LeaseStore interface {
	AcquireLease(ctx context.Context, locationKey, owner string, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, locationKey, owner string) error
}

// SnapshotPublisher publishes the live events of a region for cached reads
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, r models.Region, events []models.Event) (*services.S3UploadResult, error)
}

// Store is everything a pass persists to
type Store interface {
	EventStore
	scheduler.CacheStore
	JobStore
	analytics.Writer
}

// Config holds the pass settings
type Config struct {
	Scheduler          scheduler.Config
	Normalize          normalize.Config
	FailurePolicy      dedup.FailurePolicy
	Pacing             map[models.Source]config.ProviderPacing
	LeaseDuration      time.Duration
	InterRegionDelay   time.Duration
	JobRetention       time.Duration
	AnalyticsRetention time.Duration
	AIMinEvents        int
	AIRefreshHours     int
	ResponseLimit      int
}

// ConfigFrom derives the pass settings from the loaded configuration
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Scheduler: scheduler.Config{
			ScrapeWindow:    cfg.ScrapeWindow,
			ThinRetryWindow: cfg.ThinRetryWindow,
			MinEvents:       cfg.MinEvents,
		},
		Normalize: normalize.Config{
			ScrapeTTL: cfg.ScrapeEventTTL,
			APITTL:    cfg.APIEventTTL,
			AITTL:     cfg.AIEventTTL,
		},
		FailurePolicy:      cfg.FailurePolicy(),
		Pacing:             cfg.Targets.Pacing,
		LeaseDuration:      cfg.LeaseDuration,
		InterRegionDelay:   cfg.InterRegionDelay,
		JobRetention:       cfg.JobRetention,
		AnalyticsRetention: cfg.AnalyticsRetention,
		AIMinEvents:        cfg.AIMinEvents,
		AIRefreshHours:     cfg.AIRefreshHours,
	}
}

// Deps are the collaborators of the orchestrator. Leases defaults to Store
// when Store can claim leases; Snapshots and Metrics may be nil.
type Deps struct {
	Store     Store
	Leases    LeaseStore
	Registry  *sources.Registry
	Snapshots SnapshotPublisher
	Metrics   *analytics.Metrics
}

// Orchestrator runs region passes
type Orchestrator struct {
	store      Store
	leases     LeaseStore
	registry   *sources.Registry
	snapshots  SnapshotPublisher
	scheduler  *scheduler.Scheduler
	detector   *dedup.Detector
	normalizer *normalize.Normalizer
	sink       *analytics.Sink
	pacer      *Pacer
	cfg        Config
	now        func() time.Time
}

// New creates an orchestrator
func New(deps Deps, cfg Config) *Orchestrator {
	if cfg.LeaseDuration <= 0 {
		cfg.LeaseDuration = 5 * time.Minute
	}
	if cfg.JobRetention <= 0 {
		cfg.JobRetention = 30 * 24 * time.Hour
	}
	if cfg.AIRefreshHours <= 0 {
		cfg.AIRefreshHours = 24
	}
	if cfg.ResponseLimit <= 0 {
		cfg.ResponseLimit = defaultResponseLimit
	}
	leases := deps.Leases
	if leases == nil {
		if ls, ok := deps.Store.(LeaseStore); ok {
			leases = ls
		}
	}
	return &Orchestrator{
		store:      deps.Store,
		leases:     leases,
		registry:   deps.Registry,
		snapshots:  deps.Snapshots,
		scheduler:  scheduler.New(deps.Store, deps.Store, cfg.Scheduler),
		detector:   dedup.NewDetector(deps.Store, cfg.FailurePolicy),
		normalizer: normalize.New(cfg.Normalize),
		sink:       analytics.NewSink(deps.Store, deps.Metrics, cfg.AnalyticsRetention),
		pacer:      NewPacer(cfg.Pacing),
		cfg:        cfg,
		now:        time.Now,
	}
}

// WithClock replaces the clock of the orchestrator and its scheduler
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	o.scheduler.WithClock(now)
	return o
}

// WithPacer replaces the provider pacer
func (o *Orchestrator) WithPacer(p *Pacer) *Orchestrator {
	o.pacer = p
	return o
}

// Registry returns the adapter registry
func (o *Orchestrator) Registry() *sources.Registry {
	return o.registry
}

// PassRequest asks for one region pass
type PassRequest struct {
	Region    models.Region
	Latitude  *float64
	Longitude *float64
	RadiusKm  float64
	Sources   []models.Source // empty = every configured source
	Force     bool            // ignore the scheduler
	Mode      string
}

// AdapterReport is what one adapter contributed to a pass
type AdapterReport struct {
	Source          models.Source `json:"source"`
	Candidates      int           `json:"candidates"`
	Inserted        int           `json:"inserted"`
	Duplicates      int           `json:"duplicates"`
	Rejected        int           `json:"rejected"`
	PersistFailures int           `json:"persist_failures"`
	APICalls        int           `json:"api_calls"`
	DurationMS      int64         `json:"duration_ms"`
	Skipped         bool          `json:"skipped,omitempty"`
	Error           string        `json:"error,omitempty"`
}

// PassResult is the outcome of a region pass
type PassResult struct {
	Region          models.Region
	JobID           string
	Source          string // ResultSourceCache or ResultSourceFresh
	States          []State
	Events          []models.Event
	EventsFound     int
	EventsInserted  int
	Duplicates      int
	Rejected        int
	PersistFailures int
	Adapters        []AdapterReport
	Unavailable     map[models.Source]string
	CostUSD         float64
	BatchID         string
	Skipped         bool
	SkipReason      string
}

func (r *PassResult) enter(s State) {
	for _, seen := range r.States {
		if seen == s {
			return
		}
	}
	r.States = append(r.States, s)
}

// Run executes one region pass. The result is never nil; a non-nil error
// means the pass ended in the failed state. Events of a failed pass are the
// cached events of the region, when any could be read.
func (o *Orchestrator) Run(ctx context.Context, req PassRequest) (*PassResult, error) {
	started := o.now()
	region := req.Region
	if req.Mode == "" {
		req.Mode = models.JobModeSingle
	}
	res := &PassResult{
		Region:      region,
		JobID:       models.GenerateJobID(region.CacheKey(), started, uuid.NewString()[:8]),
		Unavailable: make(map[models.Source]string),
	}
	res.enter(StateCheckingCache)

	adapters, unavailable := o.registry.Resolve(req.Sources)
	for src, err := range unavailable {
		res.Unavailable[src] = err.Error()
	}
	if len(adapters) == 0 {
		res.enter(StateFailed)
		return res, fmt.Errorf("%w for %s: %w", ErrNoSources, region, sources.ErrNotConfigured)
	}

	var cacheEntry *models.RegionCacheEntry
	if !req.Force {
		due, entry, err := o.scheduler.ShouldScrape(ctx, region)
		switch {
		case err != nil:
			log.Printf("[ORCHESTRATOR] Cache check for %s failed, scraping anyway: %v", region, err)
		case !due:
			log.Printf("[ORCHESTRATOR] %s is not due until %s, serving cached events", region, entry.NextScrapeAt.Format(time.RFC3339))
			return o.serveCached(ctx, req, res, SkipNotDue)
		default:
			cacheEntry = entry
		}
	}

	job := &models.FetchJob{
		JobID:       res.JobID,
		LocationKey: region.CacheKey(),
		Mode:        req.Mode,
		Status:      models.JobStatusRunning,
		Sources:     sourceNames(adapters),
		StartedAt:   started,
		TTL:         models.CalculateTTL(started, o.cfg.JobRetention),
	}

	if o.leases != nil {
		claimed, err := o.leases.AcquireLease(ctx, region.CacheKey(), res.JobID, o.cfg.LeaseDuration)
		switch {
		case err != nil:
			log.Printf("[ORCHESTRATOR] Lease claim for %s failed, proceeding without it: %v", region, err)
		case !claimed:
			log.Printf("[ORCHESTRATOR] A pass for %s is already in flight, serving cached events", region)
			job.Status = models.JobStatusSkipped
			job.CompletedAt = o.now()
			o.putJob(ctx, job)
			return o.serveCached(ctx, req, res, SkipInFlight)
		default:
			defer func() {
				if err := o.leases.ReleaseLease(context.WithoutCancel(ctx), region.CacheKey(), res.JobID); err != nil {
					log.Printf("[ORCHESTRATOR] Failed to release lease on %s: %v", region, err)
				}
			}()

			// A pass that held the lease before us may have just finished
			due, entry, err := o.scheduler.ShouldScrape(ctx, region)
			switch {
			case err != nil:
				log.Printf("[ORCHESTRATOR] Cache recheck for %s failed: %v", region, err)
				cacheEntry = nil
			case !due && !req.Force:
				log.Printf("[ORCHESTRATOR] %s was scraped while waiting for the lease, serving cached events", region)
				return o.serveCached(ctx, req, res, SkipNotDue)
			default:
				cacheEntry = entry
			}
		}
	}

	if _, err := o.scheduler.MarkRunning(ctx, region, cacheEntry); err != nil {
		log.Printf("[ORCHESTRATOR] %v", err)
	}
	o.putJob(ctx, job)

	log.Printf("[ORCHESTRATOR] Starting pass %s over %s with %d sources", res.JobID, region, len(adapters))
	res.Source = ResultSourceFresh
	res.enter(StateScraping)

	validEvents, passErr := o.scrape(ctx, req, adapters, res)

	// Recorded even when the caller has gone away
	res.enter(StateUpdatingCache)
	cacheCtx := context.WithoutCancel(ctx)
	if _, err := o.scheduler.RecordScrapeOutcome(cacheCtx, region, validEvents, passErr); err != nil {
		log.Printf("[ORCHESTRATOR] %v", err)
	}

	events, err := o.queryEvents(cacheCtx, req)
	if err != nil {
		log.Printf("[ORCHESTRATOR] Failed to read events for %s: %v", region, err)
	}
	res.Events = events
	o.publishSnapshot(cacheCtx, region, events)

	job.EventsFound = res.EventsFound
	job.EventsInserted = res.EventsInserted
	job.Duplicates = res.Duplicates
	job.CostEstimateUSD = res.CostUSD
	job.GenerationBatchID = res.BatchID
	job.CompletedAt = o.now()
	job.Status = models.JobStatusCompleted
	if passErr != nil {
		job.Status = models.JobStatusFailed
		job.Error = passErr.Error()
	}
	o.putJob(cacheCtx, job)

	log.Printf("[ORCHESTRATOR] Pass %s over %s: %d found, %d inserted, %d duplicates, %d rejected in %v",
		res.JobID, region, res.EventsFound, res.EventsInserted, res.Duplicates, res.Rejected, o.now().Sub(started))

	if passErr != nil {
		res.enter(StateFailed)
		return res, passErr
	}
	res.enter(StateDone)
	return res, nil
}

// scrape calls each adapter in turn and takes its candidates through the
// pipeline. It returns the number of candidates that normalized into valid
// events, and an error when every adapter that ran failed.
func (o *Orchestrator) scrape(ctx context.Context, req PassRequest, adapters []sources.Adapter, res *PassResult) (int, error) {
	fetchReq := sources.Request{
		Region:    req.Region,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		RadiusKm:  req.RadiusKm,
		Now:       o.now(),
	}

	var (
		valid    int
		ran      int
		failed   int
		firstErr error
	)
	for i, a := range adapters {
		src := a.Source()
		if src == models.SourceAIGenerated && !o.needsGeneration(ctx, req.Region) {
			log.Printf("[ORCHESTRATOR] %s has enough fresh generated events, skipping %s", req.Region, src)
			res.Adapters = append(res.Adapters, AdapterReport{Source: src, Skipped: true})
			continue
		}

		var outcome sources.FetchOutcome
		if err := o.pacer.Wait(ctx, src); err != nil {
			outcome = sources.FetchOutcome{Source: src, Err: fmt.Errorf("waiting for %s rate limit: %w", src, err)}
		} else {
			outcome = sources.SafeFetch(ctx, a, fetchReq, o.pacer.Timeout(src))
		}
		ran++

		report, n := o.ingest(ctx, req, outcome, res)
		valid += n
		res.Adapters = append(res.Adapters, report)
		if !outcome.OK() {
			failed++
			if firstErr == nil {
				firstErr = outcome.Err
			}
		}

		o.sink.Record(ctx, analytics.Invocation{
			Source:         src,
			Country:        req.Region.Country,
			City:           req.Region.City,
			EventsScraped:  report.Candidates,
			EventsInserted: report.Inserted,
			Duplicates:     report.Duplicates,
			APICalls:       outcome.APICalls,
			Duration:       outcome.Duration,
			Err:            outcome.Err,
		})

		if i < len(adapters)-1 {
			if err := o.pacer.Pause(ctx, src); err != nil {
				log.Printf("[ORCHESTRATOR] Pause after %s interrupted: %v", src, err)
			}
		}
	}

	if ran > 0 && failed == ran {
		return valid, fmt.Errorf("%w for %s: %w", ErrAllSourcesFailed, req.Region, firstErr)
	}
	return valid, nil
}

// ingest normalizes, deduplicates and persists the candidates of one adapter
// in the order the adapter returned them
func (o *Orchestrator) ingest(ctx context.Context, req PassRequest, outcome sources.FetchOutcome, res *PassResult) (AdapterReport, int) {
	report := AdapterReport{
		Source:     outcome.Source,
		Candidates: len(outcome.Candidates),
		APICalls:   outcome.APICalls,
		DurationMS: outcome.Duration.Milliseconds(),
	}
	if outcome.Err != nil {
		report.Error = outcome.Err.Error()
	}
	res.EventsFound += len(outcome.Candidates)
	res.CostUSD += outcome.CostUSD
	if outcome.BatchID != "" {
		res.BatchID = outcome.BatchID
	}

	now := o.now()
	valid := 0
	for idx, c := range outcome.Candidates {
		res.enter(StateNormalizing)
		e, err := o.normalizer.Normalize(c, normalize.Context{
			City:      req.Region.City,
			Region:    req.Region.Region,
			Country:   req.Region.Country,
			CenterLat: req.Latitude,
			CenterLng: req.Longitude,
			RadiusKm:  req.RadiusKm,
			Now:       now,
			Index:     idx,
		})
		if err != nil {
			report.Rejected++
			log.Printf("[ORCHESTRATOR] Rejected %s candidate %q: %v", outcome.Source, c.ExternalID, err)
			continue
		}
		valid++

		res.enter(StateDeduplicating)
		if d := o.detector.FindDuplicate(ctx, e); d.IsDuplicate {
			report.Duplicates++
			continue
		}

		res.enter(StatePersisting)
		inserted, err := o.store.InsertEventIfAbsent(ctx, e)
		if err != nil {
			report.PersistFailures++
			log.Printf("[ORCHESTRATOR] Failed to persist %s event %q: %v", outcome.Source, e.Title, err)
			continue
		}
		if !inserted {
			report.Duplicates++
			continue
		}
		report.Inserted++
	}

	res.EventsInserted += report.Inserted
	res.Duplicates += report.Duplicates
	res.Rejected += report.Rejected
	res.PersistFailures += report.PersistFailures
	return report, valid
}

func (o *Orchestrator) needsGeneration(ctx context.Context, r models.Region) bool {
	if r.City == "" {
		return true
	}
	needs, err := o.scheduler.CityNeedsEventRefresh(ctx, r.City, o.cfg.AIMinEvents, o.cfg.AIRefreshHours)
	if err != nil {
		log.Printf("[ORCHESTRATOR] AI refresh check for %s failed, generating anyway: %v", r.City, err)
		return true
	}
	return needs
}

func (o *Orchestrator) serveCached(ctx context.Context, req PassRequest, res *PassResult, reason string) (*PassResult, error) {
	res.enter(StateSkip)
	res.Source = ResultSourceCache
	res.Skipped = true
	res.SkipReason = reason
	events, err := o.queryEvents(ctx, req)
	if err != nil {
		res.enter(StateFailed)
		return res, fmt.Errorf("reading cached events for %s: %w", req.Region, err)
	}
	res.Events = events
	res.enter(StateDone)
	return res, nil
}

// CachedEvents returns the live stored events of a request's location
func (o *Orchestrator) CachedEvents(ctx context.Context, req PassRequest) ([]models.Event, error) {
	return o.queryEvents(ctx, req)
}

func (o *Orchestrator) queryEvents(ctx context.Context, req PassRequest) ([]models.Event, error) {
	q := models.EventQuery{
		City:  req.Region.City,
		Now:   o.now(),
		Limit: o.cfg.ResponseLimit,
	}
	if req.Latitude != nil && req.Longitude != nil && req.RadiusKm > 0 {
		q.Latitude, q.Longitude, q.RadiusKm = req.Latitude, req.Longitude, req.RadiusKm
	}
	if !q.HasRadius() && q.City == "" {
		return nil, nil
	}
	return o.store.QueryEvents(ctx, q)
}

func (o *Orchestrator) publishSnapshot(ctx context.Context, r models.Region, events []models.Event) {
	if o.snapshots == nil || len(events) == 0 {
		return
	}
	if _, err := o.snapshots.PublishSnapshot(ctx, r, events); err != nil {
		log.Printf("[ORCHESTRATOR] Failed to publish snapshot for %s: %v", r, err)
	}
}

func (o *Orchestrator) putJob(ctx context.Context, job *models.FetchJob) {
	if err := o.store.PutJob(ctx, job); err != nil {
		log.Printf("[ORCHESTRATOR] Failed to store job %s: %v", job.JobID, err)
	}
}

func sourceNames(adapters []sources.Adapter) []string {
	out := make([]string, 0, len(adapters))
	for _, a := range adapters {
		out = append(out, string(a.Source()))
	}
	return out
}
