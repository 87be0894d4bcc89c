package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"local-events-aggregator/internal/models"
	"local-events-aggregator/internal/orchestrator"
)

const (
	defaultRadiusKm = 25
	maxRadiusKm     = 200
	// A point farther than this from every known city needs an explicit city
	nearestCityMaxKm = 60
)

// Runner runs aggregation passes
type Runner interface {
	Run(ctx context.Context, req orchestrator.PassRequest) (*orchestrator.PassResult, error)
	RunBatch(ctx context.Context, req orchestrator.BatchRequest) *orchestrator.BatchSummary
	CachedEvents(ctx context.Context, req orchestrator.PassRequest) ([]models.Event, error)
}

// Handler serves the single-location, batch and master-scraper requests
type Handler struct {
	runner  Runner
	targets []models.Region
}

// NewHandler creates a handler. targets are the regions of a scheduled batch.
func NewHandler(runner Runner, targets []models.Region) *Handler {
	return &Handler{runner: runner, targets: targets}
}

// FetchEvents runs a single-location pass
func (h *Handler) FetchEvents(ctx context.Context, req FetchEventsRequest) (Response, int) {
	pass, err := req.PassRequest()
	if err != nil {
		return failure(err), http.StatusBadRequest
	}
	log.Printf("[API] Fetch events for %s (sources %v, force %t)", pass.Region, pass.Sources, pass.Force)
	res, err := h.runner.Run(ctx, pass)
	return h.passResponse(ctx, pass, res, err)
}

// Batch runs passes over the requested cities
func (h *Handler) Batch(ctx context.Context, req BatchRequest) (Response, int) {
	srcs, err := parseSources(req.Sources)
	if err != nil {
		return failure(err), http.StatusBadRequest
	}
	if len(req.Cities) == 0 {
		return failure(fmt.Errorf("%w: cities", ErrMissingInput)), http.StatusBadRequest
	}
	regions := make([]models.Region, 0, len(req.Cities))
	for _, city := range req.Cities {
		if strings.TrimSpace(city) == "" {
			return failure(fmt.Errorf("%w: empty city name", ErrMissingInput)), http.StatusBadRequest
		}
		regions = append(regions, resolveRegion(req.Country, "", city))
	}
	return h.runBatch(ctx, orchestrator.BatchRequest{Regions: regions, Sources: srcs, Force: req.ForceRefresh})
}

// ScheduledBatch runs passes over the configured target regions
func (h *Handler) ScheduledBatch(ctx context.Context) (Response, int) {
	var regions []models.Region
	for _, t := range h.targets {
		regions = append(regions, orchestrator.ExpandRegion(resolveRegion(t.Country, t.Region, t.City))...)
	}
	if len(regions) == 0 {
		return failure(fmt.Errorf("%w: no target regions are configured", ErrMissingInput)), http.StatusBadRequest
	}
	return h.runBatch(ctx, orchestrator.BatchRequest{Regions: regions})
}

// Master runs a pass over one region key, or a batch over every known city
// under a country or state
func (h *Handler) Master(ctx context.Context, req MasterRequest) (Response, int) {
	if strings.TrimSpace(req.Country) == "" {
		return failure(fmt.Errorf("%w: country", ErrMissingInput)), http.StatusBadRequest
	}
	srcs, err := parseSources(req.Sources)
	if err != nil {
		return failure(err), http.StatusBadRequest
	}

	switch strings.ToLower(strings.TrimSpace(req.Mode)) {
	case "", ModeSingle:
		if strings.TrimSpace(req.City) == "" {
			return failure(fmt.Errorf("%w: city is required in single mode, use batch mode for a whole country or state", ErrMissingInput)), http.StatusBadRequest
		}
		pass := orchestrator.PassRequest{
			Region:  resolveRegion(req.Country, req.Region, req.City),
			Sources: srcs,
			Force:   req.ForceRefresh,
			Mode:    models.JobModeSingle,
		}
		res, err := h.runner.Run(ctx, pass)
		return h.passResponse(ctx, pass, res, err)
	case ModeBatch:
		key := resolveRegion(req.Country, req.Region, req.City)
		regions := orchestrator.ExpandRegion(key)
		if len(regions) == 0 {
			return failure(fmt.Errorf("%w: no known cities under %s", ErrMissingInput, key)), http.StatusBadRequest
		}
		return h.runBatch(ctx, orchestrator.BatchRequest{Regions: regions, Sources: srcs, Force: req.ForceRefresh})
	default:
		return failure(fmt.Errorf("%w: mode must be single or batch, got %q", ErrMissingInput, req.Mode)), http.StatusBadRequest
	}
}

func (h *Handler) passResponse(ctx context.Context, pass orchestrator.PassRequest, res *orchestrator.PassResult, err error) (Response, int) {
	resp := Response{
		Success:     err == nil,
		Events:      res.Events,
		Source:      res.Source,
		JobID:       res.JobID,
		Unavailable: res.Unavailable,
		Adapters:    res.Adapters,
	}
	if res.Source == orchestrator.ResultSourceFresh {
		resp.NewEventsFetched = intPtr(res.EventsInserted)
	}
	status := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		status = http.StatusInternalServerError
		if errors.Is(err, orchestrator.ErrNoSources) {
			status = http.StatusBadRequest
		}
		// Previously stored events are still worth showing
		if len(resp.Events) == 0 {
			cached, cerr := h.runner.CachedEvents(ctx, pass)
			if cerr != nil {
				log.Printf("[API] Failed to read cached events for %s: %v", pass.Region, cerr)
			}
			if len(cached) > 0 {
				resp.Events = cached
				resp.Source = orchestrator.ResultSourceCache
			}
		}
		log.Printf("[API] Pass over %s failed: %v", pass.Region, err)
	}
	resp.TotalEvents = len(resp.Events)
	return resp, status
}

func (h *Handler) runBatch(ctx context.Context, br orchestrator.BatchRequest) (Response, int) {
	summary := h.runner.RunBatch(ctx, br)
	resp := Response{
		Success:         summary.CitiesProcessed > 0 || summary.CitiesFailed == 0,
		TotalEvents:     summary.TotalEvents,
		CitiesProcessed: intPtr(summary.CitiesProcessed),
		CitiesFailed:    intPtr(summary.CitiesFailed),
		Regions:         summary.Regions,
	}
	if summary.Cancelled {
		resp.Error = fmt.Sprintf("batch cancelled after %d of %d cities", len(summary.Regions), len(br.Regions))
	}
	if !resp.Success {
		resp.Error = fmt.Sprintf("all %d cities failed", summary.CitiesFailed)
		return resp, http.StatusInternalServerError
	}
	return resp, http.StatusOK
}

// PassRequest validates the request and turns it into a region pass
func (r FetchEventsRequest) PassRequest() (orchestrator.PassRequest, error) {
	srcs, err := parseSources(r.Sources)
	if err != nil {
		return orchestrator.PassRequest{}, err
	}
	if (r.Latitude == nil) != (r.Longitude == nil) {
		return orchestrator.PassRequest{}, fmt.Errorf("%w: latitude and longitude must be given together", ErrMissingInput)
	}
	hasPoint := r.Latitude != nil
	city := strings.TrimSpace(r.City)
	if !hasPoint && city == "" {
		return orchestrator.PassRequest{}, fmt.Errorf("%w: latitude and longitude, or city", ErrMissingInput)
	}

	pass := orchestrator.PassRequest{
		Sources: srcs,
		Force:   r.ForceRefresh,
		Mode:    models.JobModeSingle,
	}
	if hasPoint {
		lat, lng := *r.Latitude, *r.Longitude
		if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
			return orchestrator.PassRequest{}, fmt.Errorf("%w: coordinates out of range", ErrMissingInput)
		}
		radius := r.RadiusKm
		if radius <= 0 {
			radius = defaultRadiusKm
		}
		if radius > maxRadiusKm {
			return orchestrator.PassRequest{}, fmt.Errorf("%w: radiusKm must be at most %d", ErrMissingInput, maxRadiusKm)
		}
		pass.Latitude, pass.Longitude, pass.RadiusKm = &lat, &lng, radius

		if city == "" {
			nearest, ok := models.NearestCityCenter(lat, lng, nearestCityMaxKm)
			if !ok {
				return orchestrator.PassRequest{}, fmt.Errorf("%w: city, no known city lies near %.4f,%.4f", ErrMissingInput, lat, lng)
			}
			city = nearest.Name
		}
	}
	pass.Region = resolveRegion(r.Country, r.Region, city)
	return pass, nil
}

// resolveRegion builds a region key, filling the country and state of a
// known city from the city table so equivalent requests share a cache key
func resolveRegion(country, region, city string) models.Region {
	r := models.Region{
		Country: strings.ToUpper(strings.TrimSpace(country)),
		Region:  strings.TrimSpace(region),
		City:    strings.TrimSpace(city),
	}
	if c, ok := models.LookupCityCenter(r.City); ok {
		r.City = c.Name
		if r.Country == "" {
			r.Country = c.Country
		}
		if r.Region == "" && strings.EqualFold(r.Country, c.Country) {
			r.Region = c.Region
		}
	}
	return r
}

func parseSources(names []string) ([]models.Source, error) {
	var out []models.Source
	for _, n := range names {
		src, ok := models.ParseSource(n)
		if !ok {
			return nil, fmt.Errorf("%w: unknown source %q", ErrMissingInput, n)
		}
		out = append(out, src)
	}
	return out, nil
}

func failure(err error) Response {
	return Response{Success: false, Error: err.Error()}
}
