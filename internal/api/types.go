// Package api holds the request and response types shared by every entry
// point, their validation, and the mapping of pipeline outcomes onto HTTP
// status codes.
package api

import (
	"errors"

	"local-events-aggregator/internal/models"
	"local-events-aggregator/internal/orchestrator"
)

// ErrMissingInput marks a request that lacks or malforms a required field
var ErrMissingInput = errors.New("missing required input")

// Batch modes of the master scraper
const (
	ModeSingle = "single"
	ModeBatch  = "batch"
)

// FetchEventsRequest asks for the events around one location
type FetchEventsRequest struct {
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	RadiusKm     float64  `json:"radiusKm,omitempty"`
	City         string   `json:"city,omitempty"`
	Region       string   `json:"region,omitempty"`
	Country      string   `json:"country,omitempty"`
	Sources      []string `json:"sources,omitempty"`
	ForceRefresh bool     `json:"forceRefresh,omitempty"`
}

// BatchRequest asks for passes over several cities
type BatchRequest struct {
	Cities       []string `json:"cities"`
	Country      string   `json:"country,omitempty"`
	Sources      []string `json:"sources,omitempty"`
	ForceRefresh bool     `json:"forceRefresh,omitempty"`
}

// MasterRequest asks for a pass over a region key, or a batch over every
// known city under it
type MasterRequest struct {
	Country      string   `json:"country"`
	Region       string   `json:"region,omitempty"`
	City         string   `json:"city,omitempty"`
	Mode         string   `json:"mode,omitempty"`
	Sources      []string `json:"sources,omitempty"`
	ForceRefresh bool     `json:"forceRefresh,omitempty"`
}

// Response is the body of every entry point
type Response struct {
	Success          bool                         `json:"success"`
	Events           []models.Event               `json:"events,omitempty"`
	TotalEvents      int                          `json:"totalEvents"`
	Source           string                       `json:"source,omitempty"`
	NewEventsFetched *int                         `json:"newEventsFetched,omitempty"`
	CitiesProcessed  *int                         `json:"citiesProcessed,omitempty"`
	CitiesFailed     *int                         `json:"citiesFailed,omitempty"`
	JobID            string                       `json:"jobId,omitempty"`
	Unavailable      map[models.Source]string     `json:"unavailableSources,omitempty"`
	Adapters         []orchestrator.AdapterReport `json:"adapters,omitempty"`
	Regions          []orchestrator.RegionOutcome `json:"regions,omitempty"`
	Error            string                       `json:"error,omitempty"`
}

func intPtr(v int) *int {
	return &v
}
