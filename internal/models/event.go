package models

import (
	"strings"
	"time"
)

// Source identifies which adapter produced an event
type Source string

const (
	SourceTicketing     Source = "ticketing"
	SourcePlaces        Source = "places"
	SourceCountryScrape Source = "scrape_country"
	SourceWebScrape     Source = "scrape_web"
	SourceAIGenerated   Source = "ai_generated"
)

// AllSources lists every adapter source in default invocation order
var AllSources = []Source{
	SourceTicketing,
	SourcePlaces,
	SourceCountryScrape,
	SourceWebScrape,
	SourceAIGenerated,
}

// ParseSource maps a request string onto a known source. Legacy aliases used
// by older clients are accepted.
func ParseSource(s string) (Source, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ticketing", "ticketmaster":
		return SourceTicketing, true
	case "places", "google_places":
		return SourcePlaces, true
	case "scrape_country", "country":
		return SourceCountryScrape, true
	case "scrape_web", "web", "scrape":
		return SourceWebScrape, true
	case "ai_generated", "ai", "openai":
		return SourceAIGenerated, true
	}
	return "", false
}

// Provenance classifies how trustworthy an event record is, independent of
// which adapter produced it
type Provenance string

const (
	ProvenanceLive             Provenance = "live"
	ProvenanceTemplateFallback Provenance = "template_fallback"
	ProvenanceAIGenerated      Provenance = "ai_generated"
	ProvenanceVenueSynthesized Provenance = "venue_synthesized"
)

// Sort key constants
const (
	SortKeyMetadata = "METADATA"
	SortKeyCache    = "CACHE"
	SortKeyJob      = "JOB"
	SortKeyLease    = "LEASE"
)

// Event is the canonical, persisted event record
type Event struct {
	// Primary Keys
	PK string `json:"-" dynamodbav:"PK"` // EVENT#{source}#{external_id}
	SK string `json:"-" dynamodbav:"SK"` // METADATA

	ID         string     `json:"id" dynamodbav:"id"`
	ExternalID string     `json:"external_id" dynamodbav:"external_id"`
	Source     Source     `json:"source" dynamodbav:"source"`
	Provenance Provenance `json:"provenance" dynamodbav:"provenance"`

	Title       string `json:"title" dynamodbav:"title"`
	Description string `json:"description,omitempty" dynamodbav:"description,omitempty"`

	StartDate time.Time  `json:"start_date" dynamodbav:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty" dynamodbav:"end_date,omitempty"`
	EventDate string     `json:"event_date" dynamodbav:"event_date"` // YYYY-MM-DD in the event's local zone
	TitleKey  string     `json:"-" dynamodbav:"title_key"`

	LocationName string   `json:"location_name,omitempty" dynamodbav:"location_name,omitempty"`
	CityName     string   `json:"city_name,omitempty" dynamodbav:"city_name,omitempty"`
	Region       string   `json:"region,omitempty" dynamodbav:"region,omitempty"`
	Country      string   `json:"country,omitempty" dynamodbav:"country,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty" dynamodbav:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty" dynamodbav:"longitude,omitempty"`
	// CoordinatesDerived marks a point placed around the city center rather
	// than reported for the venue
	CoordinatesDerived bool `json:"coordinates_derived,omitempty" dynamodbav:"coordinates_derived,omitempty"`

	Price      string `json:"price" dynamodbav:"price"`
	Organizer  string `json:"organizer,omitempty" dynamodbav:"organizer,omitempty"`
	Category   string `json:"category,omitempty" dynamodbav:"category,omitempty"`
	WebsiteURL string `json:"website_url,omitempty" dynamodbav:"website_url,omitempty"`
	ImageURL   string `json:"image_url,omitempty" dynamodbav:"image_url,omitempty"`

	AIGenerated       bool   `json:"ai_generated" dynamodbav:"ai_generated"`
	GenerationBatchID string `json:"generation_batch_id,omitempty" dynamodbav:"generation_batch_id,omitempty"`

	CreatedAt time.Time `json:"created_at" dynamodbav:"created_at"`
	ExpiresAt time.Time `json:"expires_at" dynamodbav:"expires_at"`
	TTL       int64     `json:"-" dynamodbav:"ttl"` // DynamoDB TTL, epoch seconds of ExpiresAt

	// GSI Keys
	CityKey  string `json:"-" dynamodbav:"CityKey,omitempty"`  // CITY#{city}
	DedupKey string `json:"-" dynamodbav:"DedupKey,omitempty"` // DUP#{event_date}#{title_key}
	GeoCell  string `json:"-" dynamodbav:"GeoCell,omitempty"`  // GEO#{lat_cell}#{lng_cell}
}

// HasCoordinates reports whether both latitude and longitude are set
func (e *Event) HasCoordinates() bool {
	return e.Latitude != nil && e.Longitude != nil
}

// IsExpired reports whether the event's lifetime has ended at now
func (e *Event) IsExpired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

// PopulateKeys derives the primary and GSI keys from the event fields
func (e *Event) PopulateKeys() {
	e.PK = CreateEventPK(e.Source, e.ExternalID)
	e.SK = SortKeyMetadata
	if e.ID == "" {
		e.ID = GenerateEventID(e.Source, e.ExternalID)
	}
	e.TTL = e.ExpiresAt.Unix()
	e.CityKey = ""
	if e.CityName != "" {
		e.CityKey = GenerateCityKey(e.CityName)
	}
	e.DedupKey = ""
	if e.EventDate != "" && e.TitleKey != "" {
		e.DedupKey = GenerateDedupKey(e.EventDate, e.TitleKey)
	}
	e.GeoCell = ""
	if e.HasCoordinates() {
		e.GeoCell = GenerateGeoCellKey(*e.Latitude, *e.Longitude)
	}
}

// Helper functions to create primary keys
func CreateEventPK(source Source, externalID string) string {
	return "EVENT#" + string(source) + "#" + externalID
}

// Helper functions to generate GSI keys
func GenerateCityKey(city string) string {
	return "CITY#" + NormalizeCity(city)
}

func GenerateDedupKey(eventDate, titleKey string) string {
	return "DUP#" + eventDate + "#" + titleKey
}

// NormalizeCity lowercases and collapses whitespace in a city name
func NormalizeCity(city string) string {
	return strings.Join(strings.Fields(strings.ToLower(city)), " ")
}
