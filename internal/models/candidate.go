package models

import "time"

// CandidateEvent is a raw, provider-specific event record produced by a
// source adapter. Payload is one of the closed set of variants below and
// must agree with Source.
type CandidateEvent struct {
	Source     Source
	Provenance Provenance
	ExternalID string
	Payload    CandidatePayload
}

// CandidatePayload is implemented only by the payload types in this package
type CandidatePayload interface {
	isCandidatePayload()
}

// TicketingPayload mirrors a ticketing API event listing
type TicketingPayload struct {
	Name      string
	Info      string
	URL       string
	ImageURL  string
	LocalDate string // YYYY-MM-DD
	LocalTime string // HH:MM:SS
	DateTime  string // RFC3339 UTC, when provided
	Timezone  string
	VenueName string
	City      string
	State     string
	Country   string
	Latitude  *float64
	Longitude *float64
	PriceMin  *float64
	PriceMax  *float64
	Currency  string
	Promoter  string
	Segment   string
	Genre     string
}

// PlacePayload is an event synthesized from a qualifying venue
type PlacePayload struct {
	PlaceID     string
	VenueName   string
	Address     string
	VenueTypes  []string
	Rating      float32
	Latitude    float64
	Longitude   float64
	Title       string
	Description string
	StartsAt    time.Time
	Category    string
	Price       string
}

// ScrapedPayload is a line candidate extracted from scraped HTML or markdown,
// or a template event used when extraction yielded nothing usable
type ScrapedPayload struct {
	Title       string
	Description string
	DateText    string
	StartsAt    time.Time // zero when DateText could not be parsed
	VenueName   string
	PriceText   string
	PageURL     string
	City        string
	Country     string
	Currency    string
	Category    string
}

// GeneratedPayload is one event from an LLM generation batch
type GeneratedPayload struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Date        string   `json:"date"` // YYYY-MM-DD
	Time        string   `json:"time"` // HH:MM
	VenueName   string   `json:"venue"`
	Address     string   `json:"address"`
	Price       string   `json:"price"`
	Organizer   string   `json:"organizer"`
	Category    string   `json:"category"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	BatchID     string   `json:"-"`
}

func (TicketingPayload) isCandidatePayload() {}
func (PlacePayload) isCandidatePayload()     {}
func (ScrapedPayload) isCandidatePayload()   {}
func (GeneratedPayload) isCandidatePayload() {}
