// Package normalize maps source adapter candidates onto the canonical event
// schema. Normalization is pure: no I/O, and the same candidate and context
// always produce the same event.
package normalize

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"time"

	"local-events-aggregator/internal/dedup"
	"local-events-aggregator/internal/models"
)

// Default price strings, by how the source reports pricing
const (
	PriceFree         = "Free"
	PriceCheckWebsite = "Check website"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 2000
	goldenAngle          = math.Pi * (3 - 2.2360679774997896) // pi * (3 - sqrt(5))
)

var (
	ErrMissingTitle      = errors.New("candidate has no title")
	ErrMissingStart      = errors.New("candidate has no parseable start date")
	ErrMissingLocation   = errors.New("candidate has neither a location name nor a city")
	ErrPayloadMismatch   = errors.New("candidate payload does not match its source")
	ErrMissingExternalID = errors.New("candidate has no external id")
)

// Config holds the lifetime of each source class and the spread used when
// deriving coordinates
type Config struct {
	ScrapeTTL   time.Duration // scrape-derived events, bound to the scheduling window
	APITTL      time.Duration // ticketing and places events
	AITTL       time.Duration // LLM-generated events
	MaxSpreadKm float64       // bound on the radius of derived coordinates
}

// DefaultConfig returns the default lifetimes: hours for scrapes, weeks for
// API sources and two weeks for generated events
func DefaultConfig() Config {
	return Config{
		ScrapeTTL:   12 * time.Hour,
		APITTL:      28 * 24 * time.Hour,
		AITTL:       14 * 24 * time.Hour,
		MaxSpreadKm: 5,
	}
}

// Context is the location the candidate was fetched for
type Context struct {
	City    string
	Region  string
	Country string

	// Request coordinates override the built-in city center table
	CenterLat *float64
	CenterLng *float64
	RadiusKm  float64

	Now   time.Time
	Index int // position of the candidate within its adapter's result
}

// Normalizer converts candidates into canonical events
type Normalizer struct {
	cfg Config
}

// New creates a normalizer, filling unset durations with defaults
func New(cfg Config) *Normalizer {
	def := DefaultConfig()
	if cfg.ScrapeTTL <= 0 {
		cfg.ScrapeTTL = def.ScrapeTTL
	}
	if cfg.APITTL <= 0 {
		cfg.APITTL = def.APITTL
	}
	if cfg.AITTL <= 0 {
		cfg.AITTL = def.AITTL
	}
	if cfg.MaxSpreadKm <= 0 {
		cfg.MaxSpreadKm = def.MaxSpreadKm
	}
	return &Normalizer{cfg: cfg}
}

// Normalize maps a candidate onto the canonical schema. It returns an error
// rather than a partially filled event when required fields are missing.
func (n *Normalizer) Normalize(c models.CandidateEvent, nc Context) (*models.Event, error) {
	if strings.TrimSpace(c.ExternalID) == "" {
		return nil, ErrMissingExternalID
	}
	if nc.Now.IsZero() {
		nc.Now = time.Now()
	}

	var (
		e   *models.Event
		err error
	)
	switch p := c.Payload.(type) {
	case models.TicketingPayload:
		if c.Source != models.SourceTicketing {
			return nil, fmt.Errorf("%w: %s with ticketing payload", ErrPayloadMismatch, c.Source)
		}
		e, err = n.fromTicketing(p, nc)
	case models.PlacePayload:
		if c.Source != models.SourcePlaces {
			return nil, fmt.Errorf("%w: %s with places payload", ErrPayloadMismatch, c.Source)
		}
		e, err = n.fromPlace(p, nc)
	case models.ScrapedPayload:
		if c.Source != models.SourceCountryScrape && c.Source != models.SourceWebScrape {
			return nil, fmt.Errorf("%w: %s with scraped payload", ErrPayloadMismatch, c.Source)
		}
		e, err = n.fromScrape(p, nc)
	case models.GeneratedPayload:
		if c.Source != models.SourceAIGenerated {
			return nil, fmt.Errorf("%w: %s with generated payload", ErrPayloadMismatch, c.Source)
		}
		e, err = n.fromGenerated(p, nc)
	default:
		return nil, fmt.Errorf("%w: unknown payload %T", ErrPayloadMismatch, c.Payload)
	}
	if err != nil {
		return nil, err
	}

	e.Source = c.Source
	e.ExternalID = c.ExternalID
	e.Provenance = provenanceFor(c)
	e.Title = truncate(collapse(e.Title), maxTitleLength)
	e.Description = truncate(strings.TrimSpace(e.Description), maxDescriptionLength)
	e.Category = strings.ToLower(strings.TrimSpace(e.Category))
	e.LocationName = collapse(e.LocationName)
	e.Organizer = collapse(e.Organizer)
	fillString(&e.CityName, nc.City)
	fillString(&e.Region, nc.Region)
	fillString(&e.Country, nc.Country)

	if e.Title == "" {
		return nil, ErrMissingTitle
	}
	if e.LocationName == "" && e.CityName == "" {
		return nil, ErrMissingLocation
	}
	if e.StartDate.IsZero() {
		return nil, ErrMissingStart
	}

	e.EventDate = e.StartDate.Format("2006-01-02")
	e.TitleKey = dedup.NormalizeTitle(e.Title)
	e.CreatedAt = nc.Now
	e.ExpiresAt = nc.Now.Add(n.ttlFor(c.Source))
	if !e.HasCoordinates() {
		n.deriveCoordinates(e, nc)
	}
	e.AIGenerated = c.Source == models.SourceAIGenerated
	if !e.AIGenerated {
		e.GenerationBatchID = ""
	}
	e.PopulateKeys()
	return e, nil
}

func (n *Normalizer) fromTicketing(p models.TicketingPayload, nc Context) (*models.Event, error) {
	loc := resolveLocation(p.Timezone, firstNonEmpty(p.City, nc.City))
	start, err := parseTicketingStart(p, loc)
	if err != nil {
		return nil, err
	}
	return &models.Event{
		Title:        p.Name,
		Description:  p.Info,
		StartDate:    start,
		LocationName: p.VenueName,
		CityName:     p.City,
		Region:       p.State,
		Country:      p.Country,
		Latitude:     p.Latitude,
		Longitude:    p.Longitude,
		Price:        formatPriceRange(p.PriceMin, p.PriceMax, p.Currency, PriceCheckWebsite),
		Organizer:    p.Promoter,
		Category:     firstNonEmpty(p.Segment, p.Genre),
		WebsiteURL:   p.URL,
		ImageURL:     p.ImageURL,
	}, nil
}

func (n *Normalizer) fromPlace(p models.PlacePayload, nc Context) (*models.Event, error) {
	lat, lng := p.Latitude, p.Longitude
	return &models.Event{
		Title:        p.Title,
		Description:  p.Description,
		StartDate:    p.StartsAt,
		LocationName: p.VenueName,
		Latitude:     &lat,
		Longitude:    &lng,
		Price:        firstNonEmpty(strings.TrimSpace(p.Price), PriceCheckWebsite),
		Organizer:    p.VenueName,
		Category:     p.Category,
		WebsiteURL:   placeURL(p.PlaceID),
	}, nil
}

func (n *Normalizer) fromScrape(p models.ScrapedPayload, nc Context) (*models.Event, error) {
	return &models.Event{
		Title:        p.Title,
		Description:  p.Description,
		StartDate:    p.StartsAt,
		LocationName: p.VenueName,
		CityName:     p.City,
		Country:      p.Country,
		Price:        firstNonEmpty(strings.TrimSpace(p.PriceText), PriceCheckWebsite),
		Category:     p.Category,
		WebsiteURL:   p.PageURL,
	}, nil
}

func (n *Normalizer) fromGenerated(p models.GeneratedPayload, nc Context) (*models.Event, error) {
	loc := resolveLocation("", nc.City)
	start, err := parseDateTime(p.Date, p.Time, loc)
	if err != nil {
		return nil, err
	}
	return &models.Event{
		Title:             p.Title,
		Description:       p.Description,
		StartDate:         start,
		LocationName:      firstNonEmpty(p.VenueName, p.Address),
		Latitude:          p.Latitude,
		Longitude:         p.Longitude,
		Price:             firstNonEmpty(strings.TrimSpace(p.Price), PriceFree),
		Organizer:         p.Organizer,
		Category:          p.Category,
		GenerationBatchID: p.BatchID,
	}, nil
}

func (n *Normalizer) ttlFor(source models.Source) time.Duration {
	switch source {
	case models.SourceCountryScrape, models.SourceWebScrape:
		return n.cfg.ScrapeTTL
	case models.SourceAIGenerated:
		return n.cfg.AITTL
	default:
		return n.cfg.APITTL
	}
}

// deriveCoordinates places an event without venue coordinates on a bounded
// circle around the city center. The position is an approximation for map
// display, not a geocode.
func (n *Normalizer) deriveCoordinates(e *models.Event, nc Context) {
	var lat, lng float64
	switch {
	case nc.CenterLat != nil && nc.CenterLng != nil:
		lat, lng = *nc.CenterLat, *nc.CenterLng
	default:
		center, ok := models.LookupCityCenter(firstNonEmpty(e.CityName, nc.City))
		if !ok {
			return
		}
		lat, lng = center.Latitude, center.Longitude
	}

	spread := n.cfg.MaxSpreadKm
	if nc.RadiusKm > 0 && nc.RadiusKm < spread {
		spread = nc.RadiusKm
	}

	h := fnv.New64a()
	h.Write([]byte(string(e.Source) + "|" + e.ExternalID))
	sum := h.Sum64()
	f1 := float64(sum&0xffff) / 0x10000
	f2 := float64((sum>>16)&0xffff) / 0x10000

	bearing := math.Mod(float64(nc.Index)*goldenAngle+f1*2*math.Pi, 2*math.Pi)
	distance := spread * (0.2 + 0.8*math.Sqrt(f2))
	dLat, dLng := models.OffsetPoint(lat, lng, distance, bearing)
	e.CoordinatesDerived = true
	e.Latitude = &dLat
	e.Longitude = &dLng
}

func provenanceFor(c models.CandidateEvent) models.Provenance {
	if c.Source == models.SourceAIGenerated {
		return models.ProvenanceAIGenerated
	}
	if c.Provenance != "" {
		return c.Provenance
	}
	if c.Source == models.SourcePlaces {
		return models.ProvenanceVenueSynthesized
	}
	return models.ProvenanceLive
}

func placeURL(placeID string) string {
	if placeID == "" {
		return ""
	}
	return "https://www.google.com/maps/place/?q=place_id:" + placeID
}

func fillString(dst *string, fallback string) {
	if strings.TrimSpace(*dst) == "" {
		*dst = strings.TrimSpace(fallback)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max]))
}
