package sources

import (
	"context"
	"fmt"
	"log"
	"time"

	"local-events-aggregator/internal/models"
	"local-events-aggregator/internal/normalize"
	"local-events-aggregator/internal/services"
)

const (
	// MinVenueRating is the lowest rating a venue may have to seed events
	MinVenueRating        = 4.0
	operationalStatus     = "OPERATIONAL"
	defaultPlacesRadiusKm = 10
	maxVenuesPerType      = 5
)

// VenueSearcher finds venues near a point
type VenueSearcher interface {
	NearbyVenues(ctx context.Context, lat, lng float64, radiusMeters uint, venueType string) ([]services.Venue, error)
}

type venueProfile struct {
	venueType string
	category  string
	// Titles of the events synthesized per venue. The count scales with how
	// event-heavy the venue type is.
	titles []string
	hour   int
	price  string
}

// Places lists venues, not events. Each qualifying venue seeds a few
// plausible recurring events; these are tagged venue_synthesized.
var venueProfiles = []venueProfile{
	{"night_club", "nightlife", []string{"Saturday Night DJ Set", "Friday Club Night", "Retro Night"}, 22, ""},
	{"bar", "music", []string{"Live Music Evening", "Quiz Night"}, 20, ""},
	{"art_gallery", "arts", []string{"Gallery Exhibition Walkthrough", "Artist Talk"}, 17, "Free"},
	{"museum", "arts", []string{"Guided Museum Tour"}, 11, ""},
	{"restaurant", "food", []string{"Chef's Tasting Evening"}, 19, ""},
}

// PlacesAdapter synthesizes events from highly rated operational venues
type PlacesAdapter struct {
	client   VenueSearcher
	profiles []venueProfile
}

// NewPlacesAdapter creates the places adapter
func NewPlacesAdapter(client VenueSearcher) *PlacesAdapter {
	return &PlacesAdapter{client: client, profiles: venueProfiles}
}

func (a *PlacesAdapter) Source() models.Source {
	return models.SourcePlaces
}

func (a *PlacesAdapter) Fetch(ctx context.Context, req Request) (Result, error) {
	lat, lng, ok := req.Center()
	if !ok {
		return Result{}, fmt.Errorf("places search needs coordinates or a known city")
	}
	radiusKm := req.RadiusKm
	if radiusKm <= 0 {
		radiusKm = defaultPlacesRadiusKm
	}
	loc := normalize.ResolveLocation("", req.Region.City)
	now := req.now().In(loc)

	var (
		out      []models.CandidateEvent
		calls    int
		failures int
		lastErr  error
		seen     = make(map[string]bool)
	)
	for _, profile := range a.profiles {
		venues, err := a.client.NearbyVenues(ctx, lat, lng, uint(radiusKm*1000), profile.venueType)
		calls++
		if err != nil {
			failures++
			lastErr = err
			log.Printf("[PLACES] Nearby search for %s failed: %v", profile.venueType, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		used := 0
		for _, v := range venues {
			if used >= maxVenuesPerType {
				break
			}
			if seen[v.PlaceID] || !QualifyingVenue(v) {
				continue
			}
			seen[v.PlaceID] = true
			used++
			out = append(out, synthesizeVenueEvents(v, profile, req.Region.City, now, loc)...)
		}
	}
	if failures == calls && lastErr != nil {
		return Result{APICalls: calls}, fmt.Errorf("all nearby searches failed: %w", lastErr)
	}
	return Result{Candidates: out, APICalls: calls}, nil
}

// QualifyingVenue reports whether a venue is rated well enough and open
func QualifyingVenue(v services.Venue) bool {
	return v.Rating >= MinVenueRating && v.BusinessStatus == operationalStatus && v.PlaceID != ""
}

func synthesizeVenueEvents(v services.Venue, profile venueProfile, city string, now time.Time, loc *time.Location) []models.CandidateEvent {
	out := make([]models.CandidateEvent, 0, len(profile.titles))
	for i, title := range profile.titles {
		day := nextWeekday(now, time.Weekday((int(time.Friday)+i)%7))
		start := time.Date(day.Year(), day.Month(), day.Day(), profile.hour, 0, 0, 0, loc)
		if start.Before(now) {
			start = start.AddDate(0, 0, 7)
		}
		out = append(out, models.CandidateEvent{
			Source:     models.SourcePlaces,
			Provenance: models.ProvenanceVenueSynthesized,
			ExternalID: models.GenerateExternalID("place", v.PlaceID, title, start.Format("2006-01-02")),
			Payload: models.PlacePayload{
				PlaceID:     v.PlaceID,
				VenueName:   v.Name,
				Address:     v.Address,
				VenueTypes:  v.Types,
				Rating:      v.Rating,
				Latitude:    v.Latitude,
				Longitude:   v.Longitude,
				Title:       fmt.Sprintf("%s at %s", title, v.Name),
				Description: fmt.Sprintf("%s at %s, %s. Rated %.1f by %d visitors.", title, v.Name, firstNonBlank(v.Address, city), v.Rating, v.UserRatingsTotal),
				StartsAt:    start,
				Category:    profile.category,
				Price:       profile.price,
			},
		})
	}
	return out
}

// nextWeekday returns the next date on or after now falling on day
func nextWeekday(now time.Time, day time.Weekday) time.Time {
	offset := (int(day) - int(now.Weekday()) + 7) % 7
	return now.AddDate(0, 0, offset)
}
