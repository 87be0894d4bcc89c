package services

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"
)

// Venue is a place returned by a nearby search
type Venue struct {
	PlaceID          string
	Name             string
	Address          string
	Types            []string
	Rating           float32
	UserRatingsTotal int
	BusinessStatus   string
	Latitude         float64
	Longitude        float64
}

// PlacesClient searches Google Places for venues
type PlacesClient struct {
	client *maps.Client
}

// NewPlacesClient creates a Places client. Extra options such as
// maps.WithBaseURL are passed through.
func NewPlacesClient(apiKey string, opts ...maps.ClientOption) (*PlacesClient, error) {
	opts = append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)
	c, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize places client: %w", err)
	}
	return &PlacesClient{client: c}, nil
}

// NearbyVenues returns venues of one type within radiusMeters of a point
func (p *PlacesClient) NearbyVenues(ctx context.Context, lat, lng float64, radiusMeters uint, venueType string) ([]Venue, error) {
	resp, err := p.client.NearbySearch(ctx, &maps.NearbySearchRequest{
		Location: &maps.LatLng{Lat: lat, Lng: lng},
		Radius:   radiusMeters,
		Type:     maps.PlaceType(venueType),
	})
	if err != nil {
		return nil, fmt.Errorf("places nearby search failed: %w", err)
	}

	venues := make([]Venue, 0, len(resp.Results))
	for _, r := range resp.Results {
		address := r.Vicinity
		if address == "" {
			address = r.FormattedAddress
		}
		venues = append(venues, Venue{
			PlaceID:          r.PlaceID,
			Name:             r.Name,
			Address:          address,
			Types:            r.Types,
			Rating:           r.Rating,
			UserRatingsTotal: r.UserRatingsTotal,
			BusinessStatus:   r.BusinessStatus,
			Latitude:         r.Geometry.Location.Lat,
			Longitude:        r.Geometry.Location.Lng,
		})
	}
	return venues, nil
}
