package sources

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"local-events-aggregator/internal/models"
	"local-events-aggregator/internal/services"
)

type stubVenues struct {
	byType map[string][]services.Venue
	err    error
	radius uint
}

func (s *stubVenues) NearbyVenues(ctx context.Context, lat, lng float64, radiusMeters uint, venueType string) ([]services.Venue, error) {
	s.radius = radiusMeters
	if s.err != nil {
		return nil, s.err
	}
	return s.byType[venueType], nil
}

func TestQualifyingVenue(t *testing.T) {
	testCases := []struct {
		name  string
		venue services.Venue
		want  bool
	}{
		{"rated and open", services.Venue{PlaceID: "a", Rating: 4.5, BusinessStatus: "OPERATIONAL"}, true},
		{"exactly minimum", services.Venue{PlaceID: "b", Rating: 4.0, BusinessStatus: "OPERATIONAL"}, true},
		{"low rating", services.Venue{PlaceID: "c", Rating: 3.9, BusinessStatus: "OPERATIONAL"}, false},
		{"closed", services.Venue{PlaceID: "d", Rating: 4.8, BusinessStatus: "CLOSED_TEMPORARILY"}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, QualifyingVenue(tc.venue))
		})
	}
}

func TestPlacesAdapterSynthesizesFromQualifyingVenues(t *testing.T) {
	venues := &stubVenues{byType: map[string][]services.Venue{
		"night_club": {
			{PlaceID: "club1", Name: "Kitty Su", Rating: 4.3, BusinessStatus: "OPERATIONAL", Latitude: 19.0, Longitude: 72.8},
			{PlaceID: "club2", Name: "Closed Club", Rating: 4.9, BusinessStatus: "CLOSED_PERMANENTLY"},
		},
		"museum": {
			{PlaceID: "mus1", Name: "CSMVS", Rating: 4.6, BusinessStatus: "OPERATIONAL", Latitude: 18.92, Longitude: 72.83},
			{PlaceID: "mus2", Name: "Tiny Museum", Rating: 3.2, BusinessStatus: "OPERATIONAL"},
		},
	}}
	a := NewPlacesAdapter(venues)

	res, err := a.Fetch(context.Background(), Request{
		Region:   models.Region{Country: "IN", City: "Mumbai"},
		RadiusKm: 5,
		Now:      time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, uint(5000), venues.radius)
	assert.Equal(t, len(venueProfiles), res.APICalls)

	// three for the club, one for the museum
	require.Len(t, res.Candidates, 4)
	perVenue := map[string]int{}
	for _, c := range res.Candidates {
		assert.Equal(t, models.SourcePlaces, c.Source)
		assert.Equal(t, models.ProvenanceVenueSynthesized, c.Provenance)
		p := c.Payload.(models.PlacePayload)
		perVenue[p.PlaceID]++
		assert.True(t, p.StartsAt.After(time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)))
	}
	assert.Equal(t, map[string]int{"club1": 3, "mus1": 1}, perVenue)
}

func TestPlacesAdapterAllSearchesFail(t *testing.T) {
	a := NewPlacesAdapter(&stubVenues{err: errors.New("OVER_QUERY_LIMIT")})
	_, err := a.Fetch(context.Background(), Request{Region: models.Region{City: "Mumbai"}})
	require.Error(t, err)
}

func TestPlacesAdapterNeedsLocation(t *testing.T) {
	a := NewPlacesAdapter(&stubVenues{})
	_, err := a.Fetch(context.Background(), Request{Region: models.Region{Country: "IN"}})
	require.Error(t, err)
}
