package sources

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"local-events-aggregator/internal/models"
	"local-events-aggregator/internal/services"
)

type stubSearcher struct {
	got    services.TicketmasterQuery
	events []services.TicketmasterEvent
	err    error
}

func (s *stubSearcher) SearchEvents(ctx context.Context, q services.TicketmasterQuery) ([]services.TicketmasterEvent, error) {
	s.got = q
	return s.events, s.err
}

func decodeTicketmasterEvent(t *testing.T, raw string) services.TicketmasterEvent {
	t.Helper()
	var ev services.TicketmasterEvent
	require.NoError(t, json.Unmarshal([]byte(raw), &ev))
	return ev
}

func TestTicketingAdapterMapsEvents(t *testing.T) {
	ev := decodeTicketmasterEvent(t, `{
		"id": "Z7r9jZ1A7",
		"name": "Arijit Singh Live",
		"url": "https://www.ticketmaster.com/event/Z7r9jZ1A7",
		"images": [{"url": "small.jpg", "width": 100}, {"url": "large.jpg", "width": 1024}],
		"dates": {"start": {"localDate": "2025-04-05", "localTime": "19:00:00"}, "timezone": "Asia/Kolkata"},
		"classifications": [{"segment": {"name": "Music"}, "genre": {"name": "Bollywood"}}],
		"priceRanges": [{"min": 1500, "max": 5000, "currency": "INR"}],
		"_embedded": {"venues": [{"name": "NSCI Dome", "city": {"name": "Mumbai"}, "country": {"countryCode": "IN"},
			"location": {"latitude": "18.9894", "longitude": "72.8220"}}]}
	}`)
	searcher := &stubSearcher{events: []services.TicketmasterEvent{ev, {Name: "missing id"}}}
	a := NewTicketingAdapter(searcher)

	res, err := a.Fetch(context.Background(), Request{
		Region:    models.Region{Country: "in", City: "Mumbai"},
		Latitude:  models.Float64Ptr(19.076),
		Longitude: models.Float64Ptr(72.8777),
	})
	require.NoError(t, err)
	assert.Equal(t, "IN", searcher.got.CountryCode)
	assert.Equal(t, float64(defaultTicketingRadiusKm), searcher.got.RadiusKm)
	assert.Empty(t, searcher.got.City)

	require.Len(t, res.Candidates, 1)
	c := res.Candidates[0]
	assert.Equal(t, "Z7r9jZ1A7", c.ExternalID)
	p := c.Payload.(models.TicketingPayload)
	assert.Equal(t, "large.jpg", p.ImageURL)
	assert.Equal(t, "Music", p.Segment)
	assert.Equal(t, 1500.0, *p.PriceMin)
	assert.Equal(t, "NSCI Dome", p.VenueName)
	assert.InDelta(t, 18.9894, *p.Latitude, 1e-9)
}

func TestTicketingAdapterSearchesByCity(t *testing.T) {
	searcher := &stubSearcher{}
	a := NewTicketingAdapter(searcher)

	res, err := a.Fetch(context.Background(), Request{Region: models.Region{Country: "US", City: "Austin"}})
	require.NoError(t, err)
	assert.Empty(t, res.Candidates)
	assert.Equal(t, "Austin", searcher.got.City)
	assert.Nil(t, searcher.got.Latitude)
}
