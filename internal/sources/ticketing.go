package sources

import (
	"context"
	"fmt"
	"strings"

	"local-events-aggregator/internal/models"
	"local-events-aggregator/internal/services"
)

const (
	defaultTicketingRadiusKm = 25
	ticketingPageSize        = 50
)

// EventSearcher searches a ticketing API
type EventSearcher interface {
	SearchEvents(ctx context.Context, q services.TicketmasterQuery) ([]services.TicketmasterEvent, error)
}

// TicketingAdapter lists events from the Ticketmaster Discovery API
type TicketingAdapter struct {
	client EventSearcher
}

// NewTicketingAdapter creates the ticketing adapter
func NewTicketingAdapter(client EventSearcher) *TicketingAdapter {
	return &TicketingAdapter{client: client}
}

func (a *TicketingAdapter) Source() models.Source {
	return models.SourceTicketing
}

func (a *TicketingAdapter) Fetch(ctx context.Context, req Request) (Result, error) {
	q := services.TicketmasterQuery{
		CountryCode: strings.ToUpper(req.Region.Country),
		Size:        ticketingPageSize,
		StartAfter:  req.now(),
	}
	if req.Latitude != nil && req.Longitude != nil {
		q.Latitude, q.Longitude = req.Latitude, req.Longitude
		q.RadiusKm = req.RadiusKm
		if q.RadiusKm <= 0 {
			q.RadiusKm = defaultTicketingRadiusKm
		}
	} else if req.Region.City != "" {
		q.City = req.Region.City
	} else if q.CountryCode == "" {
		return Result{}, fmt.Errorf("ticketing search needs coordinates, a city or a country")
	}

	events, err := a.client.SearchEvents(ctx, q)
	if err != nil {
		return Result{APICalls: 1}, err
	}

	out := make([]models.CandidateEvent, 0, len(events))
	for _, ev := range events {
		if ev.ID == "" {
			continue
		}
		out = append(out, models.CandidateEvent{
			Source:     a.Source(),
			Provenance: models.ProvenanceLive,
			ExternalID: ev.ID,
			Payload:    ticketingPayload(ev),
		})
	}
	return Result{Candidates: out, APICalls: 1}, nil
}

func ticketingPayload(ev services.TicketmasterEvent) models.TicketingPayload {
	p := models.TicketingPayload{
		Name:      ev.Name,
		Info:      firstNonBlank(ev.Info, ev.Note),
		URL:       ev.URL,
		LocalDate: ev.Dates.Start.LocalDate,
		LocalTime: ev.Dates.Start.LocalTime,
		DateTime:  ev.Dates.Start.DateTime,
		Timezone:  ev.Dates.Timezone,
		Promoter:  ev.Promoter.Name,
	}

	widest := 0
	for _, img := range ev.Images {
		if img.Width > widest {
			widest = img.Width
			p.ImageURL = img.URL
		}
	}
	if len(ev.Classifications) > 0 {
		p.Segment = ev.Classifications[0].Segment.Name
		p.Genre = ev.Classifications[0].Genre.Name
	}
	if len(ev.PriceRanges) > 0 {
		pr := ev.PriceRanges[0]
		p.PriceMin = models.Float64Ptr(pr.Min)
		p.PriceMax = models.Float64Ptr(pr.Max)
		p.Currency = pr.Currency
	}
	if len(ev.Embedded.Venues) > 0 {
		v := ev.Embedded.Venues[0]
		p.VenueName = v.Name
		p.City = v.City.Name
		p.State = v.State.Name
		p.Country = v.Country.CountryCode
		p.Latitude, p.Longitude = v.Coordinates()
	}
	return p
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
