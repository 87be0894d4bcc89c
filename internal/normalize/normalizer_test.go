package normalize

import (
	"errors"
	"testing"
	"time"

	"local-events-aggregator/internal/models"
)

var testNow = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

func mumbaiContext() Context {
	return Context{City: "Mumbai", Region: "Maharashtra", Country: "IN", Now: testNow}
}

func TestNormalizeTicketing(t *testing.T) {
	n := New(Config{})
	c := models.CandidateEvent{
		Source:     models.SourceTicketing,
		ExternalID: "tm-123",
		Payload: models.TicketingPayload{
			Name:      "  Arijit   Singh Live ",
			Info:      "Concert",
			LocalDate: "2025-03-15",
			LocalTime: "19:30:00",
			VenueName: "NSCI Dome",
			City:      "Mumbai",
			Latitude:  models.Float64Ptr(19.0),
			Longitude: models.Float64Ptr(72.8),
			PriceMin:  models.Float64Ptr(1500),
			PriceMax:  models.Float64Ptr(5000),
			Currency:  "INR",
			Promoter:  "BookMyShow",
			Segment:   "Music",
		},
	}

	e, err := n.Normalize(c, mumbaiContext())
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if e.Title != "Arijit Singh Live" {
		t.Errorf("Title = %q", e.Title)
	}
	if e.Price != "₹1500 - ₹5000" {
		t.Errorf("Price = %q", e.Price)
	}
	if e.Category != "music" {
		t.Errorf("Category = %q", e.Category)
	}
	if e.EventDate != "2025-03-15" {
		t.Errorf("EventDate = %q", e.EventDate)
	}
	if name, _ := e.StartDate.Zone(); name != "IST" {
		t.Errorf("expected Asia/Kolkata zone, got %s", name)
	}
	if e.Provenance != models.ProvenanceLive {
		t.Errorf("Provenance = %q", e.Provenance)
	}
	if e.AIGenerated {
		t.Error("ticketing event must not be AI generated")
	}
	if got := e.ExpiresAt.Sub(testNow); got != DefaultConfig().APITTL {
		t.Errorf("expiry offset = %v", got)
	}
	if e.PK != "EVENT#ticketing#tm-123" || e.DedupKey != "DUP#2025-03-15#arijit singh live" {
		t.Errorf("keys not populated: PK=%q DedupKey=%q", e.PK, e.DedupKey)
	}
	if e.Region != "Maharashtra" || e.Country != "IN" {
		t.Errorf("region/country not filled from context: %q %q", e.Region, e.Country)
	}
}

func TestNormalizeDefaultsPriceBySource(t *testing.T) {
	n := New(Config{})
	ctx := mumbaiContext()

	tests := []struct {
		name      string
		candidate models.CandidateEvent
		want      string
	}{
		{
			name: "ticketing without price",
			candidate: models.CandidateEvent{Source: models.SourceTicketing, ExternalID: "a",
				Payload: models.TicketingPayload{Name: "Show", LocalDate: "2025-03-15", VenueName: "Hall"}},
			want: PriceCheckWebsite,
		},
		{
			name: "ticketing with zero price",
			candidate: models.CandidateEvent{Source: models.SourceTicketing, ExternalID: "b",
				Payload: models.TicketingPayload{Name: "Show", LocalDate: "2025-03-15", VenueName: "Hall",
					PriceMin: models.Float64Ptr(0), PriceMax: models.Float64Ptr(0)}},
			want: PriceFree,
		},
		{
			name: "scrape without price",
			candidate: models.CandidateEvent{Source: models.SourceWebScrape, ExternalID: "c",
				Payload: models.ScrapedPayload{Title: "Open Mic", StartsAt: testNow.Add(48 * time.Hour)}},
			want: PriceCheckWebsite,
		},
		{
			name: "generated without price",
			candidate: models.CandidateEvent{Source: models.SourceAIGenerated, ExternalID: "d",
				Payload: models.GeneratedPayload{Title: "Heritage Walk", Date: "2025-03-16", VenueName: "Fort"}},
			want: PriceFree,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := n.Normalize(tt.candidate, ctx)
			if err != nil {
				t.Fatalf("Normalize returned error: %v", err)
			}
			if e.Price != tt.want {
				t.Errorf("Price = %q, want %q", e.Price, tt.want)
			}
		})
	}
}

func TestNormalizeRejectsInvalidCandidates(t *testing.T) {
	n := New(Config{})

	tests := []struct {
		name      string
		candidate models.CandidateEvent
		ctx       Context
		wantErr   error
	}{
		{
			name: "blank title",
			candidate: models.CandidateEvent{Source: models.SourceWebScrape, ExternalID: "x",
				Payload: models.ScrapedPayload{Title: "   ", StartsAt: testNow}},
			ctx:     mumbaiContext(),
			wantErr: ErrMissingTitle,
		},
		{
			name: "no location and no city",
			candidate: models.CandidateEvent{Source: models.SourceWebScrape, ExternalID: "x",
				Payload: models.ScrapedPayload{Title: "Gig", StartsAt: testNow}},
			ctx:     Context{Now: testNow},
			wantErr: ErrMissingLocation,
		},
		{
			name: "unparseable generated date",
			candidate: models.CandidateEvent{Source: models.SourceAIGenerated, ExternalID: "x",
				Payload: models.GeneratedPayload{Title: "Gig", Date: "next friday"}},
			ctx:     mumbaiContext(),
			wantErr: ErrMissingStart,
		},
		{
			name: "payload from a different source",
			candidate: models.CandidateEvent{Source: models.SourceTicketing, ExternalID: "x",
				Payload: models.ScrapedPayload{Title: "Gig", StartsAt: testNow}},
			ctx:     mumbaiContext(),
			wantErr: ErrPayloadMismatch,
		},
		{
			name: "missing external id",
			candidate: models.CandidateEvent{Source: models.SourceWebScrape,
				Payload: models.ScrapedPayload{Title: "Gig", StartsAt: testNow}},
			ctx:     mumbaiContext(),
			wantErr: ErrMissingExternalID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := n.Normalize(tt.candidate, tt.ctx)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if e != nil {
				t.Errorf("expected no event on error, got %+v", e)
			}
		})
	}
}

func TestNormalizeAIFields(t *testing.T) {
	n := New(Config{})
	ctx := mumbaiContext()

	ai := models.CandidateEvent{
		Source:     models.SourceAIGenerated,
		Provenance: models.ProvenanceLive,
		ExternalID: "ai-1",
		Payload: models.GeneratedPayload{
			Title: "Sunset Yoga", Date: "2025-03-12", Time: "6:30 PM", VenueName: "Juhu Beach", BatchID: "batch-9",
		},
	}
	e, err := n.Normalize(ai, ctx)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if !e.AIGenerated || e.GenerationBatchID != "batch-9" {
		t.Errorf("AI fields not stamped: %v %q", e.AIGenerated, e.GenerationBatchID)
	}
	if e.Provenance != models.ProvenanceAIGenerated {
		t.Errorf("generated events always carry ai provenance, got %q", e.Provenance)
	}
	if e.StartDate.Hour() != 18 || e.StartDate.Minute() != 30 {
		t.Errorf("StartDate = %v", e.StartDate)
	}
	if got := e.ExpiresAt.Sub(testNow); got != DefaultConfig().AITTL {
		t.Errorf("expiry offset = %v", got)
	}

	scrape := models.CandidateEvent{
		Source:     models.SourceCountryScrape,
		Provenance: models.ProvenanceTemplateFallback,
		ExternalID: "s-1",
		Payload:    models.ScrapedPayload{Title: "Comedy Night", StartsAt: testNow.Add(24 * time.Hour), VenueName: "Canvas Laugh Club"},
	}
	e, err = n.Normalize(scrape, ctx)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if e.AIGenerated || e.GenerationBatchID != "" {
		t.Error("non-AI events must not carry AI fields")
	}
	if e.Provenance != models.ProvenanceTemplateFallback {
		t.Errorf("Provenance = %q", e.Provenance)
	}
	if got := e.ExpiresAt.Sub(testNow); got != DefaultConfig().ScrapeTTL {
		t.Errorf("expiry offset = %v", got)
	}
}

func TestNormalizeDerivesCoordinatesNearCenter(t *testing.T) {
	n := New(Config{MaxSpreadKm: 5})
	ctx := mumbaiContext()
	center, _ := models.LookupCityCenter("Mumbai")

	var first *models.Event
	for i := 0; i < 20; i++ {
		ctx.Index = i
		c := models.CandidateEvent{
			Source:     models.SourceWebScrape,
			ExternalID: models.GenerateExternalID("web", "event", string(rune('a'+i))),
			Payload:    models.ScrapedPayload{Title: "Event", StartsAt: testNow.Add(time.Hour)},
		}
		e, err := n.Normalize(c, ctx)
		if err != nil {
			t.Fatalf("Normalize returned error: %v", err)
		}
		if !e.HasCoordinates() || !e.CoordinatesDerived {
			t.Fatal("expected derived coordinates")
		}
		d := models.HaversineKm(center.Latitude, center.Longitude, *e.Latitude, *e.Longitude)
		if d > 5.1 {
			t.Errorf("derived point %d is %.2fkm from center", i, d)
		}
		if i == 0 {
			first = e
		}
	}

	// Deterministic for identical input
	ctx.Index = 0
	again, _ := n.Normalize(models.CandidateEvent{
		Source:     models.SourceWebScrape,
		ExternalID: first.ExternalID,
		Payload:    models.ScrapedPayload{Title: "Event", StartsAt: testNow.Add(time.Hour)},
	}, ctx)
	if *again.Latitude != *first.Latitude || *again.Longitude != *first.Longitude {
		t.Error("coordinate derivation is not deterministic")
	}
}

func TestNormalizeUnknownCityLeavesCoordinatesEmpty(t *testing.T) {
	n := New(Config{})
	e, err := n.Normalize(models.CandidateEvent{
		Source:     models.SourceWebScrape,
		ExternalID: "w-1",
		Payload:    models.ScrapedPayload{Title: "Fair", StartsAt: testNow},
	}, Context{City: "Nowhereville", Now: testNow})
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if e.HasCoordinates() || e.CoordinatesDerived {
		t.Error("expected no coordinates for an unknown city")
	}
	if e.GeoCell != "" {
		t.Errorf("GeoCell = %q", e.GeoCell)
	}
}

func TestFormatPriceRange(t *testing.T) {
	tests := []struct {
		name     string
		min, max *float64
		currency string
		want     string
	}{
		{"missing", nil, nil, "USD", PriceCheckWebsite},
		{"single", models.Float64Ptr(25), models.Float64Ptr(25), "USD", "$25"},
		{"range", models.Float64Ptr(10), models.Float64Ptr(45.5), "USD", "$10 - $45.5"},
		{"only max", nil, models.Float64Ptr(30), "GBP", "£30"},
		{"unknown currency", models.Float64Ptr(5), nil, "chf", "5 CHF"},
		{"free", models.Float64Ptr(0), nil, "", PriceFree},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatPriceRange(tt.min, tt.max, tt.currency, PriceCheckWebsite); got != tt.want {
				t.Errorf("formatPriceRange() = %q, want %q", got, tt.want)
			}
		})
	}
}
