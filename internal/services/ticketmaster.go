package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// TicketmasterClient queries the Ticketmaster Discovery API
type TicketmasterClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// TicketmasterQuery selects events near a point or in a city
type TicketmasterQuery struct {
	Latitude    *float64
	Longitude   *float64
	RadiusKm    float64
	City        string
	CountryCode string
	Size        int
	StartAfter  time.Time
}

// TicketmasterEvent is one event of a Discovery API search
type TicketmasterEvent struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	URL    string `json:"url"`
	Info   string `json:"info"`
	Note   string `json:"pleaseNote"`
	Images []struct {
		URL   string `json:"url"`
		Width int    `json:"width"`
	} `json:"images"`
	Dates struct {
		Start struct {
			LocalDate string `json:"localDate"`
			LocalTime string `json:"localTime"`
			DateTime  string `json:"dateTime"`
		} `json:"start"`
		Timezone string `json:"timezone"`
	} `json:"dates"`
	Classifications []struct {
		Segment struct {
			Name string `json:"name"`
		} `json:"segment"`
		Genre struct {
			Name string `json:"name"`
		} `json:"genre"`
	} `json:"classifications"`
	PriceRanges []struct {
		Min      float64 `json:"min"`
		Max      float64 `json:"max"`
		Currency string  `json:"currency"`
	} `json:"priceRanges"`
	Promoter struct {
		Name string `json:"name"`
	} `json:"promoter"`
	Embedded struct {
		Venues []TicketmasterVenue `json:"venues"`
	} `json:"_embedded"`
}

// TicketmasterVenue is an embedded venue. Coordinates arrive as strings.
type TicketmasterVenue struct {
	Name string `json:"name"`
	City struct {
		Name string `json:"name"`
	} `json:"city"`
	State struct {
		Name string `json:"name"`
	} `json:"state"`
	Country struct {
		CountryCode string `json:"countryCode"`
	} `json:"country"`
	Location struct {
		Latitude  string `json:"latitude"`
		Longitude string `json:"longitude"`
	} `json:"location"`
}

// Coordinates parses the venue location
func (v TicketmasterVenue) Coordinates() (*float64, *float64) {
	lat, err1 := strconv.ParseFloat(v.Location.Latitude, 64)
	lng, err2 := strconv.ParseFloat(v.Location.Longitude, 64)
	if err1 != nil || err2 != nil {
		return nil, nil
	}
	return &lat, &lng
}

type ticketmasterSearchResponse struct {
	Embedded struct {
		Events []TicketmasterEvent `json:"events"`
	} `json:"_embedded"`
}

// NewTicketmasterClient creates a Discovery API client
func NewTicketmasterClient(apiKey string) *TicketmasterClient {
	return &TicketmasterClient{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		baseURL:    "https://app.ticketmaster.com/discovery/v2",
		apiKey:     apiKey,
	}
}

// WithBaseURL points the client at another endpoint
func (c *TicketmasterClient) WithBaseURL(baseURL string) *TicketmasterClient {
	c.baseURL = baseURL
	return c
}

// SearchEvents returns upcoming events matching q, soonest first
func (c *TicketmasterClient) SearchEvents(ctx context.Context, q TicketmasterQuery) ([]TicketmasterEvent, error) {
	params := url.Values{}
	params.Set("apikey", c.apiKey)
	params.Set("sort", "date,asc")
	size := q.Size
	if size <= 0 {
		size = 50
	}
	params.Set("size", strconv.Itoa(size))
	if q.Latitude != nil && q.Longitude != nil {
		params.Set("latlong", fmt.Sprintf("%.4f,%.4f", *q.Latitude, *q.Longitude))
		radius := q.RadiusKm
		if radius <= 0 {
			radius = 25
		}
		params.Set("radius", strconv.Itoa(int(radius+0.5)))
		params.Set("unit", "km")
	} else if q.City != "" {
		params.Set("city", q.City)
	}
	if q.CountryCode != "" {
		params.Set("countryCode", q.CountryCode)
	}
	if !q.StartAfter.IsZero() {
		params.Set("startDateTime", q.StartAfter.UTC().Format("2006-01-02T15:04:05Z"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/events.json?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ticketmaster request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ticketmaster returned status %d: %s", resp.StatusCode, string(body))
	}

	var out ticketmasterSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode ticketmaster response: %w", err)
	}
	return out.Embedded.Events, nil
}
