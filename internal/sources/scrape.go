package sources

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"local-events-aggregator/internal/config"
	"local-events-aggregator/internal/models"
	"local-events-aggregator/internal/normalize"
)

// MarkdownScraper renders a page to markdown
type MarkdownScraper interface {
	ScrapeMarkdown(ctx context.Context, url string) (string, error)
}

// ContentReader fetches the readable content of a page
type ContentReader interface {
	ExtractContent(ctx context.Context, url string) (string, error)
}

// CountryScrapeAdapter scrapes a country's ticketing site through Firecrawl
type CountryScrapeAdapter struct {
	scraper   MarkdownScraper
	countries []config.CountryProfile
}

// NewCountryScrapeAdapter creates the country scrape adapter
func NewCountryScrapeAdapter(scraper MarkdownScraper, countries []config.CountryProfile) *CountryScrapeAdapter {
	return &CountryScrapeAdapter{scraper: scraper, countries: countries}
}

func (a *CountryScrapeAdapter) Source() models.Source {
	return models.SourceCountryScrape
}

func (a *CountryScrapeAdapter) Fetch(ctx context.Context, req Request) (Result, error) {
	profile, ok := findProfile(a.countries, req.Region.Country)
	if !ok {
		return Result{}, fmt.Errorf("%w: no scraping profile for country %q", ErrNotConfigured, req.Region.Country)
	}
	if req.Region.City == "" {
		return Result{}, fmt.Errorf("country scrape needs a city")
	}

	url := fmt.Sprintf(profile.URLTemplate, citySlug(req.Region.City))
	markdown, err := a.scraper.ScrapeMarkdown(ctx, url)
	if err != nil {
		return Result{APICalls: 1}, fmt.Errorf("scraping %s: %w", url, err)
	}

	page := scrapedPage{
		source:         a.Source(),
		url:            url,
		city:           req.Region.City,
		country:        req.Region.Country,
		currency:       profile.Currency,
		currencySymbol: profile.CurrencySymbol,
		loc:            normalize.ResolveLocation(profile.Timezone, req.Region.City),
	}
	return Result{Candidates: page.candidates(markdown, req.now()), APICalls: 1}, nil
}

// WebScrapeAdapter reads a city listing page through the Jina reader
type WebScrapeAdapter struct {
	reader      ContentReader
	pages       map[string]string
	urlTemplate string
	countries   []config.CountryProfile
}

// NewWebScrapeAdapter creates the generic web scrape adapter. pages maps a
// city to its listing URL; other cities use urlTemplate with the city slug.
func NewWebScrapeAdapter(reader ContentReader, pages map[string]string, urlTemplate string, countries []config.CountryProfile) *WebScrapeAdapter {
	normalized := make(map[string]string, len(pages))
	for city, url := range pages {
		normalized[models.NormalizeCity(city)] = url
	}
	return &WebScrapeAdapter{reader: reader, pages: normalized, urlTemplate: urlTemplate, countries: countries}
}

func (a *WebScrapeAdapter) Source() models.Source {
	return models.SourceWebScrape
}

func (a *WebScrapeAdapter) Fetch(ctx context.Context, req Request) (Result, error) {
	if req.Region.City == "" {
		return Result{}, fmt.Errorf("web scrape needs a city")
	}
	url, ok := a.pages[models.NormalizeCity(req.Region.City)]
	if !ok {
		if a.urlTemplate == "" {
			return Result{}, fmt.Errorf("%w: no listing page for %s", ErrNotConfigured, req.Region.City)
		}
		url = fmt.Sprintf(a.urlTemplate, citySlug(req.Region.City))
	}

	content, err := a.reader.ExtractContent(ctx, url)
	if err != nil {
		return Result{APICalls: 1}, fmt.Errorf("reading %s: %w", url, err)
	}

	profile, _ := findProfile(a.countries, req.Region.Country)
	page := scrapedPage{
		source:         a.Source(),
		url:            url,
		city:           req.Region.City,
		country:        req.Region.Country,
		currency:       profile.Currency,
		currencySymbol: profile.CurrencySymbol,
		loc:            normalize.ResolveLocation(profile.Timezone, req.Region.City),
	}
	return Result{Candidates: page.candidates(content, req.now()), APICalls: 1}, nil
}

type scrapedPage struct {
	source         models.Source
	url            string
	city           string
	country        string
	currency       string
	currencySymbol string
	loc            *time.Location
}

// candidates extracts events from page content, falling back to template
// events when the page is not a listing or nothing could be extracted
func (p scrapedPage) candidates(content string, now time.Time) []models.CandidateEvent {
	tag := logTag(p.source)
	cleaned := CleanText(content)
	if IsNonEventPage(cleaned) {
		log.Printf("[%s] %s does not look like an event listing, using templates for %s", tag, p.url, p.city)
		return TemplateCandidates(p.source, p.city, p.country, p.currencySymbol, p.url, now, p.loc)
	}

	lines := LineExtractor{Location: p.loc, Now: now}.Extract(cleaned)
	if len(lines) == 0 {
		log.Printf("[%s] No events extracted from %s, using templates for %s", tag, p.url, p.city)
		return TemplateCandidates(p.source, p.city, p.country, p.currencySymbol, p.url, now, p.loc)
	}

	out := make([]models.CandidateEvent, 0, len(lines))
	for _, l := range lines {
		out = append(out, models.CandidateEvent{
			Source:     p.source,
			Provenance: models.ProvenanceLive,
			ExternalID: models.GenerateExternalID(string(p.source), p.city, l.Title, l.StartsAt.Format("2006-01-02"), l.VenueName),
			Payload: models.ScrapedPayload{
				Title:       l.Title,
				Description: l.Description,
				DateText:    l.DateText,
				StartsAt:    l.StartsAt,
				VenueName:   l.VenueName,
				PriceText:   l.PriceText,
				PageURL:     p.url,
				City:        p.city,
				Country:     p.country,
				Currency:    p.currency,
				Category:    l.Category,
			},
		})
	}
	log.Printf("[%s] Extracted %d events from %s", tag, len(out), p.url)
	return out
}

func findProfile(countries []config.CountryProfile, country string) (config.CountryProfile, bool) {
	return config.Targets{Countries: countries}.CountryProfile(country)
}

func citySlug(city string) string {
	return strings.ReplaceAll(models.NormalizeCity(city), " ", "-")
}
