package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"local-events-aggregator/internal/models"
)

// ProviderPacing bounds how hard a provider is hit
type ProviderPacing struct {
	Delay         time.Duration `yaml:"delay"`           // pause after each call
	Timeout       time.Duration `yaml:"timeout"`         // hard bound on one call
	RatePerMinute float64       `yaml:"rate_per_minute"` // 0 = unlimited
	Burst         int           `yaml:"burst"`
}

// CountryProfile describes how to scrape a country's event listings
type CountryProfile struct {
	Country        string `yaml:"country"`
	URLTemplate    string `yaml:"url_template"` // %s is the city slug
	CurrencySymbol string `yaml:"currency_symbol"`
	Currency       string `yaml:"currency"`
	Timezone       string `yaml:"timezone"`
}

// Targets is the YAML-configurable part of the configuration
type Targets struct {
	Regions   []models.Region                  `yaml:"regions"`
	Pacing    map[models.Source]ProviderPacing `yaml:"pacing"`
	Countries []CountryProfile                 `yaml:"countries"`
	WebPages  map[string]string                `yaml:"web_pages"` // city → listing URL
}

// DefaultPacing is used for providers missing from the targets file
func DefaultPacing() map[models.Source]ProviderPacing {
	return map[models.Source]ProviderPacing{
		models.SourceTicketing:     {Delay: time.Second, Timeout: 20 * time.Second, RatePerMinute: 60, Burst: 1},
		models.SourcePlaces:        {Delay: time.Second, Timeout: 20 * time.Second, RatePerMinute: 60, Burst: 1},
		models.SourceCountryScrape: {Delay: 2 * time.Second, Timeout: 45 * time.Second, RatePerMinute: 20, Burst: 1},
		models.SourceWebScrape:     {Delay: 2 * time.Second, Timeout: 45 * time.Second, RatePerMinute: 20, Burst: 1},
		models.SourceAIGenerated:   {Delay: 3 * time.Second, Timeout: 60 * time.Second, RatePerMinute: 10, Burst: 1},
	}
}

// DefaultCountries ships the India profile
func DefaultCountries() []CountryProfile {
	return []CountryProfile{
		{
			Country:        "IN",
			URLTemplate:    "https://in.bookmyshow.com/explore/events-%s",
			CurrencySymbol: "₹",
			Currency:       "INR",
			Timezone:       "Asia/Kolkata",
		},
	}
}

// DefaultTargets returns the built-in targets used when no file is configured
func DefaultTargets() Targets {
	return Targets{
		Regions: []models.Region{
			{Country: "IN", Region: "Maharashtra", City: "Mumbai"},
			{Country: "IN", Region: "Karnataka", City: "Bangalore"},
			{Country: "IN", Region: "Delhi", City: "Delhi"},
			{Country: "US", Region: "New York", City: "New York"},
		},
		Pacing:    DefaultPacing(),
		Countries: DefaultCountries(),
		WebPages:  map[string]string{},
	}
}

// LoadTargets reads a targets YAML file, filling anything it omits with defaults
func LoadTargets(path string) (Targets, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Targets{}, fmt.Errorf("reading targets file: %w", err)
	}
	return ParseTargets(b)
}

// ParseTargets decodes targets YAML
func ParseTargets(b []byte) (Targets, error) {
	var t Targets
	if err := yaml.Unmarshal(b, &t); err != nil {
		return Targets{}, fmt.Errorf("parsing targets file: %w", err)
	}

	for i, r := range t.Regions {
		if r.Country == "" {
			return Targets{}, fmt.Errorf("parsing targets file: region %d has no country", i)
		}
	}

	def := DefaultTargets()
	if len(t.Regions) == 0 {
		t.Regions = def.Regions
	}
	if t.Pacing == nil {
		t.Pacing = map[models.Source]ProviderPacing{}
	}
	for src, p := range def.Pacing {
		cur, ok := t.Pacing[src]
		if !ok {
			t.Pacing[src] = p
			continue
		}
		if cur.Timeout <= 0 {
			cur.Timeout = p.Timeout
		}
		if cur.Burst <= 0 {
			cur.Burst = 1
		}
		t.Pacing[src] = cur
	}
	if len(t.Countries) == 0 {
		t.Countries = def.Countries
	}
	if t.WebPages == nil {
		t.WebPages = map[string]string{}
	}
	return t, nil
}

// PacingFor returns the pacing of a provider, falling back to the defaults
func (t Targets) PacingFor(source models.Source) ProviderPacing {
	if p, ok := t.Pacing[source]; ok {
		return p
	}
	if p, ok := DefaultPacing()[source]; ok {
		return p
	}
	return ProviderPacing{Timeout: 30 * time.Second, Burst: 1}
}

// CountryProfile returns the scraping profile of a country
func (t Targets) CountryProfile(country string) (CountryProfile, bool) {
	for _, c := range t.Countries {
		if strings.EqualFold(c.Country, country) {
			return c, true
		}
	}
	return CountryProfile{}, false
}
