package models

import (
	"strings"
	"time"
)

// Scraping status constants for region cache entries
const (
	ScrapingStatusIdle      = "idle"
	ScrapingStatusRunning   = "running"
	ScrapingStatusCompleted = "completed"
	ScrapingStatusFailed    = "failed"
)

// Region is the (country, region?, city?) key used for scheduling and
// caching scrape passes. Empty Region and City mean "whole country".
type Region struct {
	Country string `json:"country" yaml:"country"`
	Region  string `json:"region,omitempty" yaml:"region"`
	City    string `json:"city,omitempty" yaml:"city"`
}

// CacheKey returns the human-readable composite key, e.g. "in/maharashtra/mumbai".
// Missing parts are written as "*".
func (r Region) CacheKey() string {
	part := func(s string) string {
		s = strings.Join(strings.Fields(strings.ToLower(s)), "-")
		if s == "" {
			return "*"
		}
		return s
	}
	return part(r.Country) + "/" + part(r.Region) + "/" + part(r.City)
}

// String implements fmt.Stringer
func (r Region) String() string {
	return r.CacheKey()
}

// IsCountryWide reports whether the key covers a whole country
func (r Region) IsCountryWide() bool {
	return r.Region == "" && r.City == ""
}

// RegionCacheEntry records the scrape history of one region
type RegionCacheEntry struct {
	// Primary Keys
	PK string `json:"-" dynamodbav:"PK"` // REGION#{cache_key}
	SK string `json:"-" dynamodbav:"SK"` // CACHE

	CacheKey string `json:"cache_key" dynamodbav:"cache_key"`
	Country  string `json:"country" dynamodbav:"country"`
	Region   string `json:"region,omitempty" dynamodbav:"region,omitempty"`
	City     string `json:"city,omitempty" dynamodbav:"city,omitempty"`

	EventCount          int       `json:"event_count" dynamodbav:"event_count"`
	LastScrapedAt       time.Time `json:"last_scraped_at" dynamodbav:"last_scraped_at"`
	NextScrapeAt        time.Time `json:"next_scrape_at" dynamodbav:"next_scrape_at"`
	ScrapingStatus      string    `json:"scraping_status" dynamodbav:"scraping_status"`
	LastError           string    `json:"last_error,omitempty" dynamodbav:"last_error,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures" dynamodbav:"consecutive_failures"`
	UpdatedAt           time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

// NewRegionCacheEntry creates an idle entry for a region
func NewRegionCacheEntry(r Region) *RegionCacheEntry {
	return &RegionCacheEntry{
		PK:             CreateRegionPK(r),
		SK:             SortKeyCache,
		CacheKey:       r.CacheKey(),
		Country:        r.Country,
		Region:         r.Region,
		City:           r.City,
		ScrapingStatus: ScrapingStatusIdle,
	}
}

func CreateRegionPK(r Region) string {
	return "REGION#" + r.CacheKey()
}
