package models

import "time"

// AnalyticsEntry records the outcome of one adapter invocation
type AnalyticsEntry struct {
	// Primary Keys
	PK string `json:"-" dynamodbav:"PK"` // ANALYTICS#{date}
	SK string `json:"-" dynamodbav:"SK"` // {timestamp}#{source_platform}#{city}

	SourcePlatform string    `json:"source_platform" dynamodbav:"source_platform"`
	Country        string    `json:"country" dynamodbav:"country"`
	City           string    `json:"city" dynamodbav:"city"`
	EventsScraped  int       `json:"events_scraped" dynamodbav:"events_scraped"`
	EventsInserted int       `json:"events_inserted" dynamodbav:"events_inserted"`
	APICallsMade   int       `json:"api_calls_made" dynamodbav:"api_calls_made"`
	Success        bool      `json:"success" dynamodbav:"success"`
	ResponseTimeMS int64     `json:"response_time_ms" dynamodbav:"response_time_ms"`
	ErrorMessage   string    `json:"error_message,omitempty" dynamodbav:"error_message,omitempty"`
	RecordedAt     time.Time `json:"recorded_at" dynamodbav:"recorded_at"`
	TTL            int64     `json:"-" dynamodbav:"ttl"`
}

// PopulateKeys derives the primary keys and retention from the entry fields
func (a *AnalyticsEntry) PopulateKeys(retention time.Duration) {
	a.PK = "ANALYTICS#" + a.RecordedAt.UTC().Format("2006-01-02")
	a.SK = a.RecordedAt.UTC().Format(time.RFC3339Nano) + "#" + a.SourcePlatform + "#" + NormalizeCity(a.City)
	a.TTL = CalculateTTL(a.RecordedAt, retention)
}
