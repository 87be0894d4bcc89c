package models

import (
	"fmt"
	"time"
)

// Fetch job status constants
const (
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusSkipped   = "skipped"
)

// Fetch job mode constants
const (
	JobModeSingle = "single"
	JobModeBatch  = "batch"
)

// FetchJob is the audit record of one orchestration pass over a region
type FetchJob struct {
	// Primary Keys
	PK string `json:"-" dynamodbav:"PK"` // JOB#{job_id}
	SK string `json:"-" dynamodbav:"SK"` // JOB

	JobID       string   `json:"job_id" dynamodbav:"job_id"`
	LocationKey string   `json:"location_key" dynamodbav:"location_key"`
	Mode        string   `json:"mode" dynamodbav:"mode"`
	Status      string   `json:"status" dynamodbav:"status"`
	Sources     []string `json:"sources" dynamodbav:"sources"`

	EventsFound    int `json:"events_found" dynamodbav:"events_found"`
	EventsInserted int `json:"events_inserted" dynamodbav:"events_inserted"`
	Duplicates     int `json:"duplicates" dynamodbav:"duplicates"`

	CostEstimateUSD   float64 `json:"cost_estimate_usd" dynamodbav:"cost_estimate_usd"`
	GenerationBatchID string  `json:"generation_batch_id,omitempty" dynamodbav:"generation_batch_id,omitempty"`

	StartedAt   time.Time `json:"started_at" dynamodbav:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitempty" dynamodbav:"completed_at,omitempty"`
	Error       string    `json:"error,omitempty" dynamodbav:"error,omitempty"`
	TTL         int64     `json:"-" dynamodbav:"ttl"`

	// GSI Keys
	LocationStartedKey string `json:"-" dynamodbav:"LocationStartedKey,omitempty"` // LOC#{location_key}
}

// Lease is a short-lived claim on a location key. At most one unexpired
// lease exists per key.
type Lease struct {
	PK string `json:"-" dynamodbav:"PK"` // LEASE#{location_key}
	SK string `json:"-" dynamodbav:"SK"` // LEASE

	LocationKey string    `json:"location_key" dynamodbav:"location_key"`
	Owner       string    `json:"owner" dynamodbav:"owner"`
	AcquiredAt  time.Time `json:"acquired_at" dynamodbav:"acquired_at"`
	ExpiresAt   int64     `json:"expires_at" dynamodbav:"expires_at"` // epoch milliseconds
	TTL         int64     `json:"-" dynamodbav:"ttl"`
}

func CreateJobPK(jobID string) string {
	return "JOB#" + jobID
}

func CreateLeasePK(locationKey string) string {
	return "LEASE#" + locationKey
}

func GenerateLocationStartedKey(locationKey string) string {
	return "LOC#" + locationKey
}

// CalculateTTL returns the epoch second at which an item created at from
// should expire
func CalculateTTL(from time.Time, retention time.Duration) int64 {
	return from.Add(retention).Unix()
}

// GenerateJobID creates a readable job id for a location key
func GenerateJobID(locationKey string, at time.Time, suffix string) string {
	return fmt.Sprintf("%s-%s-%s", locationKey, at.UTC().Format("20060102-150405"), suffix)
}
