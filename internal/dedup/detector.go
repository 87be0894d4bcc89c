package dedup

import (
	"context"
	"fmt"
	"log"

	"local-events-aggregator/internal/models"
)

// Lookup is the store-side duplicate query. It returns the ID of the most
// recently created matching event, or "" when there is none.
type Lookup interface {
	FindDuplicateEvent(ctx context.Context, q Query) (string, error)
}

// FailurePolicy decides what a failed lookup means
type FailurePolicy string

const (
	// FailOpen treats a failed lookup as "not a duplicate" and lets the
	// insert proceed. Duplicates may leak while the store is degraded.
	FailOpen FailurePolicy = "fail_open"
	// FailClosed treats a failed lookup as "duplicate" and skips the insert.
	// Events may be lost while the store is degraded.
	FailClosed FailurePolicy = "fail_closed"
)

// ParseFailurePolicy validates a configured policy name
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case FailOpen, FailClosed:
		return FailurePolicy(s), nil
	case "":
		return FailOpen, nil
	}
	return "", fmt.Errorf("unknown dedup failure policy %q", s)
}

// Decision is the outcome of a duplicate check
type Decision struct {
	IsDuplicate bool
	DuplicateOf string // existing event ID, empty when the lookup failed
	LookupErr   error  // set when the decision came from the failure policy
}

// Detector checks one candidate at a time against the persistent store
type Detector struct {
	lookup  Lookup
	failure FailurePolicy
}

// NewDetector creates a detector over a store lookup
func NewDetector(lookup Lookup, failure FailurePolicy) *Detector {
	if failure == "" {
		failure = FailOpen
	}
	return &Detector{lookup: lookup, failure: failure}
}

// FailurePolicy returns the configured failure policy
func (d *Detector) FailurePolicy() FailurePolicy {
	return d.failure
}

// FindDuplicate checks whether a materially identical event is already stored
func (d *Detector) FindDuplicate(ctx context.Context, e *models.Event) Decision {
	q := QueryFor(e)
	if q.TitleKey() == "" || q.EventDate == "" {
		return Decision{}
	}

	id, err := d.lookup.FindDuplicateEvent(ctx, q)
	if err != nil {
		log.Printf("[DEDUP] Lookup failed for %q on %s, applying %s: %v", e.Title, e.EventDate, d.failure, err)
		return Decision{IsDuplicate: d.failure == FailClosed, LookupErr: err}
	}
	if id == "" {
		return Decision{}
	}
	return Decision{IsDuplicate: true, DuplicateOf: id}
}
