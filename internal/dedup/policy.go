package dedup

import (
	"math"

	"local-events-aggregator/internal/models"
)

// DefaultCoordinateTolerance is the per-axis tolerance in degrees under which
// two events are considered to be at the same place (roughly 500m)
const DefaultCoordinateTolerance = 0.005

// Query carries the content signals of a candidate event. It mirrors the
// find_duplicate_event(title, event_date, location_name, lat, lng, organizer)
// lookup.
type Query struct {
	Title        string
	EventDate    string
	LocationName string
	Latitude     *float64
	Longitude    *float64
	Organizer    string
	// Derived coordinates are never compared for proximity
	CoordinatesDerived bool
}

// QueryFor builds the lookup query of a normalized event
func QueryFor(e *models.Event) Query {
	return Query{
		Title:        e.Title,
		EventDate:    e.EventDate,
		LocationName: e.LocationName,
		Latitude:     e.Latitude,
		Longitude:    e.Longitude,
		Organizer:    e.Organizer,

		CoordinatesDerived: e.CoordinatesDerived,
	}
}

// TitleKey returns the normalized title the store indexes on
func (q Query) TitleKey() string {
	return NormalizeTitle(q.Title)
}

// Policy decides whether two records describe the same real-world event.
//
// A match needs the same normalized title and the same calendar date, plus
// at least one of a location match (same venue name, or coordinates within
// tolerance) or an organizer match. Coordinates derived from a city center
// say nothing about the venue and never count as a location match. Organizers present on both sides and
// different veto the match; an organizer missing on either side is ignored.
type Policy struct {
	CoordinateTolerance float64
}

// DefaultPolicy returns the policy with the default coordinate tolerance
func DefaultPolicy() Policy {
	return Policy{CoordinateTolerance: DefaultCoordinateTolerance}
}

// Matches reports whether existing is a duplicate of the queried candidate
func (p Policy) Matches(q Query, existing *models.Event) bool {
	if existing == nil {
		return false
	}
	titleKey := q.TitleKey()
	if titleKey == "" {
		return false
	}
	existingKey := existing.TitleKey
	if existingKey == "" {
		existingKey = NormalizeTitle(existing.Title)
	}
	if titleKey != existingKey {
		return false
	}
	if q.EventDate == "" || q.EventDate != existing.EventDate {
		return false
	}

	orgA, orgB := normalizeName(q.Organizer), normalizeName(existing.Organizer)
	if orgA != "" && orgB != "" && orgA != orgB {
		return false
	}
	organizerMatch := orgA != "" && orgA == orgB

	return organizerMatch || p.locationMatches(q, existing)
}

func (p Policy) locationMatches(q Query, existing *models.Event) bool {
	nameA, nameB := normalizeName(q.LocationName), normalizeName(existing.LocationName)
	if nameA != "" && nameA == nameB {
		return true
	}
	if q.Latitude == nil || q.Longitude == nil || !existing.HasCoordinates() {
		return false
	}
	if q.CoordinatesDerived || existing.CoordinatesDerived {
		return false
	}
	tol := p.CoordinateTolerance
	if tol <= 0 {
		tol = DefaultCoordinateTolerance
	}
	return math.Abs(*q.Latitude-*existing.Latitude) <= tol &&
		math.Abs(*q.Longitude-*existing.Longitude) <= tol
}

// Best returns the most recently created matching record, or nil. Ties on
// created_at are broken by ID so the choice is deterministic.
func (p Policy) Best(q Query, existing []models.Event) *models.Event {
	var best *models.Event
	for i := range existing {
		e := &existing[i]
		if !p.Matches(q, e) {
			continue
		}
		if best == nil || e.CreatedAt.After(best.CreatedAt) ||
			(e.CreatedAt.Equal(best.CreatedAt) && e.ID > best.ID) {
			best = e
		}
	}
	return best
}
