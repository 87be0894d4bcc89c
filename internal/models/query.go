package models

import "time"

// EventQuery selects live events from the store. City and the radius
// fields are alternatives; when both are set the radius wins.
type EventQuery struct {
	City      string
	Latitude  *float64
	Longitude *float64
	RadiusKm  float64

	Sources      []Source  // empty = any source
	CreatedSince time.Time // zero = any creation time
	Now          time.Time // events expiring at or before Now are excluded
	Limit        int       // 0 = no limit
}

// HasRadius reports whether the query is a radius query
func (q EventQuery) HasRadius() bool {
	return q.Latitude != nil && q.Longitude != nil && q.RadiusKm > 0
}

// Matches applies the non-index filters of the query to an event
func (q EventQuery) Matches(e *Event) bool {
	if !q.Now.IsZero() && e.IsExpired(q.Now) {
		return false
	}
	if len(q.Sources) > 0 {
		found := false
		for _, s := range q.Sources {
			if e.Source == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !q.CreatedSince.IsZero() && e.CreatedAt.Before(q.CreatedSince) {
		return false
	}
	if q.HasRadius() {
		if !e.HasCoordinates() {
			return false
		}
		return HaversineKm(*q.Latitude, *q.Longitude, *e.Latitude, *e.Longitude) <= q.RadiusKm
	}
	if q.City != "" {
		return NormalizeCity(e.CityName) == NormalizeCity(q.City)
	}
	return true
}
