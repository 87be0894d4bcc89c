package normalize

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"local-events-aggregator/internal/models"
)

const defaultEventHour = 19

// resolveLocation picks the event's time zone: the provider's zone name when
// valid, else the city's known zone, else UTC
func resolveLocation(tz, city string) *time.Location {
	if tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
	}
	if center, ok := models.LookupCityCenter(city); ok {
		if loc, err := time.LoadLocation(center.Timezone); err == nil {
			return loc
		}
	}
	return time.UTC
}

// ResolveLocation exposes zone resolution to adapters that parse local dates
func ResolveLocation(tz, city string) *time.Location {
	return resolveLocation(tz, city)
}

func parseTicketingStart(p models.TicketingPayload, loc *time.Location) (time.Time, error) {
	if p.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, p.DateTime); err == nil {
			return t.In(loc), nil
		}
	}
	return parseDateTime(p.LocalDate, p.LocalTime, loc)
}

// parseDateTime combines a YYYY-MM-DD date and an optional HH:MM[:SS] time
// in loc. A missing time defaults to the evening.
func parseDateTime(date, clock string, loc *time.Location) (time.Time, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return time.Time{}, ErrMissingStart
	}
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMissingStart, date)
	}

	clock = strings.TrimSpace(clock)
	if clock == "" {
		return day.Add(defaultEventHour * time.Hour), nil
	}
	for _, layout := range []string{"15:04:05", "15:04", "3:04 PM", "3:04PM", "3 PM", "3PM"} {
		if t, err := time.Parse(layout, strings.ToUpper(clock)); err == nil {
			return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), nil
		}
	}
	return day.Add(defaultEventHour * time.Hour), nil
}
