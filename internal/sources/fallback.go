package sources

import (
	"fmt"
	"time"

	"local-events-aggregator/internal/models"
)

type template struct {
	title       string
	description string
	venue       string
	category    string
	price       string // %s is the currency symbol, empty means free
	dayOffset   int
	hour        int
}

// Placeholder events used when a listing page yields nothing usable. They are
// tagged template_fallback so consumers can tell them from scraped listings.
var fallbackTemplates = []template{
	{"Live Music Night", "Local bands and singer-songwriters performing original sets.", "%s Social", "music", "%s500", 1, 20},
	{"Stand-up Comedy Open Mic", "New and regular comics try out fresh material.", "%s Comedy Club", "comedy", "%s300", 2, 21},
	{"Weekend Farmers Market", "Fresh produce, street food and handmade goods from local vendors.", "%s Central Park", "food", "", 3, 9},
	{"Community Art Walk", "A guided walk through galleries and street art in the city center.", "%s Art District", "arts", "", 4, 17},
}

// TemplateCandidates returns the fallback events of a city, dated over the
// next few days. External IDs depend only on city, template and date, so a
// repeated fallback on the same day inserts nothing new.
func TemplateCandidates(src models.Source, city, country, currencySymbol, pageURL string, now time.Time, loc *time.Location) []models.CandidateEvent {
	if city == "" {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	if currencySymbol == "" {
		currencySymbol = "$"
	}
	now = now.In(loc)

	out := make([]models.CandidateEvent, 0, len(fallbackTemplates))
	for _, t := range fallbackTemplates {
		day := now.AddDate(0, 0, t.dayOffset)
		start := time.Date(day.Year(), day.Month(), day.Day(), t.hour, 0, 0, 0, loc)
		price := "Free"
		if t.price != "" {
			price = fmt.Sprintf(t.price, currencySymbol)
		}
		out = append(out, models.CandidateEvent{
			Source:     src,
			Provenance: models.ProvenanceTemplateFallback,
			ExternalID: models.GenerateExternalID("template", city, t.title, start.Format("2006-01-02")),
			Payload: models.ScrapedPayload{
				Title:       t.title,
				Description: t.description,
				DateText:    start.Format("Mon, 02 Jan 2006 15:04"),
				StartsAt:    start,
				VenueName:   fmt.Sprintf(t.venue, city),
				PriceText:   price,
				PageURL:     pageURL,
				City:        city,
				Country:     country,
				Category:    t.category,
			},
		})
	}
	return out
}
