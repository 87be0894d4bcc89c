package sources

import (
	"fmt"
	"log"
	"sort"

	"local-events-aggregator/internal/config"
	"local-events-aggregator/internal/models"
	"local-events-aggregator/internal/services"
)

// Registry holds the configured adapters and the reason each missing one
// is unavailable
type Registry struct {
	adapters map[models.Source]Adapter
	disabled map[models.Source]error
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[models.Source]Adapter),
		disabled: make(map[models.Source]error),
	}
}

// Register adds an adapter, replacing any earlier one for the same source
func (r *Registry) Register(a Adapter) {
	r.adapters[a.Source()] = a
	delete(r.disabled, a.Source())
}

// Disable records why a source is unavailable
func (r *Registry) Disable(src models.Source, reason error) {
	delete(r.adapters, src)
	r.disabled[src] = reason
}

// Get returns the adapter of a source or the reason it is unavailable
func (r *Registry) Get(src models.Source) (Adapter, error) {
	if a, ok := r.adapters[src]; ok {
		return a, nil
	}
	if reason, ok := r.disabled[src]; ok {
		return nil, reason
	}
	return nil, fmt.Errorf("%w: %s", ErrNotConfigured, src)
}

// Resolve returns the adapters for the requested sources in request order,
// or for every configured source in default order when none are requested.
// Unavailable sources are reported in unavailable.
func (r *Registry) Resolve(requested []models.Source) (adapters []Adapter, unavailable map[models.Source]error) {
	if len(requested) == 0 {
		requested = models.AllSources
	}
	unavailable = make(map[models.Source]error)
	seen := make(map[models.Source]bool)
	for _, src := range requested {
		if seen[src] {
			continue
		}
		seen[src] = true
		a, err := r.Get(src)
		if err != nil {
			unavailable[src] = err
			continue
		}
		adapters = append(adapters, a)
	}
	return adapters, unavailable
}

// Configured lists the sources with an adapter, in default order
func (r *Registry) Configured() []models.Source {
	var out []models.Source
	for _, src := range models.AllSources {
		if _, ok := r.adapters[src]; ok {
			out = append(out, src)
		}
	}
	return out
}

// Disabled lists the unavailable sources, sorted
func (r *Registry) Disabled() []models.Source {
	out := make([]models.Source, 0, len(r.disabled))
	for src := range r.disabled {
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// BuildRegistry creates the provider clients named by the configuration.
// A provider without credentials is disabled, not a startup failure.
func BuildRegistry(cfg *config.Config) *Registry {
	reg := NewRegistry()

	if cfg.TicketmasterAPIKey != "" {
		reg.Register(NewTicketingAdapter(services.NewTicketmasterClient(cfg.TicketmasterAPIKey)))
	} else {
		reg.Disable(models.SourceTicketing, fmt.Errorf("%w: TICKETMASTER_API_KEY is not set", ErrNotConfigured))
	}

	if cfg.GooglePlacesAPIKey != "" {
		client, err := services.NewPlacesClient(cfg.GooglePlacesAPIKey)
		if err != nil {
			reg.Disable(models.SourcePlaces, fmt.Errorf("%w: %v", ErrNotConfigured, err))
		} else {
			reg.Register(NewPlacesAdapter(client))
		}
	} else {
		reg.Disable(models.SourcePlaces, fmt.Errorf("%w: GOOGLE_PLACES_API_KEY is not set", ErrNotConfigured))
	}

	if cfg.FirecrawlAPIKey != "" {
		client, err := services.NewFireCrawlClient(cfg.FirecrawlAPIKey)
		if err != nil {
			reg.Disable(models.SourceCountryScrape, fmt.Errorf("%w: %v", ErrNotConfigured, err))
		} else {
			reg.Register(NewCountryScrapeAdapter(client, cfg.Targets.Countries))
		}
	} else {
		reg.Disable(models.SourceCountryScrape, fmt.Errorf("%w: FIRECRAWL_API_KEY is not set", ErrNotConfigured))
	}

	// The reader works without a key at a lower rate limit
	reg.Register(NewWebScrapeAdapter(services.NewJinaClient(cfg.JinaAPIKey), cfg.Targets.WebPages, cfg.WebScrapeURLTemplate, cfg.Targets.Countries))

	if cfg.OpenAIAPIKey != "" {
		reg.Register(NewAIAdapter(services.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)))
	} else {
		reg.Disable(models.SourceAIGenerated, fmt.Errorf("%w: OPENAI_API_KEY is not set", ErrNotConfigured))
	}

	for _, src := range reg.Disabled() {
		log.Printf("[SOURCES] %s disabled: %v", src, reg.disabled[src])
	}
	log.Printf("[SOURCES] Configured sources: %v", reg.Configured())
	return reg
}
