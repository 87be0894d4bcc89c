package orchestrator

import (
	"context"
	"log"
	"time"

	"local-events-aggregator/internal/models"
)

// BatchRequest asks for passes over several regions
type BatchRequest struct {
	Regions []models.Region
	Sources []models.Source
	Force   bool
}

// RegionOutcome summarizes one region of a batch
type RegionOutcome struct {
	Region         models.Region `json:"region"`
	JobID          string        `json:"job_id,omitempty"`
	Source         string        `json:"source,omitempty"`
	EventsFound    int           `json:"events_found"`
	EventsInserted int           `json:"events_inserted"`
	Duplicates     int           `json:"duplicates"`
	Skipped        bool          `json:"skipped,omitempty"`
	Error          string        `json:"error,omitempty"`
}

// BatchSummary aggregates the passes of a batch. TotalEvents is the sum of
// the events inserted per region.
type BatchSummary struct {
	CitiesProcessed int             `json:"cities_processed"`
	CitiesFailed    int             `json:"cities_failed"`
	TotalEvents     int             `json:"total_events"`
	CostUSD         float64         `json:"cost_estimate_usd"`
	Regions         []RegionOutcome `json:"regions"`
	Cancelled       bool            `json:"cancelled,omitempty"`
	Duration        time.Duration   `json:"-"`
}

// RunBatch runs the regions one after another with the inter-region delay
// between them. A cancelled context stops the batch between regions; the
// region in progress runs to completion.
func (o *Orchestrator) RunBatch(ctx context.Context, req BatchRequest) *BatchSummary {
	started := o.now()
	summary := &BatchSummary{}
	log.Printf("[ORCHESTRATOR] Starting batch over %d regions", len(req.Regions))

	for i, region := range req.Regions {
		if i > 0 {
			if err := o.pacer.Sleep(ctx, o.cfg.InterRegionDelay); err != nil {
				summary.Cancelled = true
				break
			}
		}
		if ctx.Err() != nil {
			summary.Cancelled = true
			break
		}

		res, err := o.Run(context.WithoutCancel(ctx), PassRequest{
			Region:  region,
			Sources: req.Sources,
			Force:   req.Force,
			Mode:    models.JobModeBatch,
		})
		outcome := RegionOutcome{
			Region:         region,
			JobID:          res.JobID,
			Source:         res.Source,
			EventsFound:    res.EventsFound,
			EventsInserted: res.EventsInserted,
			Duplicates:     res.Duplicates,
			Skipped:        res.Skipped,
		}
		summary.CostUSD += res.CostUSD
		if err != nil {
			outcome.Error = err.Error()
			summary.CitiesFailed++
		} else {
			summary.CitiesProcessed++
			summary.TotalEvents += res.EventsInserted
		}
		summary.Regions = append(summary.Regions, outcome)
	}

	summary.Duration = o.now().Sub(started)
	if summary.Cancelled {
		log.Printf("[ORCHESTRATOR] Batch cancelled after %d of %d regions", len(summary.Regions), len(req.Regions))
	}
	log.Printf("[ORCHESTRATOR] Batch done: %d processed, %d failed, %d new events in %v",
		summary.CitiesProcessed, summary.CitiesFailed, summary.TotalEvents, summary.Duration)
	return summary
}

// ExpandRegion turns a country or state key into the known cities under it.
// A key that already names a city is returned as is.
func ExpandRegion(r models.Region) []models.Region {
	if r.City != "" {
		return []models.Region{r}
	}
	cities := models.CitiesInCountry(r.Country, r.Region)
	out := make([]models.Region, 0, len(cities))
	for _, c := range cities {
		out = append(out, models.Region{Country: c.Country, Region: c.Region, City: c.Name})
	}
	return out
}
