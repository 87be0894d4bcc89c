package sources

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"local-events-aggregator/internal/models"
	"local-events-aggregator/internal/services"
)

const (
	defaultGenerateCount = 10
	generateDays         = 14
)

// EventGenerator produces a batch of plausible events
type EventGenerator interface {
	GenerateEvents(ctx context.Context, req services.GenerationRequest) (*services.GenerationResponse, error)
}

// AIAdapter generates events with an LLM. A malformed batch is rejected whole.
type AIAdapter struct {
	client EventGenerator
	count  int
}

// NewAIAdapter creates the generation adapter
func NewAIAdapter(client EventGenerator) *AIAdapter {
	return &AIAdapter{client: client, count: defaultGenerateCount}
}

// WithCount sets how many events one batch requests
func (a *AIAdapter) WithCount(n int) *AIAdapter {
	if n > 0 {
		a.count = n
	}
	return a
}

func (a *AIAdapter) Source() models.Source {
	return models.SourceAIGenerated
}

func (a *AIAdapter) Fetch(ctx context.Context, req Request) (Result, error) {
	city := req.Region.City
	if city == "" {
		city = req.Region.Region
	}
	if city == "" {
		return Result{}, fmt.Errorf("event generation needs a city or region")
	}

	resp, err := a.client.GenerateEvents(ctx, services.GenerationRequest{
		City:       city,
		Region:     req.Region.Region,
		Country:    req.Region.Country,
		Count:      a.count,
		Categories: services.DefaultCategories,
		StartDate:  req.now(),
		Days:       generateDays,
	})
	if err != nil {
		return Result{APICalls: 1}, err
	}

	batchID := uuid.New().String()
	out := make([]models.CandidateEvent, 0, len(resp.Events))
	for _, g := range resp.Events {
		g.BatchID = batchID
		out = append(out, models.CandidateEvent{
			Source:     a.Source(),
			Provenance: models.ProvenanceAIGenerated,
			ExternalID: models.GenerateExternalID("ai", city, g.Title, g.Date, g.VenueName),
			Payload:    g,
		})
	}
	return Result{Candidates: out, APICalls: 1, CostUSD: resp.EstimatedCost, BatchID: batchID}, nil
}
