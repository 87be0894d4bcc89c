package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"local-events-aggregator/internal/models"
)

// ErrMalformedBatch marks an LLM response whose top level is not a JSON array
// of event objects. Such a batch is rejected whole.
var ErrMalformedBatch = errors.New("generated batch is not a JSON array of events")

// ChatCompleter is the subset of the OpenAI client used for generation
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClient generates plausible local events with an OpenAI chat model
type OpenAIClient struct {
	client      ChatCompleter
	model       string
	temperature float32
	maxTokens   int
}

// GenerationRequest describes the batch of events to generate
type GenerationRequest struct {
	City       string
	Region     string
	Country    string
	Count      int
	Categories []string
	StartDate  time.Time
	Days       int
	Currency   string
}

// GenerationResponse holds a parsed batch and its usage
type GenerationResponse struct {
	Events           []models.GeneratedPayload
	PromptTokens     int
	CompletionTokens int
	TokensUsed       int
	EstimatedCost    float64
	ProcessingMS     int64
	Model            string
}

// DefaultOpenAIModel is used when no model is configured
const DefaultOpenAIModel = "gpt-4o-mini"

// DefaultCategories are requested when a generation request names none
var DefaultCategories = []string{"music", "food", "arts", "comedy", "sports", "community", "nightlife", "workshops"}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	return NewOpenAIClientWithAPI(openai.NewClient(apiKey), model)
}

// NewOpenAIClientWithAPI creates a client over any chat completion implementation
func NewOpenAIClientWithAPI(api ChatCompleter, model string) *OpenAIClient {
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIClient{
		client:      api,
		model:       model,
		temperature: 0.7,
		maxTokens:   4000,
	}
}

// GenerateEvents asks the model for a batch of events and parses the reply strictly
func (o *OpenAIClient) GenerateEvents(ctx context.Context, req GenerationRequest) (*GenerationResponse, error) {
	startTime := time.Now()

	if strings.TrimSpace(req.City) == "" {
		return nil, fmt.Errorf("city cannot be empty")
	}
	if req.Count <= 0 {
		req.Count = 10
	}
	if req.Days <= 0 {
		req.Days = 14
	}
	if req.StartDate.IsZero() {
		req.StartDate = time.Now()
	}
	if len(req.Categories) == 0 {
		req.Categories = DefaultCategories
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: o.buildSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: o.buildGenerationPrompt(req)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response choices from OpenAI")
	}

	events, err := ParseGeneratedEvents(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	return &GenerationResponse{
		Events:           events,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TokensUsed:       resp.Usage.TotalTokens,
		EstimatedCost:    calculateCost(resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
		ProcessingMS:     time.Since(startTime).Milliseconds(),
		Model:            o.model,
	}, nil
}

// ParseGeneratedEvents parses a model reply as a JSON array of events,
// tolerating a surrounding markdown code fence. Any other top-level shape,
// or any element that is not an event object, rejects the whole batch.
func ParseGeneratedEvents(content string) ([]models.GeneratedPayload, error) {
	cleaned := cleanJSONResponse(content)
	if !strings.HasPrefix(cleaned, "[") {
		return nil, fmt.Errorf("%w: response starts with %q", ErrMalformedBatch, prefix(cleaned, 40))
	}

	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBatch, err)
	}

	events := make([]models.GeneratedPayload, 0, len(raw))
	for i, item := range raw {
		if !bytes.HasPrefix(bytes.TrimSpace(item), []byte("{")) {
			return nil, fmt.Errorf("%w: element %d is not an object", ErrMalformedBatch, i)
		}
		var ev models.GeneratedPayload
		if err := json.Unmarshal(item, &ev); err != nil {
			return nil, fmt.Errorf("%w: element %d: %v", ErrMalformedBatch, i, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

func (o *OpenAIClient) buildSystemPrompt() string {
	return `You are a local events curator. You write realistic, specific listings for events that plausibly take place in a given city: real neighborhoods, real venue types, typical local prices and times.

RULES:
1. Respond with a JSON array only. No prose, no wrapping object.
2. Every element is an object with exactly these fields:
   "title", "description", "date" (YYYY-MM-DD), "time" (HH:MM, 24h), "venue", "address", "price", "organizer", "category", "latitude", "longitude"
3. Dates must fall inside the requested window.
4. Prices use the local currency symbol, or "Free".
5. Coordinates must lie inside the city.`
}

func (o *OpenAIClient) buildGenerationPrompt(req GenerationRequest) string {
	location := req.City
	if req.Region != "" {
		location += ", " + req.Region
	}
	if req.Country != "" {
		location += ", " + req.Country
	}
	end := req.StartDate.AddDate(0, 0, req.Days)
	currency := req.Currency
	if currency == "" {
		currency = "local currency"
	}

	return fmt.Sprintf(`Generate %d upcoming events in %s between %s and %s.

Spread them across these categories: %s.
Prices in %s.

CRITICAL: Respond with a valid JSON array only, e.g. [{"title": "...", ...}]. If you cannot comply, respond with [].`,
		req.Count, location,
		req.StartDate.Format("2006-01-02"), end.Format("2006-01-02"),
		strings.Join(req.Categories, ", "), currency)
}

// GetModel returns the current OpenAI model being used
func (o *OpenAIClient) GetModel() string {
	return o.model
}

// calculateCost estimates the USD cost of a call at gpt-4o-mini list prices
func calculateCost(promptTokens, completionTokens int) float64 {
	return float64(promptTokens)*0.15/1_000_000 + float64(completionTokens)*0.60/1_000_000
}

// cleanJSONResponse removes markdown code fences around a model reply
func cleanJSONResponse(response string) string {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
