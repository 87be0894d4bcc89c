package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"local-events-aggregator/internal/models"
	"local-events-aggregator/internal/orchestrator"
	"local-events-aggregator/internal/sources"
)

type fakeRunner struct {
	passes  []orchestrator.PassRequest
	batches []orchestrator.BatchRequest

	result  *orchestrator.PassResult
	err     error
	summary *orchestrator.BatchSummary
	cached  []models.Event
}

func (f *fakeRunner) Run(ctx context.Context, req orchestrator.PassRequest) (*orchestrator.PassResult, error) {
	f.passes = append(f.passes, req)
	res := f.result
	if res == nil {
		res = &orchestrator.PassResult{Region: req.Region}
	}
	return res, f.err
}

func (f *fakeRunner) RunBatch(ctx context.Context, req orchestrator.BatchRequest) *orchestrator.BatchSummary {
	f.batches = append(f.batches, req)
	if f.summary != nil {
		return f.summary
	}
	return &orchestrator.BatchSummary{CitiesProcessed: len(req.Regions)}
}

func (f *fakeRunner) CachedEvents(ctx context.Context, req orchestrator.PassRequest) ([]models.Event, error) {
	return f.cached, nil
}

func events11() []models.Event {
	out := make([]models.Event, 11)
	for i := range out {
		out[i] = models.Event{ID: fmt.Sprintf("evt-%d", i), Title: fmt.Sprintf("Event %d", i)}
	}
	return out
}

func TestFetchEventsFreshPass(t *testing.T) {
	runner := &fakeRunner{result: &orchestrator.PassResult{
		Source:         orchestrator.ResultSourceFresh,
		Events:         events11(),
		EventsInserted: 11,
		JobID:          "in/maharashtra/mumbai-20250310-043000-abcd1234",
	}}
	h := NewHandler(runner, nil)

	resp, status := h.FetchEvents(context.Background(), FetchEventsRequest{
		Latitude:  models.Float64Ptr(19.076),
		Longitude: models.Float64Ptr(72.8777),
		City:      "Mumbai",
		Sources:   []string{"ticketing", "places"},
	})

	assert.Equal(t, http.StatusOK, status)
	assert.True(t, resp.Success)
	assert.Equal(t, 11, resp.TotalEvents)
	assert.Equal(t, "fresh", resp.Source)
	require.NotNil(t, resp.NewEventsFetched)
	assert.Equal(t, 11, *resp.NewEventsFetched)

	require.Len(t, runner.passes, 1)
	pass := runner.passes[0]
	assert.Equal(t, models.Region{Country: "IN", Region: "Maharashtra", City: "Mumbai"}, pass.Region)
	assert.Equal(t, []models.Source{models.SourceTicketing, models.SourcePlaces}, pass.Sources)
	assert.Equal(t, float64(defaultRadiusKm), pass.RadiusKm)
}

func TestFetchEventsResolvesNearestCity(t *testing.T) {
	runner := &fakeRunner{}
	h := NewHandler(runner, nil)

	_, status := h.FetchEvents(context.Background(), FetchEventsRequest{
		Latitude:  models.Float64Ptr(18.53),
		Longitude: models.Float64Ptr(73.85),
		RadiusKm:  10,
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Pune", runner.passes[0].Region.City)
	assert.Equal(t, "IN", runner.passes[0].Region.Country)
}

func TestFetchEventsValidation(t *testing.T) {
	tests := []struct {
		name string
		req  FetchEventsRequest
	}{
		{"nothing", FetchEventsRequest{}},
		{"latitude only", FetchEventsRequest{Latitude: models.Float64Ptr(19)}},
		{"out of range", FetchEventsRequest{Latitude: models.Float64Ptr(91), Longitude: models.Float64Ptr(0), City: "Mumbai"}},
		{"radius too large", FetchEventsRequest{Latitude: models.Float64Ptr(19), Longitude: models.Float64Ptr(72), RadiusKm: 500}},
		{"unknown source", FetchEventsRequest{City: "Mumbai", Sources: []string{"eventbrite"}}},
		{"remote point", FetchEventsRequest{Latitude: models.Float64Ptr(0), Longitude: models.Float64Ptr(-30)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			resp, status := NewHandler(runner, nil).FetchEvents(context.Background(), tt.req)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
			assert.Empty(t, runner.passes)
		})
	}
}

func TestFetchEventsFallsBackToCachedEvents(t *testing.T) {
	runner := &fakeRunner{
		result: &orchestrator.PassResult{Source: orchestrator.ResultSourceFresh},
		err:    fmt.Errorf("%w for in/maharashtra/mumbai: timeout", orchestrator.ErrAllSourcesFailed),
		cached: events11()[:3],
	}
	resp, status := NewHandler(runner, nil).FetchEvents(context.Background(), FetchEventsRequest{City: "Mumbai"})

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "every source failed")
	assert.Equal(t, 3, resp.TotalEvents)
	assert.Equal(t, "cache", resp.Source)
}

func TestFetchEventsWithoutConfiguredSources(t *testing.T) {
	runner := &fakeRunner{
		result: &orchestrator.PassResult{Unavailable: map[models.Source]string{models.SourceTicketing: "TICKETMASTER_API_KEY is not set"}},
		err:    fmt.Errorf("%w: %w", orchestrator.ErrNoSources, sources.ErrNotConfigured),
	}
	resp, status := NewHandler(runner, nil).FetchEvents(context.Background(), FetchEventsRequest{City: "Mumbai", Sources: []string{"ticketing"}})

	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Unavailable[models.SourceTicketing], "TICKETMASTER_API_KEY")
}

func TestBatchSummary(t *testing.T) {
	runner := &fakeRunner{summary: &orchestrator.BatchSummary{
		CitiesProcessed: 2,
		CitiesFailed:    1,
		TotalEvents:     17,
	}}
	resp, status := NewHandler(runner, nil).Batch(context.Background(), BatchRequest{
		Cities:       []string{"mumbai", "Pune", "Delhi"},
		ForceRefresh: true,
	})

	assert.Equal(t, http.StatusOK, status)
	assert.True(t, resp.Success)
	assert.Equal(t, 17, resp.TotalEvents)
	assert.Equal(t, 2, *resp.CitiesProcessed)
	assert.Equal(t, 1, *resp.CitiesFailed)

	require.Len(t, runner.batches, 1)
	assert.True(t, runner.batches[0].Force)
	assert.Equal(t, "Mumbai", runner.batches[0].Regions[0].City)
	assert.Equal(t, "IN", runner.batches[0].Regions[0].Country)
}

func TestBatchAllFailed(t *testing.T) {
	runner := &fakeRunner{summary: &orchestrator.BatchSummary{CitiesFailed: 2}}
	resp, status := NewHandler(runner, nil).Batch(context.Background(), BatchRequest{Cities: []string{"Mumbai", "Pune"}})

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.False(t, resp.Success)
	assert.Equal(t, "all 2 cities failed", resp.Error)
}

func TestBatchRequiresCities(t *testing.T) {
	runner := &fakeRunner{}
	_, status := NewHandler(runner, nil).Batch(context.Background(), BatchRequest{})
	assert.Equal(t, http.StatusBadRequest, status)

	_, status = NewHandler(runner, nil).Batch(context.Background(), BatchRequest{Cities: []string{"Mumbai", " "}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Empty(t, runner.batches)
}

func TestScheduledBatchExpandsTargets(t *testing.T) {
	runner := &fakeRunner{}
	h := NewHandler(runner, []models.Region{
		{Country: "IN", Region: "Maharashtra"},
		{Country: "US", City: "Seattle"},
	})

	_, status := h.ScheduledBatch(context.Background())
	require.Equal(t, http.StatusOK, status)
	require.Len(t, runner.batches, 1)
	var cities []string
	for _, r := range runner.batches[0].Regions {
		cities = append(cities, r.City)
	}
	assert.Equal(t, []string{"Mumbai", "Pune", "Seattle"}, cities)

	_, status = NewHandler(runner, nil).ScheduledBatch(context.Background())
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestMasterModes(t *testing.T) {
	runner := &fakeRunner{}
	h := NewHandler(runner, nil)

	_, status := h.Master(context.Background(), MasterRequest{Country: "IN", City: "Goa"})
	require.Equal(t, http.StatusOK, status)
	require.Len(t, runner.passes, 1)
	assert.Equal(t, "in/goa/goa", runner.passes[0].Region.CacheKey())

	resp, status := h.Master(context.Background(), MasterRequest{Country: "in", Region: "Maharashtra", Mode: "batch"})
	require.Equal(t, http.StatusOK, status)
	require.Len(t, runner.batches, 1)
	assert.Len(t, runner.batches[0].Regions, 2)
	assert.Equal(t, 2, *resp.CitiesProcessed)

	for _, bad := range []MasterRequest{
		{},
		{Country: "IN"},
		{Country: "IN", City: "Goa", Mode: "parallel"},
		{Country: "ZZ", Mode: "batch"},
	} {
		_, status := h.Master(context.Background(), bad)
		assert.Equal(t, http.StatusBadRequest, status, "%+v", bad)
	}
}

func TestServeAPIGateway(t *testing.T) {
	runner := &fakeRunner{result: &orchestrator.PassResult{Source: orchestrator.ResultSourceCache, Events: events11()[:2]}}
	h := NewHandler(runner, nil)

	preflight := ServeAPIGateway(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: "OPTIONS"}, h.FetchEvents)
	assert.Equal(t, http.StatusOK, preflight.StatusCode)
	assert.Equal(t, "*", preflight.Headers["Access-Control-Allow-Origin"])
	assert.Empty(t, runner.passes)

	bad := ServeAPIGateway(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: "POST", Body: "{not json"}, h.FetchEvents)
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)

	ok := ServeAPIGateway(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: "POST", Body: `{"city":"Mumbai"}`}, h.FetchEvents)
	require.Equal(t, http.StatusOK, ok.StatusCode)
	var body Response
	require.NoError(t, json.Unmarshal([]byte(ok.Body), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 2, body.TotalEvents)
	assert.Equal(t, "cache", body.Source)
	assert.Nil(t, body.NewEventsFetched)

	panicking := ServeAPIGateway(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: "POST"}, func(context.Context, BatchRequest) (Response, int) {
		panic("boom")
	})
	assert.Equal(t, http.StatusInternalServerError, panicking.StatusCode)
	assert.Contains(t, panicking.Body, `"success":false`)
}

func TestHandleFetchEventsQuery(t *testing.T) {
	runner := &fakeRunner{}
	h := NewHandler(runner, nil)

	resp := h.HandleFetchEvents(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: "GET",
		QueryStringParameters: map[string]string{
			"latitude": "19.076", "longitude": "72.8777", "radiusKm": "15", "sources": "ticketmaster,places",
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, runner.passes, 1)
	assert.Equal(t, 15.0, runner.passes[0].RadiusKm)
	assert.Equal(t, []models.Source{models.SourceTicketing, models.SourcePlaces}, runner.passes[0].Sources)

	bad := h.HandleFetchEvents(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:            "GET",
		QueryStringParameters: map[string]string{"latitude": "north"},
	})
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestRouter(t *testing.T) {
	runner := &fakeRunner{}
	srv := httptest.NewServer(NewHandler(runner, nil).Router(http.NotFoundHandler()))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/fetch-events", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, err = http.Post(srv.URL+"/master-scraper", "application/json", strings.NewReader(`{"country":"IN","city":"Pune"}`))
	require.NoError(t, err)
	var body Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, body.Success)

	resp, err = http.Post(srv.URL+"/batch-scraper", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleBatchInvocation(t *testing.T) {
	runner := &fakeRunner{}
	h := NewHandler(runner, []models.Region{{Country: "IN", City: "Goa"}})

	scheduled := h.HandleBatchInvocation(context.Background(), json.RawMessage(
		`{"version":"0","detail-type":"Scheduled Event","source":"aws.events","detail":{}}`))
	require.Equal(t, http.StatusOK, scheduled.StatusCode)
	require.Len(t, runner.batches, 1)
	assert.Equal(t, "Goa", runner.batches[0].Regions[0].City)

	apiCall := h.HandleBatchInvocation(context.Background(), json.RawMessage(
		`{"httpMethod":"POST","path":"/batch-scraper","body":"{\"cities\":[\"Delhi\",\"Chennai\"],\"forceRefresh\":true}"}`))
	require.Equal(t, http.StatusOK, apiCall.StatusCode)
	require.Len(t, runner.batches, 2)
	assert.Len(t, runner.batches[1].Regions, 2)
	assert.True(t, runner.batches[1].Force)

	emptyAPI := h.HandleBatchInvocation(context.Background(), json.RawMessage(`{"httpMethod":"POST","body":""}`))
	assert.Equal(t, http.StatusBadRequest, emptyAPI.StatusCode)
}
