package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// CORSHeaders are returned by every entry point
func CORSHeaders() map[string]string {
	return map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Headers": "Content-Type,X-Amz-Date,Authorization,X-Api-Key,X-Amz-Security-Token",
		"Access-Control-Allow-Methods": "GET,POST,OPTIONS",
		"Content-Type":                 "application/json",
	}
}

// ServeAPIGateway decodes a proxy request body into T, runs handle and encodes
// the response. Preflight requests are answered without calling handle.
func ServeAPIGateway[T any](ctx context.Context, request events.APIGatewayProxyRequest, handle func(context.Context, T) (Response, int)) (resp events.APIGatewayProxyResponse) {
	if request.HTTPMethod == http.MethodOptions {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusOK, Headers: CORSHeaders()}
	}

	defer func() {
		if p := recover(); p != nil {
			log.Printf("[API] Panic handling %s %s: %v", request.HTTPMethod, request.Path, p)
			resp = proxyResponse(failure(fmt.Errorf("internal error")), http.StatusInternalServerError)
		}
	}()

	var req T
	if body := strings.TrimSpace(request.Body); body != "" {
		if err := json.Unmarshal([]byte(body), &req); err != nil {
			return proxyResponse(failure(fmt.Errorf("%w: invalid JSON body: %v", ErrMissingInput, err)), http.StatusBadRequest)
		}
	}
	body, status := handle(ctx, req)
	return proxyResponse(body, status)
}

// HandleFetchEvents serves the single-location function. GET reads query
// parameters; other methods read a JSON body.
func (h *Handler) HandleFetchEvents(ctx context.Context, request events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	if request.HTTPMethod != http.MethodGet {
		return ServeAPIGateway(ctx, request, h.FetchEvents)
	}
	req, err := FetchEventsFromQuery(request.QueryStringParameters)
	if err != nil {
		return proxyResponse(failure(err), http.StatusBadRequest)
	}
	request.Body = ""
	return ServeAPIGateway(ctx, request, func(ctx context.Context, _ struct{}) (Response, int) {
		return h.FetchEvents(ctx, req)
	})
}

// HandleBatchInvocation serves the batch function. API Gateway requests
// carry the cities in their body; anything else, such as a scheduled
// EventBridge event, runs the configured targets.
func (h *Handler) HandleBatchInvocation(ctx context.Context, raw json.RawMessage) events.APIGatewayProxyResponse {
	var request events.APIGatewayProxyRequest
	if err := json.Unmarshal(raw, &request); err == nil && request.HTTPMethod != "" {
		return ServeAPIGateway(ctx, request, h.Batch)
	}
	log.Printf("[API] Scheduled batch invocation")
	request = events.APIGatewayProxyRequest{HTTPMethod: http.MethodPost}
	return ServeAPIGateway(ctx, request, func(ctx context.Context, _ struct{}) (Response, int) {
		return h.ScheduledBatch(ctx)
	})
}

// FetchEventsFromQuery reads a single-location request from query parameters
func FetchEventsFromQuery(params map[string]string) (FetchEventsRequest, error) {
	var req FetchEventsRequest
	parseFloat := func(key string) (*float64, error) {
		v := strings.TrimSpace(params[key])
		if v == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s is not a number", ErrMissingInput, key)
		}
		return &f, nil
	}

	var err error
	if req.Latitude, err = parseFloat("latitude"); err != nil {
		return req, err
	}
	if req.Longitude, err = parseFloat("longitude"); err != nil {
		return req, err
	}
	radius, err := parseFloat("radiusKm")
	if err != nil {
		return req, err
	}
	if radius != nil {
		req.RadiusKm = *radius
	}
	req.City = params["city"]
	req.Region = params["region"]
	req.Country = params["country"]
	if s := strings.TrimSpace(params["sources"]); s != "" {
		req.Sources = strings.Split(s, ",")
	}
	req.ForceRefresh, _ = strconv.ParseBool(params["forceRefresh"])
	return req, nil
}

func proxyResponse(body Response, status int) events.APIGatewayProxyResponse {
	b, err := json.Marshal(body)
	if err != nil {
		log.Printf("[API] Error marshaling response body: %v", err)
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusInternalServerError,
			Headers:    CORSHeaders(),
			Body:       `{"success":false,"error":"Internal server error"}`,
		}
	}
	return events.APIGatewayProxyResponse{StatusCode: status, Headers: CORSHeaders(), Body: string(b)}
}
