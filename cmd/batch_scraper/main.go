package main

import (
	"context"
	"encoding/json"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"local-events-aggregator/internal/api"
	"local-events-aggregator/internal/app"
	"local-events-aggregator/internal/config"
)

var handler *api.Handler

func init() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	a, err := app.New(context.Background(), cfg, nil)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	handler = a.Handler
	log.Printf("Batch scraper initialized with %d target regions", len(cfg.Targets.Regions))
}

// handleRequest serves batch requests from API Gateway and scheduled
// EventBridge invocations
func handleRequest(ctx context.Context, raw json.RawMessage) (events.APIGatewayProxyResponse, error) {
	return handler.HandleBatchInvocation(ctx, raw), nil
}

func main() {
	lambda.Start(handleRequest)
}
