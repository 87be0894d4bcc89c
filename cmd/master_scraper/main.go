package main

import (
	"context"
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
}

// handleRequest serves master-scraper requests: one region key in single
// mode, every known city under a country or state in batch mode
func handleRequest(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	log.Printf("Master scraper request: %s %s", request.HTTPMethod, request.Path)
	return api.ServeAPIGateway(ctx, request, handler.Master), nil
}

func main() {
	lambda.Start(handleRequest)
}
