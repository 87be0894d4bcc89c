// Package app wires the configured stores, provider adapters and
// orchestrator behind the entry points.
package app

import (
	"context"
	"fmt"
	"log"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/prometheus/client_golang/prometheus"

	"local-events-aggregator/internal/analytics"
	"local-events-aggregator/internal/api"
	"local-events-aggregator/internal/config"
	"local-events-aggregator/internal/dedup"
	"local-events-aggregator/internal/orchestrator"
	"local-events-aggregator/internal/services"
	"local-events-aggregator/internal/sources"
)

// App is a fully wired aggregator
type App struct {
	Config       *config.Config
	Orchestrator *orchestrator.Orchestrator
	Handler      *api.Handler

	closers []func() error
}

// New connects to AWS and the optional Redis lease store. Metrics are
// registered on reg when it is not nil.
func New(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*App, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	store := services.NewDynamoDBService(
		dynamodb.NewFromConfig(awsCfg),
		cfg.EventsTable,
		cfg.OperationsTable,
		dedup.Policy{CoordinateTolerance: cfg.DedupCoordTolerance},
	)
	deps := orchestrator.Deps{
		Store:    store,
		Registry: sources.BuildRegistry(cfg),
		Metrics:  analytics.NewMetrics(reg),
	}

	if cfg.SnapshotBucket != "" {
		deps.Snapshots = services.NewS3ClientFromConfig(awsCfg, cfg.SnapshotBucket)
	} else {
		log.Printf("[APP] S3_BUCKET_NAME is not set, snapshots disabled")
	}

	a := &App{Config: cfg}
	if cfg.UseRedisLease() {
		leases, err := services.NewRedisLeaseStore(ctx, cfg.RedisURL, "")
		if err != nil {
			log.Printf("[APP] Redis lease store unavailable, using DynamoDB leases: %v", err)
		} else {
			deps.Leases = leases
			a.closers = append(a.closers, leases.Close)
		}
	}

	a.Orchestrator = orchestrator.New(deps, orchestrator.ConfigFrom(cfg))
	a.Handler = api.NewHandler(a.Orchestrator, cfg.Targets.Regions)
	log.Printf("[APP] Initialized with events table %s, operations table %s, dedup %s",
		cfg.EventsTable, cfg.OperationsTable, cfg.FailurePolicy())
	return a, nil
}

// Close releases connections
func (a *App) Close() error {
	var firstErr error
	for _, c := range a.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
