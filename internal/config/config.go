// Package config loads aggregator configuration from the environment and an
// optional YAML targets file.
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"local-events-aggregator/internal/dedup"
	"local-events-aggregator/internal/models"
)

// Config holds the configuration loaded from environment variables
type Config struct {
	// Storage
	EventsTable     string `env:"EVENTS_TABLE" envDefault:"local-events"`
	OperationsTable string `env:"OPERATIONS_TABLE" envDefault:"local-events-operations"` // region cache, jobs, leases, analytics
	SnapshotBucket  string `env:"S3_BUCKET_NAME"`
	RedisURL        string `env:"REDIS_URL"` // optional, switches the region lease to Redis
	AWSRegion       string `env:"AWS_REGION" envDefault:"us-east-1"`

	// Provider credentials. A missing key disables that provider.
	TicketmasterAPIKey string `env:"TICKETMASTER_API_KEY"`
	GooglePlacesAPIKey string `env:"GOOGLE_PLACES_API_KEY"`
	FirecrawlAPIKey    string `env:"FIRECRAWL_API_KEY"`
	JinaAPIKey         string `env:"JINA_API_KEY"`
	OpenAIAPIKey       string `env:"OPENAI_API_KEY"`
	OpenAIModel        string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`

	// Web scrape listing pages, keyed by city in the targets file; this is the
	// fallback listing URL template when a city has none. %s is the city slug.
	WebScrapeURLTemplate string `env:"WEB_SCRAPE_URL_TEMPLATE" envDefault:"https://allevents.in/%s/all"`

	// Scheduling
	ScrapeWindow       time.Duration `env:"SCRAPE_WINDOW" envDefault:"6h"`
	ThinRetryWindow    time.Duration `env:"THIN_RETRY_WINDOW" envDefault:"1h"`
	MinEvents          int           `env:"MIN_EVENTS" envDefault:"10"`
	AIMinEvents        int           `env:"AI_MIN_EVENTS" envDefault:"5"`
	AIRefreshHours     int           `env:"AI_REFRESH_HOURS" envDefault:"24"`
	LeaseDuration      time.Duration `env:"LEASE_DURATION" envDefault:"5m"`
	InterRegionDelay   time.Duration `env:"INTER_REGION_DELAY" envDefault:"5s"`
	JobRetention       time.Duration `env:"JOB_RETENTION" envDefault:"720h"`
	AnalyticsRetention time.Duration `env:"ANALYTICS_RETENTION" envDefault:"2160h"`

	// Event lifetimes
	ScrapeEventTTL time.Duration `env:"SCRAPE_EVENT_TTL" envDefault:"12h"`
	APIEventTTL    time.Duration `env:"API_EVENT_TTL" envDefault:"672h"`
	AIEventTTL     time.Duration `env:"AI_EVENT_TTL" envDefault:"336h"`

	// Dedup
	DedupFailurePolicy  string  `env:"DEDUP_FAILURE_POLICY" envDefault:"fail_open"`
	DedupCoordTolerance float64 `env:"DEDUP_COORD_TOLERANCE" envDefault:"0.005"`

	// Local server
	ServerAddr    string `env:"SERVER_ADDR" envDefault:":8080"`
	BatchSchedule string `env:"BATCH_SCHEDULE"` // cron expression, empty disables scheduled batches

	TargetsFile string `env:"AGGREGATOR_TARGETS_FILE"`

	// Loaded from TargetsFile, or defaults
	Targets Targets `env:"-"`
}

// Load parses the environment and the targets file
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if _, err := dedup.ParseFailurePolicy(cfg.DedupFailurePolicy); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.MinEvents < 0 || cfg.AIMinEvents < 0 {
		return nil, fmt.Errorf("parsing config: event thresholds must not be negative")
	}

	targets := DefaultTargets()
	if cfg.TargetsFile != "" {
		loaded, err := LoadTargets(cfg.TargetsFile)
		if err != nil {
			return nil, err
		}
		targets = loaded
	}
	cfg.Targets = targets
	return cfg, nil
}

// LoadDotEnv loads a .env file for local runs. A missing file is not an error.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			log.Printf("[CONFIG] Failed to load %s: %v", p, err)
			continue
		}
		log.Printf("[CONFIG] Loaded environment from %s", p)
	}
}

// FailurePolicy returns the parsed dedup failure policy
func (c *Config) FailurePolicy() dedup.FailurePolicy {
	p, err := dedup.ParseFailurePolicy(c.DedupFailurePolicy)
	if err != nil {
		return dedup.FailOpen
	}
	return p
}

// Pacing returns the pacing entry of a provider
func (c *Config) Pacing(source models.Source) ProviderPacing {
	return c.Targets.PacingFor(source)
}

// UseRedisLease reports whether region leases should be claimed in Redis
func (c *Config) UseRedisLease() bool {
	return c.RedisURL != ""
}
