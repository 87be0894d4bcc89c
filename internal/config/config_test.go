package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"local-events-aggregator/internal/dedup"
	"local-events-aggregator/internal/models"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DEDUP_FAILURE_POLICY", "")
	t.Setenv("AGGREGATOR_TARGETS_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 6*time.Hour, cfg.ScrapeWindow)
	assert.Equal(t, time.Hour, cfg.ThinRetryWindow)
	assert.Equal(t, 10, cfg.MinEvents)
	assert.Equal(t, dedup.FailOpen, cfg.FailurePolicy())
	assert.False(t, cfg.UseRedisLease())
	assert.NotEmpty(t, cfg.Targets.Regions)
	assert.Equal(t, 60*time.Second, cfg.Pacing(models.SourceAIGenerated).Timeout)
}

func TestLoadRejectsUnknownFailurePolicy(t *testing.T) {
	t.Setenv("DEDUP_FAILURE_POLICY", "fail_sideways")

	_, err := Load()
	assert.Error(t, err)
}

func TestParseTargetsMergesDefaults(t *testing.T) {
	doc := []byte(`
regions:
  - country: IN
    region: Maharashtra
    city: Pune
pacing:
  ticketing:
    delay: 500ms
    rate_per_minute: 120
web_pages:
  pune: https://example.com/pune-events
`)
	targets, err := ParseTargets(doc)
	require.NoError(t, err)

	require.Len(t, targets.Regions, 1)
	assert.Equal(t, "in/maharashtra/pune", targets.Regions[0].CacheKey())

	tm := targets.PacingFor(models.SourceTicketing)
	assert.Equal(t, 500*time.Millisecond, tm.Delay)
	assert.Equal(t, 20*time.Second, tm.Timeout, "missing timeout falls back to the default")
	assert.Equal(t, 1, tm.Burst)

	web := targets.PacingFor(models.SourceWebScrape)
	assert.Equal(t, 45*time.Second, web.Timeout)

	profile, ok := targets.CountryProfile("in")
	require.True(t, ok)
	assert.Equal(t, "₹", profile.CurrencySymbol)
	assert.Equal(t, "https://example.com/pune-events", targets.WebPages["pune"])
}

func TestParseTargetsRequiresCountry(t *testing.T) {
	_, err := ParseTargets([]byte("regions:\n  - city: Pune\n"))
	assert.Error(t, err)
}
