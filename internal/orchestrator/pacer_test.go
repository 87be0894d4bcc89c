package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"local-events-aggregator/internal/config"
	"local-events-aggregator/internal/models"
)

func TestPacerUsesDefaultsForMissingProviders(t *testing.T) {
	p := NewPacer(map[models.Source]config.ProviderPacing{
		models.SourceTicketing: {Delay: 250 * time.Millisecond, Timeout: 5 * time.Second},
	})

	assert.Equal(t, 5*time.Second, p.Timeout(models.SourceTicketing))
	assert.Equal(t, 60*time.Second, p.Timeout(models.SourceAIGenerated))
	assert.Equal(t, 45*time.Second, p.Timeout(models.SourceCountryScrape))
}

func TestPacerPausesForProviderDelay(t *testing.T) {
	var slept []time.Duration
	p := NewPacer(nil).WithSleep(func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	})

	require.NoError(t, p.Pause(context.Background(), models.SourceTicketing))
	require.NoError(t, p.Pause(context.Background(), models.SourceAIGenerated))
	assert.Equal(t, []time.Duration{time.Second, 3 * time.Second}, slept)
}

func TestPacerRateLimit(t *testing.T) {
	p := NewPacer(map[models.Source]config.ProviderPacing{
		models.SourcePlaces: {RatePerMinute: 60, Burst: 1},
	})

	ctx := context.Background()
	require.NoError(t, p.Wait(ctx, models.SourcePlaces))

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	assert.Error(t, p.Wait(short, models.SourcePlaces), "second call inside the same second must wait")
}

func TestPacerUnlimitedProvider(t *testing.T) {
	p := NewPacer(map[models.Source]config.ProviderPacing{
		models.SourceWebScrape: {Timeout: time.Second},
	})
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Wait(context.Background(), models.SourceWebScrape))
	}
}

func TestSleepContextReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := sleepContext(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
