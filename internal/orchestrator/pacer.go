package orchestrator

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"local-events-aggregator/internal/config"
	"local-events-aggregator/internal/models"
)

// Pacer spaces out provider calls. Each provider has a rate limit shared by
// every pass in the process, a fixed pause after each call and a timeout.
type Pacer struct {
	pacing   map[models.Source]config.ProviderPacing
	limiters map[models.Source]*rate.Limiter
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewPacer creates a pacer from a per-provider table. Providers missing from
// the table use the built-in defaults.
func NewPacer(pacing map[models.Source]config.ProviderPacing) *Pacer {
	p := &Pacer{
		pacing:   make(map[models.Source]config.ProviderPacing),
		limiters: make(map[models.Source]*rate.Limiter),
		sleep:    sleepContext,
	}
	targets := config.Targets{Pacing: pacing}
	for _, src := range models.AllSources {
		pp := targets.PacingFor(src)
		p.pacing[src] = pp
		if pp.RatePerMinute > 0 {
			burst := pp.Burst
			if burst <= 0 {
				burst = 1
			}
			p.limiters[src] = rate.NewLimiter(rate.Limit(pp.RatePerMinute/60), burst)
		}
	}
	return p
}

// WithSleep replaces the pause function
func (p *Pacer) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Pacer {
	p.sleep = sleep
	return p
}

// Wait blocks until the provider's rate limit allows another call
func (p *Pacer) Wait(ctx context.Context, src models.Source) error {
	lim, ok := p.limiters[src]
	if !ok {
		return nil
	}
	return lim.Wait(ctx)
}

// Pause sleeps for the provider's post-call delay
func (p *Pacer) Pause(ctx context.Context, src models.Source) error {
	return p.sleep(ctx, p.pacing[src].Delay)
}

// Timeout returns the hard bound on one call to the provider
func (p *Pacer) Timeout(src models.Source) time.Duration {
	return p.pacing[src].Timeout
}

// Sleep pauses for d, returning early when ctx is done
func (p *Pacer) Sleep(ctx context.Context, d time.Duration) error {
	return p.sleep(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
