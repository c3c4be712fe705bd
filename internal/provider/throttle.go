package provider

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/FranksOps/sprig/internal/keyword"
	"github.com/FranksOps/sprig/internal/metrics"
	"github.com/FranksOps/sprig/pkg/ratelimit"
)

// QuotaConfig bounds how hard a Provider is driven. Zero values disable the
// corresponding limit.
type QuotaConfig struct {
	RequestsPerSecond float64
	Burst             int
	Jitter            float64
	MaxConcurrent     int64
}

// Throttled wraps a Provider behind a shared token bucket and a concurrency
// cap, so concurrent research runs stay within one account quota.
type Throttled struct {
	next    Provider
	limiter *ratelimit.Limiter
	sem     *semaphore.Weighted
}

// ensure Throttled implements Provider
var _ Provider = (*Throttled)(nil)

// NewThrottled wraps next with the limits in cfg.
func NewThrottled(next Provider, cfg QuotaConfig) *Throttled {
	t := &Throttled{
		next:    next,
		limiter: ratelimit.NewLimiter(cfg.RequestsPerSecond, cfg.Burst, cfg.Jitter),
	}
	if cfg.MaxConcurrent > 0 {
		t.sem = semaphore.NewWeighted(cfg.MaxConcurrent)
	}
	return t
}

// acquire blocks until the call may proceed. The returned func releases the
// concurrency slot.
func (t *Throttled) acquire(ctx context.Context) (func(), error) {
	start := time.Now()
	release := func() {}
	if t.sem != nil {
		if err := t.sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("waiting for provider slot: %w", err)
		}
		release = func() { t.sem.Release(1) }
	}
	if err := t.limiter.Wait(ctx); err != nil {
		release()
		return nil, err
	}
	metrics.ProviderQueueWait.Observe(time.Since(start).Seconds())
	return release, nil
}

func (t *Throttled) SearchVolume(ctx context.Context, keywords []string, language string, location int) ([]keyword.Row, error) {
	release, err := t.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return t.next.SearchVolume(ctx, keywords, language, location)
}

func (t *Throttled) Suggestions(ctx context.Context, seed string, language string, location int, limit int) ([]keyword.Row, error) {
	release, err := t.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return t.next.Suggestions(ctx, seed, language, location, limit)
}

func (t *Throttled) Ideas(ctx context.Context, seed string, language string, location int, volume VolumeRange, limit int) ([]keyword.Row, error) {
	release, err := t.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return t.next.Ideas(ctx, seed, language, location, volume, limit)
}
