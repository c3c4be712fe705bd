package provider

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FranksOps/sprig/internal/keyword"
)

type slowProvider struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (s *slowProvider) enter() {
	n := s.inFlight.Add(1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(s.delay)
	s.inFlight.Add(-1)
}

func (s *slowProvider) SearchVolume(ctx context.Context, keywords []string, language string, location int) ([]keyword.Row, error) {
	s.enter()
	return nil, nil
}

func (s *slowProvider) Suggestions(ctx context.Context, seed string, language string, location int, limit int) ([]keyword.Row, error) {
	s.enter()
	return []keyword.Row{{Keyword: seed}}, nil
}

func (s *slowProvider) Ideas(ctx context.Context, seed string, language string, location int, volume VolumeRange, limit int) ([]keyword.Row, error) {
	s.enter()
	return nil, nil
}

func TestThrottled_ConcurrencyCap(t *testing.T) {
	inner := &slowProvider{delay: 20 * time.Millisecond}
	p := NewThrottled(inner, QuotaConfig{MaxConcurrent: 2})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Suggestions(context.Background(), "seed", "", 0, 10); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if peak := inner.peak.Load(); peak > 2 {
		t.Errorf("expected at most 2 concurrent calls, saw %d", peak)
	}
}

func TestThrottled_Rate(t *testing.T) {
	inner := &slowProvider{}
	p := NewThrottled(inner, QuotaConfig{RequestsPerSecond: 20, Burst: 1})

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := p.Ideas(context.Background(), "seed", "", 0, AnyVolume, 10); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// Burst of 1 at 20 rps: two waits of ~50ms.
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("expected calls to be spaced, took %v", elapsed)
	}
}

func TestThrottled_Cancelled(t *testing.T) {
	inner := &slowProvider{delay: 200 * time.Millisecond}
	p := NewThrottled(inner, QuotaConfig{MaxConcurrent: 1})

	go func() { _, _ = p.SearchVolume(context.Background(), []string{"a"}, "", 0) }()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := p.SearchVolume(ctx, []string{"b"}, "", 0); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestThrottled_Unlimited(t *testing.T) {
	p := NewThrottled(&slowProvider{}, QuotaConfig{})
	rows, err := p.Suggestions(context.Background(), "seed", "", 0, 1)
	if err != nil || len(rows) != 1 {
		t.Errorf("expected passthrough, got %v, %v", rows, err)
	}
}
