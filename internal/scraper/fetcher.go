package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/FranksOps/sprig/internal/bypass"
	"github.com/FranksOps/sprig/internal/fingerprint"
	"github.com/FranksOps/sprig/internal/metrics"
	"github.com/FranksOps/sprig/pkg/httpclient"
	"github.com/FranksOps/sprig/pkg/proxy"
	"github.com/FranksOps/sprig/pkg/ratelimit"
	"github.com/FranksOps/sprig/pkg/useragent"
)

const (
	defaultFetchTimeout = 20 * time.Second
	defaultMaxBodyBytes = 4 << 20
	defaultMaxRedirects = 5
)

// Page is one fetched storefront document.
type Page struct {
	ID              string
	URL             string
	FinalURL        string
	StatusCode      int
	Header          http.Header
	Body            []byte
	FetchedAt       time.Time
	Duration        time.Duration
	Challenged      bool
	ChallengeSource string
	// Error is set when the request could not be completed.
	Error string
}

// OK reports whether the page was served normally.
func (p *Page) OK() bool {
	return p != nil && p.Error == "" && !p.Challenged && p.StatusCode >= 200 && p.StatusCode < 300
}

// FetchConfig configures a Fetcher.
type FetchConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	UseCookieJar bool
	// MaxBodyBytes caps how much of a page is read.
	MaxBodyBytes int64
	ProxyPool    *proxy.Pool
	UAPool       *useragent.Pool
	Fingerprint  fingerprint.Profile
	Limiter      *ratelimit.Limiter
	Detectors    []bypass.Detector
}

// Fetcher retrieves product pages with browser-like TLS, rotating User-Agents
// and proxies. It is safe for concurrent use.
type Fetcher struct {
	config FetchConfig
	client *httpclient.Client
}

// NewFetcher initializes a Fetcher. One transport is shared by every request
// so connections and cookies are reused.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultFetchTimeout
	}
	if cfg.MaxRedirects == 0 {
		cfg.MaxRedirects = defaultMaxRedirects
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileChrome
	}
	if cfg.Detectors == nil {
		cfg.Detectors = bypass.DefaultDetectors()
	}

	// The proxy is chosen per request and pinned on its context so the
	// fetcher can report the outcome back to the pool.
	transport, err := fingerprint.NewTransport(fingerprint.Options{
		Profile: cfg.Fingerprint,
		Proxy:   cfg.ProxyPool.ProxyFunc(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to setup transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: cfg.UseCookieJar,
		Header: http.Header{
			"Accept":          {"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
			"Accept-Language": {"en-US,en;q=0.5"},
		},
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Fetcher{config: cfg, client: client}, nil
}

// UserAgent returns the next User-Agent the fetcher would send.
func (f *Fetcher) UserAgent() string { return f.config.UAPool.Get() }

// Fetch GETs targetURL. Transport failures are reported in Page.Error with
// a nil error; the error return is reserved for invalid input.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	u, err := url.Parse(targetURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid page url %q", targetURL)
	}

	page := &Page{
		ID:        uuid.NewString(),
		URL:       targetURL,
		FetchedAt: time.Now().UTC(),
	}
	defer func() {
		metrics.RecordPageFetch(u.Hostname(), page.StatusCode, page.Challenged)
	}()

	if err := f.config.Limiter.Wait(ctx); err != nil {
		page.Error = fmt.Sprintf("rate limiter failed: %v", err)
		return page, nil
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		page.Error = fmt.Sprintf("failed to create request: %v", err)
		return page, nil
	}
	req.Header.Set("User-Agent", f.config.UAPool.Get())

	activeProxy := f.config.ProxyPool.Next()
	if activeProxy != nil {
		req = req.WithContext(proxy.WithProxy(req.Context(), activeProxy))
	}

	resp, err := f.client.Do(req.Context(), req)
	if err != nil {
		if activeProxy != nil {
			_ = f.config.ProxyPool.MarkFailure(activeProxy)
			metrics.ProxyFailures.WithLabelValues(activeProxy.Redacted()).Inc()
		}
		page.Error = fmt.Sprintf("request failed: %v", err)
		page.Duration = time.Since(start)
		return page, nil
	}
	defer resp.Body.Close()

	if activeProxy != nil {
		_ = f.config.ProxyPool.MarkSuccess(activeProxy)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodyBytes))
	if err != nil {
		page.Error = fmt.Sprintf("failed to read body: %v", err)
	}

	page.StatusCode = resp.StatusCode
	page.Header = resp.Header
	page.Body = body
	page.FinalURL = resp.Request.URL.String()
	page.Duration = time.Since(start)
	page.ChallengeSource, page.Challenged = bypass.Analyze(bypass.Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, f.config.Detectors)

	return page, nil
}
