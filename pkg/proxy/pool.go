package proxy

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

var (
	ErrNilProxy = errors.New("proxy: proxyURL cannot be nil")
	ErrUnknown  = errors.New("proxy: not found in pool")
)

// entry is one egress proxy and its health.
type entry struct {
	url           *url.URL
	failures      int
	successes     int
	disabledUntil time.Time
}

func (e *entry) available(now time.Time) bool {
	if e.disabledUntil.IsZero() {
		return true
	}
	if now.Before(e.disabledUntil) {
		return false
	}
	// cooled down
	e.disabledUntil = time.Time{}
	e.failures = 0
	return true
}

// Stats is a point-in-time view of one proxy.
type Stats struct {
	URL       string
	Failures  int
	Successes int
	Disabled  bool
}

// Config defines settings for the Pool.
type Config struct {
	// MaxFailures before disabling a proxy temporarily.
	MaxFailures int
	// Cooldown is how long a proxy remains disabled after hitting MaxFailures.
	Cooldown time.Duration
}

// Pool rotates requests over egress proxies, benching ones that keep
// failing. It is safe for concurrent use.
type Pool struct {
	mu          sync.Mutex
	entries     []*entry
	byURL       map[string]*entry
	next        int
	maxFailures int
	cooldown    time.Duration
}

// NewPool creates an empty pool. Zero config values pick defaults.
func NewPool(cfg Config) *Pool {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	return &Pool{
		byURL:       make(map[string]*entry),
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
	}
}

// LoadFile adds proxies from a file with one URL per line. Blank lines and
// '#' comments are skipped.
func (p *Pool) LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening proxy file: %w", err)
	}
	defer file.Close()

	var urls []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading proxy file: %w", err)
	}
	return p.Add(urls...)
}

// Add parses raw proxy URLs and adds them. A missing scheme means http.
// Duplicates are ignored.
func (p *Pool) Add(rawURLs ...string) error {
	parsed := make([]*url.URL, 0, len(rawURLs))
	for _, raw := range rawURLs {
		if !strings.Contains(raw, "://") {
			raw = "http://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("parsing proxy url: %w", err)
		}
		parsed = append(parsed, u)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range parsed {
		key := u.String()
		if _, dup := p.byURL[key]; dup {
			continue
		}
		e := &entry{url: u}
		p.entries = append(p.entries, e)
		p.byURL[key] = e
	}
	return nil
}

// Len returns the number of proxies in the pool.
func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Next returns the next available proxy in round-robin order, or nil when
// the pool is empty or every proxy is cooling down.
func (p *Pool) Next() *url.URL {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	for range len(p.entries) {
		e := p.entries[p.next]
		p.next = (p.next + 1) % len(p.entries)
		if e.available(now) {
			return e.url
		}
	}
	return nil
}

// MarkSuccess records a successful request through proxyURL.
func (p *Pool) MarkSuccess(proxyURL *url.URL) error {
	return p.mark(proxyURL, func(e *entry) {
		e.successes++
		if e.failures > 0 {
			e.failures--
		}
	})
}

// MarkFailure records a failed request through proxyURL and benches the
// proxy for the cooldown once it reaches MaxFailures.
func (p *Pool) MarkFailure(proxyURL *url.URL) error {
	return p.mark(proxyURL, func(e *entry) {
		e.failures++
		if e.failures >= p.maxFailures {
			e.disabledUntil = time.Now().Add(p.cooldown)
		}
	})
}

func (p *Pool) mark(proxyURL *url.URL, update func(*entry)) error {
	if proxyURL == nil {
		return ErrNilProxy
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.byURL[proxyURL.String()]
	if !ok {
		return ErrUnknown
	}
	update(e)
	return nil
}

// Stats reports the health of every proxy.
func (p *Pool) Stats() []Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	out := make([]Stats, len(p.entries))
	for i, e := range p.entries {
		out[i] = Stats{
			URL:       e.url.String(),
			Failures:  e.failures,
			Successes: e.successes,
			Disabled:  !e.disabledUntil.IsZero() && now.Before(e.disabledUntil),
		}
	}
	return out
}

type ctxKey struct{}

// WithProxy pins the proxy used for requests carrying ctx.
func WithProxy(ctx context.Context, u *url.URL) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// FromContext returns the proxy pinned by WithProxy.
func FromContext(ctx context.Context) (*url.URL, bool) {
	u, ok := ctx.Value(ctxKey{}).(*url.URL)
	return u, ok && u != nil
}

// ProxyFunc adapts the pool to http.Transport.Proxy. A proxy pinned on the
// request context wins; otherwise the pool rotates. A nil or empty pool
// falls back to the environment settings.
func (p *Pool) ProxyFunc() func(*http.Request) (*url.URL, error) {
	return func(req *http.Request) (*url.URL, error) {
		if u, ok := FromContext(req.Context()); ok {
			return u, nil
		}
		if p.Len() == 0 {
			return http.ProxyFromEnvironment(req)
		}
		return p.Next(), nil
	}
}
