package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/temoto/robotstxt"
)

// RobotsTxtAuditor answers whether a storefront allows fetching a path. One
// robots.txt is fetched per host and cached for the auditor's lifetime.
type RobotsTxtAuditor struct {
	fetcher *Fetcher
	logger  *slog.Logger

	mu    sync.Mutex
	cache map[string]*robotsEntry
}

type robotsEntry struct {
	once sync.Once
	data *robotstxt.RobotsData
	err  error
}

// NewRobotsTxtAuditor creates an auditor that fetches through fetcher.
func NewRobotsTxtAuditor(fetcher *Fetcher, logger *slog.Logger) *RobotsTxtAuditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RobotsTxtAuditor{
		fetcher: fetcher,
		logger:  logger,
		cache:   make(map[string]*robotsEntry),
	}
}

// IsAllowed reports whether userAgent may fetch targetURL. Missing or
// unreadable robots.txt files allow everything.
func (r *RobotsTxtAuditor) IsAllowed(ctx context.Context, targetURL, userAgent string) (bool, error) {
	u, err := url.Parse(targetURL)
	if err != nil || u.Host == "" {
		return false, fmt.Errorf("invalid url: %q", targetURL)
	}

	data, err := r.load(ctx, u.Scheme+"://"+u.Host)
	if err != nil {
		r.logger.Debug("robots.txt unavailable, allowing", "host", u.Host, "err", err)
		return true, nil
	}
	if data == nil {
		return true, nil
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return data.FindGroup(userAgent).Test(path), nil
}

// Sitemaps returns the sitemap URLs a storefront advertises in robots.txt.
func (r *RobotsTxtAuditor) Sitemaps(ctx context.Context, site string) ([]string, error) {
	if !strings.HasPrefix(site, "http://") && !strings.HasPrefix(site, "https://") {
		site = "https://" + site
	}
	u, err := url.Parse(site)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid site: %q", site)
	}

	data, err := r.load(ctx, u.Scheme+"://"+u.Host)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	return data.Sitemaps, nil
}

// load fetches and parses robots.txt for origin once. Concurrent callers for
// the same origin wait on the first fetch.
func (r *RobotsTxtAuditor) load(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	r.mu.Lock()
	entry, ok := r.cache[origin]
	if !ok {
		entry = &robotsEntry{}
		r.cache[origin] = entry
	}
	r.mu.Unlock()

	entry.once.Do(func() {
		entry.data, entry.err = r.fetch(ctx, origin)
	})
	return entry.data, entry.err
}

func (r *RobotsTxtAuditor) fetch(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	page, err := r.fetcher.Fetch(ctx, origin+"/robots.txt")
	if err != nil {
		return nil, fmt.Errorf("fetch error: %w", err)
	}
	if page.Error != "" {
		return nil, fmt.Errorf("fetch error: %s", page.Error)
	}
	// 4xx means no rules; 5xx and challenges are treated the same way
	// since the storefront gave no usable answer.
	if page.StatusCode >= 400 || page.Challenged {
		return nil, nil
	}

	data, err := robotstxt.FromBytes(page.Body)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return data, nil
}
