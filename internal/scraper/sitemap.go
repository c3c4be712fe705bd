package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/oxffaa/gopher-parse-sitemap"
)

// maxSitemapDepth bounds how many index levels are followed.
const maxSitemapDepth = 3

var errNotSitemap = errors.New("failed to parse as sitemap or index")

// URLFilter narrows discovered storefront URLs.
type URLFilter struct {
	// Match keeps URLs containing this substring, e.g. "/products/".
	Match string
	// Limit stops after this many URLs; 0 means all.
	Limit int
}

func (f URLFilter) keep(u string) bool {
	return f.Match == "" || strings.Contains(u, f.Match)
}

// SitemapFetcher discovers storefront product URLs from sitemaps.
type SitemapFetcher struct {
	fetcher *Fetcher
	logger  *slog.Logger
}

// NewSitemapFetcher initializes a SitemapFetcher.
func NewSitemapFetcher(fetcher *Fetcher, logger *slog.Logger) *SitemapFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &SitemapFetcher{fetcher: fetcher, logger: logger}
}

// FetchSitemap returns every page URL in a sitemap or sitemap index.
func (s *SitemapFetcher) FetchSitemap(ctx context.Context, sitemapURL string) ([]string, error) {
	return s.ProductURLs(ctx, sitemapURL, URLFilter{})
}

// ProductURLs walks a sitemap or sitemap index and returns the unique page
// URLs accepted by filter, in document order.
func (s *SitemapFetcher) ProductURLs(ctx context.Context, sitemapURL string, filter URLFilter) ([]string, error) {
	w := &sitemapWalk{
		SitemapFetcher: s,
		filter:         filter,
		seen:           make(map[string]struct{}),
		visited:        make(map[string]struct{}),
	}
	if err := w.walk(ctx, sitemapURL, 0); err != nil {
		return nil, err
	}
	return w.urls, nil
}

type sitemapWalk struct {
	*SitemapFetcher
	filter  URLFilter
	urls    []string
	seen    map[string]struct{}
	visited map[string]struct{}
}

func (w *sitemapWalk) full() bool {
	return w.filter.Limit > 0 && len(w.urls) >= w.filter.Limit
}

func (w *sitemapWalk) walk(ctx context.Context, sitemapURL string, depth int) error {
	if _, done := w.visited[sitemapURL]; done {
		return nil
	}
	w.visited[sitemapURL] = struct{}{}
	w.logger.Debug("fetching sitemap", "url", sitemapURL, "depth", depth)

	page, err := w.fetcher.Fetch(ctx, sitemapURL)
	if err != nil {
		return fmt.Errorf("failed to fetch sitemap: %w", err)
	}
	if page.Error != "" {
		return fmt.Errorf("fetch error: %s", page.Error)
	}
	if page.StatusCode >= 400 {
		return fmt.Errorf("bad status code: %d", page.StatusCode)
	}

	var entries int
	err = sitemap.Parse(bytes.NewReader(page.Body), func(e sitemap.Entry) error {
		entries++
		loc := strings.TrimSpace(e.GetLocation())
		if loc == "" || !w.filter.keep(loc) {
			return nil
		}
		if _, dup := w.seen[loc]; dup {
			return nil
		}
		w.seen[loc] = struct{}{}
		w.urls = append(w.urls, loc)
		if w.full() {
			return errStop
		}
		return nil
	})
	if errors.Is(err, errStop) || (err == nil && entries > 0) {
		return nil
	}

	var nested []string
	indexErr := sitemap.ParseIndex(bytes.NewReader(page.Body), func(e sitemap.IndexEntry) error {
		nested = append(nested, strings.TrimSpace(e.GetLocation()))
		return nil
	})
	if indexErr != nil || len(nested) == 0 {
		if err == nil {
			err = indexErr
		}
		if err != nil {
			return fmt.Errorf("%w: %w", errNotSitemap, err)
		}
		return errNotSitemap
	}

	if depth+1 > maxSitemapDepth {
		w.logger.Warn("sitemap index too deep, skipping", "url", sitemapURL)
		return nil
	}
	for _, loc := range nested {
		if w.full() {
			break
		}
		if err := w.walk(ctx, loc, depth+1); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Warn("failed to fetch nested sitemap", "url", loc, "err", err)
		}
	}
	return nil
}

var errStop = errors.New("stop")
