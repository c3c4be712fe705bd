package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	ErrDisallowed = errors.New("scraper: page disallowed by robots.txt")
	ErrChallenged = errors.New("scraper: page served a bot challenge")
	ErrNoTitle    = errors.New("scraper: page has no usable title")
)

// storeSuffixRe matches a trailing " | Store", " – Store" or " - Store".
var storeSuffixRe = regexp.MustCompile(`\s+[|–—-]\s+[^|–—-]+$`)

// TitleResolver turns a product page URL into the product's title so the
// seed comes from the title rather than the URL slug.
type TitleResolver struct {
	fetcher   *Fetcher
	auditor   *RobotsTxtAuditor
	userAgent string
	logger    *slog.Logger
}

// NewTitleResolver builds a resolver. A nil auditor skips robots.txt checks.
// userAgent is the token matched against robots.txt groups.
func NewTitleResolver(fetcher *Fetcher, auditor *RobotsTxtAuditor, userAgent string, logger *slog.Logger) *TitleResolver {
	if logger == nil {
		logger = slog.Default()
	}
	if userAgent == "" {
		userAgent = "*"
	}
	return &TitleResolver{
		fetcher:   fetcher,
		auditor:   auditor,
		userAgent: userAgent,
		logger:    logger,
	}
}

// ResolveTitle fetches rawURL and extracts its product title.
func (r *TitleResolver) ResolveTitle(ctx context.Context, rawURL string) (string, error) {
	if r.auditor != nil {
		allowed, err := r.auditor.IsAllowed(ctx, rawURL, r.userAgent)
		if err != nil {
			return "", err
		}
		if !allowed {
			return "", ErrDisallowed
		}
	}

	page, err := r.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}
	if page.Error != "" {
		return "", fmt.Errorf("fetch error: %s", page.Error)
	}
	if page.Challenged {
		r.logger.Debug("product page challenged", "url", rawURL, "source", page.ChallengeSource)
		return "", fmt.Errorf("%w: %s", ErrChallenged, page.ChallengeSource)
	}
	if page.StatusCode < 200 || page.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status %d", page.StatusCode)
	}

	title, err := ExtractTitle(page.Body)
	if err != nil {
		return "", err
	}
	r.logger.Debug("resolved product title", "url", rawURL, "title", title)
	return title, nil
}

// ExtractTitle picks the product title from an HTML document: og:title,
// then <title>, then the first <h1>. Store name suffixes are removed.
func ExtractTitle(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}

	candidates := []string{
		doc.Find(`meta[property="og:title"]`).First().AttrOr("content", ""),
		doc.Find("title").First().Text(),
		doc.Find("h1").First().Text(),
	}
	for _, c := range candidates {
		if title := cleanTitle(c); title != "" {
			return title, nil
		}
	}
	return "", ErrNoTitle
}

func cleanTitle(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if trimmed := storeSuffixRe.ReplaceAllString(s, ""); trimmed != "" {
		s = trimmed
	}
	return strings.TrimSpace(s)
}
