package scraper

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"
)

// CrawlConfig bounds a storefront crawl.
type CrawlConfig struct {
	MaxDepth    int
	Concurrency int
	// MaxPages caps how many listing pages are fetched (0 = default 200).
	MaxPages int
	// Match identifies product URLs, e.g. "/products/".
	Match string
	// Limit stops the crawl after this many product URLs (0 = no limit).
	Limit int
	// RespectRobots checks robots.txt before each fetch.
	RespectRobots bool
	// UserAgent is the robots.txt token to test.
	UserAgent string
	// QueueSize limits the internal BFS queue (0 = default 10000).
	QueueSize int
}

// Crawler walks a storefront's listing pages breadth-first and collects
// product page URLs. Product pages themselves are recorded, not fetched.
type Crawler struct {
	cfg     CrawlConfig
	fetcher *Fetcher
	logger  *slog.Logger
	auditor *RobotsTxtAuditor

	mu       sync.Mutex
	hosts    map[string]struct{}
	visited  map[string]struct{}
	products []string
}

type job struct {
	URL   string
	Depth int
}

// NewCrawler creates a product discovery crawler.
func NewCrawler(cfg CrawlConfig, fetcher *Fetcher, logger *slog.Logger) *Crawler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 3
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 200
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 10000
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "*"
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Crawler{
		cfg:     cfg,
		fetcher: fetcher,
		logger:  logger,
	}
	if cfg.RespectRobots {
		c.auditor = NewRobotsTxtAuditor(fetcher, logger)
	}
	return c
}

// Discover crawls from seeds and returns the product URLs found, in
// discovery order. The crawl stays on the seeds' hosts.
func (c *Crawler) Discover(ctx context.Context, seeds []string) ([]string, error) {
	c.mu.Lock()
	c.hosts = make(map[string]struct{})
	c.visited = make(map[string]struct{})
	c.products = nil
	for _, seed := range seeds {
		if u, err := url.Parse(seed); err == nil && u.Host != "" {
			c.hosts[strings.ToLower(u.Hostname())] = struct{}{}
		}
	}
	c.mu.Unlock()

	crawlCtx, stop := context.WithCancel(ctx)
	defer stop()

	queue := make(chan job, c.cfg.QueueSize)
	var pending sync.WaitGroup
	for _, seed := range seeds {
		if c.isProduct(seed) {
			c.record(seed)
			continue
		}
		if c.claim(seed) {
			pending.Add(1)
			queue <- job{URL: seed}
		}
	}

	g, gCtx := errgroup.WithContext(crawlCtx)
	for range c.cfg.Concurrency {
		g.Go(func() error {
			for {
				select {
				case <-gCtx.Done():
					return nil
				case j := <-queue:
					if c.process(gCtx, j, queue, &pending) {
						stop()
					}
					pending.Done()
				}
			}
		})
	}

	idle := make(chan struct{})
	go func() {
		pending.Wait()
		close(idle)
	}()

	select {
	case <-idle:
	case <-crawlCtx.Done():
	}
	stop()
	_ = g.Wait()

	// Release jobs that were queued but never picked up.
	for drained := false; !drained; {
		select {
		case <-queue:
			pending.Done()
		default:
			drained = true
		}
	}
	<-idle

	c.mu.Lock()
	defer c.mu.Unlock()
	products := c.products
	if c.cfg.Limit > 0 && len(products) > c.cfg.Limit {
		products = products[:c.cfg.Limit]
	}
	if err := ctx.Err(); err != nil {
		return products, err
	}
	return products, nil
}

// process fetches one listing page and queues its links. It reports whether
// the product limit has been reached.
func (c *Crawler) process(ctx context.Context, j job, queue chan<- job, pending *sync.WaitGroup) bool {
	if c.auditor != nil {
		allowed, err := c.auditor.IsAllowed(ctx, j.URL, c.cfg.UserAgent)
		if err != nil {
			c.logger.Warn("error checking robots.txt", "url", j.URL, "err", err)
		} else if !allowed {
			c.logger.Debug("url blocked by robots.txt", "url", j.URL)
			return false
		}
	}

	c.logger.Debug("fetching listing page", "url", j.URL, "depth", j.Depth)
	page, err := c.fetcher.Fetch(ctx, j.URL)
	if err != nil || !page.OK() {
		if page != nil {
			c.logger.Debug("listing page skipped", "url", j.URL, "status", page.StatusCode, "challenge", page.ChallengeSource, "err", page.Error)
		}
		return false
	}
	if !strings.Contains(strings.ToLower(page.Header.Get("Content-Type")), "text/html") {
		return false
	}

	base := page.FinalURL
	if base == "" {
		base = j.URL
	}
	for _, link := range extractLinks(base, page.Body) {
		if !c.inScope(link) {
			continue
		}
		if c.isProduct(link) {
			if c.record(link) {
				return true
			}
			continue
		}
		if j.Depth >= c.cfg.MaxDepth || !c.claim(link) {
			continue
		}
		pending.Add(1)
		select {
		case queue <- job{URL: link, Depth: j.Depth + 1}:
		case <-ctx.Done():
			pending.Done()
			return false
		}
	}
	return false
}

func (c *Crawler) isProduct(rawURL string) bool {
	return c.cfg.Match != "" && strings.Contains(rawURL, c.cfg.Match)
}

// record stores a product URL, ignoring query and fragment, and reports
// whether the limit is now reached.
func (c *Crawler) record(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	u.RawQuery = ""
	u.Fragment = ""
	normalized := u.String()

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, seen := c.visited[normalized]; !seen {
		c.visited[normalized] = struct{}{}
		c.products = append(c.products, normalized)
	}
	return c.cfg.Limit > 0 && len(c.products) >= c.cfg.Limit
}

// claim marks a listing URL visited. It fails for seen URLs and once the
// page budget is spent.
func (c *Crawler) claim(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	u.Fragment = ""
	normalized := u.String()

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, seen := c.visited[normalized]; seen {
		return false
	}
	if len(c.visited)-len(c.products) >= c.cfg.MaxPages {
		return false
	}
	c.visited[normalized] = struct{}{}
	return true
}

func (c *Crawler) inScope(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := strings.ToLower(u.Hostname())

	c.mu.Lock()
	defer c.mu.Unlock()
	for h := range c.hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func extractLinks(baseURL string, body []byte) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		u, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		links = append(links, base.ResolveReference(u).String())
	})
	return links
}
