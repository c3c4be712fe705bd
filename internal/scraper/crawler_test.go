package scraper

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/FranksOps/sprig/internal/fingerprint"
)

func html(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte("<html><body>" + body + "</body></html>"))
}

func storefront(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		html(w, `<a href="/collections/cookware">Cookware</a>
			<a href="/products/dutch-oven">Dutch Oven</a>
			<a href="/products/grill-press?variant=2#reviews">Grill Press</a>
			<a href="http://external.example.org/products/elsewhere">Elsewhere</a>
			<a href="mailto:help@example.com">Mail</a>`)
	})
	mux.HandleFunc("/collections/cookware", func(w http.ResponseWriter, r *http.Request) {
		html(w, `<a href="/products/cast-iron-skillet-12in">Skillet</a>
			<a href="/products/dutch-oven">Dutch Oven again</a>
			<a href="/collections/cookware/page-2">More</a>`)
	})
	mux.HandleFunc("/collections/cookware/page-2", func(w http.ResponseWriter, r *http.Request) {
		html(w, `<a href="/products/carbon-steel-wok">Wok</a>`)
	})
	mux.HandleFunc("/products/", func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("product page %s should be recorded, not fetched", r.URL.Path)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func newTestFetcher() *Fetcher {
	fetcher, _ := NewFetcher(FetchConfig{
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
	})
	return fetcher
}

func TestCrawler_Discover(t *testing.T) {
	ts := storefront(t)

	crawler := NewCrawler(CrawlConfig{
		MaxDepth:    2,
		Concurrency: 2,
		Match:       "/products/",
	}, newTestFetcher(), slog.Default())

	products, err := crawler.Discover(context.Background(), []string{ts.URL + "/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		ts.URL + "/products/carbon-steel-wok",
		ts.URL + "/products/cast-iron-skillet-12in",
		ts.URL + "/products/dutch-oven",
		ts.URL + "/products/grill-press",
	}
	slices.Sort(products)
	if !slices.Equal(products, want) {
		t.Errorf("expected %v, got %v", want, products)
	}
}

func TestCrawler_DepthLimit(t *testing.T) {
	ts := storefront(t)

	crawler := NewCrawler(CrawlConfig{MaxDepth: 1, Concurrency: 1, Match: "/products/"}, newTestFetcher(), nil)
	products, err := crawler.Discover(context.Background(), []string{ts.URL + "/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slices.Contains(products, ts.URL+"/products/carbon-steel-wok") {
		t.Errorf("page-2 product found beyond max depth: %v", products)
	}
	if len(products) != 3 {
		t.Errorf("expected 3 products, got %v", products)
	}
}

func TestCrawler_Limit(t *testing.T) {
	ts := storefront(t)

	crawler := NewCrawler(CrawlConfig{MaxDepth: 2, Concurrency: 1, Match: "/products/", Limit: 1}, newTestFetcher(), nil)
	products, err := crawler.Discover(context.Background(), []string{ts.URL + "/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(products) != 1 {
		t.Errorf("expected 1 product, got %v", products)
	}
}

func TestCrawler_ProductSeed(t *testing.T) {
	crawler := NewCrawler(CrawlConfig{Match: "/products/"}, newTestFetcher(), nil)
	products, err := crawler.Discover(context.Background(), []string{"https://shop.example.com/products/kettle?variant=1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(products) != 1 || products[0] != "https://shop.example.com/products/kettle" {
		t.Errorf("expected seed product recorded without fetching, got %v", products)
	}
}

func TestCrawler_RobotsTxt(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /collections/private\n"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		html(w, `<a href="/collections/open">Open</a><a href="/collections/private">Private</a>`)
	})
	mux.HandleFunc("/collections/open", func(w http.ResponseWriter, r *http.Request) {
		html(w, `<a href="/products/kettle">Kettle</a>`)
	})
	mux.HandleFunc("/collections/private", func(w http.ResponseWriter, r *http.Request) {
		t.Error("requested /collections/private but robots.txt forbids it")
		html(w, `<a href="/products/secret">Secret</a>`)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	crawler := NewCrawler(CrawlConfig{
		MaxDepth:      2,
		Concurrency:   1,
		Match:         "/products/",
		RespectRobots: true,
		UserAgent:     "sprig",
	}, newTestFetcher(), slog.Default())

	products, err := crawler.Discover(context.Background(), []string{ts.URL + "/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(products) != 1 || products[0] != ts.URL+"/products/kettle" {
		t.Errorf("expected only the kettle, got %v", products)
	}
}

func TestCrawler_ContextCancellation(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		html(w, `<a href="/next">Next</a>`)
	}))
	defer ts.Close()

	crawler := NewCrawler(CrawlConfig{MaxDepth: 5, Concurrency: 1, Match: "/products/"}, newTestFetcher(), nil)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error)
	go func() {
		_, err := crawler.Discover(ctx, []string{ts.URL + "/"})
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context canceled error, got %v", err)
	}
}
