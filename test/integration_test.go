//go:build integration

package test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FranksOps/sprig/internal/fingerprint"
	"github.com/FranksOps/sprig/internal/keyword"
	"github.com/FranksOps/sprig/internal/provider"
	"github.com/FranksOps/sprig/internal/report"
	"github.com/FranksOps/sprig/internal/research"
	"github.com/FranksOps/sprig/internal/scraper"
	"github.com/FranksOps/sprig/internal/storage"
	"github.com/FranksOps/sprig/internal/storage/sqlite"
	"github.com/FranksOps/sprig/pkg/proxy"
	"github.com/FranksOps/sprig/pkg/ratelimit"
	"github.com/FranksOps/sprig/pkg/useragent"
)

// dataForSEO is a minimal keyword data API. Every requested keyword gets a
// volume; suggestions return two related phrases.
func dataForSEO(t *testing.T, hits *int32) http.Handler {
	t.Helper()
	envelope := func(w http.ResponseWriter, result string) {
		fmt.Fprintf(w, `{"status_code":20000,"status_message":"Ok.","cost":0.01,"tasks":[{"status_code":20000,"status_message":"Ok.","result":%s}]}`, result)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v3/keywords_data/google_ads/search_volume/live", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		var tasks []struct {
			Keywords []string `json:"keywords"`
		}
		if err := json.NewDecoder(r.Body).Decode(&tasks); err != nil || len(tasks) != 1 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if len(tasks[0].Keywords) > keyword.MaxProviderBatch {
			t.Errorf("batch of %d keywords exceeds the provider limit", len(tasks[0].Keywords))
		}
		items := make([]string, 0, len(tasks[0].Keywords))
		for i, kw := range tasks[0].Keywords {
			items = append(items, fmt.Sprintf(`{"keyword":%q,"search_volume":%d,"competition":0.3,"cpc":0.8}`, kw, 5000-i*100))
		}
		envelope(w, "["+strings.Join(items, ",")+"]")
	})
	mux.HandleFunc("/v3/dataforseo_labs/google/keyword_suggestions/live", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		envelope(w, `[{"items":[
			{"keyword":"cast iron skillet seasoning","keyword_info":{"search_volume":2400}},
			{"keyword":"cast iron skillet care","keyword_info":{"search_volume":900}}
		]}]`)
	})
	mux.HandleFunc("/v3/dataforseo_labs/google/keyword_ideas/live", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		envelope(w, `[{"items":[]}]`)
	})
	return mux
}

func storefront(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var base string
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "User-agent: *\nDisallow: /admin/\nSitemap: %s/sitemap.xml\n", base)
	})
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>%[1]s/products/lodge-cast-iron-skillet-12in</loc></url>
  <url><loc>%[1]s/pages/about</loc></url>
  <url><loc>%[1]s/products/blocked-item</loc></url>
</urlset>`, base)
	})
	mux.HandleFunc("/products/lodge-cast-iron-skillet-12in", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Lodge Cast Iron Skillet 12in | Kitchen Co</title></head></html>`)
	})
	mux.HandleFunc("/products/blocked-item", func(w http.ResponseWriter, r *http.Request) {
		// Simulate a bot defense page from Cloudflare
		w.Header().Set("Server", "cloudflare")
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `<html><body>cf-browser-verification</body></html>`)
	})
	ts := httptest.NewServer(mux)
	base = ts.URL
	t.Cleanup(ts.Close)
	return ts
}

func TestIntegration_SitemapToArchive(t *testing.T) {
	var hits int32
	api := httptest.NewServer(dataForSEO(t, &hits))
	defer api.Close()
	shop := storefront(t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	fetcher, err := scraper.NewFetcher(scraper.FetchConfig{
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
		Limiter:     ratelimit.NewLimiter(0, 0, 0),
	})
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}

	// 1. Discover product URLs through robots.txt and the sitemap
	auditor := scraper.NewRobotsTxtAuditor(fetcher, logger)
	sitemaps, err := auditor.Sitemaps(ctx, shop.URL)
	if err != nil || len(sitemaps) != 1 {
		t.Fatalf("expected one sitemap from robots.txt, got %v (%v)", sitemaps, err)
	}
	products, err := scraper.NewSitemapFetcher(fetcher, logger).ProductURLs(ctx, sitemaps[0], scraper.URLFilter{Match: "/products/"})
	if err != nil {
		t.Fatalf("sitemap failed: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 product URLs, got %v", products)
	}

	// 2. Research each product with title resolution
	svc, err := research.Open(
		provider.Config{Login: "user", Password: "secret", BaseURL: api.URL},
		provider.QuotaConfig{MaxConcurrent: 2},
		research.Config{Titles: scraper.NewTitleResolver(fetcher, auditor, "sprig", logger)},
		logger,
	)
	if err != nil {
		t.Fatalf("failed to open research service: %v", err)
	}

	store, err := sqlite.New(filepath.Join(t.TempDir(), "sprig.db"))
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	defer store.Close()

	for _, u := range products {
		res, err := svc.Research(ctx, u)
		if err != nil {
			t.Fatalf("research %s failed: %v", u, err)
		}
		if err := store.Save(ctx, storage.NewRun(u, res, nil)); err != nil {
			t.Fatalf("failed to archive: %v", err)
		}
	}

	// 3. Verify the archive
	runs, err := store.Query(ctx, storage.Filter{Input: products[0]})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 archived run, got %d", len(runs))
	}
	run := runs[0]
	if run.Kind != keyword.KindURL {
		t.Errorf("expected url kind, got %s", run.Kind)
	}
	if !strings.Contains(run.Seed, "skillet") {
		t.Errorf("expected seed from the page title, got %q", run.Seed)
	}
	if run.SuggestionsAdded == 0 {
		t.Errorf("expected suggestions to expand the set")
	}

	all, err := store.Query(ctx, storage.Filter{})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	summary := report.GenerateSummary(all)
	if summary.TotalRuns != 2 || summary.FailedRuns != 0 || summary.UniqueKeywords == 0 {
		t.Errorf("unexpected summary %+v", summary)
	}
	if atomic.LoadInt32(&hits) == 0 {
		t.Error("expected provider calls")
	}
}

func TestIntegration_ProviderThroughProxy(t *testing.T) {
	var hits, proxyHits int32
	api := dataForSEO(t, &hits)

	// The proxy answers as the API itself, proving requests went through it.
	proxySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&proxyHits, 1)
		if r.URL.Host != "api.dataforseo.invalid" {
			t.Errorf("expected absolute request for the API host, got %s", r.URL)
		}
		if got := r.Header.Get("User-Agent"); !strings.HasPrefix(got, "sprig/") {
			t.Errorf("expected sprig User-Agent, got %q", got)
		}
		api.ServeHTTP(w, r)
	}))
	defer proxySrv.Close()

	pool := proxy.NewPool(proxy.Config{})
	if err := pool.Add(proxySrv.URL); err != nil {
		t.Fatalf("failed to add proxy: %v", err)
	}
	transport, err := fingerprint.NewTransport(fingerprint.Options{Profile: fingerprint.ProfileGo, Proxy: pool.ProxyFunc()})
	if err != nil {
		t.Fatalf("failed to build transport: %v", err)
	}

	svc, err := research.Open(
		provider.Config{
			Login:     "user",
			Password:  "secret",
			BaseURL:   "http://api.dataforseo.invalid",
			UserAgent: useragent.Client("sprig", "test"),
			Transport: transport,
		},
		provider.QuotaConfig{RequestsPerSecond: 50, Burst: 5},
		research.Config{DisableExpansion: true},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	if err != nil {
		t.Fatalf("failed to open research service: %v", err)
	}

	kws, err := svc.GetKeywordsForProduct(context.Background(), "water softener")
	if err != nil {
		t.Fatalf("research failed: %v", err)
	}
	if len(kws) == 0 {
		t.Fatal("expected keywords")
	}
	if atomic.LoadInt32(&proxyHits) == 0 {
		t.Errorf("expected proxy server to be hit, got 0")
	}
}
