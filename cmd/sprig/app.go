package main

import (
	"context"
	"fmt"

	"github.com/FranksOps/sprig/internal/fingerprint"
	"github.com/FranksOps/sprig/internal/keyword"
	"github.com/FranksOps/sprig/internal/research"
	"github.com/FranksOps/sprig/internal/scraper"
	"github.com/FranksOps/sprig/internal/storage"
	"github.com/FranksOps/sprig/internal/storage/csvbackend"
	"github.com/FranksOps/sprig/internal/storage/jsonbackend"
	"github.com/FranksOps/sprig/internal/storage/postgres"
	"github.com/FranksOps/sprig/internal/storage/sqlite"
	"github.com/FranksOps/sprig/pkg/proxy"
	"github.com/FranksOps/sprig/pkg/ratelimit"
	"github.com/FranksOps/sprig/pkg/useragent"
)

// proxyPool builds the egress pool shared by provider and page requests.
// An empty pool routes through the environment's proxy settings.
func proxyPool() (*proxy.Pool, error) {
	pool := proxy.NewPool(proxy.Config{})
	if err := pool.Add(cfg.Provider.Proxies...); err != nil {
		return nil, fmt.Errorf("loading proxies: %w", err)
	}
	if cfg.Provider.ProxyFile != "" {
		if err := pool.LoadFile(cfg.Provider.ProxyFile); err != nil {
			return nil, fmt.Errorf("loading proxy file: %w", err)
		}
	}
	return pool, nil
}

// newService wires the provider, quota gate and optional title resolution
// into a research.Service.
func newService(rank string) (*research.Service, error) {
	pool, err := proxyPool()
	if err != nil {
		return nil, err
	}

	profile, err := fingerprint.ParseProfile(cfg.Provider.TLSProfile, fingerprint.ProfileGo)
	if err != nil {
		return nil, err
	}
	transport, err := fingerprint.NewTransport(fingerprint.Options{
		Profile: profile,
		Proxy:   pool.ProxyFunc(),
	})
	if err != nil {
		return nil, fmt.Errorf("provider transport: %w", err)
	}

	pcfg, quota := cfg.ProviderSettings()
	pcfg.Transport = transport
	pcfg.UserAgent = useragent.Client("sprig", version)

	rcfg, err := cfg.ResearchSettings()
	if err != nil {
		return nil, err
	}
	if rank != "" {
		if rcfg.Ranker, err = keyword.RankerFor(rank); err != nil {
			return nil, err
		}
	}

	if cfg.Scraper.ResolveTitles {
		fetcher, err := newFetcher(pool)
		if err != nil {
			return nil, err
		}
		var auditor *scraper.RobotsTxtAuditor
		if cfg.Scraper.RespectRobots {
			auditor = scraper.NewRobotsTxtAuditor(fetcher, logger)
		}
		rcfg.Titles = scraper.NewTitleResolver(fetcher, auditor, "sprig", logger)
	}

	return research.Open(pcfg, quota, rcfg, logger)
}

// newFetcher builds the storefront page fetcher.
func newFetcher(pool *proxy.Pool) (*scraper.Fetcher, error) {
	profile, err := fingerprint.ParseProfile(cfg.Scraper.TLSProfile, fingerprint.ProfileChrome)
	if err != nil {
		return nil, err
	}
	return scraper.NewFetcher(scraper.FetchConfig{
		Timeout:      cfg.Scraper.Timeout,
		UseCookieJar: true,
		ProxyPool:    pool,
		UAPool:       useragent.NewPool(cfg.Scraper.UserAgents),
		Fingerprint:  profile,
		Limiter:      ratelimit.NewLimiter(cfg.Scraper.RPS, 1, 0.3),
	})
}

// openStore opens the configured run archive. It returns nil when storage
// is disabled.
func openStore(ctx context.Context) (storage.Backend, error) {
	switch cfg.Storage.Backend {
	case "none":
		return nil, nil
	case "sqlite":
		return sqlite.New(cfg.Storage.DSN)
	case "postgres":
		return postgres.New(ctx, cfg.Storage.DSN)
	case "json":
		return jsonbackend.New(cfg.Storage.DSN)
	case "csv":
		return csvbackend.New(cfg.Storage.DSN)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
