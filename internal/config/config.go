// Package config provides Viper-based configuration for sprig.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/FranksOps/sprig/internal/fingerprint"
	"github.com/FranksOps/sprig/internal/keyword"
	"github.com/FranksOps/sprig/internal/provider"
	"github.com/FranksOps/sprig/internal/research"
)

// Config is the complete sprig configuration.
type Config struct {
	Provider ProviderConfig `mapstructure:"provider"`
	Research ResearchConfig `mapstructure:"research"`
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ProviderConfig holds keyword data API credentials and quota.
type ProviderConfig struct {
	Login         string        `mapstructure:"login"`
	Password      string        `mapstructure:"password"`
	BaseURL       string        `mapstructure:"base_url"`
	Language      string        `mapstructure:"language"`
	Location      int           `mapstructure:"location"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RPS           float64       `mapstructure:"rps"`
	Burst         int           `mapstructure:"burst"`
	Jitter        float64       `mapstructure:"jitter"`
	MaxConcurrent int64         `mapstructure:"max_concurrent"`
	TLSProfile    string        `mapstructure:"tls_profile"`
	Proxies       []string      `mapstructure:"proxies"`
	ProxyFile     string        `mapstructure:"proxy_file"`
}

// ResearchConfig tunes the pipeline.
type ResearchConfig struct {
	MaxResults      int    `mapstructure:"max_results"`
	Expand          bool   `mapstructure:"expand"`
	MinBeforeIdeas  int    `mapstructure:"min_before_ideas"`
	SuggestionLimit int    `mapstructure:"suggestion_limit"`
	IdeaLimit       int    `mapstructure:"idea_limit"`
	Rank            string `mapstructure:"rank"`
	LegacyFallback  bool   `mapstructure:"legacy_fallback"`
	Concurrency     int    `mapstructure:"concurrency"`
}

// ScraperConfig covers product page and storefront fetching.
type ScraperConfig struct {
	ResolveTitles bool          `mapstructure:"resolve_titles"`
	RespectRobots bool          `mapstructure:"respect_robots"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RPS           float64       `mapstructure:"rps"`
	TLSProfile    string        `mapstructure:"tls_profile"`
	UserAgents    []string      `mapstructure:"user_agents"`
	CrawlDepth    int           `mapstructure:"crawl_depth"`
}

// StorageConfig selects the run archive.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	DSN     string `mapstructure:"dsn"`
}

// MetricsConfig controls the Prometheus endpoint. Port 0 disables it.
type MetricsConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables. A missing
// config file is not an error.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".sprig")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/sprig")
	}

	// SPRIG_PROVIDER_LOGIN maps to provider.login
	v.SetEnvPrefix("SPRIG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values. Every key needs a default so
// AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("provider.login", "")
	v.SetDefault("provider.password", "")
	v.SetDefault("provider.base_url", provider.DefaultBaseURL)
	v.SetDefault("provider.language", provider.DefaultLanguage)
	v.SetDefault("provider.location", provider.DefaultLocation)
	v.SetDefault("provider.timeout", provider.DefaultTimeout)
	v.SetDefault("provider.rps", 2.0)
	v.SetDefault("provider.burst", 2)
	v.SetDefault("provider.jitter", 0.1)
	v.SetDefault("provider.max_concurrent", 4)
	v.SetDefault("provider.tls_profile", string(fingerprint.ProfileGo))
	v.SetDefault("provider.proxies", []string{})
	v.SetDefault("provider.proxy_file", "")

	v.SetDefault("research.max_results", research.DefaultMaxResults)
	v.SetDefault("research.expand", true)
	v.SetDefault("research.min_before_ideas", research.DefaultMinBeforeIdeas)
	v.SetDefault("research.suggestion_limit", research.DefaultSuggestionLimit)
	v.SetDefault("research.idea_limit", research.DefaultIdeaLimit)
	v.SetDefault("research.rank", keyword.ByVolume.Name())
	v.SetDefault("research.legacy_fallback", false)
	v.SetDefault("research.concurrency", 4)

	v.SetDefault("scraper.resolve_titles", false)
	v.SetDefault("scraper.respect_robots", true)
	v.SetDefault("scraper.timeout", 15*time.Second)
	v.SetDefault("scraper.rps", 1.0)
	v.SetDefault("scraper.tls_profile", string(fingerprint.ProfileChrome))
	v.SetDefault("scraper.user_agents", []string{})
	v.SetDefault("scraper.crawl_depth", 2)

	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.dsn", "sprig.db")

	v.SetDefault("metrics.port", 0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

var storageBackends = map[string]bool{"sqlite": true, "postgres": true, "json": true, "csv": true, "none": true}

// Validate checks the configuration for errors. Credentials are not
// required here so offline commands work without them.
func (c *Config) Validate() error {
	if c.Provider.BaseURL != "" {
		u, err := url.Parse(c.Provider.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid provider base_url: %q", c.Provider.BaseURL)
		}
	}
	if c.Provider.Timeout < 0 || c.Scraper.Timeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if c.Provider.Jitter < 0 || c.Provider.Jitter > 1 {
		return fmt.Errorf("invalid provider jitter: %v (must be between 0 and 1)", c.Provider.Jitter)
	}
	if _, err := fingerprint.ParseProfile(c.Provider.TLSProfile, fingerprint.ProfileGo); err != nil {
		return fmt.Errorf("invalid provider tls_profile: %w", err)
	}
	if _, err := fingerprint.ParseProfile(c.Scraper.TLSProfile, fingerprint.ProfileChrome); err != nil {
		return fmt.Errorf("invalid scraper tls_profile: %w", err)
	}

	if c.Research.MaxResults < 1 {
		return fmt.Errorf("invalid research max_results: %d (must be at least 1)", c.Research.MaxResults)
	}
	if _, err := keyword.RankerFor(c.Research.Rank); err != nil {
		return fmt.Errorf("invalid research rank: %w", err)
	}
	if c.Research.Concurrency < 1 {
		return fmt.Errorf("invalid research concurrency: %d (must be at least 1)", c.Research.Concurrency)
	}

	if !storageBackends[c.Storage.Backend] {
		return fmt.Errorf("invalid storage backend: %s (must be sqlite, postgres, json, csv, or none)", c.Storage.Backend)
	}
	if c.Storage.Backend != "none" && c.Storage.DSN == "" {
		return fmt.Errorf("storage backend %s requires a dsn", c.Storage.Backend)
	}

	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Metrics.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s (must be text or json)", c.Logging.Format)
	}

	return nil
}

// ProviderSettings converts the provider section for provider.NewDataForSEO.
// Transport and UserAgent are left to the caller.
func (c *Config) ProviderSettings() (provider.Config, provider.QuotaConfig) {
	p := c.Provider
	return provider.Config{
			Login:    p.Login,
			Password: p.Password,
			BaseURL:  p.BaseURL,
			Language: p.Language,
			Location: p.Location,
			Timeout:  p.Timeout,
		}, provider.QuotaConfig{
			RequestsPerSecond: p.RPS,
			Burst:             p.Burst,
			Jitter:            p.Jitter,
			MaxConcurrent:     p.MaxConcurrent,
		}
}

// ResearchSettings converts the research section for research.New.
func (c *Config) ResearchSettings() (research.Config, error) {
	r := c.Research
	ranker, err := keyword.RankerFor(r.Rank)
	if err != nil {
		return research.Config{}, err
	}
	cfg := research.Config{
		Language:         c.Provider.Language,
		Location:         c.Provider.Location,
		MaxResults:       r.MaxResults,
		MinBeforeIdeas:   r.MinBeforeIdeas,
		SuggestionLimit:  r.SuggestionLimit,
		IdeaLimit:        r.IdeaLimit,
		DisableExpansion: !r.Expand,
		Ranker:           ranker,
	}
	if r.LegacyFallback {
		tables := keyword.LegacyTables()
		cfg.Tables = &tables
	}
	return cfg, nil
}
