package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/FranksOps/sprig/internal/keyword"
	"github.com/FranksOps/sprig/internal/metrics"
	"github.com/FranksOps/sprig/internal/provider"
)

const (
	DefaultMaxResults      = 30
	DefaultMinBeforeIdeas  = 20
	DefaultSuggestionLimit = 100
	DefaultIdeaLimit       = 100
	DefaultCandidateLimit  = 30
)

var (
	// ErrConfig marks a construction failure: missing credentials, a bad
	// provider URL or a missing provider.
	ErrConfig = errors.New("research: invalid configuration")
	// ErrEmptyResult is returned when the primary lookup succeeded but no
	// valid keyword survived assembly.
	ErrEmptyResult = errors.New("research: no valid keywords")
	// ErrEmptySeed is returned when the input reduces to an empty seed.
	ErrEmptySeed = fmt.Errorf("%w: seed is empty", ErrEmptyResult)
)

// TitleSource resolves a product page URL to its human title.
type TitleSource interface {
	ResolveTitle(ctx context.Context, rawURL string) (string, error)
}

// Config is the immutable setup of a Service. Zero values pick the defaults.
type Config struct {
	Language string
	Location int

	MaxResults      int
	MinBeforeIdeas  int
	SuggestionLimit int
	IdeaLimit       int
	CandidateLimit  int

	DisableExpansion bool

	// Ranker orders the final list; nil means keyword.ByVolume.
	Ranker keyword.Ranker
	// Tables overrides the normalization tables.
	Tables *keyword.Tables
	// Titles, when set, replaces URL path seeds with the page title.
	Titles TitleSource
}

// Result is one pipeline run with the intermediate values callers archive.
type Result struct {
	Seed             keyword.Seed     `json:"seed"`
	Variations       []string         `json:"variations"`
	Keywords         []keyword.Record `json:"keywords"`
	Ranker           string           `json:"ranker"`
	Primary          int              `json:"primary"`
	SuggestionsAdded int              `json:"suggestionsAdded"`
	IdeasAdded       int              `json:"ideasAdded"`
	Duration         time.Duration    `json:"duration"`
}

// Service runs the keyword research pipeline. It holds no mutable state and
// is safe for concurrent use.
type Service struct {
	cfg      Config
	provider provider.Provider
	norm     *keyword.Normalizer
	ranker   keyword.Ranker
	logger   *slog.Logger
}

// New builds a Service over p.
func New(p provider.Provider, cfg Config, logger *slog.Logger) (*Service, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: provider is nil", ErrConfig)
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.MinBeforeIdeas <= 0 {
		cfg.MinBeforeIdeas = DefaultMinBeforeIdeas
	}
	if cfg.SuggestionLimit <= 0 {
		cfg.SuggestionLimit = DefaultSuggestionLimit
	}
	if cfg.IdeaLimit <= 0 {
		cfg.IdeaLimit = DefaultIdeaLimit
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = DefaultCandidateLimit
	}
	if logger == nil {
		logger = slog.Default()
	}

	norm := keyword.Default()
	if cfg.Tables != nil {
		norm = keyword.NewNormalizer(*cfg.Tables)
	}
	ranker := cfg.Ranker
	if ranker == nil {
		ranker = keyword.ByVolume
	}

	return &Service{
		cfg:      cfg,
		provider: p,
		norm:     norm,
		ranker:   ranker,
		logger:   logger,
	}, nil
}

// Open builds a DataForSEO provider behind a quota gate and a Service over
// it. Credential and URL problems are reported as ErrConfig.
func Open(pcfg provider.Config, quota provider.QuotaConfig, cfg Config, logger *slog.Logger) (*Service, error) {
	p, err := provider.NewDataForSEO(pcfg, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if cfg.Language == "" {
		cfg.Language = p.Language()
	}
	if cfg.Location == 0 {
		cfg.Location = p.Location()
	}
	return New(provider.NewThrottled(p, quota), cfg, logger)
}

// GetKeywordsForProduct returns the ranked keywords for a product title,
// product URL or topic. The list is non-empty on success.
func (s *Service) GetKeywordsForProduct(ctx context.Context, input string) ([]keyword.Record, error) {
	res, err := s.Research(ctx, input)
	if err != nil {
		return nil, err
	}
	return res.Keywords, nil
}

// Research runs the full pipeline for input.
func (s *Service) Research(ctx context.Context, input string) (res *Result, err error) {
	start := time.Now()
	seed := s.extract(ctx, input)
	defer func() {
		n := 0
		if res != nil {
			n = len(res.Keywords)
		}
		metrics.RecordRun(string(seed.Kind), n, err)
	}()

	base := s.norm.Sanitize(seed.Phrase)
	if base == "" {
		return nil, fmt.Errorf("%w: %q", ErrEmptySeed, input)
	}
	variations := s.norm.BuildVariations(base)

	s.logger.Debug("primary lookup", "input", input, "kind", seed.Kind, "seed", base, "variations", len(variations))
	rows, err := s.provider.SearchVolume(ctx, variations, s.cfg.Language, s.cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("research: primary lookup: %w", err)
	}

	records := s.norm.Assemble(rows, nil)
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrEmptyResult, base)
	}

	res = &Result{
		Seed:       seed,
		Variations: variations,
		Ranker:     s.ranker.Name(),
		Primary:    len(records),
	}
	if !s.cfg.DisableExpansion {
		records = s.expand(ctx, records, res)
	}

	ranked := s.ranker.Rank(records)
	if len(ranked) > s.cfg.MaxResults {
		ranked = ranked[:s.cfg.MaxResults]
	}
	res.Keywords = ranked
	res.Duration = time.Since(start)

	s.logger.Info("research complete",
		"input", input,
		"seed", base,
		"keywords", len(ranked),
		"suggestions", res.SuggestionsAdded,
		"ideas", res.IdeasAdded,
		"duration", res.Duration,
	)
	return res, nil
}

// extract derives the seed. URL inputs use the resolved page title when a
// TitleSource is configured and it yields usable text.
func (s *Service) extract(ctx context.Context, input string) keyword.Seed {
	seed := s.norm.Extract(input)
	if seed.Kind != keyword.KindURL || s.cfg.Titles == nil {
		return seed
	}

	title, err := s.cfg.Titles.ResolveTitle(ctx, seed.Input)
	if err != nil {
		s.logger.Debug("title resolution failed, using url path", "url", seed.Input, "err", err)
		return seed
	}
	if strings.TrimSpace(s.norm.Sanitize(title)) == "" {
		return seed
	}
	seed.Phrase = s.norm.ToCategory(title)
	return seed
}
