package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/FranksOps/sprig/internal/keyword"
	"github.com/FranksOps/sprig/internal/metrics"
	"github.com/FranksOps/sprig/pkg/httpclient"
)

const (
	DefaultBaseURL  = "https://api.dataforseo.com"
	DefaultLanguage = "en"
	DefaultLocation = 2840 // United States
	DefaultTimeout  = 45 * time.Second

	successCode      = 20000
	maxResponseBytes = 16 << 20

	pathSearchVolume = "/v3/keywords_data/google_ads/search_volume/live"
	pathSuggestions  = "/v3/dataforseo_labs/google/keyword_suggestions/live"
	pathIdeas        = "/v3/dataforseo_labs/google/keyword_ideas/live"
)

// Config holds the static credentials and defaults for DataForSEO. It is
// read-only after construction.
type Config struct {
	Login    string
	Password string
	BaseURL  string
	Language string
	Location int
	Timeout  time.Duration
	// UserAgent identifies the client to the provider.
	UserAgent string
	// Transport overrides the HTTP transport, e.g. for egress proxies.
	Transport http.RoundTripper
}

// DataForSEO implements Provider against the DataForSEO v3 live endpoints.
type DataForSEO struct {
	cfg    Config
	base   string
	client *httpclient.Client
	logger *slog.Logger
}

// ensure DataForSEO implements Provider
var _ Provider = (*DataForSEO)(nil)

// NewDataForSEO validates cfg and builds a client. It never touches the
// network; missing credentials fail here.
func NewDataForSEO(cfg Config, logger *slog.Logger) (*DataForSEO, error) {
	if strings.TrimSpace(cfg.Login) == "" || strings.TrimSpace(cfg.Password) == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, cfg.BaseURL)
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	if cfg.Location == 0 {
		cfg.Location = DefaultLocation
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:   cfg.Timeout,
		UserAgent: cfg.UserAgent,
		Header:    http.Header{"Accept": {"application/json"}},
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &DataForSEO{
		cfg:    cfg,
		base:   strings.TrimRight(u.String(), "/"),
		client: client,
		logger: logger,
	}, nil
}

// Language returns the default language code.
func (d *DataForSEO) Language() string { return d.cfg.Language }

// Location returns the default location code.
func (d *DataForSEO) Location() int { return d.cfg.Location }

type volumeTask struct {
	Keywords     []string `json:"keywords"`
	LanguageCode string   `json:"language_code"`
	LocationCode int      `json:"location_code"`
}

type volumeItem struct {
	Keyword          string          `json:"keyword"`
	SearchVolume     *int            `json:"search_volume"`
	Competition      flexFloat       `json:"competition"`
	CompetitionIndex *float64        `json:"competition_index"`
	CPC              *float64        `json:"cpc"`
	MonthlySearches  []monthlySearch `json:"monthly_searches"`
}

// SearchVolume implements Provider.
func (d *DataForSEO) SearchVolume(ctx context.Context, keywords []string, language string, location int) ([]keyword.Row, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	if len(keywords) > keyword.MaxProviderBatch {
		return nil, fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(keywords), keyword.MaxProviderBatch)
	}
	language, location = d.locale(language, location)

	raw, err := d.post(ctx, "search_volume", pathSearchVolume, []volumeTask{{
		Keywords:     keywords,
		LanguageCode: language,
		LocationCode: location,
	}})
	if err != nil {
		return nil, err
	}

	var items []volumeItem
	if err := decodeResult(raw, &items); err != nil {
		return nil, fmt.Errorf("provider search_volume: %w", err)
	}

	rows := make([]keyword.Row, 0, len(items))
	for _, it := range items {
		competition := it.Competition.v
		if it.CompetitionIndex != nil {
			c := *it.CompetitionIndex / 100
			competition = &c
		}
		rows = append(rows, keyword.Row{
			Keyword:      it.Keyword,
			SearchVolume: it.SearchVolume,
			Competition:  competition,
			CPC:          it.CPC,
			Monthly:      chronological(it.MonthlySearches),
		})
	}
	return rows, nil
}

type suggestionsTask struct {
	Keyword      string `json:"keyword"`
	LanguageCode string `json:"language_code"`
	LocationCode int    `json:"location_code"`
	Limit        int    `json:"limit"`
}

type ideasTask struct {
	Keywords     []string `json:"keywords"`
	LanguageCode string   `json:"language_code"`
	LocationCode int      `json:"location_code"`
	Limit        int      `json:"limit"`
	Filters      []any    `json:"filters,omitempty"`
}

type labsResult struct {
	Items []labsItem `json:"items"`
}

type labsItem struct {
	Keyword     string `json:"keyword"`
	KeywordInfo struct {
		SearchVolume    *int            `json:"search_volume"`
		Competition     flexFloat       `json:"competition"`
		CPC             *float64        `json:"cpc"`
		MonthlySearches []monthlySearch `json:"monthly_searches"`
	} `json:"keyword_info"`
}

// Suggestions implements Provider.
func (d *DataForSEO) Suggestions(ctx context.Context, seed string, language string, location int, limit int) ([]keyword.Row, error) {
	language, location = d.locale(language, location)
	raw, err := d.post(ctx, "keyword_suggestions", pathSuggestions, []suggestionsTask{{
		Keyword:      seed,
		LanguageCode: language,
		LocationCode: location,
		Limit:        limit,
	}})
	if err != nil {
		return nil, err
	}
	return labsRows("keyword_suggestions", raw)
}

// Ideas implements Provider.
func (d *DataForSEO) Ideas(ctx context.Context, seed string, language string, location int, volume VolumeRange, limit int) ([]keyword.Row, error) {
	language, location = d.locale(language, location)
	raw, err := d.post(ctx, "keyword_ideas", pathIdeas, []ideasTask{{
		Keywords:     []string{seed},
		LanguageCode: language,
		LocationCode: location,
		Limit:        limit,
		Filters: []any{
			[]any{"keyword_info.search_volume", ">=", volume.Min},
			"and",
			[]any{"keyword_info.search_volume", "<=", volume.Max},
		},
	}})
	if err != nil {
		return nil, err
	}
	return labsRows("keyword_ideas", raw)
}

// locale fills an empty language or zero location from the configured
// defaults.
func (d *DataForSEO) locale(language string, location int) (string, int) {
	if language == "" {
		language = d.cfg.Language
	}
	if location == 0 {
		location = d.cfg.Location
	}
	return language, location
}

func labsRows(endpoint string, raw json.RawMessage) ([]keyword.Row, error) {
	var results []labsResult
	if err := decodeResult(raw, &results); err != nil {
		return nil, fmt.Errorf("provider %s: %w", endpoint, err)
	}

	var rows []keyword.Row
	for _, res := range results {
		for _, it := range res.Items {
			rows = append(rows, keyword.Row{
				Keyword:      it.Keyword,
				SearchVolume: it.KeywordInfo.SearchVolume,
				Competition:  it.KeywordInfo.Competition.v,
				CPC:          it.KeywordInfo.CPC,
				Monthly:      chronological(it.KeywordInfo.MonthlySearches),
			})
		}
	}
	return rows, nil
}

type envelope struct {
	StatusCode    int     `json:"status_code"`
	StatusMessage string  `json:"status_message"`
	Cost          float64 `json:"cost"`
	Tasks         []struct {
		StatusCode    int             `json:"status_code"`
		StatusMessage string          `json:"status_message"`
		Result        json.RawMessage `json:"result"`
	} `json:"tasks"`
}

// post sends one task to endpoint and returns the task's raw result.
func (d *DataForSEO) post(ctx context.Context, name, path string, payload any) (json.RawMessage, error) {
	start := time.Now()
	raw, cost, err := d.do(ctx, name, path, payload)
	metrics.RecordProviderCall(name, time.Since(start), cost, err)
	if err != nil {
		d.logger.Debug("provider call failed", "endpoint", name, "duration", time.Since(start), "err", err)
		return nil, err
	}
	d.logger.Debug("provider call", "endpoint", name, "duration", time.Since(start), "cost", cost)
	return raw, nil
}

func (d *DataForSEO) do(ctx context.Context, name, path string, payload any) (json.RawMessage, float64, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.base+path, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("building request: %w", err)
	}
	req.SetBasicAuth(d.cfg.Login, d.cfg.Password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(ctx, req)
	if err != nil {
		return nil, 0, fmt.Errorf("provider %s: %w", name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, 0, fmt.Errorf("provider %s: failed to read body: %w", name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, 0, &StatusError{Endpoint: name, HTTPStatus: resp.StatusCode, Message: snippet(data)}
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, 0, fmt.Errorf("provider %s: malformed response: %w", name, err)
	}
	if env.StatusCode != successCode {
		return nil, env.Cost, &StatusError{Endpoint: name, HTTPStatus: resp.StatusCode, Code: env.StatusCode, Message: env.StatusMessage}
	}
	if len(env.Tasks) == 0 {
		return nil, env.Cost, &StatusError{Endpoint: name, HTTPStatus: resp.StatusCode, Code: env.StatusCode, Message: "response contained no tasks"}
	}
	task := env.Tasks[0]
	if task.StatusCode != successCode {
		return nil, env.Cost, &StatusError{Endpoint: name, HTTPStatus: resp.StatusCode, Code: task.StatusCode, Message: task.StatusMessage}
	}
	return task.Result, env.Cost, nil
}

func decodeResult(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	if s == "" {
		s = "empty response"
	}
	return s
}

type monthlySearch struct {
	Year         int  `json:"year"`
	Month        int  `json:"month"`
	SearchVolume *int `json:"search_volume"`
}

// chronological orders a monthly series oldest first and keeps the latest
// twelve months. The provider reports newest first.
func chronological(ms []monthlySearch) []int {
	if len(ms) == 0 {
		return nil
	}
	sorted := slices.Clone(ms)
	slices.SortFunc(sorted, func(a, b monthlySearch) int {
		if a.Year != b.Year {
			return a.Year - b.Year
		}
		return a.Month - b.Month
	})
	if len(sorted) > keyword.TrendMonths {
		sorted = sorted[len(sorted)-keyword.TrendMonths:]
	}
	out := make([]int, len(sorted))
	for i, m := range sorted {
		if m.SearchVolume != nil {
			out[i] = *m.SearchVolume
		}
	}
	return out
}

// flexFloat accepts a JSON number, a numeric string, or null. Competition
// labels such as "HIGH" decode to nil.
type flexFloat struct {
	v *float64
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == "" {
		f.v = nil
		return nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		f.v = nil
		return nil
	}
	f.v = &v
	return nil
}
