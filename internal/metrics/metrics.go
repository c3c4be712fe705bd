package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sprig_provider_requests_total",
			Help: "Total number of keyword provider requests by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	ProviderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sprig_provider_request_duration_seconds",
			Help:    "Duration of keyword provider requests in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 45},
		},
		[]string{"endpoint"},
	)

	ProviderCostTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sprig_provider_cost_total",
			Help: "Provider-reported cost of keyword requests",
		},
		[]string{"endpoint"},
	)

	ProviderQueueWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sprig_provider_queue_wait_seconds",
			Help:    "Time spent waiting for the provider quota gate",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15},
		},
	)

	ExpansionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sprig_expansion_failures_total",
			Help: "Expansion rounds skipped because the provider call failed",
		},
		[]string{"round"},
	)

	ResearchRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sprig_research_runs_total",
			Help: "Total number of keyword research runs by input kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	ResearchKeywords = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sprig_research_keywords",
			Help:    "Number of keywords returned per successful run",
			Buckets: []float64{1, 5, 10, 15, 20, 25, 30},
		},
	)

	PageFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sprig_page_fetches_total",
			Help: "Product page fetches made while resolving titles",
		},
		[]string{"domain", "status", "challenged"},
	)

	ProxyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sprig_proxy_failures_total",
			Help: "Total number of proxy failures",
		},
		[]string{"proxy_url"},
	)
)

// RecordProviderCall updates provider metrics for one request. A nil err
// records outcome "ok".
func RecordProviderCall(endpoint string, d time.Duration, cost float64, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	ProviderRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	ProviderDuration.WithLabelValues(endpoint).Observe(d.Seconds())
	if cost > 0 {
		ProviderCostTotal.WithLabelValues(endpoint).Add(cost)
	}
}

// RecordRun updates pipeline metrics for one research run.
func RecordRun(kind string, keywords int, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	ResearchRunsTotal.WithLabelValues(kind, outcome).Inc()
	if err == nil {
		ResearchKeywords.Observe(float64(keywords))
	}
}

// RecordPageFetch updates page fetch metrics. A status of 0 means the request
// never produced a response.
func RecordPageFetch(domain string, status int, challenged bool) {
	statusStr := strconv.Itoa(status)
	if status == 0 {
		statusStr = "error"
	}
	PageFetchesTotal.WithLabelValues(domain, statusStr, strconv.FormatBool(challenged)).Inc()
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
func Start(port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		// Suppress the error from intentional shutdown
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server failed: %v\n", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
