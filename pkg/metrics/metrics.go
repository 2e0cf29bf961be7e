package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sfmc_api_requests_total",
			Help: "Total number of API requests by transport and status class",
		},
		[]string{"transport", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sfmc_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"transport"},
	)

	APIRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sfmc_api_retries_total",
			Help: "Total number of retried API requests by transport",
		},
		[]string{"transport"},
	)

	// Extraction metrics
	ExtractorObjectsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sfmc_extractor_objects_total",
			Help: "Objects produced per extractor in the current run",
		},
		[]string{"extractor"},
	)

	ExtractorErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sfmc_extractor_errors_total",
			Help: "Errors recorded per extractor",
		},
		[]string{"extractor", "code"},
	)

	UnresolvedReferencesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sfmc_unresolved_references_total",
			Help: "Dynamic references static parsing could not resolve, per extractor",
		},
		[]string{"extractor"},
	)

	ExtractorDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sfmc_extractor_duration_seconds",
			Help:    "Wall time per extractor run",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"extractor"},
	)

	// Rate limiter metrics
	RateLimitDelay = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sfmc_rate_limit_delay_seconds",
			Help: "Current adaptive delay per request kind",
		},
		[]string{"kind"},
	)

	RateLimitStress = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sfmc_rate_limit_stress_multiplier",
			Help: "Global stress multiplier applied to all request delays",
		},
	)

	// Cache metrics
	CacheEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sfmc_cache_entries",
			Help: "Entries loaded per cache kind",
		},
		[]string{"kind"},
	)

	CacheLoadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sfmc_cache_load_duration_seconds",
			Help:    "Cache load duration per kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(APIRetriesTotal)
	prometheus.MustRegister(ExtractorObjectsTotal)
	prometheus.MustRegister(ExtractorErrorsTotal)
	prometheus.MustRegister(UnresolvedReferencesTotal)
	prometheus.MustRegister(ExtractorDuration)
	prometheus.MustRegister(RateLimitDelay)
	prometheus.MustRegister(RateLimitStress)
	prometheus.MustRegister(CacheEntries)
	prometheus.MustRegister(CacheLoadDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr in the background. Returned function stops
// the listener.
func Serve(addr string) (stop func(), err error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	return func() { _ = srv.Close() }, nil
}
