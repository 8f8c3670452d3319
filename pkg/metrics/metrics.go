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
			Name: "console_api_requests_total",
			Help: "Total platform API requests by method and outcome",
		},
		[]string{"method", "outcome"},
	)

	APIErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_api_errors_total",
			Help: "Total platform API errors by kind",
		},
		[]string{"kind"},
	)

	// Deploy metrics
	DeployTicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "console_deploy_ticks_total",
			Help: "Total deploy-status polling ticks",
		},
	)

	DeploysTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_deploys_total",
			Help: "Total deploy attempts by terminal outcome",
		},
		[]string{"outcome"},
	)

	DeployDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "console_deploy_duration_seconds",
			Help:    "Wall time from deploy request to terminal state",
			Buckets: []float64{5, 10, 20, 30, 60, 120},
		},
	)

	// Log stream metrics
	LogLinesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_log_lines_total",
			Help: "Total log lines received by channel mode",
		},
		[]string{"mode"},
	)

	StreamFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "console_stream_fallbacks_total",
			Help: "Total streaming-to-polling degradations",
		},
	)
)

func init() {
	prometheus.MustRegister(
		APIRequestsTotal,
		APIErrorsTotal,
		DeployTicksTotal,
		DeploysTotal,
		DeployDuration,
		LogLinesTotal,
		StreamFallbacksTotal,
	)
}

// Handler returns the HTTP handler exposing the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
