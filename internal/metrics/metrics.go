// Package metrics exposes Prometheus collectors for the combiner API.
package metrics

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	ffmpegRunsTotal     *prometheus.CounterVec
	ffmpegRunDuration   *prometheus.HistogramVec
	downloadsTotal      *prometheus.CounterVec
)

func registerCounterVec(c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := prometheus.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
		log.Printf("prometheus counter register failed: %v", err)
	}
	return c
}

func registerHistogramVec(c *prometheus.HistogramVec) *prometheus.HistogramVec {
	if err := prometheus.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing
			}
		}
		log.Printf("prometheus histogram register failed: %v", err)
	}
	return c
}

func init() {
	httpRequestsTotal = registerCounterVec(prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "combiner_http_requests_total",
			Help: "Total HTTP requests served, by method, route, and status code.",
		},
		[]string{"method", "route", "status"},
	))

	httpRequestDuration = registerHistogramVec(prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "combiner_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds, by method and route.",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 15, 60, 120, 300},
		},
		[]string{"method", "route"},
	))

	ffmpegRunsTotal = registerCounterVec(prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "combiner_ffmpeg_runs_total",
			Help: "Total ffmpeg invocations, by job kind and outcome.",
		},
		[]string{"kind", "outcome"},
	))

	ffmpegRunDuration = registerHistogramVec(prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "combiner_ffmpeg_run_duration_seconds",
			Help:    "ffmpeg run duration in seconds, by job kind.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"kind"},
	))

	downloadsTotal = registerCounterVec(prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "combiner_downloads_total",
			Help: "Total source media downloads, by outcome.",
		},
		[]string{"outcome"},
	))
}

// ObserveHTTPRequest records one served HTTP request.
func ObserveHTTPRequest(method, route, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveFFmpegRun records one ffmpeg invocation.
func ObserveFFmpegRun(kind, outcome string, duration time.Duration) {
	ffmpegRunsTotal.WithLabelValues(kind, outcome).Inc()
	ffmpegRunDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// ObserveDownload records one source media download attempt.
func ObserveDownload(outcome string) {
	downloadsTotal.WithLabelValues(outcome).Inc()
}
