package rpcserver

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mozolm_rpc_requests_total",
		Help: "Total RPC requests handled, by method and outcome.",
	}, []string{"method", "outcome"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mozolm_rpc_request_duration_seconds",
		Help:    "RPC request latency by method.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)

// instrument records a request's outcome and latency; call as
// `defer instrument("GetLMScores", time.Now())(&err)` in a method that
// names its return error err.
func instrument(method string, start time.Time) func(*error) {
	return func(errp *error) {
		outcome := "ok"
		if errp != nil && *errp != nil {
			outcome = "error"
		}
		requestsTotal.WithLabelValues(method, outcome).Inc()
		requestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}
}
