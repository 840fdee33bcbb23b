// Package metrics exposes Prometheus collectors for the HTTP surface and the
// per-author aggregation.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the service's collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "jobtracker",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jobtracker",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jobtracker",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)

	aggregationRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jobtracker",
			Subsystem: "aggregation",
			Name:      "runs_total",
			Help:      "Per-author aggregations by outcome.",
		},
		[]string{"outcome"},
	)

	aggregationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "jobtracker",
			Subsystem: "aggregation",
			Name:      "duration_seconds",
			Help:      "Duration of per-author aggregations.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	aggregationPostings = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "jobtracker",
			Subsystem: "aggregation",
			Name:      "postings",
			Help:      "Postings returned per successful aggregation.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	aggregationApplicants = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "jobtracker",
			Subsystem: "aggregation",
			Name:      "applicants",
			Help:      "Applicants resolved per successful aggregation.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		aggregationRuns,
		aggregationDuration,
		aggregationPostings,
		aggregationApplicants,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler records request count, latency and in-flight requests.
// Routes are labelled by their mux template so path ids do not explode
// cardinality.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		route := routeLabel(r)
		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	})
}

// AggregationObserver feeds aggregation outcomes into the registry.
type AggregationObserver struct{}

func (AggregationObserver) ObserveAggregation(elapsed time.Duration, postings, applicants int, err error) {
	if err != nil {
		aggregationRuns.WithLabelValues("error").Inc()
		aggregationDuration.Observe(elapsed.Seconds())
		return
	}
	aggregationRuns.WithLabelValues("ok").Inc()
	aggregationDuration.Observe(elapsed.Seconds())
	aggregationPostings.Observe(float64(postings))
	aggregationApplicants.Observe(float64(applicants))
}

func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
