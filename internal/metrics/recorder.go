// Package metrics exposes Prometheus instrumentation for map builds and the serving shell.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "topology"

	// labelKind is the build entry point (single or observations) or the partial data kind
	labelKind = "kind"
	// labelResult is ok or error
	labelResult = "result"
	// labelDirection is the side of an edge that reported a row
	labelDirection = "direction"
	// labelRoute is the HTTP route or gRPC method
	labelRoute = "route"
	// labelCode is the HTTP status or gRPC code
	labelCode = "code"
)

// Recorder records build and request metrics in its own Prometheus registry
type Recorder struct {
	registry *prometheus.Registry

	builds        *prometheus.CounterVec
	buildDuration *prometheus.HistogramVec
	dangling      *prometheus.CounterVec
	partial       *prometheus.CounterVec
	discrepancies prometheus.Counter
	requests      *prometheus.CounterVec
	requestTime   *prometheus.HistogramVec
}

// NewRecorder creates a recorder with a fresh registry. Process and Go runtime
// collectors are included when withRuntime is set.
func NewRecorder(withRuntime bool) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		builds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "builds_total",
				Help:      "Number of application map builds by entry point and result.",
			},
			[]string{labelKind, labelResult},
		),
		buildDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "build_duration_seconds",
				Help:      "Duration of application map builds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{labelKind},
		),
		dangling: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dangling_rows_total",
				Help:      "Observation rows whose caller could not be resolved to a node.",
			},
			[]string{labelDirection},
		),
		partial: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "partial_data_total",
				Help:      "Collaborator calls that failed or timed out and left a node with empty data.",
			},
			[]string{labelKind},
		),
		discrepancies: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "link_discrepancies_total",
				Help:      "Slots where caller and callee reported different call totals.",
			},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Requests served by route and status code.",
			},
			[]string{labelRoute, labelCode},
		),
		requestTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Duration of served requests.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{labelRoute},
		),
	}

	r.registry.MustRegister(r.builds, r.buildDuration, r.dangling, r.partial, r.discrepancies, r.requests, r.requestTime)
	if withRuntime {
		r.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return r
}

// RecordBuild counts a finished build and observes its duration
func (r *Recorder) RecordBuild(kind, result string, elapsed time.Duration) {
	r.builds.WithLabelValues(kind, result).Inc()
	r.buildDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// RecordDanglingReference counts a row whose caller is missing or a sentinel
func (r *Recorder) RecordDanglingReference(direction string) {
	r.dangling.WithLabelValues(direction).Inc()
}

// RecordPartialData counts a collaborator failure that produced empty node data
func (r *Recorder) RecordPartialData(kind string) {
	r.partial.WithLabelValues(kind).Inc()
}

// RecordDiscrepancy counts a slot where both sides of a link disagree
func (r *Recorder) RecordDiscrepancy() {
	r.discrepancies.Inc()
}

// RecordRequest counts a served request
func (r *Recorder) RecordRequest(route string, code int, elapsed time.Duration) {
	r.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	r.requestTime.WithLabelValues(route).Observe(elapsed.Seconds())
}

// Registry returns the registry holding the recorder's metrics
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
