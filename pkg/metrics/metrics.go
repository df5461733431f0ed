// Package metrics registers the Prometheus collectors shared by the API and the
// ingestion pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pennywise"

// Metrics groups every collector the service exposes.
type Metrics struct {
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	Jobs             *prometheus.CounterVec
	Documents        *prometheus.CounterVec
	Transactions     *prometheus.CounterVec
	ModelCalls       *prometheus.CounterVec
	IngestionSeconds prometheus.Histogram

	gatherer prometheus.Gatherer
}

// New registers collectors on a fresh registry. Tests get isolated collectors
// by calling New again.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		Jobs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestion_jobs_total",
			Help:      "Finished ingestion jobs by final status.",
		}, []string{"status"}),
		Documents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestion_documents_total",
			Help:      "Statement documents by outcome (processed, password, corrupt, parse, store, cancelled).",
		}, []string{"outcome"}),
		Transactions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_transactions_total",
			Help:      "Reconciled transactions by result (inserted, duplicate).",
		}, []string{"result"}),
		ModelCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_calls_total",
			Help:      "Language model calls by purpose and outcome.",
		}, []string{"purpose", "outcome"}),
		IngestionSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingestion_job_duration_seconds",
			Help:      "Wall time of ingestion jobs.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),
		gatherer: reg,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.gatherer
}

// The helpers below accept a nil receiver so components can run without metrics.

// ModelCall counts one language model call.
func (m *Metrics) ModelCall(purpose, outcome string) {
	if m == nil {
		return
	}
	m.ModelCalls.WithLabelValues(purpose, outcome).Inc()
}

// Document counts one document outcome.
func (m *Metrics) Document(outcome string) {
	if m == nil {
		return
	}
	m.Documents.WithLabelValues(outcome).Inc()
}

// Reconciled counts inserted and duplicate transactions.
func (m *Metrics) Reconciled(inserted, duplicates int) {
	if m == nil {
		return
	}
	m.Transactions.WithLabelValues("inserted").Add(float64(inserted))
	m.Transactions.WithLabelValues("duplicate").Add(float64(duplicates))
}

// JobFinished records a job's final status and duration.
func (m *Metrics) JobFinished(status string, seconds float64) {
	if m == nil {
		return
	}
	m.Jobs.WithLabelValues(status).Inc()
	m.IngestionSeconds.Observe(seconds)
}
