// Package metrics holds the prometheus collectors of the reputation service.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "axctl"

// Submission results.
const (
	ResultOK       = "ok"
	ResultFailed   = "failed"
	ResultSkipped  = "skipped"
	ResultRejected = "rejected"
)

// Metrics holds the service collectors on their own registry.
type Metrics struct {
	Registry *prometheus.Registry

	StatsUpdates     *prometheus.CounterVec
	RecalcRuns       prometheus.Counter
	ScoreSubmissions *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		StatsUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stats_updates_total",
			Help:      "Provider outcomes recorded, by result.",
		}, []string{"ok"}),
		RecalcRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recalc_runs_total",
			Help:      "Completed score recalculation passes.",
		}),
		ScoreSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "score_submissions_total",
			Help:      "Signed score submissions to a gauge, by result.",
		}, []string{"result"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests, by route and status code.",
		}, []string{"path", "code"}),
	}

	m.Registry.MustRegister(
		m.StatsUpdates,
		m.RecalcRuns,
		m.ScoreSubmissions,
		m.HTTPRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveStat counts one recorded outcome.
func (m *Metrics) ObserveStat(ok bool) {
	if m == nil {
		return
	}
	m.StatsUpdates.WithLabelValues(strconv.FormatBool(ok)).Inc()
}

// ObserveRecalc counts one recalculation pass.
func (m *Metrics) ObserveRecalc() {
	if m == nil {
		return
	}
	m.RecalcRuns.Inc()
}

// ObserveSubmission counts one submission with the given result.
func (m *Metrics) ObserveSubmission(result string) {
	if m == nil {
		return
	}
	m.ScoreSubmissions.WithLabelValues(result).Inc()
}

// ObserveRequest counts one API request.
func (m *Metrics) ObserveRequest(path string, code int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(path, strconv.Itoa(code)).Inc()
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
