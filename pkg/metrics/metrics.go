// Package metrics holds the Prometheus collectors of the engine.
//
// A nil *Metrics is valid and records nothing, so components take it as an
// optional dependency.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "devqa"

type Metrics struct {
	StoreRequests *prometheus.CounterVec
	StoreDuration *prometheus.HistogramVec
	RetryAttempts *prometheus.CounterVec
	Votes         *prometheus.CounterVec
	Badges        *prometheus.CounterVec
	JobsFailed    *prometheus.CounterVec
	FeedLoads     *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StoreRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "requests_total",
			Help:      "Record store requests by table, operation and HTTP status.",
		}, []string{"table", "op", "status"}),
		StoreDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "request_duration_seconds",
			Help:      "Record store request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"table", "op"}),
		RetryAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_attempts_total",
			Help:      "Retries performed, by operation.",
		}, []string{"operation"}),
		Votes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_total",
			Help:      "Vote attempts by outcome.",
		}, []string{"outcome"}),
		Badges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "badges_total",
			Help:      "Badge award attempts by outcome.",
		}, []string{"outcome"}),
		JobsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_failed_total",
			Help:      "Background jobs that returned an error.",
		}, []string{"job"}),
		FeedLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_loads_total",
			Help:      "Feed page loads by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.StoreRequests, m.StoreDuration, m.RetryAttempts, m.Votes, m.Badges, m.JobsFailed, m.FeedLoads)
	}
	return m
}

func (m *Metrics) ObserveStoreRequest(table, op, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.StoreRequests.WithLabelValues(table, op, status).Inc()
	m.StoreDuration.WithLabelValues(table, op).Observe(d.Seconds())
}

func (m *Metrics) Retry(operation string) {
	if m == nil {
		return
	}
	m.RetryAttempts.WithLabelValues(operation).Inc()
}

func (m *Metrics) Vote(outcome string) {
	if m == nil {
		return
	}
	m.Votes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Badge(outcome string) {
	if m == nil {
		return
	}
	m.Badges.WithLabelValues(outcome).Inc()
}

func (m *Metrics) JobFailed(job string) {
	if m == nil {
		return
	}
	m.JobsFailed.WithLabelValues(job).Inc()
}

func (m *Metrics) FeedLoad(result string) {
	if m == nil {
		return
	}
	m.FeedLoads.WithLabelValues(result).Inc()
}
