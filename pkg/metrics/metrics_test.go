package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveStoreRequest("Questions", "list", "200", time.Millisecond)
		m.Retry("feed")
		m.Vote("voted")
		m.Badge("awarded")
		m.JobFailed("points")
		m.FeedLoad("ready")
	})
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Vote("voted")
	m.Vote("voted")
	m.Vote("already_voted")
	m.ObserveStoreRequest("Votes", "create", "200", 5*time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.Votes.WithLabelValues("voted")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Votes.WithLabelValues("already_voted")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.StoreRequests.WithLabelValues("Votes", "create", "200")))

	n, err := testutil.GatherAndCount(reg, "devqa_votes_total")
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
}
