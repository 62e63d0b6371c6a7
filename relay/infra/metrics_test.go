package infra

import (
	"context"
	"math"
	"testing"
	"time"

	"relay-gateway/relay/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	m := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, m.Register())
	require.NoError(t, m.Register())
	return m
}

func TestMetrics_TrackRelayLifecycle(t *testing.T) {
	m := newTestMetrics(t)
	rel := mustRelay[int](t, 2, WithMetrics(m))

	mustOffer(t, rel, 1, domain.OutcomeAccepted)
	mustOffer(t, rel, 2, domain.OutcomeAccepted)
	mustOffer(t, rel, 3, domain.OutcomeRejected)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.offers.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.offers.WithLabelValues("rejected")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.queueDepth))

	rec, sub := subscribe(t, rel)
	sub.Request(2)
	expectItems(t, rec, 2)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.delivered) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.queueDepth))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.demand))

	sub.Request(domain.Unbounded)
	assert.True(t, math.IsInf(testutil.ToFloat64(m.demand), 1))

	rel.Cancel()
	mustOffer(t, rel, 4, domain.OutcomeClosed)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.offers.WithLabelValues("closed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.demand))
}

func TestMetrics_RecordSubmissions(t *testing.T) {
	m := newTestMetrics(t)
	ctx := context.Background()

	require.NoError(t, m.Record(ctx, domain.StatsEvent{Status: domain.StatusOK, Reason: domain.ReasonAccepted, Latency: time.Millisecond}))
	require.NoError(t, m.Record(ctx, domain.StatsEvent{Status: domain.StatusOverload, Reason: domain.ReasonQueueFull}))
	require.NoError(t, m.Record(ctx, domain.StatsEvent{Status: domain.StatusInternalError, Reason: domain.ReasonProtocolViolation}))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissions.WithLabelValues("ok", domain.ReasonAccepted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissions.WithLabelValues("overload", domain.ReasonQueueFull)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.violations))
	assert.Equal(t, 1, testutil.CollectAndCount(m.submitLatency))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NoError(t, m.Record(context.Background(), domain.StatsEvent{}))
	m.observeOffer(domain.OutcomeAccepted)
	m.setQueueDepth(1)
	m.setDemand(domain.Unbounded)
	m.observeDelivery(3)
}
