package infra

import (
	"context"
	"errors"
	"math"
	"sync"

	"relay-gateway/relay/domain"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "relay_gateway"

// Metrics agrupa os coletores Prometheus do relay e do gateway.
//
// Todos os métodos aceitam receiver nil, assim o relay funciona sem métricas.
// Metrics também implementa domain.StatsStore para receber os eventos do gateway.
type Metrics struct {
	mu sync.Mutex

	offers        *prometheus.CounterVec
	queueDepth    prometheus.Gauge
	demand        prometheus.Gauge
	delivered     prometheus.Counter
	batchSize     prometheus.Histogram
	submissions   *prometheus.CounterVec
	submitLatency *prometheus.HistogramVec
	violations    prometheus.Counter

	registerer prometheus.Registerer
	registered bool
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &Metrics{
		registerer: registerer,
		offers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "relay",
			Name:      "offers_total",
			Help:      "Offers received by the relay, by outcome",
		}, []string{"outcome"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "relay",
			Name:      "queue_depth",
			Help:      "Items accepted and not yet delivered",
		}),
		demand: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "relay",
			Name:      "outstanding_demand",
			Help:      "Credit granted by the consumer and not yet used (+Inf when unbounded)",
		}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "relay",
			Name:      "delivered_total",
			Help:      "Items emitted to the consumer",
		}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "relay",
			Name:      "delivery_batch_size",
			Help:      "Items emitted per delivery round",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128, 256, 512},
		}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "gateway",
			Name:      "submissions_total",
			Help:      "Submissions resolved by the gateway, by status and reason",
		}, []string{"status", "reason"}),
		submitLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "gateway",
			Name:      "submit_duration_seconds",
			Help:      "Time spent resolving a submission",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"status"}),
		violations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "gateway",
			Name:      "protocol_violations_total",
			Help:      "Offers answered with an outcome outside the relay contract",
		}),
	}
}

// Register registra os coletores. Pode ser chamado mais de uma vez.
func (m *Metrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.offers,
		m.queueDepth,
		m.demand,
		m.delivered,
		m.batchSize,
		m.submissions,
		m.submitLatency,
		m.violations,
	}
	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

// Record implementa domain.StatsStore.
func (m *Metrics) Record(_ context.Context, ev domain.StatsEvent) error {
	if m == nil {
		return nil
	}
	status := ev.Status.String()
	m.submissions.WithLabelValues(status, ev.Reason).Inc()
	if ev.Latency > 0 {
		m.submitLatency.WithLabelValues(status).Observe(ev.Latency.Seconds())
	}
	if ev.Reason == domain.ReasonProtocolViolation {
		m.violations.Inc()
	}
	return nil
}

func (m *Metrics) observeOffer(o domain.Outcome) {
	if m == nil {
		return
	}
	m.offers.WithLabelValues(o.String()).Inc()
}

func (m *Metrics) setQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) setDemand(n int64) {
	if m == nil {
		return
	}
	if n == domain.Unbounded {
		m.demand.Set(math.Inf(1))
		return
	}
	m.demand.Set(float64(n))
}

func (m *Metrics) observeDelivery(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.delivered.Add(float64(n))
	m.batchSize.Observe(float64(n))
}
