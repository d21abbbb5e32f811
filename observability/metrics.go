package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the daemon's Prometheus instruments. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	MessagesAccepted prometheus.Counter
	MessagesRejected *prometheus.CounterVec
	DeliveriesTotal  *prometheus.CounterVec
	DeliveryLatency  *prometheus.HistogramVec
	PendingRecords   prometheus.Gauge
}

// NewMetrics creates the instruments and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hume_messages_accepted_total",
			Help: "Humes accepted and persisted by the listener.",
		}),
		MessagesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hume_messages_rejected_total",
			Help: "Payloads rejected by validation, by reason.",
		}, []string{"reason"}),
		DeliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hume_deliveries_total",
			Help: "Delivery attempts per transfer method and outcome.",
		}, []string{"sink", "status"}),
		DeliveryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hume_delivery_latency_seconds",
			Help:    "Time spent in a transfer method's Send.",
			Buckets: prometheus.DefBuckets,
		}, []string{"sink"}),
		PendingRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hume_pending_records",
			Help: "Queue records not yet delivered.",
		}),
	}
	reg.MustRegister(
		m.MessagesAccepted,
		m.MessagesRejected,
		m.DeliveriesTotal,
		m.DeliveryLatency,
		m.PendingRecords,
	)
	return m
}

// RecordAccepted counts one persisted hume.
func (m *Metrics) RecordAccepted() {
	if m == nil {
		return
	}
	m.MessagesAccepted.Inc()
}

// RecordRejected counts one rejected payload.
func (m *Metrics) RecordRejected(reason string) {
	if m == nil {
		return
	}
	m.MessagesRejected.WithLabelValues(reason).Inc()
}

// RecordDelivery records a delivery attempt with the given status and latency.
func (m *Metrics) RecordDelivery(sink, status string, latencySeconds float64) {
	if m == nil {
		return
	}
	m.DeliveriesTotal.WithLabelValues(sink, status).Inc()
	m.DeliveryLatency.WithLabelValues(sink).Observe(latencySeconds)
}

// SetPending updates the pending gauge.
func (m *Metrics) SetPending(n int64) {
	if m == nil {
		return
	}
	m.PendingRecords.Set(float64(n))
}
