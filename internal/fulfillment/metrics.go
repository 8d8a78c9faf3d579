package fulfillment

import (
	metrics "github.com/rcrowley/go-metrics"
)

type Metrics struct {
	Registry metrics.Registry

	started           metrics.Counter
	confirmed         metrics.Counter
	delivered         metrics.Counter
	cancelled         metrics.Counter
	reservationFailed metrics.Counter
	paymentFailed     metrics.Counter
	unexpected        metrics.Counter
	refundFailed      metrics.Counter
	inFlight          metrics.Gauge
	paymentLatency    metrics.Timer
}

func NewMetrics(r metrics.Registry) *Metrics {
	if r == nil {
		r = metrics.NewRegistry()
	}
	return &Metrics{
		Registry:          r,
		started:           metrics.GetOrRegisterCounter("saga.started", r),
		confirmed:         metrics.GetOrRegisterCounter("saga.confirmed", r),
		delivered:         metrics.GetOrRegisterCounter("saga.delivered", r),
		cancelled:         metrics.GetOrRegisterCounter("saga.cancelled", r),
		reservationFailed: metrics.GetOrRegisterCounter("saga.reservation_failed", r),
		paymentFailed:     metrics.GetOrRegisterCounter("saga.payment_failed", r),
		unexpected:        metrics.GetOrRegisterCounter("saga.unexpected_failure", r),
		refundFailed:      metrics.GetOrRegisterCounter("saga.refund_failed", r),
		inFlight:          metrics.GetOrRegisterGauge("saga.in_flight", r),
		paymentLatency:    metrics.GetOrRegisterTimer("payment.latency", r),
	}
}

// Counts returns the saga counters by name.
func (m *Metrics) Counts() map[string]int64 {
	return map[string]int64{
		"started":            m.started.Count(),
		"confirmed":          m.confirmed.Count(),
		"delivered":          m.delivered.Count(),
		"cancelled":          m.cancelled.Count(),
		"reservation_failed": m.reservationFailed.Count(),
		"payment_failed":     m.paymentFailed.Count(),
		"unexpected_failure": m.unexpected.Count(),
		"refund_failed":      m.refundFailed.Count(),
	}
}
