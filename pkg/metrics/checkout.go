package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics tracks checkout saga outcomes and step latencies.
type CheckoutMetrics struct {
	outcomes     *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	refunds      prometheus.Counter
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_outcomes_total",
		Help: "Checkout attempts by outcome and failing step.",
	}, []string{"outcome", "step"})
	stepDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_step_duration_seconds",
		Help:    "Duration of each checkout step in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"step"})
	refunds := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_compensating_refunds_total",
		Help: "Refunds issued because a later checkout step failed.",
	})
	reg.MustRegister(outcomes, stepDuration, refunds)
	return &CheckoutMetrics{
		outcomes:     outcomes,
		stepDuration: stepDuration,
		refunds:      refunds,
	}
}

// IncSuccess counts a completed checkout.
func (c *CheckoutMetrics) IncSuccess() {
	if c == nil || c.outcomes == nil {
		return
	}
	c.outcomes.WithLabelValues("success", "none").Inc()
}

// IncFailure counts an aborted checkout, labeled with the step that failed.
func (c *CheckoutMetrics) IncFailure(step string) {
	if c == nil || c.outcomes == nil {
		return
	}
	c.outcomes.WithLabelValues("failure", normalizeLabel(step)).Inc()
}

// ObserveStep records the duration of a single checkout step.
func (c *CheckoutMetrics) ObserveStep(step string, duration time.Duration) {
	if c == nil || c.stepDuration == nil {
		return
	}
	c.stepDuration.WithLabelValues(normalizeLabel(step)).Observe(duration.Seconds())
}

// IncRefund counts a compensating refund.
func (c *CheckoutMetrics) IncRefund() {
	if c == nil || c.refunds == nil {
		return
	}
	c.refunds.Inc()
}
