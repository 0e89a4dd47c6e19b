package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records quote/commit outcomes and dispatch failures.
type CheckoutMetrics struct {
	quotes         prometheus.Counter
	commitSuccess  prometheus.Counter
	commitFailure  *prometheus.CounterVec
	commitDuration prometheus.Histogram
	dispatchFail   *prometheus.CounterVec
	flagged        prometheus.Counter
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	quotes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_quotes_total",
		Help: "Cart quote computations served.",
	})
	commitSuccess := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_commit_success_total",
		Help: "Orders created successfully.",
	})
	commitFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_commit_failure_total",
		Help: "Failed order commits by reason code.",
	}, []string{"reason"})
	commitDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkout_commit_duration_seconds",
		Help:    "Duration of order commits in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	dispatchFail := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_dispatch_task_failure_total",
		Help: "Post-commit side-effect task failures by task name.",
	}, []string{"task"})
	flagged := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_payments_flagged_total",
		Help: "Payments flagged for manual review.",
	})
	reg.MustRegister(quotes, commitSuccess, commitFailure, commitDuration, dispatchFail, flagged)
	return &CheckoutMetrics{
		quotes:         quotes,
		commitSuccess:  commitSuccess,
		commitFailure:  commitFailure,
		commitDuration: commitDuration,
		dispatchFail:   dispatchFail,
		flagged:        flagged,
	}
}

// IncQuote increments the quote counter.
func (m *CheckoutMetrics) IncQuote() {
	if m == nil || m.quotes == nil {
		return
	}
	m.quotes.Inc()
}

// IncCommitSuccess increments the successful commit counter.
func (m *CheckoutMetrics) IncCommitSuccess() {
	if m == nil || m.commitSuccess == nil {
		return
	}
	m.commitSuccess.Inc()
}

// IncCommitFailure increments the failed commit counter for the reason.
func (m *CheckoutMetrics) IncCommitFailure(reason string) {
	if m == nil || m.commitFailure == nil {
		return
	}
	m.commitFailure.WithLabelValues(normalizeLabel(reason)).Inc()
}

// ObserveCommitDuration records how long a commit took.
func (m *CheckoutMetrics) ObserveCommitDuration(d time.Duration) {
	if m == nil || m.commitDuration == nil {
		return
	}
	m.commitDuration.Observe(d.Seconds())
}

// IncDispatchFailure increments the side-effect failure counter for the task.
func (m *CheckoutMetrics) IncDispatchFailure(task string) {
	if m == nil || m.dispatchFail == nil {
		return
	}
	m.dispatchFail.WithLabelValues(normalizeLabel(task)).Inc()
}

// IncFlagged increments the flagged-payment counter.
func (m *CheckoutMetrics) IncFlagged() {
	if m == nil || m.flagged == nil {
		return
	}
	m.flagged.Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
