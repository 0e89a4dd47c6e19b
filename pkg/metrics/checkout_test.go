package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCheckoutMetricsRegistersAndCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCheckoutMetrics(reg)

	m.IncQuote()
	m.IncCommitSuccess()
	m.IncCommitSuccess()
	m.IncCommitFailure("amount_mismatch")
	m.IncDispatchFailure("send_email")
	m.IncFlagged()
	m.ObserveCommitDuration(120 * time.Millisecond)

	if got := testutil.ToFloat64(m.quotes); got != 1 {
		t.Fatalf("quotes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.commitSuccess); got != 2 {
		t.Fatalf("commit success = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.commitFailure.WithLabelValues("amount_mismatch")); got != 1 {
		t.Fatalf("commit failure = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.dispatchFail.WithLabelValues("send_email")); got != 1 {
		t.Fatalf("dispatch failure = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.flagged); got != 1 {
		t.Fatalf("flagged = %v, want 1", got)
	}
}

func TestCheckoutMetricsNilSafe(t *testing.T) {
	var m *CheckoutMetrics
	m.IncQuote()
	m.IncCommitSuccess()
	m.IncCommitFailure("x")
	m.IncDispatchFailure("y")
	m.IncFlagged()
	m.ObserveCommitDuration(time.Second)

	empty := NewCheckoutMetrics(nil)
	empty.IncQuote()
	empty.IncCommitFailure("")
}
