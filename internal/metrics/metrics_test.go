package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecord(t *testing.T) {
	m := New()
	m.LedgerCommitted("income", 1)
	m.LedgerCommitted("income", 3)
	m.LedgerConflict()
	m.NotificationAdded("payment")
	m.SetActiveSubscriptions(4)
	m.ObserveHTTP("/healthz", 200, 0)

	if got := testutil.ToFloat64(m.LedgerCommits.WithLabelValues("income")); got != 2 {
		t.Fatalf("expected 2 income commits, got %v", got)
	}
	if got := testutil.ToFloat64(m.LedgerConflicts); got != 1 {
		t.Fatalf("expected 1 conflict, got %v", got)
	}
	if got := testutil.ToFloat64(m.ActiveSubscriptions); got != 4 {
		t.Fatalf("expected 4 active subscriptions, got %v", got)
	}

	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/healthz", "200")); got != 1 {
		t.Fatalf("expected 1 healthz request, got %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "pocketbook_notifications_total") {
		t.Fatalf("handler output missing notifications counter")
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.LedgerCommitted("expense", 1)
	m.LedgerConflict()
	m.LedgerFailed("remote")
	m.NotificationAdded("transfer")
	m.SetActiveSubscriptions(1)
	m.Exported("ok")
	m.ObserveCache(1, 1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Fatalf("nil metrics handler should 404, got %d", rec.Code)
	}
}
