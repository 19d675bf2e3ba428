package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pocketbook/internal/log"
	"pocketbook/internal/metrics"
	"pocketbook/internal/notify"
)

func newTestServer(ready func(context.Context) error, feed *notify.Feed) *Server {
	return NewServer(Options{Metrics: metrics.New(), Ready: ready, Feed: feed, Logger: log.Discard()})
}

func do(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealthAndReady(t *testing.T) {
	var readyErr error
	s := newTestServer(func(context.Context) error { return readyErr }, nil)

	tests := []struct {
		path string
		err  error
		want int
	}{
		{"/healthz", nil, http.StatusOK},
		{"/readyz", nil, http.StatusOK},
		{"/readyz", errors.New("store unreachable"), http.StatusServiceUnavailable},
		{"/metrics", nil, http.StatusOK},
	}
	for _, tt := range tests {
		readyErr = tt.err
		if rec := do(t, s, http.MethodGet, tt.path); rec.Code != tt.want {
			t.Errorf("GET %s (ready err %v) = %d, want %d", tt.path, tt.err, rec.Code, tt.want)
		}
	}

	rec := do(t, s, http.MethodGet, "/metrics")
	if !strings.Contains(rec.Body.String(), "pocketbook_http_requests_total") {
		t.Fatal("metrics output missing http request counter")
	}
}

func TestNotificationsRoutes(t *testing.T) {
	feed := notify.NewFeed()
	feed.Add(notify.Notification{ID: "payment-1", Kind: notify.KindPayment, Title: "New Payment Added"})
	feed.Add(notify.Notification{ID: "transfer-1", Kind: notify.KindTransfer, Title: "New Transfer Added"})
	s := newTestServer(nil, feed)

	rec := do(t, s, http.MethodGet, "/notifications")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /notifications = %d", rec.Code)
	}
	var resp notificationsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Unread != 2 || len(resp.Notifications) != 2 || resp.Notifications[0].ID != "payment-1" {
		t.Fatalf("unexpected response %+v", resp)
	}

	if rec := do(t, s, http.MethodPost, "/notifications/payment-1/read"); rec.Code != http.StatusNoContent {
		t.Fatalf("mark read = %d", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/notifications/missing/read"); rec.Code != http.StatusNotFound {
		t.Fatalf("mark missing = %d", rec.Code)
	}
	if feed.UnreadCount() != 1 {
		t.Fatalf("unread = %d, want 1", feed.UnreadCount())
	}

	rec = do(t, s, http.MethodPost, "/notifications/read")
	if !strings.Contains(rec.Body.String(), `"marked":1`) {
		t.Fatalf("mark all read body %q", rec.Body.String())
	}
	if rec := do(t, s, http.MethodGet, "/notifications/read"); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET on POST route = %d", rec.Code)
	}
}

func TestFeedRoutesDisabled(t *testing.T) {
	s := newTestServer(nil, nil)
	if rec := do(t, s, http.MethodGet, "/notifications"); rec.Code != http.StatusNotFound {
		t.Fatalf("GET /notifications without feed = %d", rec.Code)
	}
}

func TestRun_Shutdown(t *testing.T) {
	s := NewServer(Options{Addr: "127.0.0.1:0", Logger: log.Discard()})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}
