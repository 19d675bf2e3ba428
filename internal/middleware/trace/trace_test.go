package trace

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"pocketbook/internal/log"
	"pocketbook/internal/metrics"
)

func TestWrap_RequestID(t *testing.T) {
	m := metrics.New()
	mw := NewMiddleware(log.Discard(), m)

	var seen string
	h := mw.Wrap("/probe", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	tests := []struct {
		name     string
		incoming string
	}{
		{"generated", ""},
		{"propagated", "req-42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/probe", nil)
			if tt.incoming != "" {
				req.Header.Set(HeaderRequestID, tt.incoming)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			got := rec.Header().Get(HeaderRequestID)
			if got == "" || got != seen {
				t.Fatalf("response id %q, handler saw %q", got, seen)
			}
			if tt.incoming != "" && got != tt.incoming {
				t.Fatalf("request id = %q, want %q", got, tt.incoming)
			}
			if rec.Code != http.StatusTeapot {
				t.Fatalf("status = %d", rec.Code)
			}
		})
	}

	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/probe", "418")); got != 2 {
		t.Fatalf("expected 2 recorded requests, got %v", got)
	}
}

func TestRequestID_Missing(t *testing.T) {
	if id := RequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context()); id != "" {
		t.Fatalf("unexpected id %q", id)
	}
}
