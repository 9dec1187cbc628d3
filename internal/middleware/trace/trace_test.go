package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"budgetblocks/internal/log"
)

func TestMiddleware_RequestID(t *testing.T) {
	m := NewMiddleware(func(*http.Request) string { return "10.0.0.1" }, nil)

	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		if log.FromContext(r.Context()).Component() != log.ComponentHTTP {
			t.Errorf("request logger component = %q", log.FromContext(r.Context()).Component())
		}
		w.WriteHeader(http.StatusTeapot)
	}))

	tests := []struct {
		name     string
		incoming string
		wantSame bool
	}{
		{"generated", "", false},
		{"propagated", "req_upstream", true},
		{"oversized replaced", strings.Repeat("x", 65), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/kpis", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			got := rec.Header().Get(RequestIDHeader)
			if got == "" || got != seen {
				t.Fatalf("response id %q, context id %q", got, seen)
			}
			if (got == tt.incoming) != tt.wantSame {
				t.Errorf("request id = %q, incoming %q", got, tt.incoming)
			}
			if !tt.wantSame && !strings.HasPrefix(got, "req_") {
				t.Errorf("generated id %q lacks prefix", got)
			}
		})
	}

	if got := m.GetMetrics().TotalRequests; got != 3 {
		t.Errorf("TotalRequests = %d, want 3", got)
	}
}

func TestMiddleware_CountsServerErrors(t *testing.T) {
	m := NewMiddleware(nil, nil)
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if got := m.GetMetrics().ErrorResponses; got != 1 {
		t.Errorf("ErrorResponses = %d, want 1", got)
	}
}

func TestMiddleware_RequestLoggerCarriesID(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Component: log.ComponentApp, Handler: slog.NewTextHandler(&buf, nil)})
	m := NewMiddleware(nil, logger)

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).InfoContext(r.Context(), "inside handler")
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/kpis", nil)
	req.Header.Set(RequestIDHeader, "req_joined")
	h.ServeHTTP(httptest.NewRecorder(), req)

	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, "inside handler") {
			if !strings.Contains(line, "request_id=req_joined") {
				t.Errorf("handler log line lacks request id: %s", line)
			}
			return
		}
	}
	t.Fatalf("handler did not log through the request logger:\n%s", buf.String())
}
