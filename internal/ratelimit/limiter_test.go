package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiter_NilRedis_FailOpen(t *testing.T) {
	l := NewLimiter(nil)
	result, err := l.Check(context.Background(), "test:key", 60, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Allowed {
		t.Error("expected allowed when Redis is nil")
	}
	if result.Remaining != 59 {
		t.Errorf("expected remaining=59, got %d", result.Remaining)
	}
}

func TestLimiter_NilRedis_MultipleChecks(t *testing.T) {
	l := NewLimiter(nil)
	// Without Redis, every check passes (fail open)
	for i := 0; i < 100; i++ {
		result, _ := l.Check(context.Background(), "test:key", 10, time.Minute)
		if !result.Allowed {
			t.Fatalf("expected allowed on check %d", i)
		}
	}
}

func TestQuota_NilRedis_FailOpen(t *testing.T) {
	q := NewIngestionQuota(nil)
	result, err := q.Check(context.Background(), "r-1", 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Allowed {
		t.Error("expected allowed when Redis is nil")
	}
	if err := q.Record(context.Background(), "r-1"); err != nil {
		t.Errorf("Record without Redis should be a no-op: %v", err)
	}
}

func TestQuota_ZeroLimitDisables(t *testing.T) {
	q := NewIngestionQuota(nil)
	result, _ := q.Check(context.Background(), "r-1", 0)
	if !result.Allowed {
		t.Error("zero limit should disable quota enforcement")
	}
}

func TestMiddleware_PassThrough(t *testing.T) {
	called := false
	handler := Middleware(NewLimiter(nil), 60, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/replicas", nil)
	req.RemoteAddr = "203.0.113.7:52341"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called {
		t.Fatal("expected next handler to run")
	}
	if rec.Header().Get(headerRateLimitRequests) != "60" {
		t.Errorf("expected limit header, got %q", rec.Header().Get(headerRateLimitRequests))
	}
}

func TestMiddleware_DisabledByZeroRPM(t *testing.T) {
	called := false
	handler := Middleware(NewLimiter(nil), 0, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/replicas", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called {
		t.Fatal("expected next handler to run")
	}
	if rec.Header().Get(headerRateLimitRequests) != "" {
		t.Error("expected no rate limit headers when disabled")
	}
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.4:1234"
	if got := clientKey(req); got != "198.51.100.4" {
		t.Errorf("clientKey = %q", got)
	}

	req.RemoteAddr = "no-port-here"
	if got := clientKey(req); got != "no-port-here" {
		t.Errorf("clientKey fallback = %q", got)
	}
}
