package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestRateLimitHandlerFunc(t *testing.T) {
	rl := NewIPRateLimiter(rate.Every(time.Minute), 2)

	calls := 0
	handler := RateLimitHandlerFunc(rl, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.10:1234"
		handler(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}

	// Third request from the same IP exceeds the burst.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.10:1234"
	handler(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}

	// A different IP has its own budget.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.20:1234"
	handler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for fresh IP, got %d", rec.Code)
	}

	if calls != 3 {
		t.Fatalf("expected 3 handled requests, got %d", calls)
	}
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:4321"
	if ip := getClientIP(req); ip != "10.0.0.5" {
		t.Fatalf("expected RemoteAddr host, got %q", ip)
	}

	req.Header.Set("X-Real-IP", "10.0.0.9")
	if ip := getClientIP(req); ip != "10.0.0.9" {
		t.Fatalf("expected X-Real-IP, got %q", ip)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if ip := getClientIP(req); ip != "203.0.113.7" {
		t.Fatalf("expected first X-Forwarded-For hop, got %q", ip)
	}
}
