package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiterRefill(t *testing.T) {
	now := time.Unix(0, 0)
	l := NewLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("first two requests rejected")
	}
	if l.Allow("a") {
		t.Fatal("third request allowed")
	}
	if !l.Allow("b") {
		t.Error("keys share a bucket")
	}

	now = now.Add(30 * time.Second)
	if !l.Allow("a") {
		t.Error("token not refilled after half a window")
	}
	if l.Allow("a") {
		t.Error("refill exceeded the rate")
	}

	now = now.Add(3 * time.Minute)
	l.sweep()
	if len(l.buckets) != 0 {
		t.Errorf("%d buckets survived the sweep", len(l.buckets))
	}
}

func TestRateLimit(t *testing.T) {
	l := NewLimiter(1, time.Hour)
	h := RateLimit(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	do := func(path, fwd string) int {
		req := httptest.NewRequest("GET", path, nil)
		if fwd != "" {
			req.Header.Set("X-Forwarded-For", fwd)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := do("/api/v1/search?q=a", ""); code != http.StatusOK {
		t.Errorf("first request = %d", code)
	}
	if code := do("/api/v1/search?q=a", ""); code != http.StatusTooManyRequests {
		t.Errorf("second request = %d, want 429", code)
	}
	if code := do("/api/v1/search?q=a", "10.0.0.9, 10.0.0.1"); code != http.StatusOK {
		t.Errorf("forwarded client = %d", code)
	}
	if code := do("/health/ready", ""); code != http.StatusOK {
		t.Errorf("health check limited: %d", code)
	}
}
