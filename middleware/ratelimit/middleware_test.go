package ratelimit

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fm-dev-mx/celebra-me-sub001/middleware/ratelimit/domain"
	"github.com/fm-dev-mx/celebra-me-sub001/middleware/ratelimit/infra"
)

var contactPolicy = domain.Policy{Prefix: "contact", Limit: 1, Window: time.Minute}

func serve(h http.Handler, remoteAddr string, headers map[string]string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "http://example/api/contact", nil)
	r.RemoteAddr = remoteAddr
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestMiddleware_AllowsThenRejectsSameIdentity(t *testing.T) {
	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	})

	h := Middleware(Options{
		Limiter:             infra.NewLocalWindowLimiter(),
		Policy:              contactPolicy,
		AddRateLimitHeaders: true,
	})(next)

	w1 := serve(h, "10.0.0.1:1234", nil)
	if w1.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w1.Code)
	}
	if got := w1.Header().Get("X-RateLimit-Limit"); got != "1" {
		t.Fatalf("expected X-RateLimit-Limit=1, got %q", got)
	}
	if got := w1.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Fatalf("expected X-RateLimit-Remaining=0, got %q", got)
	}

	w2 := serve(h, "10.0.0.1:1234", nil)
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w2.Code)
	}
	if got := w2.Header().Get("Retry-After"); got == "" {
		t.Fatalf("expected Retry-After header to be set")
	}
	if !strings.Contains(w2.Body.String(), DefaultMessage) {
		t.Fatalf("expected short message in body, got %q", w2.Body.String())
	}

	if calls != 1 {
		t.Fatalf("expected next handler to be called once, got %d", calls)
	}
}

func TestMiddleware_DifferentIdentitiesHaveOwnBuckets(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := Middleware(Options{
		Limiter:           infra.NewLocalWindowLimiter(),
		Policy:            contactPolicy,
		TrustForwardedFor: true,
	})(next)

	if w := serve(h, "10.0.0.1:1234", map[string]string{"X-Forwarded-For": "1.1.1.1"}); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for 1.1.1.1, got %d", w.Code)
	}
	if w := serve(h, "10.0.0.1:1234", map[string]string{"X-Forwarded-For": "2.2.2.2"}); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for 2.2.2.2, got %d", w.Code)
	}
}

func TestMiddleware_UnknownIdentityIsFailOpen(t *testing.T) {
	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})

	stats := infra.NewMemoryStatsStore()
	h := Middleware(Options{
		Limiter: infra.NewLocalWindowLimiter(),
		Policy:  contactPolicy,
		Stats:   stats,
	})(next)

	for i := 0; i < 3; i++ {
		if w := serve(h, "", nil); w.Code != http.StatusOK {
			t.Fatalf("expected 200 without identity, got %d", w.Code)
		}
	}
	if calls != 3 {
		t.Fatalf("expected 3 handler calls, got %d", calls)
	}
	snap, _ := stats.Snapshot(context.Background())
	if got := snap.Total.Bypassed; got != 3 {
		t.Fatalf("expected 3 bypassed decisions, got %d", got)
	}
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, domain.Key, int, time.Duration) (domain.Window, error) {
	return domain.Window{}, errors.New("redis: connection refused")
}

func TestMiddleware_StoreOutageFollowsFailPolicy(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	open := Middleware(Options{Limiter: brokenLimiter{}, Policy: contactPolicy, FailOpen: true})(next)
	if w := serve(open, "10.0.0.1:1234", nil); w.Code != http.StatusOK {
		t.Fatalf("expected fail-open 200, got %d", w.Code)
	}

	closed := Middleware(Options{Limiter: brokenLimiter{}, Policy: contactPolicy})(next)
	w := serve(closed, "10.0.0.1:1234", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected fail-closed 429, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "redis") {
		t.Fatalf("internal error leaked into response: %q", w.Body.String())
	}
}

func TestMiddleware_RetryAfterUsesSeconds(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := Middleware(Options{
		Limiter: infra.NewLocalWindowLimiter(),
		Policy:  domain.Policy{Prefix: "invitation", Limit: 1, Window: 30 * time.Second},
	})(next)

	_ = serve(h, "10.0.0.1:1234", nil)
	w := serve(h, "10.0.0.1:1234", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	got := strings.TrimSpace(w.Header().Get("Retry-After"))
	if got != "30" && got != "29" {
		t.Fatalf("expected Retry-After close to 30, got %q", got)
	}
}

type unreachableStats struct{}

func (unreachableStats) Record(context.Context, domain.StatsEvent) error {
	return errors.New("redis: i/o timeout")
}

func TestMiddleware_StatsFailureIsLoggedAndRequestServed(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	h := Middleware(Options{
		Limiter: infra.NewLocalWindowLimiter(),
		Policy:  contactPolicy,
		Stats:   unreachableStats{},
		Logger:  logger,
	})(next)

	if w := serve(h, "10.0.0.1:1234", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200 despite stats outage, got %d", w.Code)
	}
	out := buf.String()
	if !strings.Contains(out, "rate limit stats not recorded") || !strings.Contains(out, "i/o timeout") {
		t.Fatalf("expected debug log for stats failure, got %q", out)
	}
	if strings.Contains(out, "level=ERROR") {
		t.Fatalf("stats failure must not be logged as error: %q", out)
	}
}
