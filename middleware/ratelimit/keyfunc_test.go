package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientIdentity_TrustXForwardedForUsesFirstValidIP(t *testing.T) {
	fn := ClientIdentity(true)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", "garbage, 1.2.3.4, 5.6.7.8")

	if got := fn(r); got != "1.2.3.4" {
		t.Fatalf("expected first valid XFF ip, got %q", got)
	}
}

func TestClientIdentity_FallsBackToRealIPHeader(t *testing.T) {
	fn := ClientIdentity(true)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", "not-an-ip")
	r.Header.Set("X-Real-IP", " 2001:db8::1 ")

	if got := fn(r); got != "2001:db8::1" {
		t.Fatalf("expected X-Real-IP, got %q", got)
	}
}

func TestClientIdentity_IgnoresHeadersWhenNotTrusted(t *testing.T) {
	fn := ClientIdentity(false)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", "1.2.3.4")

	if got := fn(r); got != "10.0.0.9" {
		t.Fatalf("expected remote host, got %q", got)
	}
}

func TestClientIdentity_UnknownWhenNothingValid(t *testing.T) {
	fn := ClientIdentity(true)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "pipe"

	if got := fn(r); got != "unknown" {
		t.Fatalf("expected unknown, got %q", got)
	}
}
