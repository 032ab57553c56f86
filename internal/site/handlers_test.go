package site

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fm-dev-mx/celebra-me-sub001/middleware/guestauth"
)

const secret = "test-secret"

func newMux(h *Handlers) *http.ServeMux {
	mux := http.NewServeMux()
	guard := guestauth.RequireGuest(guestauth.Options{Secret: secret, HideExistence: true})
	mux.Handle("GET /invitations/{slug}", guard(http.HandlerFunc(h.Invitation)))
	mux.HandleFunc("POST /contact", h.Contact)
	return mux
}

func issue(t *testing.T, slug, guest string) string {
	t.Helper()
	tok, err := guestauth.Codec{}.Issue(guestauth.Payload{EventSlug: slug, GuestID: guest}, secret)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return tok
}

func TestInvitation_ServesGuestForMatchingSlug(t *testing.T) {
	h := &Handlers{Guests: NewMemoryGuests(Guest{EventSlug: "xv-maria", GuestID: "g123", Name: "Ana", Seats: 2})}
	mux := newMux(h)

	req := httptest.NewRequest(http.MethodGet, "/invitations/xv-maria?token="+issue(t, "xv-maria", "g123"), nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"name":"Ana"`) {
		t.Fatalf("unexpected body %q", rr.Body.String())
	}
}

func TestInvitation_TokenForOtherEventIs404(t *testing.T) {
	h := &Handlers{Guests: NewMemoryGuests(Guest{EventSlug: "xv-maria", GuestID: "g123"})}
	mux := newMux(h)

	req := httptest.NewRequest(http.MethodGet, "/invitations/boda-luis?token="+issue(t, "xv-maria", "g123"), nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestInvitation_UnknownGuestIs404(t *testing.T) {
	h := &Handlers{Guests: NewMemoryGuests()}
	mux := newMux(h)

	req := httptest.NewRequest(http.MethodGet, "/invitations/xv-maria?token="+issue(t, "xv-maria", "nobody"), nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestContact_SavesSubmission(t *testing.T) {
	subs := NewMemorySubmissions()
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	h := &Handlers{Submissions: subs, Now: func() time.Time { return at }}
	mux := newMux(h)

	body := `{"name":"Ana","email":"ana@example.com","message":"¿Hay estacionamiento?"}`
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/contact", strings.NewReader(body)))

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}
	all := subs.All()
	if len(all) != 1 || all[0].Email != "ana@example.com" || !all[0].ReceivedAt.Equal(at) {
		t.Fatalf("unexpected submissions %+v", all)
	}
}

func TestContact_RejectsInvalidInput(t *testing.T) {
	h := &Handlers{Submissions: NewMemorySubmissions()}
	mux := newMux(h)

	for _, body := range []string{
		`not json`,
		`{"name":"","email":"ana@example.com","message":"hi"}`,
		`{"name":"Ana","email":"not-an-email","message":"hi"}`,
	} {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/contact", strings.NewReader(body)))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, rr.Code)
		}
	}
}

type failingStore struct{}

func (failingStore) Save(context.Context, Submission) error { return errors.New("db unavailable") }

func TestContact_StoreFailureLogsError(t *testing.T) {
	var buf bytes.Buffer
	h := &Handlers{Submissions: failingStore{}, Logger: slog.New(slog.NewTextHandler(&buf, nil))}
	mux := newMux(h)

	body := `{"name":"Ana","email":"ana@example.com","message":"hi"}`
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/contact", strings.NewReader(body)))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "db unavailable") {
		t.Fatalf("internal error leaked to client: %q", rr.Body.String())
	}
	if !strings.Contains(buf.String(), "level=ERROR") || !strings.Contains(buf.String(), "contact submission failed") {
		t.Fatalf("expected error log, got %q", buf.String())
	}
}
