package site

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/fm-dev-mx/celebra-me-sub001/middleware/guestauth"
)

const maxContactBody = 16 << 10

// Handlers agrupa as rotas do site. Falha de armazenamento é logada em error,
// o que aciona o pipeline de alertas pelo Hub do logger.
type Handlers struct {
	Guests      GuestDirectory
	Submissions SubmissionStore
	Logger      *slog.Logger
	Now         func() time.Time
}

func (h *Handlers) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// Invitation responde GET /invitations/{slug}. Espera RequireGuest antes;
// token de outro evento recebe 404, igual a convite inexistente.
func (h *Handlers) Invitation(w http.ResponseWriter, r *http.Request) {
	p, ok := guestauth.FromContext(r.Context())
	if !ok || !strings.EqualFold(p.EventSlug, r.PathValue("slug")) {
		http.NotFound(w, r)
		return
	}

	g, err := h.Guests.Lookup(r.Context(), p.EventSlug, p.GuestID)
	if err != nil {
		if errors.Is(err, ErrGuestNotFound) {
			http.NotFound(w, r)
			return
		}
		h.logger().ErrorContext(r.Context(), "guest lookup failed", "event_slug", p.EventSlug, "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, g)
}

type contactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// Contact responde POST /contact.
func (h *Handlers) Contact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxContactBody))
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Message = strings.TrimSpace(req.Message)
	if req.Name == "" || req.Message == "" {
		http.Error(w, "name and message are required", http.StatusBadRequest)
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		http.Error(w, "invalid email", http.StatusBadRequest)
		return
	}

	s := Submission{Name: req.Name, Email: req.Email, Message: req.Message, ReceivedAt: h.now().UTC()}
	if err := h.Submissions.Save(r.Context(), s); err != nil {
		h.logger().ErrorContext(r.Context(), "contact submission failed", "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "received"})
}

// Health responde GET /healthz.
func Health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
