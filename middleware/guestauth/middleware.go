package guestauth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

type ctxKey struct{}

// FromContext devolve o payload colocado pelo RequireGuest.
func FromContext(ctx context.Context) (Payload, bool) {
	p, ok := ctx.Value(ctxKey{}).(Payload)
	return p, ok
}

// TokenFromRequest lê o token de ?token= ou de Authorization: Bearer.
func TokenFromRequest(r *http.Request) string {
	if tok := strings.TrimSpace(r.URL.Query().Get("token")); tok != "" {
		return tok
	}
	if auth := r.Header.Get("Authorization"); len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

type Options struct {
	Codec  Codec
	Secret string
	// HideExistence responde 404 para token inválido/expirado, para não
	// revelar que o recurso existe.
	HideExistence bool
	Logger        *slog.Logger
}

// RequireGuest só chama o próximo handler com um token válido.
// Sem token: 401. Token inválido ou expirado: 401 (ou 404 com HideExistence).
func RequireGuest(opts Options) func(next http.Handler) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rejectStatus := http.StatusUnauthorized
	if opts.HideExistence {
		rejectStatus = http.StatusNotFound
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := TokenFromRequest(r)
			if tok == "" {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			p, err := opts.Codec.Verify(tok, opts.Secret)
			if err != nil {
				if errors.Is(err, ErrMissingSecret) {
					logger.Warn("guest token secret not configured", "path", r.URL.Path)
				} else {
					logger.Debug("guest token rejected", "err", err, "path", r.URL.Path)
				}
				http.Error(w, http.StatusText(rejectStatus), rejectStatus)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, p)))
		})
	}
}
