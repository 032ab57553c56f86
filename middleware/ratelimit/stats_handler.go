package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/fm-dev-mx/celebra-me-sub001/middleware/ratelimit/domain"
)

// StatsHandler expõe o agregado de decisões do guard em JSON.
// É uma rota interna: proteja-a na borda.
func StatsHandler(reader domain.StatsReader, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap, err := reader.Snapshot(r.Context())
		if err != nil {
			logger.Warn("rate limit stats unavailable", "err", err)
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(snap)
	})
}
