package ratelimit

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/fm-dev-mx/celebra-me-sub001/middleware/ratelimit/application"
	"github.com/fm-dev-mx/celebra-me-sub001/middleware/ratelimit/domain"
)

// DefaultMessage é a resposta curta enviada junto com o 429.
const DefaultMessage = "Too many requests. Please try again later."

type Options struct {
	Limiter  domain.WindowLimiter
	Policy   domain.Policy
	FailOpen bool
	Stats    domain.StatsStore

	KeyFn               KeyFunc
	TrustForwardedFor   bool
	RejectStatus        int
	Message             string
	AddRateLimitHeaders bool

	Logger *slog.Logger
}

// Middleware é o guard de acesso das rotas públicas: identifica o cliente,
// consulta o limiter com a política da rota e responde 429 sem chamar o
// handler quando a cota acabou.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.Message == "" {
		opts.Message = DefaultMessage
	}
	if opts.KeyFn == nil {
		opts.KeyFn = ClientIdentity(opts.TrustForwardedFor)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	svc := application.Service{
		Limiter:  opts.Limiter,
		FailOpen: opts.FailOpen,
		Logger:   logger,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := opts.KeyFn(r)
			dec := svc.Decide(r.Context(), opts.Policy, identity)

			if opts.Stats != nil {
				err := opts.Stats.Record(r.Context(), domain.StatsEvent{
					Key:      opts.Policy.BucketKey(identity),
					Route:    opts.Policy.Prefix,
					Allowed:  dec.Allowed,
					Bypassed: dec.Bypassed,
					At:       time.Now(),
				})
				if err != nil {
					// stats são best-effort: o request segue.
					logger.Debug("rate limit stats not recorded", "prefix", opts.Policy.Prefix, "err", err)
				}
			}

			if opts.AddRateLimitHeaders && !dec.Bypassed {
				w.Header().Set("X-RateLimit-Limit", formatInt(dec.Limit))
				w.Header().Set("X-RateLimit-Remaining", formatInt(dec.Remaining))
				if !dec.ResetAt.IsZero() {
					w.Header().Set("X-RateLimit-Reset", formatInt64(dec.ResetAt.Unix()))
				}
			}

			if !dec.Allowed {
				// cota estourada é esperado: debug, não erro.
				logger.Debug("rate limited", "key", identity, "prefix", opts.Policy.Prefix, "retry_after", dec.RetryAfter, "err", dec.Err())
				w.Header().Set("Retry-After", formatInt(int(dec.RetryAfter.Seconds())))
				http.Error(w, opts.Message, opts.RejectStatus)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
