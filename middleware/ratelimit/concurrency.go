package ratelimit

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/fm-dev-mx/celebra-me-sub001/middleware/ratelimit/application"
	"github.com/fm-dev-mx/celebra-me-sub001/middleware/ratelimit/infra"
)

type ConcurrencyOptions struct {
	// Max <= 0 desliga o limite.
	Max            int
	AcquireTimeout time.Duration
	// RejectStatus padrão: 503.
	RejectStatus int
	// Exempt marca requests que não ocupam vaga (ex.: health check do balanceador,
	// que não pode falhar só porque o site está cheio).
	Exempt func(r *http.Request) bool
	Logger *slog.Logger
}

// ConcurrencyLimiter limita quantos requests o gateway atende ao mesmo tempo.
// Sem vaga, responde RejectStatus com Retry-After: 1.
type ConcurrencyLimiter struct {
	opts   ConcurrencyOptions
	pool   *infra.ChanPool
	gate   *application.ConcurrencyGate
	logger *slog.Logger
}

// NewConcurrencyLimiter devolve nil quando Max <= 0; Wrap de um limiter nil
// devolve o handler sem mudança.
func NewConcurrencyLimiter(opts ConcurrencyOptions) *ConcurrencyLimiter {
	if opts.Max <= 0 {
		return nil
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pool := infra.NewChanPool(opts.Max)
	return &ConcurrencyLimiter{
		opts:   opts,
		pool:   pool,
		gate:   &application.ConcurrencyGate{Pool: pool, AcquireTimeout: opts.AcquireTimeout},
		logger: logger,
	}
}

func (c *ConcurrencyLimiter) Wrap(next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c.opts.Exempt != nil && c.opts.Exempt(r) {
			next.ServeHTTP(w, r)
			return
		}

		release, ok := c.gate.Acquire(r.Context())
		if !ok {
			c.logger.Debug("no concurrency slot", "path", r.URL.Path, "in_flight", c.pool.InUse(), "rejected_total", c.gate.Rejected())
			w.Header().Set("Retry-After", "1")
			http.Error(w, http.StatusText(c.opts.RejectStatus), c.opts.RejectStatus)
			return
		}
		defer release()

		next.ServeHTTP(w, r)
	})
}

// Rejected conta requests recusados por falta de vaga.
func (c *ConcurrencyLimiter) Rejected() int64 {
	if c == nil {
		return 0
	}
	return c.gate.Rejected()
}

// InFlight é quantos requests ocupam vaga agora.
func (c *ConcurrencyLimiter) InFlight() int {
	if c == nil {
		return 0
	}
	return c.pool.InUse()
}

// ConcurrencyMiddleware é o atalho para NewConcurrencyLimiter(opts).Wrap.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	return NewConcurrencyLimiter(opts).Wrap
}
