package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/fm-dev-mx/celebra-me-sub001/middleware/ratelimit/domain"
)

// UnknownIdentity é a identidade usada quando não dá para extrair o IP do cliente.
const UnknownIdentity = "unknown"

// Service concentra a regra de aplicação do rate limit.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
// Sem identidade o request passa sem limite (fail-open): disponibilidade vem
// antes da cota quando não há como saber quem é o cliente.
type Service struct {
	Limiter domain.WindowLimiter
	// FailOpen decide o que fazer quando o limiter devolve erro (store fora do ar).
	FailOpen bool
	Logger   *slog.Logger
	Now      func() time.Time
}

func (s Service) Decide(ctx context.Context, policy domain.Policy, identity string) domain.Decision {
	if s.Limiter == nil || identity == "" || identity == UnknownIdentity {
		return domain.Decision{Allowed: true, Bypassed: true}
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	w, err := s.Limiter.Allow(ctx, policy.BucketKey(identity), policy.Limit, policy.Window)
	if err != nil {
		s.logger().Warn("rate limit store unavailable",
			"err", err, "prefix", policy.Prefix, "fail_open", s.FailOpen)
		if s.FailOpen {
			return domain.Decision{Allowed: true, Bypassed: true}
		}
		return domain.Decision{
			Allowed:    false,
			RetryAfter: retryAfter(policy.Window),
			Limit:      policy.Limit,
		}
	}

	dec := domain.Decision{
		Allowed:   w.Allowed,
		Limit:     w.Limit,
		Remaining: w.Remaining(),
		ResetAt:   w.ResetAt,
	}
	if !w.Allowed {
		dec.RetryAfter = retryAfter(w.ResetAt.Sub(now()))
	}
	return dec
}

func (s Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// retryAfter arredonda para cima em segundos e nunca devolve menos de 1s.
func retryAfter(d time.Duration) time.Duration {
	if d <= time.Second {
		return time.Second
	}
	if rem := d % time.Second; rem != 0 {
		d += time.Second - rem
	}
	return d
}
