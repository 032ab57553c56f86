package infra

import (
	"context"
	"fmt"

	"github.com/fm-dev-mx/celebra-me-sub001/alerting/domain"

	"golang.org/x/time/rate"
)

// Throttled limita a taxa de chamadas a um provider com token bucket.
// Deliver espera um token (respeitando o ctx) antes de repassar.
type Throttled struct {
	next    domain.Provider
	limiter *rate.Limiter
}

// NewThrottled cria o wrapper; rps <= 0 devolve o provider original.
func NewThrottled(next domain.Provider, rps float64, burst int) domain.Provider {
	if rps <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	return &Throttled{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (t *Throttled) Name() string {
	if named, ok := t.next.(interface{ Name() string }); ok {
		return named.Name()
	}
	return "throttled"
}

func (t *Throttled) Deliver(ctx context.Context, n domain.Notification) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("provider throttle: %w", err)
	}
	return t.next.Deliver(ctx, n)
}
