package application

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/fm-dev-mx/celebra-me-sub001/middleware/ratelimit/domain"
)

// ConcurrencyGate decide se um request ganha vaga no pool. Não conhece HTTP.
//
// Com AcquireTimeout <= 0 espera enquanto o ctx do request estiver vivo;
// com AcquireTimeout > 0 desiste antes.
type ConcurrencyGate struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration

	rejected atomic.Int64
}

// Acquire devolve ok=false (e release nil) quando não conseguiu vaga.
// Sem pool, sempre deixa passar.
func (g *ConcurrencyGate) Acquire(ctx context.Context) (release func(), ok bool) {
	if g.Pool == nil {
		return func() {}, true
	}

	if g.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.AcquireTimeout)
		defer cancel()
	}

	release, ok = g.Pool.Acquire(ctx)
	if !ok {
		g.rejected.Add(1)
	}
	return release, ok
}

// Rejected conta quantos requests ficaram sem vaga desde a criação.
func (g *ConcurrencyGate) Rejected() int64 { return g.rejected.Load() }
