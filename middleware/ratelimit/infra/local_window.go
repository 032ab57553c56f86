package infra

import (
	"context"
	"sync"
	"time"

	"github.com/fm-dev-mx/celebra-me-sub001/middleware/ratelimit/domain"
)

// LocalWindowLimiter é um contador de janela fixa por chave, em memória.
//
// Não é autoritativo quando o serviço roda com várias réplicas: cada processo
// conta só o que viu. Serve como proteção de uma instância só ou como tripwire
// rápido na frente do limiter distribuído.
type LocalWindowLimiter struct {
	mu           sync.Mutex
	buckets      map[domain.Key]bucket
	cleanupEvery time.Duration
	now          func() time.Time
}

// bucket é substituído (nunca alterado no lugar) quando a janela vence.
type bucket struct {
	count   int
	resetAt time.Time
}

type LocalOption func(*LocalWindowLimiter)

// WithCleanupEvery liga o janitor que descarta buckets com janela vencida.
// Descartar um bucket vencido não muda decisões: ele seria trocado no próximo uso.
func WithCleanupEvery(d time.Duration) LocalOption {
	return func(l *LocalWindowLimiter) { l.cleanupEvery = d }
}

// WithClock troca o relógio (testes).
func WithClock(now func() time.Time) LocalOption {
	return func(l *LocalWindowLimiter) { l.now = now }
}

func NewLocalWindowLimiter(opts ...LocalOption) *LocalWindowLimiter {
	l := &LocalWindowLimiter{
		buckets:      make(map[domain.Key]bucket),
		cleanupEvery: 2 * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow implementa domain.WindowLimiter. Nunca devolve erro.
func (l *LocalWindowLimiter) Allow(_ context.Context, key domain.Key, limit int, window time.Duration) (domain.Window, error) {
	now := l.now()
	if limit <= 0 {
		return domain.Window{Allowed: false, Limit: 0, ResetAt: now.Add(window)}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		b = bucket{count: 1, resetAt: now.Add(window)}
		l.buckets[key] = b
		return domain.Window{Allowed: true, Count: 1, Limit: limit, ResetAt: b.resetAt}, nil
	}

	if b.count < limit {
		b.count++
		l.buckets[key] = b
		return domain.Window{Allowed: true, Count: b.count, Limit: limit, ResetAt: b.resetAt}, nil
	}
	return domain.Window{Allowed: false, Count: b.count, Limit: limit, ResetAt: b.resetAt}, nil
}

// Len devolve quantos buckets estão em memória.
func (l *LocalWindowLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Cleanup remove buckets cuja janela já terminou.
func (l *LocalWindowLimiter) Cleanup() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for k, b := range l.buckets {
		if !now.Before(b.resetAt) {
			delete(l.buckets, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa buckets vencidos periodicamente.
// Pare cancelando o contexto.
func (l *LocalWindowLimiter) StartJanitor(ctx context.Context) {
	if l.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(l.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				l.Cleanup()
			}
		}
	}()
}
