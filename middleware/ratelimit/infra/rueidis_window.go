package infra

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/fm-dev-mx/celebra-me-sub001/middleware/ratelimit/domain"

	"github.com/redis/rueidis"
)

var rueidisSlidingWindow = rueidis.NewLuaScript(slidingWindowScript)

// RueidisWindowLimiter usa o mesmo script do RedisWindowLimiter, mas sobre rueidis
// (pipelining automático, útil com muitas instâncias batendo no mesmo Redis).
type RueidisWindowLimiter struct {
	client rueidis.Client
	prefix string
	now    func() time.Time
}

type RueidisWindowOption func(*RueidisWindowLimiter)

// WithRueidisClock troca o relógio usado para calcular a janela (testes).
func WithRueidisClock(now func() time.Time) RueidisWindowOption {
	return func(l *RueidisWindowLimiter) { l.now = now }
}

func NewRueidisWindowLimiter(client rueidis.Client, prefix string, opts ...RueidisWindowOption) *RueidisWindowLimiter {
	l := &RueidisWindowLimiter{
		client: client,
		prefix: normalizePrefix(prefix),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow implementa domain.WindowLimiter.
func (l *RueidisWindowLimiter) Allow(ctx context.Context, key domain.Key, limit int, window time.Duration) (domain.Window, error) {
	now := l.now()
	if limit <= 0 {
		return domain.Window{Allowed: false, ResetAt: now.Add(window)}, nil
	}

	windowMs := windowMillis(window)
	nowMs := now.UnixMilli()
	keys := windowKeys(l.prefix, key, windowMs, nowMs)
	args := []string{
		strconv.Itoa(limit),
		strconv.FormatInt(windowMs, 10),
		strconv.FormatInt(nowMs, 10),
	}

	reply, err := rueidisSlidingWindow.Exec(ctx, l.client, keys, args).AsIntSlice()
	if err != nil {
		return domain.Window{}, fmt.Errorf("ratelimit script: %w", err)
	}
	return parseScriptReply(reply, limit, now)
}
