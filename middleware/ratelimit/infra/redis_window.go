package infra

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/fm-dev-mx/celebra-me-sub001/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

var redisSlidingWindow = redis.NewScript(slidingWindowScript)

// RedisWindowLimiter é o limiter distribuído (sliding window) sobre go-redis.
// O Redis é a única fonte de verdade entre instâncias.
type RedisWindowLimiter struct {
	rdb    redis.Scripter
	prefix string
	now    func() time.Time
}

type RedisWindowOption func(*RedisWindowLimiter)

func WithRedisPrefix(prefix string) RedisWindowOption {
	return func(l *RedisWindowLimiter) { l.prefix = normalizePrefix(prefix) }
}

func WithRedisClock(now func() time.Time) RedisWindowOption {
	return func(l *RedisWindowLimiter) { l.now = now }
}

func NewRedisWindowLimiter(rdb redis.Scripter, opts ...RedisWindowOption) *RedisWindowLimiter {
	l := &RedisWindowLimiter{
		rdb:    rdb,
		prefix: defaultRedisPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow implementa domain.WindowLimiter. Falha do Redis volta como erro.
func (l *RedisWindowLimiter) Allow(ctx context.Context, key domain.Key, limit int, window time.Duration) (domain.Window, error) {
	now := l.now()
	if limit <= 0 {
		return domain.Window{Allowed: false, ResetAt: now.Add(window)}, nil
	}

	windowMs := windowMillis(window)
	nowMs := now.UnixMilli()
	keys := windowKeys(l.prefix, key, windowMs, nowMs)

	reply, err := redisSlidingWindow.Run(ctx, l.rdb, keys,
		strconv.Itoa(limit),
		strconv.FormatInt(windowMs, 10),
		strconv.FormatInt(nowMs, 10),
	).Int64Slice()
	if err != nil {
		return domain.Window{}, fmt.Errorf("ratelimit script: %w", err)
	}
	return parseScriptReply(reply, limit, now)
}
