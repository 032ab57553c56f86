package infra

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fm-dev-mx/celebra-me-sub001/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore conta decisões em hashes do Redis, compartilhados entre réplicas.
//
// Layout:
//
//	<prefix>:total              allowed|denied|bypassed
//	<prefix>:route              <route>:<resultado>
//	<prefix>:minute:<YYYYMMDDhhmm>  por minuto, expira em ttl
//	<prefix>:key:<bucket key>       só com WithStatsTrackKeys, expira em ttl
type RedisStatsStore struct {
	rdb redis.Cmdable

	prefix    string
	ttl       time.Duration
	perMinute bool
	trackKeys bool
}

var (
	_ domain.StatsStore  = (*RedisStatsStore)(nil)
	_ domain.StatsReader = (*RedisStatsStore)(nil)
)

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		if p := strings.Trim(prefix, ":"); p != "" {
			s.prefix = p
		}
	}
}

// WithStatsTTL vale para as chaves por minuto e por chave; o total não expira.
func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsPerMinute(on bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.perMinute = on }
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb redis.Cmdable, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:       rdb,
		prefix:    "ratelimit:stats",
		ttl:       24 * time.Hour,
		perMinute: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func statsField(ev domain.StatsEvent) string {
	switch {
	case ev.Bypassed:
		return "bypassed"
	case ev.Allowed:
		return "allowed"
	default:
		return "denied"
	}
}

// Record grava tudo num único pipeline.
func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	field := statsField(ev)

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", field, 1)

	if route := strings.TrimSpace(ev.Route); route != "" {
		pipe.HIncrBy(ctx, s.prefix+":route", route+":"+field, 1)
	}
	if s.perMinute {
		s.incrExpiring(ctx, pipe, s.prefix+":minute:"+at.UTC().Format("200601021504"), field)
	}
	if s.trackKeys && ev.Key != "" {
		s.incrExpiring(ctx, pipe, s.prefix+":key:"+string(ev.Key), field)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record stats: %w", err)
	}
	return nil
}

func (s *RedisStatsStore) incrExpiring(ctx context.Context, pipe redis.Pipeliner, key, field string) {
	pipe.HIncrBy(ctx, key, field, 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
}

// Snapshot lê o total e a divisão por rota.
func (s *RedisStatsStore) Snapshot(ctx context.Context) (domain.StatsSnapshot, error) {
	snap := domain.StatsSnapshot{ByRoute: make(map[string]domain.Counters)}

	pipe := s.rdb.Pipeline()
	total := pipe.HGetAll(ctx, s.prefix+":total")
	routes := pipe.HGetAll(ctx, s.prefix+":route")
	if _, err := pipe.Exec(ctx); err != nil {
		return snap, fmt.Errorf("read stats: %w", err)
	}

	for field, v := range total.Val() {
		setCounter(&snap.Total, field, v)
	}
	for f, v := range routes.Val() {
		i := strings.LastIndexByte(f, ':')
		if i <= 0 {
			continue
		}
		c := snap.ByRoute[f[:i]]
		setCounter(&c, f[i+1:], v)
		snap.ByRoute[f[:i]] = c
	}
	return snap, nil
}

func setCounter(c *domain.Counters, field, raw string) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return
	}
	switch field {
	case "allowed":
		c.Allowed = n
	case "denied":
		c.Denied = n
	case "bypassed":
		c.Bypassed = n
	}
}
