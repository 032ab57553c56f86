package infra

import (
	"context"
	"testing"
	"time"

	"github.com/fm-dev-mx/celebra-me-sub001/middleware/ratelimit/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func recordDecisions(t *testing.T, s domain.StatsStore, at time.Time) {
	t.Helper()
	ctx := context.Background()
	events := []domain.StatsEvent{
		{Key: "contact:203.0.113.9", Route: "contact", Allowed: true, At: at},
		{Key: "contact:203.0.113.9", Route: "contact", Allowed: false, At: at},
		{Key: "invitation:unknown", Route: "invitation", Allowed: true, Bypassed: true, At: at},
	}
	for _, ev := range events {
		if err := s.Record(ctx, ev); err != nil {
			t.Fatalf("record failed: %v", err)
		}
	}
}

func assertSnapshot(t *testing.T, snap domain.StatsSnapshot) {
	t.Helper()
	if snap.Total != (domain.Counters{Allowed: 1, Denied: 1, Bypassed: 1}) {
		t.Fatalf("unexpected totals %+v", snap.Total)
	}
	if got := snap.ByRoute["contact"]; got.Allowed != 1 || got.Denied != 1 {
		t.Fatalf("unexpected contact counters %+v", got)
	}
	if got := snap.ByRoute["invitation"]; got.Bypassed != 1 {
		t.Fatalf("unexpected invitation counters %+v", got)
	}
}

func TestMemoryStatsStore_Snapshot(t *testing.T) {
	s := NewMemoryStatsStore(WithTrackKeys(true))
	recordDecisions(t, s, time.Now())

	snap, err := s.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	assertSnapshot(t, snap)

	if got := s.ByKey()["contact:203.0.113.9"]; got.Allowed != 1 || got.Denied != 1 {
		t.Fatalf("unexpected key counters %+v", got)
	}
}

func TestMemoryStatsStore_NoKeysByDefault(t *testing.T) {
	s := NewMemoryStatsStore()
	recordDecisions(t, s, time.Now())
	if n := len(s.ByKey()); n != 0 {
		t.Fatalf("expected no per-key counters, got %d", n)
	}
}

func TestRedisStatsStore_RecordsAndReadsBack(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	s := NewRedisStatsStore(rdb, WithStatsPrefix("rl:stats:"), WithStatsTTL(time.Hour), WithStatsTrackKeys(true))
	at := time.Date(2026, 2, 14, 18, 30, 0, 0, time.UTC)
	recordDecisions(t, s, at)

	bucketKey := "rl:stats:minute:202602141830"
	if got := mr.HGet(bucketKey, "denied"); got != "1" {
		t.Fatalf("expected minute bucket denied=1, got %q", got)
	}
	if ttl := mr.TTL(bucketKey); ttl != time.Hour {
		t.Fatalf("expected minute bucket ttl 1h, got %s", ttl)
	}
	if got := mr.HGet("rl:stats:key:contact:203.0.113.9", "allowed"); got != "1" {
		t.Fatalf("expected per-key counter, got %q", got)
	}
	if mr.TTL("rl:stats:total") != 0 {
		t.Fatalf("expected total not to expire")
	}

	snap, err := s.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	assertSnapshot(t, snap)
}

func TestRedisStatsStore_PerMinuteOff(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	s := NewRedisStatsStore(rdb, WithStatsPerMinute(false))
	at := time.Date(2026, 2, 14, 18, 30, 0, 0, time.UTC)
	recordDecisions(t, s, at)

	if mr.Exists("ratelimit:stats:minute:202602141830") {
		t.Fatalf("expected no minute bucket")
	}
	if got := mr.HGet("ratelimit:stats:total", "allowed"); got != "1" {
		t.Fatalf("expected total allowed=1, got %q", got)
	}
}

func TestRedisStatsStore_OutageReturnsError(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	s := NewRedisStatsStore(rdb)
	if err := s.Record(context.Background(), domain.StatsEvent{Route: "contact", Allowed: true}); err == nil {
		t.Fatalf("expected error with redis down")
	}
}
