package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/fm-dev-mx/celebra-me-sub001/alerting/domain"
)

type collectSink struct {
	mu     sync.Mutex
	events []domain.Event
}

func (c *collectSink) Consume(_ context.Context, ev domain.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collectSink) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func newTestLogger(level string) (*slog.Logger, *Hub, *bytes.Buffer) {
	var buf bytes.Buffer
	l, hub := SetupWriter(&buf, level)
	return l, hub, &buf
}

func TestHub_ForwardsErrorAndCritical(t *testing.T) {
	l, hub, buf := newTestLogger("info")
	sink := &collectSink{}
	hub.Subscribe(sink)

	l.Info("page served")
	l.Warn("slow store")
	l.Error("contact save failed", "event_slug", "xv-maria")
	l.Log(context.Background(), domain.LevelCritical, "rsvp store down")

	if sink.len() != 2 {
		t.Fatalf("expected 2 events, got %d", sink.len())
	}
	ev := sink.events[0]
	if ev.Message != "contact save failed" || ev.Level != slog.LevelError || ev.Fields["event_slug"] != "xv-maria" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if sink.events[1].Level != domain.LevelCritical {
		t.Fatalf("expected critical level, got %v", sink.events[1].Level)
	}
	if !strings.Contains(buf.String(), "level=CRITICAL") {
		t.Fatalf("expected CRITICAL in output, got %q", buf.String())
	}
}

func TestHub_SkipsInternalRecords(t *testing.T) {
	l, hub, _ := newTestLogger("info")
	sink := &collectSink{}
	hub.Subscribe(sink)

	l.Error("delivery failed", domain.InternalAttrKey, true)
	l.With(domain.InternalAttrKey, true).Error("dispatcher gave up")
	l.WithGroup("alerting").With(domain.InternalAttrKey, true).Error("nested internal")

	if sink.len() != 0 {
		t.Fatalf("expected internal records to be skipped, got %d", sink.len())
	}
}

func TestHub_KeepsAttrsAndGroups(t *testing.T) {
	l, hub, _ := newTestLogger("info")
	sink := &collectSink{}
	hub.Subscribe(sink)

	l.With("route", "/contact").WithGroup("req").Error("boom", "id", 7, slog.Group("client", "ip", "203.0.113.9"))

	if sink.len() != 1 {
		t.Fatalf("expected 1 event, got %d", sink.len())
	}
	f := sink.events[0].Fields
	if f["route"] != "/contact" || f["req.id"] != "7" || f["req.client.ip"] != "203.0.113.9" {
		t.Fatalf("unexpected fields %v", f)
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	l, hub, _ := newTestLogger("info")
	sink := &collectSink{}
	unsubscribe := hub.Subscribe(sink)

	l.Error("first")
	unsubscribe()
	unsubscribe()
	l.Error("second")

	if sink.len() != 1 {
		t.Fatalf("expected only the first event, got %d", sink.len())
	}
}

func TestHub_ForwardsEvenWhenOutputLevelIsHigher(t *testing.T) {
	l, hub, buf := newTestLogger("critical")
	sink := &collectSink{}
	hub.Subscribe(sink)

	l.Error("hidden from output")

	if sink.len() != 1 {
		t.Fatalf("expected error event forwarded, got %d", sink.len())
	}
	if buf.Len() != 0 {
		t.Fatalf("expected nothing written below output level, got %q", buf.String())
	}
}
