package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fm-dev-mx/celebra-me-sub001/middleware/ratelimit/domain"
	"github.com/fm-dev-mx/celebra-me-sub001/middleware/ratelimit/infra"
)

func TestStatsHandler_ServesSnapshot(t *testing.T) {
	stats := infra.NewMemoryStatsStore()
	_ = stats.Record(context.Background(), domain.StatsEvent{Route: "contact", Allowed: false})

	rr := httptest.NewRecorder()
	StatsHandler(stats, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/internal/ratelimit/stats", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var snap domain.StatsSnapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Total.Denied != 1 || snap.ByRoute["contact"].Denied != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

type failingReader struct{}

func (failingReader) Snapshot(context.Context) (domain.StatsSnapshot, error) {
	return domain.StatsSnapshot{}, errors.New("redis: i/o timeout")
}

func TestStatsHandler_ReaderError(t *testing.T) {
	rr := httptest.NewRecorder()
	StatsHandler(failingReader{}, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
