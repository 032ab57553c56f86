package infra

import (
	"context"
	"maps"
	"sync"

	"github.com/fm-dev-mx/celebra-me-sub001/middleware/ratelimit/domain"
)

// MemoryStatsStore conta decisões em memória, por instância e sem expiração.
type MemoryStatsStore struct {
	mu      sync.Mutex
	total   domain.Counters
	byRoute map[string]domain.Counters
	byKey   map[domain.Key]domain.Counters

	trackKeys bool
}

var (
	_ domain.StatsStore  = (*MemoryStatsStore)(nil)
	_ domain.StatsReader = (*MemoryStatsStore)(nil)
)

type MemoryStatsOption func(*MemoryStatsStore)

// WithTrackKeys também conta por chave de bucket (cresce com o número de clientes).
func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byRoute: make(map[string]domain.Counters),
		byKey:   make(map[domain.Key]domain.Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.Add(ev)

	route := s.byRoute[ev.Route]
	route.Add(ev)
	s.byRoute[ev.Route] = route

	if s.trackKeys && ev.Key != "" {
		k := s.byKey[ev.Key]
		k.Add(ev)
		s.byKey[ev.Key] = k
	}
	return nil
}

func (s *MemoryStatsStore) Snapshot(context.Context) (domain.StatsSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.StatsSnapshot{Total: s.total, ByRoute: maps.Clone(s.byRoute)}, nil
}

// ByKey só tem dados com WithTrackKeys(true).
func (s *MemoryStatsStore) ByKey() map[domain.Key]domain.Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.byKey)
}
