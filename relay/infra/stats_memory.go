package infra

import (
	"context"
	"sync"

	"relay-gateway/relay/domain"
)

type Counters struct {
	OK            int64
	Overload      int64
	InternalError int64
}

func (c *Counters) add(s domain.Status) {
	switch s {
	case domain.StatusOK:
		c.OK++
	case domain.StatusOverload:
		c.Overload++
	default:
		c.InternalError++
	}
}

// MemoryStatsStore é uma implementação simples em memória.
// Útil para testes e desenvolvimento.
//
// Não faz expiração e não é indicada para produção.
type MemoryStatsStore struct {
	mu       sync.Mutex
	total    Counters
	byReason map[string]int64
	byKey    map[string]Counters

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byReason: make(map[string]int64),
		byKey:    make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev.Status)
	if ev.Reason != "" {
		s.byReason[ev.Reason]++
	}
	if s.trackKeys && ev.Key != "" {
		k := s.byKey[string(ev.Key)]
		k.add(ev.Status)
		s.byKey[string(ev.Key)] = k
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByReason() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.byReason))
	for k, v := range s.byReason {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) ByKey() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byKey))
	for k, v := range s.byKey {
		out[k] = v
	}
	return out
}

// TeeStats repassa cada evento para todos os stores não-nil.
// Retorna o primeiro erro, mas sempre tenta todos.
func TeeStats(stores ...domain.StatsStore) domain.StatsStore {
	out := make(teeStats, 0, len(stores))
	for _, s := range stores {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

type teeStats []domain.StatsStore

func (t teeStats) Record(ctx context.Context, ev domain.StatsEvent) error {
	var first error
	for _, s := range t {
		if err := s.Record(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
