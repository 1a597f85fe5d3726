package infra

import (
	"context"
	"sync"

	"fare-monitor/queue/domain"
)

type Counters struct {
	Completed int64
	Retried   int64
	ByKind    map[string]int64
}

// MemoryStatsStore é uma implementação simples em memória.
// Útil para testes e desenvolvimento.
//
// Não faz expiração e não é indicada para produção.
type MemoryStatsStore struct {
	mu        sync.Mutex
	total     Counters
	bySession map[string]Counters

	trackSessions bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackSessions(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackSessions = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		total:     Counters{ByKind: make(map[string]int64)},
		bySession: make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	apply(&s.total, ev)
	if s.trackSessions && ev.Session != "" {
		c := s.bySession[ev.Session]
		if c.ByKind == nil {
			c.ByKind = make(map[string]int64)
		}
		apply(&c, ev)
		s.bySession[ev.Session] = c
	}
	return nil
}

func apply(c *Counters, ev domain.StatsEvent) {
	if ev.Retry {
		c.Retried++
		return
	}
	c.Completed++
	c.ByKind[ev.Kind.String()]++
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyCounters(s.total)
}

func (s *MemoryStatsStore) BySession() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.bySession))
	for k, v := range s.bySession {
		out[k] = copyCounters(v)
	}
	return out
}

func copyCounters(c Counters) Counters {
	out := Counters{Completed: c.Completed, Retried: c.Retried, ByKind: make(map[string]int64, len(c.ByKind))}
	for k, v := range c.ByKind {
		out.ByKind[k] = v
	}
	return out
}
