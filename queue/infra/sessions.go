package infra

import (
	"sync"
	"time"

	"fare-monitor/queue/domain"
)

// Sessions guarda flags de cancelamento por sessão em memória.
// As flags são de vida curta: expiram após `ttl` e são limpas pelo janitor.
type Sessions struct {
	mu           sync.RWMutex
	entries      map[string]sessionEntry
	ttl          time.Duration
	cleanupEvery time.Duration
	now          func() time.Time
}

type sessionEntry struct {
	reason      string
	cancelledAt time.Time
}

var _ domain.SessionRegistry = (*Sessions)(nil)

type SessionsOption func(*Sessions)

// WithSessionTTL define por quanto tempo uma flag vale. 0 = não expira.
func WithSessionTTL(d time.Duration) SessionsOption {
	return func(s *Sessions) { s.ttl = d }
}

func WithSessionCleanupEvery(d time.Duration) SessionsOption {
	return func(s *Sessions) { s.cleanupEvery = d }
}

func WithSessionClock(now func() time.Time) SessionsOption {
	return func(s *Sessions) { s.now = now }
}

func NewSessions(opts ...SessionsOption) *Sessions {
	s := &Sessions{
		entries:      make(map[string]sessionEntry),
		ttl:          30 * time.Minute,
		cleanupEvery: 5 * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cancel marca a sessão como cancelada. Um segundo Cancel mantém o primeiro motivo.
func (s *Sessions) Cancel(session, reason string) {
	if session == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ent, ok := s.entries[session]; ok && !s.expired(ent) {
		return
	}
	s.entries[session] = sessionEntry{reason: reason, cancelledAt: s.now()}
}

func (s *Sessions) Cancelled(session string) (string, bool) {
	if session == "" {
		return "", false
	}
	s.mu.RLock()
	ent, ok := s.entries[session]
	s.mu.RUnlock()
	if !ok || s.expired(ent) {
		return "", false
	}
	return ent.reason, true
}

// Forget remove a flag (ex.: a sessão foi reaberta pelo usuário).
func (s *Sessions) Forget(session string) {
	s.mu.Lock()
	delete(s.entries, session)
	s.mu.Unlock()
}

func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Sessions) expired(ent sessionEntry) bool {
	return s.ttl > 0 && s.now().Sub(ent.cancelledAt) > s.ttl
}

func (s *Sessions) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if s.expired(ent) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa flags expiradas periodicamente.
// Pare cancelando o contexto.
func (s *Sessions) StartJanitor(ctx DoneContext) {
	if s.cleanupEvery <= 0 || s.ttl <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}

// DoneContext é o mínimo de context.Context que o janitor usa.
type DoneContext interface {
	Done() <-chan struct{}
}
