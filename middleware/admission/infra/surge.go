package infra

import (
	"sync"
	"time"

	"telemetry-gateway/middleware/admission/domain"

	"golang.org/x/time/rate"
)

// SurgeStore é um token-bucket (x/time/rate) por chave, com cache e limpeza
// periódica. Ele não decide admissão: serve de pré-filtro de rajada na frente
// do store durável, sem consumir cota da janela fixa.
type SurgeStore struct {
	mu           sync.Mutex
	entries      map[string]*surgeEntry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type surgeEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type SurgeOption func(*SurgeStore)

func WithSurgeIdleTTL(d time.Duration) SurgeOption {
	return func(s *SurgeStore) { s.idleTTL = d }
}

func WithSurgeCleanupEvery(d time.Duration) SurgeOption {
	return func(s *SurgeStore) { s.cleanupEvery = d }
}

func NewSurgeStore(rps float64, burst int, opts ...SurgeOption) *SurgeStore {
	s := &SurgeStore{
		entries:      make(map[string]*surgeEntry),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SurgeStore) RPS() float64                { return float64(s.rps) }
func (s *SurgeStore) Burst() int                  { return s.burst }
func (s *SurgeStore) CleanupEvery() time.Duration { return s.cleanupEvery }

// Get implementa domain.SurgeStore.
func (s *SurgeStore) Get(key domain.Key) domain.SurgeLimiter {
	return s.GetString(string(key))
}

func (s *SurgeStore) GetString(key string) *rate.Limiter {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(s.rps, s.burst)
	s.entries[key] = &surgeEntry{lim: lim, lastSeen: now}
	return lim
}

func (s *SurgeStore) Cleanup() {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto.
func (s *SurgeStore) StartJanitor(ctx DoneContext) {
	if s.cleanupEvery <= 0 {
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

// DoneContext é o mínimo necessário para aceitar context.Context sem importar context aqui.
// (Permite reuso em libs sem acoplar.)
type DoneContext interface {
	Done() <-chan struct{}
}
