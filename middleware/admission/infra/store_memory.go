package infra

import (
	"context"
	"sync"
	"time"

	"telemetry-gateway/middleware/admission/domain"
)

// MemoryCounterStore guarda os contadores de janela fixa em memória.
//
// Um único mutex serializa o ler-decidir-gravar: simplicidade em vez de
// paralelismo por chave. O estado NÃO sobrevive a restart do processo;
// para isso use SQLiteCounterStore ou RedisCounterStore.
type MemoryCounterStore struct {
	mu      sync.Mutex
	entries map[domain.Key]*counterEntry

	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type counterEntry struct {
	count       int64
	windowStart int64 // unix segundos
}

type MemoryCounterOption func(*MemoryCounterStore)

func WithMemoryIdleTTL(d time.Duration) MemoryCounterOption {
	return func(s *MemoryCounterStore) { s.idleTTL = d }
}

func WithMemoryCleanupEvery(d time.Duration) MemoryCounterOption {
	return func(s *MemoryCounterStore) { s.cleanupEvery = d }
}

func NewMemoryCounterStore(opts ...MemoryCounterOption) *MemoryCounterStore {
	s := &MemoryCounterStore{
		entries:      make(map[domain.Key]*counterEntry),
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryCounterStore) CleanupEvery() time.Duration { return s.cleanupEvery }

// CheckAndIncrement implementa domain.CounterStore.
func (s *MemoryCounterStore) CheckAndIncrement(_ context.Context, key domain.Key, limit int64, window time.Duration, now time.Time) (domain.Outcome, error) {
	nowUnix := now.Unix()
	windowSec := int64(window / time.Second)

	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[key]
	if !ok || nowUnix-ent.windowStart > windowSec {
		s.entries[key] = &counterEntry{count: 1, windowStart: nowUnix}
		return domain.Admitted, nil
	}
	if ent.count < limit {
		ent.count++
		return domain.Admitted, nil
	}
	return domain.Denied, nil
}

// Get retorna o registro corrente da chave, se existir.
func (s *MemoryCounterStore) Get(key domain.Key) (domain.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[key]
	if !ok {
		return domain.Record{}, false
	}
	return domain.Record{Key: key, RequestCount: ent.count, WindowStart: ent.windowStart}, true
}

// Cleanup descarta registros cuja janela começou há mais que idleTTL.
// Higiene de armazenamento apenas: um registro expirado seria reiniciado
// de qualquer forma na próxima leitura.
func (s *MemoryCounterStore) Cleanup() {
	cutoff := time.Now().Add(-s.idleTTL).Unix()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.windowStart < cutoff {
			delete(s.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa registros antigos periodicamente.
// Pare cancelando o contexto.
func (s *MemoryCounterStore) StartJanitor(ctx DoneContext) {
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
