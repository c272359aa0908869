package application

import (
	"context"
	"time"

	"telemetry-gateway/middleware/admission/domain"
)

// Defaults da política quando a configuração não informa limite/janela.
const (
	DefaultLimit  int64 = 5
	DefaultWindow       = 60 * time.Second
)

// Service concentra a regra de aplicação do controle de admissão.
//
// Ele não sabe nada sobre HTTP (headers/status): amarra a configuração
// (limite, janela) e o relógio ao CounterStore e devolve uma decisão.
// Não guarda estado mutável, então é seguro compartilhar entre goroutines.
type Service struct {
	Store      domain.CounterStore
	Limit      int64
	Window     time.Duration
	RetryAfter time.Duration

	// Now permite injetar relógio nos testes. Se nil, usa time.Now.
	Now func() time.Time
}

// CheckAndUpdate consome (ou tenta consumir) uma unidade de cota da chave.
//
// Erro do store NUNCA admite (fail-closed): retorna Decision{Allowed:false}
// junto com o erro, para a borda HTTP traduzir em 500. A decisão, uma vez
// tomada, é cobrada mesmo que o cliente desista antes da resposta.
func (s Service) CheckAndUpdate(ctx context.Context, key domain.Key) (domain.Decision, error) {
	if s.Store == nil {
		// sem store não dá para verificar a cota; negar é o único seguro
		return domain.Decision{}, domain.ErrStorageUnavailable
	}

	limit := s.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	window := s.Window
	if window <= 0 {
		window = DefaultWindow
	}
	retry := s.RetryAfter
	if retry <= 0 {
		retry = 1 * time.Second
	}

	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	out, err := s.Store.CheckAndIncrement(ctx, key, limit, window, now)
	if err != nil {
		return domain.Decision{}, err
	}
	if out == domain.Admitted {
		return domain.Decision{Allowed: true}, nil
	}
	return domain.Decision{Allowed: false, RetryAfter: retry}, nil
}
