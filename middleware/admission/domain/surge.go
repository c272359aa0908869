package domain

// SurgeLimiter decide se uma ação pode passar AGORA (suavização de rajada).
//
// Diferente do CounterStore, ele não consome cota da janela fixa: é um
// pré-filtro barato na frente do store durável.
// A camada de infra pode usar libs como golang.org/x/time/rate.
type SurgeLimiter interface {
	Allow() bool
}

// SurgeStore obtém um limiter de rajada por chave (ex: IP, API key).
// A implementação pode manter cache, TTL, etc.
type SurgeStore interface {
	Get(Key) SurgeLimiter
}
