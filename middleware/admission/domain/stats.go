package domain

import (
	"context"
	"time"
)

// StatsOutcome é o desfecho registrado de uma decisão de admissão.
//
// "errored" existe porque falha de storage é um estado terminal distinto
// aqui: a requisição não foi admitida nem negada pela política.
type StatsOutcome string

const (
	StatsAllowed StatsOutcome = "allowed"
	StatsDenied  StatsOutcome = "denied"
	StatsErrored StatsOutcome = "errored"
)

// StatsEvent representa um evento de decisão do gate de admissão.
//
// Ele é propositalmente "agnóstico de HTTP": Method/Path são strings genéricas.
//
// Observação: cuidado com cardinalidade (ex.: salvar Key/Path sem controle pode
// explodir o número de séries/chaves em uma base como Redis/Prometheus).
type StatsEvent struct {
	Key     Key
	Outcome StatsOutcome

	Method string
	Path   string

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas de decisão.
//
// Implementações podem armazenar em Redis, memória, etc.
// O middleware deve tratar erro como best-effort (não derrubar request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
