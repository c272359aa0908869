package domain

// Camada de domínio do controle de admissão.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"errors"
	"time"
)

type Key string

// Outcome é o resultado de uma tentativa de consumo de cota.
type Outcome int

const (
	Admitted Outcome = iota
	Denied
)

// Record é o estado persistido de uma chave de cliente na janela corrente.
//
// WindowStart tem resolução de segundos (unix). A expiração compara com
// "estritamente maior": now-start > window reinicia a contagem.
type Record struct {
	Key          Key
	RequestCount int64
	WindowStart  int64
}

// ErrStorageUnavailable indica que o meio durável não pôde completar a
// operação atômica. Quem chama NUNCA deve admitir nesse caso (fail-closed).
var ErrStorageUnavailable = errors.New("admission: storage unavailable")

// CounterStore é a estratégia de persistência dos contadores por chave.
//
// CheckAndIncrement executa ler-decidir-gravar como unidade indivisível em
// relação a qualquer outra invocação concorrente para a MESMA chave:
//
//   - sem registro:            cria (count=1, start=now) e retorna Admitted
//   - now-start > window:      reinicia (count=1, start=now) e retorna Admitted
//   - janela aberta, count<L:  incrementa e retorna Admitted
//   - janela aberta, count>=L: não altera nada e retorna Denied
//
// Implementações podem serializar por chave ou com um lock único; chaves
// distintas não podem interferir na contagem uma da outra.
type CounterStore interface {
	CheckAndIncrement(ctx context.Context, key Key, limit int64, window time.Duration, now time.Time) (Outcome, error)
}

type Decision struct {
	Allowed bool
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}
