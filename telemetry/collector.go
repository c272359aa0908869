package telemetry

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Tokens de tipo de relatório reconhecidos.
const (
	TypeBasic    = "basic_report"
	TypeAdvanced = "advanced_report"

	// TypeDefault é o valor assumido quando a query não traz ?type=.
	// Não é um token reconhecido: um GET sem ?type= resulta em erro de tipo
	// inválido — e a cota já foi consumida nesse ponto.
	TypeDefault = "single_report"
)

// ErrUnknownReportType indica um token fora do conjunto reconhecido.
var ErrUnknownReportType = errors.New("telemetry: unknown report type")

// Collector produz um payload de relatório serializável em JSON.
type Collector interface {
	Collect(ctx context.Context) (any, error)
}

// Registry despacha tokens de tipo de relatório para o coletor correspondente.
// O conjunto é finito e enumerado na construção; token desconhecido vira
// ErrUnknownReportType, nunca um branch implícito.
type Registry struct {
	collectors map[string]Collector
}

func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{collectors: map[string]Collector{
		TypeBasic:    NewBasicCollector(logger),
		TypeAdvanced: NewAdvancedCollector(logger),
	}}
}

// Register troca ou adiciona um coletor para o token dado (útil em testes).
func (r *Registry) Register(reportType string, c Collector) {
	r.collectors[reportType] = c
}

func (r *Registry) Collect(ctx context.Context, reportType string) (any, error) {
	c, ok := r.collectors[reportType]
	if !ok {
		return nil, ErrUnknownReportType
	}
	return c.Collect(ctx)
}
