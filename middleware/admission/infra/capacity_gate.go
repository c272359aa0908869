package infra

import (
	"context"

	"telemetry-gateway/middleware/admission/domain"
)

// reportGate implementa o teto de relatórios em voo com um channel-semáforo:
// cada relatório em produção ocupa um token até o leave.
type reportGate struct {
	slots chan struct{}
}

// NewReportGate cria um gate com `max` vagas simultâneas.
func NewReportGate(max int) domain.CapacityGate {
	return &reportGate{slots: make(chan struct{}, max)}
}

func (g *reportGate) Enter(ctx context.Context) (func(), bool) {
	select {
	case g.slots <- struct{}{}:
		return func() { <-g.slots }, true
	case <-ctx.Done():
		return nil, false
	}
}
