package application

import (
	"context"
	"time"

	"telemetry-gateway/middleware/admission/domain"
)

// CapacityService aplica o teto de relatórios em voo com timeout de espera,
// sem saber nada sobre HTTP.
type CapacityService struct {
	Gate         domain.CapacityGate
	EnterTimeout time.Duration
}

// Enter tenta ocupar uma vaga de produção de relatório.
// - Sem gate configurado, sempre entra (teto desligado).
// - Com `EnterTimeout <= 0`, espera até o ctx cancelar.
// - Com `EnterTimeout > 0`, espera no máximo o timeout.
// Retorna (leave, ok); com ok=false nenhuma vaga foi ocupada.
func (s CapacityService) Enter(ctx context.Context) (func(), bool) {
	if s.Gate == nil {
		return func() {}, true
	}

	if s.EnterTimeout <= 0 {
		return s.Gate.Enter(ctx)
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.EnterTimeout)
	defer cancel()
	return s.Gate.Enter(waitCtx)
}
