package admission

import (
	"net/http"
	"time"

	"telemetry-gateway/middleware/admission/application"
	"telemetry-gateway/middleware/admission/infra"
)

// CapacityOptions configura o teto de relatórios em produção simultânea.
// MaxInFlight <= 0 desliga o teto.
type CapacityOptions struct {
	MaxInFlight  int
	RejectStatus int
	EnterTimeout time.Duration
}

// CapacityMiddleware segura a requisição até haver vaga para gerar o
// relatório; sem vaga dentro do prazo, responde ocupado.
func CapacityMiddleware(opts CapacityOptions) func(next http.Handler) http.Handler {
	if opts.MaxInFlight <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}

	svc := application.CapacityService{
		Gate:         infra.NewReportGate(opts.MaxInFlight),
		EnterTimeout: opts.EnterTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			leave, ok := svc.Enter(r.Context())
			if !ok {
				RespondError(w, opts.RejectStatus, MsgServerBusy)
				return
			}
			defer leave()

			next.ServeHTTP(w, r)
		})
	}
}
