package domain

import "context"

// CapacityGate limita quantos relatórios podem ser produzidos ao mesmo tempo.
//
// Enter bloqueia até abrir uma vaga ou até o ctx encerrar. Ao entrar, retorna
// uma função leave que deve ser chamada exatamente uma vez ao terminar.
type CapacityGate interface {
	Enter(ctx context.Context) (leave func(), ok bool)
}
