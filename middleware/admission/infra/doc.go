// Package infra contém implementações concretas (infraestrutura) para os
// contratos definidos no pacote domain.
//
// Exemplos:
//   - MemoryCounterStore / SQLiteCounterStore / RedisCounterStore: janela fixa por chave
//   - SurgeStore: token bucket por chave usando golang.org/x/time/rate
//   - ReportGate: channel-semáforo para o teto de relatórios em voo
package infra
