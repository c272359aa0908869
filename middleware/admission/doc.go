// Package admission fornece adapters HTTP (net/http) para o gate de admissão
// por janela fixa e para o teto de relatórios em voo.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (consumo de cota fail-closed, entrada no teto com timeout) sem net/http
//   - infra: implementações concretas (stores memória/SQLite/Redis, token bucket, semáforo)
//   - admission (este pacote): middlewares HTTP + wiring/extração de chave + tradução para status/JSON
//
// Fluxo no gateway:
//
//  1. Extrai a chave do cliente (IP/header/XFF)
//  2. (opcional) pré-filtro de rajada — nega sem consumir cota da janela
//  3. Chama a camada application para consumir uma unidade da janela fixa
//  4. Negado → 429; storage indisponível → 500 (fail-closed, nunca admite)
//  5. Permitido → chama o próximo handler (ex: o endpoint de relatório)
//
// Variáveis de ambiente do binário gateway (cmd/gateway) controlam o comportamento,
// como RATE_LIMIT, RATE_WINDOW, STORE_BACKEND e CONCURRENCY_MAX.
package admission
