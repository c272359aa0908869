// Package application contém os casos de uso (regras de aplicação) para o
// controle de admissão e o teto de relatórios em voo.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Service.CheckAndUpdate(ctx, key) consome uma unidade de cota e retorna
// uma Decision (allow/deny + retry-after), ou erro se o storage falhou.
package application
