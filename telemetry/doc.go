// Package telemetry implementa o colaborador coletor de relatórios de rede.
//
// Cada coletor recebe um contexto e devolve um payload serializável em JSON;
// o gate de admissão nunca inspeciona o conteúdo, só decide se o chamador
// pode pedir um. O despacho por token de tipo fica no Registry.
package telemetry
