// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - BoundedRelay: fila FIFO limitada, vários produtores, um consumidor por crédito
//   - WatermillSink: consumidor que publica os itens entregues num tópico watermill
//   - Store: token bucket por chave usando golang.org/x/time/rate
//   - MemoryStatsStore / RedisStatsStore / Metrics: estatísticas das submissões
package infra
