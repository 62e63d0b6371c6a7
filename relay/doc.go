// Package relay fornece adapters HTTP (net/http) para o relay de submissões.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (gateway de submissão, admissão por cliente)
//   - infra: implementações concretas (BoundedRelay, token bucket, stats, sink watermill)
//   - relay (este pacote): handler/middleware HTTP + extração de chave + tradução para status/headers
//
// Fluxo no gateway:
//
//   1) Extrai a chave do cliente (header/XFF/IP) e, se configurado, aplica a admissão
//   2) Decodifica o corpo no tipo do item
//   3) Chama SubmissionGateway, que faz uma única oferta ao relay
//   4) Responde 200 (aceito), 429 (fila cheia ou admissão negada),
//      503 (relay fechado) ou 500 (timeout, falha, violação de protocolo)
//
// O consumidor do relay (ex: infra.WatermillSink) roda à parte e puxa os itens
// por crédito; nada disso passa por este pacote.
package relay
