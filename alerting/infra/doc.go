// Package infra contém os providers concretos de entrega de alertas.
//
//   - WebhookProvider: POST JSON com Idempotency-Key (ex.: API de e-mail transacional)
//   - PushoverProvider: notificação push via API do Pushover
//   - NATSProvider: publica a notificação num subject NATS
//   - LogProvider: só escreve no log (desenvolvimento)
//   - MemoryProvider: guarda as entregas em memória (testes)
//   - Throttled: limita a taxa de chamadas ao provider de baixo
package infra
