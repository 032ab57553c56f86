// Package application contém os casos de uso do pipeline de alertas:
//
//   - Dispatcher: envia uma notificação por um provider, com retry e backoff exponencial + jitter
//   - Aggregator: recebe eventos de erro do log, deduplica, aplica cota por janela e
//     entrega os que sobram ao Dispatcher
//
// Falhas de entrega param no Aggregator (não existe alerta sobre alerta que falhou),
// mas ficam visíveis em Stats e num único log de warn por envio.
package application
