// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - LocalWindowLimiter: janela fixa por chave em memória (uma instância só)
//   - RedisWindowLimiter / RueidisWindowLimiter: sliding window distribuído via script Lua
//   - MemoryStatsStore / RedisStatsStore: contadores de allow/deny
//   - ChanPool: semáforo simples para limite de concorrência
package infra
