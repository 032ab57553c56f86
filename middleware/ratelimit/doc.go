// Package ratelimit fornece adapters HTTP (net/http) para rate limit e limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (decisão allow/deny, fail-open/closed, acquire/timeout)
//   - infra: limiters de janela (memória local, Redis), stats, semáforo
//   - ratelimit (este pacote): middlewares HTTP + extração da identidade + tradução para status/headers
//
// Fluxo do guard:
//
//  1. Extrai a identidade do cliente (XFF/X-Real-IP/RemoteAddr, senão "unknown")
//  2. Chama a camada application com a política da rota (prefixo, limite, janela)
//  3. Se bloqueado, responde 429 com Retry-After e mensagem curta, sem chamar o handler
//  4. Se permitido (ou identidade desconhecida: fail-open), chama o próximo handler
package ratelimit
