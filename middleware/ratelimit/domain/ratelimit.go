package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"errors"
	"time"
)

type Key string

// ErrRateLimited é o erro esperado quando a cota da janela acabou.
// Não é erro de sistema: vira 429 na borda e não deve ser logado como erro.
var ErrRateLimited = errors.New("rate limit exceeded")

// Window é o resultado de uma consulta ao limiter para uma chave.
type Window struct {
	Allowed bool
	// Count é quantas ações já foram contadas na janela (incluindo esta, se permitida).
	Count int
	Limit int
	// ResetAt é quando a janela atual termina.
	ResetAt time.Time
}

// Remaining nunca fica negativo, mesmo com relógio do store adiantado
// ou contagem acima do limite.
func (w Window) Remaining() int {
	if r := w.Limit - w.Count; r > 0 {
		return r
	}
	return 0
}

// WindowLimiter responde "esta chave pode fazer mais uma ação nesta janela?".
//
// Implementações não escondem falhas do backing store: um erro é devolvido e
// quem chama decide fail-open ou fail-closed.
// Com limit <= 0 a resposta é sempre negar.
type WindowLimiter interface {
	Allow(ctx context.Context, key Key, limit int, window time.Duration) (Window, error)
}

// Policy descreve a cota de uma rota protegida.
type Policy struct {
	// Prefix separa os buckets de rotas diferentes: um bucket por (prefix, identidade).
	Prefix string
	Limit  int
	Window time.Duration
}

// BucketKey monta a chave do bucket para uma identidade.
func (p Policy) BucketKey(identity string) Key {
	if p.Prefix == "" {
		return Key(identity)
	}
	return Key(p.Prefix + ":" + identity)
}

type Decision struct {
	Allowed bool
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration

	Limit     int
	Remaining int
	ResetAt   time.Time

	// Bypassed indica que a decisão não consultou o limiter
	// (identidade desconhecida ou store fora do ar com fail-open).
	Bypassed bool
}

// Err devolve ErrRateLimited quando a decisão nega, nil caso contrário.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return ErrRateLimited
}
