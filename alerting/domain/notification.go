package domain

import "context"

// Notification é o pedido de envio montado para cada alerta.
type Notification struct {
	Destination string `json:"destination"`
	Origin      string `json:"origin"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
}

// Provider entrega uma notificação (webhook, pushover, NATS, ...).
// Qualquer erro devolvido é tratado igual pelo dispatcher: tenta de novo.
type Provider interface {
	Deliver(ctx context.Context, n Notification) error
}

type dispatchIDKey struct{}

// WithDispatchID guarda o id do envio no contexto; ele é o mesmo em todas as
// tentativas, o que permite ao provider deduplicar (Idempotency-Key).
func WithDispatchID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, dispatchIDKey{}, id)
}

// DispatchID devolve o id do envio, ou "" fora de um dispatch.
func DispatchID(ctx context.Context) string {
	id, _ := ctx.Value(dispatchIDKey{}).(string)
	return id
}
