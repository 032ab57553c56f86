package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"
)

// InternalAttrKey marca logs do próprio pipeline de alertas.
// Registros com esse atributo nunca viram alerta (sem alerta sobre alerta).
const InternalAttrKey = "alert_internal"

// Event é um registro de log de nível error/critical visto pelo pipeline.
type Event struct {
	Message string
	Level   slog.Level
	Time    time.Time
	Fields  map[string]string
}

// Fingerprint identifica eventos duplicados: mesma mensagem e mesmo nível.
func (e Event) Fingerprint() string {
	sum := sha256.Sum256([]byte(LevelName(e.Level) + "|" + e.Message))
	return hex.EncodeToString(sum[:8])
}

// Sink recebe eventos do logger. Consume não pode bloquear o log.
type Sink interface {
	Consume(ctx context.Context, ev Event)
}

// SinkFunc adapta uma função para Sink.
type SinkFunc func(ctx context.Context, ev Event)

func (f SinkFunc) Consume(ctx context.Context, ev Event) { f(ctx, ev) }
