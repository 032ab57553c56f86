package infra

import (
	"context"
	"log/slog"

	"github.com/fm-dev-mx/celebra-me-sub001/alerting/domain"
)

// LogProvider só registra a notificação. Útil em desenvolvimento, quando não há
// credencial de provider configurada.
type LogProvider struct {
	logger *slog.Logger
}

func NewLogProvider(l *slog.Logger) *LogProvider {
	if l == nil {
		l = slog.Default()
	}
	return &LogProvider{logger: l.With(domain.InternalAttrKey, true)}
}

func (p *LogProvider) Name() string { return "log" }

func (p *LogProvider) Deliver(ctx context.Context, n domain.Notification) error {
	p.logger.InfoContext(ctx, "alert notification",
		"dispatch_id", domain.DispatchID(ctx),
		"destination", n.Destination,
		"subject", n.Subject,
	)
	return nil
}
