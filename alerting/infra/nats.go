package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fm-dev-mx/celebra-me-sub001/alerting/domain"

	"github.com/nats-io/nats.go"
)

// DefaultNATSSubject é usado quando nenhum subject é configurado.
const DefaultNATSSubject = "alerts.notifications"

// MsgPublisher é o pedaço de *nats.Conn que o provider usa.
type MsgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATSProvider publica a notificação como JSON num subject NATS; um consumidor
// do outro lado faz a entrega final (e-mail, chat).
type NATSProvider struct {
	pub     MsgPublisher
	subject string
}

func NewNATSProvider(pub MsgPublisher, subject string) *NATSProvider {
	subject = strings.Trim(strings.TrimSpace(subject), ".")
	if subject == "" {
		subject = DefaultNATSSubject
	}
	return &NATSProvider{pub: pub, subject: subject}
}

func (p *NATSProvider) Name() string { return "nats" }

func (p *NATSProvider) Deliver(ctx context.Context, n domain.Notification) error {
	if p.pub == nil {
		return errors.New("nats connection is required")
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := p.pub.PublishMsg(&nats.Msg{
		Subject: p.subject,
		Data:    payload,
		Header:  natsHeaders(ctx),
	}); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}
	return nil
}

func natsHeaders(ctx context.Context) nats.Header {
	h := nats.Header{}
	if id := domain.DispatchID(ctx); id != "" {
		// o servidor NATS usa Nats-Msg-Id para deduplicar no JetStream.
		h.Set("Nats-Msg-Id", id)
		h.Set("Dispatch-Id", id)
	}
	if deadline, ok := ctx.Deadline(); ok {
		h.Set("Deadline", deadline.UTC().Format(time.RFC3339Nano))
	}
	return h
}
