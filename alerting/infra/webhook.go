package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fm-dev-mx/celebra-me-sub001/alerting/domain"
)

// WebhookProvider envia a notificação como JSON para uma URL HTTP.
// O id do dispatch vai em Idempotency-Key, o mesmo em todas as tentativas.
type WebhookProvider struct {
	URL    string
	Token  string
	Client *http.Client
}

func (p WebhookProvider) Name() string { return "webhook" }

func (p WebhookProvider) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (p WebhookProvider) Deliver(ctx context.Context, n domain.Notification) error {
	if p.URL == "" {
		return errors.New("webhook url is required")
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if id := domain.DispatchID(ctx); id != "" {
		req.Header.Set("Idempotency-Key", id)
	}
	if p.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.Token)
	}

	resp, err := p.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %s", resp.Status)
	}
	return nil
}
