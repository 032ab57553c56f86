package infra

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fm-dev-mx/celebra-me-sub001/alerting/domain"
)

const (
	pushoverEndpoint = "https://api.pushover.net/1/messages.json"
	// limites da API do Pushover.
	pushoverMaxTitle   = 250
	pushoverMaxMessage = 1024
)

// PushoverProvider entrega a notificação pela API do Pushover.
// Destination, quando preenchido, sobrescreve User (chave de usuário/grupo).
type PushoverProvider struct {
	Token    string
	User     string
	Endpoint string
	Client   *http.Client
}

func (p PushoverProvider) Name() string { return "pushover" }

func (p PushoverProvider) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (p PushoverProvider) Deliver(ctx context.Context, n domain.Notification) error {
	user := p.User
	if n.Destination != "" && !strings.Contains(n.Destination, "@") {
		user = n.Destination
	}
	if p.Token == "" || user == "" {
		return errors.New("pushover token and user are required")
	}
	endpoint := p.Endpoint
	if endpoint == "" {
		endpoint = pushoverEndpoint
	}

	data := url.Values{}
	data.Set("token", p.Token)
	data.Set("user", user)
	data.Set("title", clip(n.Subject, pushoverMaxTitle))
	data.Set("message", clip(n.Body, pushoverMaxMessage))
	data.Set("priority", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("pushover returned status %s", resp.Status)
	}
	return nil
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
