// Package config carrega a configuração da aplicação a partir do ambiente.
// É o único pacote que lê variáveis de ambiente; o resto recebe structs tipadas.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fm-dev-mx/celebra-me-sub001/alerting/domain"

	"github.com/caarlos0/env/v11"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config reúne toda a configuração do gateway.
type Config struct {
	Env        string `env:"APP_ENV"     envDefault:"development"`
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`
	LogLevel   string `env:"LOG_LEVEL"   envDefault:"info"`
	// GuestsFile é um JSON com os convidados servidos por /invitations.
	GuestsFile string `env:"GUEST_DIRECTORY_FILE"`

	Alert     AlertConfig
	Rate      RateConfig
	GuestAuth GuestAuthConfig
}

type AlertConfig struct {
	MaxRetries   int           `env:"ALERT_MAX_RETRIES"   envDefault:"3"`
	InitialDelay time.Duration `env:"ALERT_INITIAL_DELAY" envDefault:"1s"`
	MaxPerMinute int           `env:"ALERT_MAX_PER_MINUTE" envDefault:"5"`
	DedupWindow  time.Duration `env:"ALERT_DEDUP_WINDOW"  envDefault:"5m"`
	DedupLevel   string        `env:"ALERT_DEDUP_LEVEL"   envDefault:"critical"`

	Provider    string  `env:"ALERT_PROVIDER"     envDefault:"log"`
	Destination string  `env:"ALERT_DESTINATION"`
	Origin      string  `env:"ALERT_ORIGIN"`
	WebhookURL  string  `env:"ALERT_WEBHOOK_URL"`
	WebhookKey  string  `env:"ALERT_WEBHOOK_TOKEN"`
	ProviderRPS float64 `env:"ALERT_PROVIDER_RPS" envDefault:"1"`

	PushoverUser  string `env:"PUSHOVER_USER"`
	PushoverToken string `env:"PUSHOVER_TOKEN"`

	NATSURL     string `env:"NATS_URL"           envDefault:"nats://127.0.0.1:4222"`
	NATSSubject string `env:"ALERT_NATS_SUBJECT" envDefault:"alerts.notifications"`
}

type RateConfig struct {
	Backend  string `env:"RATE_BACKEND"   envDefault:"memory"`
	RedisURL string `env:"RATE_REDIS_URL" envDefault:"redis://localhost:6379/0"`
	Prefix   string `env:"RATE_PREFIX"    envDefault:"ratelimit"`
	FailOpen bool   `env:"RATE_FAIL_OPEN" envDefault:"true"`

	ContactLimit     int           `env:"RATE_CONTACT_LIMIT"     envDefault:"3"`
	ContactWindow    time.Duration `env:"RATE_CONTACT_WINDOW"    envDefault:"1m"`
	InvitationLimit  int           `env:"RATE_INVITATION_LIMIT"  envDefault:"60"`
	InvitationWindow time.Duration `env:"RATE_INVITATION_WINDOW" envDefault:"1m"`

	TrustForwardedFor bool `env:"TRUST_XFF"          envDefault:"true"`
	StatsEnabled      bool `env:"RATE_STATS_ENABLED" envDefault:"false"`

	ConcurrencyMax     int           `env:"CONCURRENCY_MAX"     envDefault:"0"`
	ConcurrencyTimeout time.Duration `env:"CONCURRENCY_TIMEOUT" envDefault:"0s"`
}

type GuestAuthConfig struct {
	Secret string        `env:"GUEST_TOKEN_SECRET"`
	TTL    time.Duration `env:"GUEST_TOKEN_TTL" envDefault:"72h"`
}

// Load lê o ambiente uma vez. Não valida; chame Validate em seguida.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	cfg.Alert.Provider = strings.ToLower(strings.TrimSpace(cfg.Alert.Provider))
	cfg.Rate.Backend = strings.ToLower(strings.TrimSpace(cfg.Rate.Backend))
	return cfg, nil
}

func (c *Config) IsProduction() bool { return c.Env == EnvProduction }

// MaxAlertRetries limita ALERT_MAX_RETRIES: com backoff dobrando a cada
// tentativa, mais que isso só prende a goroutine de entrega.
const MaxAlertRetries = 10

// AlertDedupLevel devolve o nível mínimo deduplicado. Só error e critical são
// aceitos: eventos abaixo de error nunca viram alerta.
func (c *Config) AlertDedupLevel() (slog.Level, error) {
	l, err := domain.ParseLevel(c.Alert.DedupLevel)
	if err != nil {
		return 0, &ConfigurationError{Field: "ALERT_DEDUP_LEVEL", Reason: err.Error()}
	}
	if l < slog.LevelError {
		return 0, &ConfigurationError{Field: "ALERT_DEDUP_LEVEL", Reason: "must be error or critical"}
	}
	return l, nil
}

// ConfigurationError indica configuração obrigatória ausente ou inválida.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

// Validate confere a configuração.
//
// Segredos e credenciais ausentes são fatais em produção; em desenvolvimento
// geram um warning e o valor fica vazio (o recurso correspondente é desligado).
// Valores numéricos inválidos são sempre erro.
func (c *Config) Validate(logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	switch c.Env {
	case EnvDevelopment, EnvProduction:
	default:
		return &ConfigurationError{Field: "APP_ENV", Reason: fmt.Sprintf("unknown environment %q", c.Env)}
	}

	if err := c.validateNumbers(); err != nil {
		return err
	}

	missing := c.missingSecrets()
	for _, e := range missing {
		if c.IsProduction() {
			return e
		}
		logger.Warn("configuration missing, feature disabled in development", "field", e.Field, "reason", e.Reason)
	}
	return nil
}

func (c *Config) validateNumbers() error {
	a, r := c.Alert, c.Rate
	switch {
	case a.MaxRetries < 1 || a.MaxRetries > MaxAlertRetries:
		return &ConfigurationError{Field: "ALERT_MAX_RETRIES", Reason: fmt.Sprintf("must be between 1 and %d", MaxAlertRetries)}
	case a.InitialDelay < 0:
		return &ConfigurationError{Field: "ALERT_INITIAL_DELAY", Reason: "must be >= 0"}
	case a.MaxPerMinute < 1:
		return &ConfigurationError{Field: "ALERT_MAX_PER_MINUTE", Reason: "must be >= 1"}
	case a.DedupWindow < 0:
		return &ConfigurationError{Field: "ALERT_DEDUP_WINDOW", Reason: "must be >= 0"}
	case a.ProviderRPS < 0:
		return &ConfigurationError{Field: "ALERT_PROVIDER_RPS", Reason: "must be >= 0"}
	case r.ContactLimit < 0:
		return &ConfigurationError{Field: "RATE_CONTACT_LIMIT", Reason: "must be >= 0"}
	case r.ContactWindow <= 0:
		return &ConfigurationError{Field: "RATE_CONTACT_WINDOW", Reason: "must be > 0"}
	case r.InvitationLimit < 0:
		return &ConfigurationError{Field: "RATE_INVITATION_LIMIT", Reason: "must be >= 0"}
	case r.InvitationWindow <= 0:
		return &ConfigurationError{Field: "RATE_INVITATION_WINDOW", Reason: "must be > 0"}
	case r.ConcurrencyMax < 0:
		return &ConfigurationError{Field: "CONCURRENCY_MAX", Reason: "must be >= 0"}
	case c.GuestAuth.TTL < 0:
		return &ConfigurationError{Field: "GUEST_TOKEN_TTL", Reason: "must be >= 0"}
	}
	if _, err := c.AlertDedupLevel(); err != nil {
		return err
	}
	switch a.Provider {
	case "log", "webhook", "pushover", "nats":
	default:
		return &ConfigurationError{Field: "ALERT_PROVIDER", Reason: fmt.Sprintf("unknown provider %q", a.Provider)}
	}
	switch r.Backend {
	case "memory", "redis", "rueidis":
	default:
		return &ConfigurationError{Field: "RATE_BACKEND", Reason: fmt.Sprintf("unknown backend %q", r.Backend)}
	}
	return nil
}

func (c *Config) missingSecrets() []*ConfigurationError {
	var out []*ConfigurationError
	if c.GuestAuth.Secret == "" {
		out = append(out, &ConfigurationError{Field: "GUEST_TOKEN_SECRET", Reason: "required"})
	}
	switch c.Alert.Provider {
	case "webhook":
		if c.Alert.WebhookURL == "" {
			out = append(out, &ConfigurationError{Field: "ALERT_WEBHOOK_URL", Reason: "required for webhook provider"})
		}
	case "pushover":
		if c.Alert.PushoverToken == "" || c.Alert.PushoverUser == "" {
			out = append(out, &ConfigurationError{Field: "PUSHOVER_TOKEN", Reason: "token and user required for pushover provider"})
		}
	case "nats":
		if c.Alert.NATSURL == "" {
			out = append(out, &ConfigurationError{Field: "NATS_URL", Reason: "required for nats provider"})
		}
	}
	if c.Alert.Provider == "webhook" && c.Alert.Destination == "" {
		out = append(out, &ConfigurationError{Field: "ALERT_DESTINATION", Reason: "required for webhook provider"})
	}
	return out
}

// AlertProviderUsable diz se o provider escolhido tem credencial; em
// desenvolvimento, sem credencial, o gateway cai para o provider de log.
func (c *Config) AlertProviderUsable() bool {
	switch c.Alert.Provider {
	case "webhook":
		return c.Alert.WebhookURL != ""
	case "pushover":
		return c.Alert.PushoverToken != "" && c.Alert.PushoverUser != ""
	case "nats":
		return c.Alert.NATSURL != ""
	default:
		return true
	}
}
