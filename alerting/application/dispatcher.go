package application

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/fm-dev-mx/celebra-me-sub001/alerting/domain"

	"github.com/google/uuid"
)

// Sender é o que o Aggregator precisa do Dispatcher.
type Sender interface {
	Send(ctx context.Context, n domain.Notification) error
}

// RetryPolicy define quantas tentativas e o atraso inicial do backoff.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, InitialDelay: time.Second}
}

func (p RetryPolicy) normalized() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxRetries <= 0 {
		p.MaxRetries = def.MaxRetries
	}
	if p.InitialDelay < 0 {
		p.InitialDelay = 0
	}
	return p
}

// MaxBackoff é o teto da parte exponencial do atraso.
const MaxBackoff = time.Hour

// Delay é o atraso depois da tentativa `attempt` (1-based):
// InitialDelay * 2^(attempt-1) + jitter, com jitter em [0, InitialDelay).
// A parte exponencial satura em MaxBackoff em vez de estourar.
func (p RetryPolicy) Delay(attempt int, jitter time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	shift := attempt - 1
	if p.InitialDelay >= MaxBackoff || shift >= 62 || p.InitialDelay > MaxBackoff>>shift {
		return max(p.InitialDelay, MaxBackoff) + jitter
	}
	return p.InitialDelay<<shift + jitter
}

// Dispatcher entrega uma notificação por um provider tentando de novo em
// qualquer erro. Não guarda estado entre chamadas de Send.
//
// Não existe distinção entre erro transitório e permanente: quem precisa
// falhar rápido em erro permanente filtra antes de chamar.
type Dispatcher struct {
	provider  domain.Provider
	policy    RetryPolicy
	component string
	logger    *slog.Logger

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(max time.Duration) time.Duration
}

type DispatcherOption func(*Dispatcher)

// WithComponent define o nome que aparece no DeliveryError.
func WithComponent(name string) DispatcherOption {
	return func(d *Dispatcher) { d.component = name }
}

func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

// WithSleep troca a espera entre tentativas (testes).
func WithSleep(fn func(ctx context.Context, d time.Duration) error) DispatcherOption {
	return func(d *Dispatcher) { d.sleep = fn }
}

// WithJitter troca a fonte de jitter (testes).
func WithJitter(fn func(max time.Duration) time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.jitter = fn }
}

func NewDispatcher(provider domain.Provider, policy RetryPolicy, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		provider:  provider,
		policy:    policy.normalized(),
		component: componentName(provider),
		sleep:     sleepContext,
		jitter:    randomJitter,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	d.logger = d.logger.With(domain.InternalAttrKey, true)
	return d
}

func (d *Dispatcher) Policy() RetryPolicy { return d.policy }

// Send tenta até MaxRetries vezes. Depois da última falha devolve
// *domain.DeliveryError com o último erro do provider.
//
// Não há cancelamento próprio: o limite de tempo total vem do ctx de quem chama.
func (d *Dispatcher) Send(ctx context.Context, n domain.Notification) error {
	id := uuid.NewString()
	ctx = domain.WithDispatchID(ctx, id)

	var last error
	for attempt := 1; attempt <= d.policy.MaxRetries; attempt++ {
		err := d.provider.Deliver(ctx, n)
		if err == nil {
			if attempt > 1 {
				d.logger.Info("notification delivered after retry", "dispatch_id", id, "attempt", attempt)
			}
			return nil
		}
		last = err
		if attempt == d.policy.MaxRetries {
			break
		}

		delay := d.policy.Delay(attempt, d.jitter(d.policy.InitialDelay))
		d.logger.Warn("delivery attempt failed", "dispatch_id", id, "attempt", attempt, "delay", delay, "err", err)
		if serr := d.sleep(ctx, delay); serr != nil {
			return &domain.DeliveryError{Component: d.component, Attempts: attempt, Err: errors.Join(last, serr)}
		}
	}
	return &domain.DeliveryError{Component: d.component, Attempts: d.policy.MaxRetries, Err: last}
}

func componentName(p domain.Provider) string {
	if named, ok := p.(interface{ Name() string }); ok && named.Name() != "" {
		return named.Name()
	}
	return "alert-dispatcher"
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(max)))
}
