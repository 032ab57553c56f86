package application

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fm-dev-mx/celebra-me-sub001/alerting/domain"
)

// Outcome é o que o Aggregator fez com um evento.
type Outcome int

const (
	// OutcomeIgnored: nível abaixo de error.
	OutcomeIgnored Outcome = iota
	// OutcomeDuplicate: mesmo fingerprint já encaminhado dentro da janela de supressão.
	OutcomeDuplicate
	// OutcomeThrottled: cota da janela esgotada, evento descartado (sem fila).
	OutcomeThrottled
	// OutcomeForwarded: entregue ao Dispatcher.
	OutcomeForwarded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeThrottled:
		return "throttled"
	case OutcomeForwarded:
		return "forwarded"
	default:
		return "ignored"
	}
}

type AggregatorConfig struct {
	// MaxPerWindow é a cota de notificações por QuotaWindow (padrão 5 por minuto).
	MaxPerWindow int
	QuotaWindow  time.Duration
	// DedupWindow é a janela de supressão; 0 desliga a deduplicação.
	DedupWindow time.Duration
	// DedupLevel é o nível mínimo deduplicado. Abaixo de error não faz
	// sentido (o evento nem chega ao dedup), então qualquer valor menor,
	// inclusive o zero, vira critical.
	DedupLevel  slog.Level
	Destination string
	Origin      string
	Environment string
	Templates   *Templates
	Logger      *slog.Logger
	Now         func() time.Time
}

// AggregatorStats são contadores acumulados desde a criação.
type AggregatorStats struct {
	Forwarded  int64
	Duplicates int64
	Throttled  int64
	Delivered  int64
	Failed     int64
}

// Aggregator transforma eventos de erro do log em notificações, com
// deduplicação por fingerprint e cota fixa por janela.
//
// A decisão de cada evento acontece sob lock, na ordem de chegada; a entrega
// roda em goroutine para não segurar quem logou. Estado só em memória: com
// várias instâncias a deduplicação é best-effort.
type Aggregator struct {
	cfg    AggregatorConfig
	sender Sender
	logger *slog.Logger
	now    func() time.Time

	mu          sync.Mutex
	windowStart time.Time
	count       int
	forwarded   map[string]time.Time

	wg sync.WaitGroup

	nForwarded  atomic.Int64
	nDuplicates atomic.Int64
	nThrottled  atomic.Int64
	nDelivered  atomic.Int64
	nFailed     atomic.Int64
}

var _ domain.Sink = (*Aggregator)(nil)

func NewAggregator(sender Sender, cfg AggregatorConfig) *Aggregator {
	if cfg.MaxPerWindow <= 0 {
		cfg.MaxPerWindow = 5
	}
	if cfg.QuotaWindow <= 0 {
		cfg.QuotaWindow = time.Minute
	}
	if cfg.DedupLevel < slog.LevelError {
		cfg.DedupLevel = domain.LevelCritical
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Templates == nil {
		cfg.Templates = DefaultTemplates()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Aggregator{
		cfg:         cfg,
		sender:      sender,
		logger:      logger.With(domain.InternalAttrKey, true),
		now:         now,
		windowStart: now(),
		forwarded:   make(map[string]time.Time),
	}
}

// Consume implementa domain.Sink.
func (a *Aggregator) Consume(ctx context.Context, ev domain.Event) {
	_ = a.Offer(ctx, ev)
}

// Offer decide o destino do evento e, se encaminhado, dispara a entrega.
func (a *Aggregator) Offer(ctx context.Context, ev domain.Event) Outcome {
	if ev.Level < slog.LevelError {
		return OutcomeIgnored
	}
	if ev.Time.IsZero() {
		ev.Time = a.now()
	}
	fp := ev.Fingerprint()
	dedup := a.cfg.DedupWindow > 0 && ev.Level >= a.cfg.DedupLevel

	a.mu.Lock()
	now := a.now()
	if dedup {
		if at, ok := a.forwarded[fp]; ok && now.Sub(at) < a.cfg.DedupWindow {
			a.mu.Unlock()
			a.nDuplicates.Add(1)
			return OutcomeDuplicate
		}
	}
	if a.count >= a.cfg.MaxPerWindow {
		a.mu.Unlock()
		a.nThrottled.Add(1)
		return OutcomeThrottled
	}
	a.count++
	if dedup {
		a.forwarded[fp] = now
	}
	a.mu.Unlock()

	a.nForwarded.Add(1)
	n := a.notification(ev)

	a.wg.Add(1)
	go a.deliver(context.WithoutCancel(ctx), fp, n)
	return OutcomeForwarded
}

func (a *Aggregator) notification(ev domain.Event) domain.Notification {
	subject, body, err := a.cfg.Templates.Render(a.cfg.Environment, ev)
	if err != nil {
		a.logger.Warn("alert template failed, using raw message", "err", err)
		subject = "[" + a.cfg.Environment + "] " + domain.LevelName(ev.Level)
		body = ev.Message
	}
	return domain.Notification{
		Destination: a.cfg.Destination,
		Origin:      a.cfg.Origin,
		Subject:     subject,
		Body:        body,
	}
}

// deliver engole a falha de propósito: alerta sobre alerta que falhou
// alimentaria um loop. A falha fica em Stats e num warn interno.
func (a *Aggregator) deliver(ctx context.Context, fp string, n domain.Notification) {
	defer a.wg.Done()

	if err := a.sender.Send(ctx, n); err != nil {
		a.nFailed.Add(1)
		a.logger.Warn("alert delivery failed, not re-alerting", "fingerprint", fp, "err", err)
		return
	}
	a.nDelivered.Add(1)
	a.logger.Debug("alert delivered", "fingerprint", fp)
}

// Tick zera a cota e descarta fingerprints cuja janela de supressão já passou.
// Start chama Tick a cada QuotaWindow.
func (a *Aggregator) Tick() {
	now := a.now()

	a.mu.Lock()
	defer a.mu.Unlock()

	a.count = 0
	a.windowStart = now
	for fp, at := range a.forwarded {
		if now.Sub(at) >= a.cfg.DedupWindow {
			delete(a.forwarded, fp)
		}
	}
}

// Start reinicia a cota num relógio fixo, independente dos eventos.
// Pare cancelando o contexto.
func (a *Aggregator) Start(ctx context.Context) {
	t := time.NewTicker(a.cfg.QuotaWindow)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				a.Tick()
			}
		}
	}()
}

// Flush espera as entregas em andamento (shutdown e testes).
func (a *Aggregator) Flush() {
	a.wg.Wait()
}

// Quota devolve quantas notificações já saíram na janela atual e quando ela começou.
func (a *Aggregator) Quota() (count int, windowStart time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count, a.windowStart
}

func (a *Aggregator) Stats() AggregatorStats {
	return AggregatorStats{
		Forwarded:  a.nForwarded.Load(),
		Duplicates: a.nDuplicates.Load(),
		Throttled:  a.nThrottled.Load(),
		Delivered:  a.nDelivered.Load(),
		Failed:     a.nFailed.Load(),
	}
}
