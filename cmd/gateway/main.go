package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	alertapp "github.com/fm-dev-mx/celebra-me-sub001/alerting/application"
	alertdomain "github.com/fm-dev-mx/celebra-me-sub001/alerting/domain"
	alertinfra "github.com/fm-dev-mx/celebra-me-sub001/alerting/infra"
	"github.com/fm-dev-mx/celebra-me-sub001/internal/config"
	"github.com/fm-dev-mx/celebra-me-sub001/internal/logger"
	"github.com/fm-dev-mx/celebra-me-sub001/internal/site"
	"github.com/fm-dev-mx/celebra-me-sub001/middleware/guestauth"
	"github.com/fm-dev-mx/celebra-me-sub001/middleware/ratelimit"
	"github.com/fm-dev-mx/celebra-me-sub001/middleware/ratelimit/domain"
	"github.com/fm-dev-mx/celebra-me-sub001/middleware/ratelimit/infra"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/redis/rueidis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log, hub := logger.Setup(cfg.LogLevel)
	slog.SetDefault(log)

	if err := cfg.Validate(log); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, log, hub); err != nil {
		log.Error("gateway stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger, hub *logger.Hub) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// alertas
	provider, closeProvider, err := setupProvider(cfg, log)
	if err != nil {
		return err
	}
	defer closeProvider()

	dispatcher := alertapp.NewDispatcher(
		alertinfra.NewThrottled(provider, cfg.Alert.ProviderRPS, 1),
		alertapp.RetryPolicy{MaxRetries: cfg.Alert.MaxRetries, InitialDelay: cfg.Alert.InitialDelay},
		alertapp.WithDispatcherLogger(log),
	)
	dedupLevel, err := cfg.AlertDedupLevel()
	if err != nil {
		return err
	}
	aggregator := alertapp.NewAggregator(dispatcher, alertapp.AggregatorConfig{
		MaxPerWindow: cfg.Alert.MaxPerMinute,
		QuotaWindow:  time.Minute,
		DedupWindow:  cfg.Alert.DedupWindow,
		DedupLevel:   dedupLevel,
		Destination:  cfg.Alert.Destination,
		Origin:       cfg.Alert.Origin,
		Environment:  cfg.Env,
		Logger:       log,
	})
	aggregator.Start(ctx)
	unsubscribe := hub.Subscribe(aggregator)

	// rate limit
	limiter, rdb, closeLimiter, err := setupLimiter(ctx, cfg, log)
	if err != nil {
		unsubscribe()
		return err
	}
	defer closeLimiter()

	var stats domain.StatsStore
	if cfg.Rate.StatsEnabled {
		if rdb != nil {
			stats = infra.NewRedisStatsStore(rdb,
				infra.WithStatsPrefix(cfg.Rate.Prefix+":stats"),
				infra.WithStatsTTL(24*time.Hour),
			)
		} else {
			stats = infra.NewMemoryStatsStore()
		}
	}

	guard := func(p domain.Policy) func(http.Handler) http.Handler {
		return ratelimit.Middleware(ratelimit.Options{
			Limiter:             limiter,
			Policy:              p,
			FailOpen:            cfg.Rate.FailOpen,
			Stats:               stats,
			TrustForwardedFor:   cfg.Rate.TrustForwardedFor,
			AddRateLimitHeaders: true,
			Logger:              log,
		})
	}
	contactPolicy := domain.Policy{Prefix: "contact", Limit: cfg.Rate.ContactLimit, Window: cfg.Rate.ContactWindow}
	invitationPolicy := domain.Policy{Prefix: "invitation", Limit: cfg.Rate.InvitationLimit, Window: cfg.Rate.InvitationWindow}

	// rotas
	guests := site.NewMemoryGuests()
	if cfg.GuestsFile != "" {
		list, err := site.LoadGuestsFile(cfg.GuestsFile)
		if err != nil {
			return fmt.Errorf("load guest directory: %w", err)
		}
		for _, g := range list {
			guests.Put(g)
		}
		log.Info("guest directory loaded", "file", cfg.GuestsFile, "guests", len(list))
	} else {
		log.Warn("GUEST_DIRECTORY_FILE not set, invitation route has no guests")
	}
	handlers := &site.Handlers{
		Guests:      guests,
		Submissions: site.NewMemorySubmissions(),
		Logger:      log,
	}
	requireGuest := guestauth.RequireGuest(guestauth.Options{
		Secret:        cfg.GuestAuth.Secret,
		HideExistence: true,
		Logger:        log,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", site.Health)
	mux.Handle("GET /invitations/{slug}", guard(invitationPolicy)(requireGuest(http.HandlerFunc(handlers.Invitation))))
	mux.Handle("POST /contact", guard(contactPolicy)(http.HandlerFunc(handlers.Contact)))
	if reader, ok := stats.(domain.StatsReader); ok {
		mux.Handle("GET /internal/ratelimit/stats", ratelimit.StatsHandler(reader, log))
	}

	concurrency := ratelimit.NewConcurrencyLimiter(ratelimit.ConcurrencyOptions{
		Max:            cfg.Rate.ConcurrencyMax,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.Rate.ConcurrencyTimeout,
		Exempt:         func(r *http.Request) bool { return r.URL.Path == "/healthz" },
		Logger:         log,
	})
	h := concurrency.Wrap(mux)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("gateway listening", "addr", cfg.ListenAddr, "env", cfg.Env)
	log.Info("rate", "backend", cfg.Rate.Backend, "failOpen", cfg.Rate.FailOpen, "trustXFF", cfg.Rate.TrustForwardedFor,
		"contact", fmt.Sprintf("%d/%s", contactPolicy.Limit, contactPolicy.Window),
		"invitation", fmt.Sprintf("%d/%s", invitationPolicy.Limit, invitationPolicy.Window))
	log.Info("alerts", "provider", cfg.Alert.Provider, "maxRetries", cfg.Alert.MaxRetries, "maxPerMinute", cfg.Alert.MaxPerMinute, "dedupWindow", cfg.Alert.DedupWindow)
	log.Info("concurrency", "max", cfg.Rate.ConcurrencyMax, "acquireTimeout", cfg.Rate.ConcurrencyTimeout)

	err = srv.ListenAndServe()

	unsubscribe()
	aggregator.Flush()
	st := aggregator.Stats()
	log.Info("concurrency stats", "rejected", concurrency.Rejected())
	log.Info("alert stats", "forwarded", st.Forwarded, "duplicates", st.Duplicates, "throttled", st.Throttled, "delivered", st.Delivered, "failed", st.Failed)

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// setupLimiter escolhe o backend do limiter. rdb só é preenchido no backend
// go-redis, para reaproveitar a conexão no stats store.
func setupLimiter(ctx context.Context, cfg *config.Config, log *slog.Logger) (domain.WindowLimiter, redis.Cmdable, func(), error) {
	switch cfg.Rate.Backend {
	case "redis":
		rdb, err := newRedisClient(ctx, cfg.Rate.RedisURL)
		if err != nil {
			return nil, nil, nil, err
		}
		return infra.NewRedisWindowLimiter(rdb, infra.WithRedisPrefix(cfg.Rate.Prefix)), rdb, func() { _ = rdb.Close() }, nil

	case "rueidis":
		opt, err := rueidis.ParseURL(cfg.Rate.RedisURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("parse redis url: %w", err)
		}
		client, err := rueidis.NewClient(opt)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("rueidis client: %w", err)
		}
		return infra.NewRueidisWindowLimiter(client, cfg.Rate.Prefix), nil, client.Close, nil

	default:
		// memória não é compartilhada entre réplicas: cada instância limita sozinha.
		if cfg.IsProduction() {
			log.Warn("in-memory rate limiter in production is per instance")
		}
		l := infra.NewLocalWindowLimiter()
		l.StartJanitor(ctx)
		return l, nil, func() {}, nil
	}
}

func newRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second
	opts.MaxRetries = 3
	opts.MinRetryBackoff = 100 * time.Millisecond
	opts.MaxRetryBackoff = time.Second
	if opts.TLSConfig == nil && strings.HasPrefix(redisURL, "rediss://") {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// setupProvider monta o provider configurado. Em desenvolvimento, sem
// credencial, cai para o provider de log.
func setupProvider(cfg *config.Config, log *slog.Logger) (alertdomain.Provider, func(), error) {
	noop := func() {}
	if !cfg.AlertProviderUsable() {
		log.Warn("alert provider not configured, logging alerts only", "provider", cfg.Alert.Provider)
		return alertinfra.NewLogProvider(log), noop, nil
	}

	switch cfg.Alert.Provider {
	case "webhook":
		return alertinfra.WebhookProvider{
			URL:    cfg.Alert.WebhookURL,
			Token:  cfg.Alert.WebhookKey,
			Client: &http.Client{Timeout: 10 * time.Second},
		}, noop, nil

	case "pushover":
		return alertinfra.PushoverProvider{
			Token: cfg.Alert.PushoverToken,
			User:  cfg.Alert.PushoverUser,
		}, noop, nil

	case "nats":
		nc, err := nats.Connect(cfg.Alert.NATSURL,
			nats.Name("celebra-gateway"),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("connect nats: %w", err)
		}
		return alertinfra.NewNATSProvider(nc, cfg.Alert.NATSSubject), func() { _ = nc.Drain() }, nil

	default:
		return alertinfra.NewLogProvider(log), noop, nil
	}
}
