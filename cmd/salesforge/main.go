package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	sfhttp "github.com/Strob0t/SalesForge/internal/adapter/http"
	sfnats "github.com/Strob0t/SalesForge/internal/adapter/nats"
	"github.com/Strob0t/SalesForge/internal/adapter/natskv"
	"github.com/Strob0t/SalesForge/internal/adapter/openai"
	"github.com/Strob0t/SalesForge/internal/adapter/otel"
	"github.com/Strob0t/SalesForge/internal/adapter/postgres"
	"github.com/Strob0t/SalesForge/internal/adapter/ristretto"
	"github.com/Strob0t/SalesForge/internal/adapter/tiered"
	"github.com/Strob0t/SalesForge/internal/config"
	"github.com/Strob0t/SalesForge/internal/logger"
	"github.com/Strob0t/SalesForge/internal/middleware"
	"github.com/Strob0t/SalesForge/internal/port/cache"
	"github.com/Strob0t/SalesForge/internal/port/notifier"
	"github.com/Strob0t/SalesForge/internal/resilience"
	"github.com/Strob0t/SalesForge/internal/service"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags, err := config.ParseFlags(args)
	if err != nil {
		return err
	}
	cfg, yamlPath, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	defer logCloser.Close()
	slog.SetDefault(log)

	// SIGHUP re-reads the YAML file. Only the log level applies to a
	// running process; everything else needs a restart.
	holder := config.NewHolder(cfg, yamlPath)
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			if err := holder.Reload(); err != nil {
				log.Error("config reload failed", "error", err)
				continue
			}
			logger.SetLevel(holder.Get().Logging.Level)
			log.Info("config reloaded", "log_level", holder.Get().Logging.Level)
		}
	}()

	log.Info("config loaded",
		"path", yamlPath,
		"port", cfg.Server.Port,
		"multi_tenant", cfg.Tenancy.MultiTenant,
		"nats_enabled", cfg.NATS.Enabled,
		"otel_enabled", cfg.Otel.Enabled,
	)

	ctx := context.Background()

	// PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	log.Info("postgres ready")

	// OpenTelemetry
	var metrics *otel.Metrics
	if cfg.Otel.Enabled {
		shutdown, err := otel.Init(ctx, cfg.Logging.Service, cfg.Otel.Endpoint)
		if err != nil {
			return fmt.Errorf("otel: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
		metrics, err = otel.NewMetrics()
		if err != nil {
			return fmt.Errorf("otel metrics: %w", err)
		}
		log.Info("otel exporter started", "endpoint", cfg.Otel.Endpoint)
	}

	// Caching. L1 is always on; NATS KV becomes the shared L2 when the
	// event stream is enabled.
	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	var appCache cache.Cache = l1

	// NATS JetStream
	var handoffs notifier.Notifier
	if cfg.NATS.Enabled {
		nc, err := sfnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = nc.Close() }()
		handoffs = nc

		kv, err := nc.KeyValue(ctx, "salesforge-cache", cfg.Cache.KnowledgeTTL)
		if err != nil {
			return fmt.Errorf("nats kv: %w", err)
		}
		appCache = tiered.New(l1, natskv.New(kv), cfg.Cache.PromptTTL)

		// Mirror every tenant's escalations into this instance's log so
		// operators without a dashboard still see them.
		stop, err := nc.Subscribe(ctx, "*", func(ev notifier.HandoffEvent) {
			log.Warn("handoff requested",
				"tenant", ev.TenantSlug,
				"conversation_id", ev.ConversationID,
				"stage", ev.FunnelStage,
				"reason", ev.Reason)
		})
		if err != nil {
			return fmt.Errorf("nats subscribe: %w", err)
		}
		defer stop()

		log.Info("nats connected", "url", cfg.NATS.URL)
	}

	// Services
	store := postgres.NewStore(pool)
	tenants := service.NewTenantService(store, appCache, cfg.Tenancy.ResolveCacheTTL, log)
	prompts := service.NewPromptService(store, appCache, cfg.Cache.PromptTTL, cfg.Cache.KnowledgeTTL, log)
	convs := service.NewConversationService(store, handoffs, metrics, log)

	provider := openai.NewClient(cfg.LLM, cfg.Retry)
	provider.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))
	chat := service.NewChatService(store, provider, prompts, convs, cfg.Chat, cfg.LLM.HistoryLimit, metrics, log)

	handlers := &sfhttp.Handlers{
		Tenants:       tenants,
		Chat:          chat,
		Conversations: convs,
		Plans:         service.NewPlanService(store, log),
		Prompts:       prompts,
		Analytics:     service.NewAnalyticsService(store, log),
		DB:            pool,
	}

	// HTTP
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(sfhttp.Logger)
	r.Use(sfhttp.SecurityHeaders)
	r.Use(sfhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	if cfg.Otel.Enabled {
		r.Use(otel.HTTPMiddleware(cfg.Logging.Service))
	}

	sfhttp.MountRoutes(r, handlers, tenants, cfg.Tenancy, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
		}
	}()

	<-done
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
