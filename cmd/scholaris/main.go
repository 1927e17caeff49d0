package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/scholaris-erp/scholaris-erp/internal/app"
	"github.com/scholaris-erp/scholaris-erp/internal/auth"
	"github.com/scholaris-erp/scholaris-erp/internal/authz"
	"github.com/scholaris-erp/scholaris-erp/internal/observability"
	"github.com/scholaris-erp/scholaris-erp/internal/outbox"
	"github.com/scholaris-erp/scholaris-erp/internal/periods"
	"github.com/scholaris-erp/scholaris-erp/internal/platform/cache"
	"github.com/scholaris-erp/scholaris-erp/internal/platform/db"
	"github.com/scholaris-erp/scholaris-erp/internal/shared"
	"github.com/scholaris-erp/scholaris-erp/internal/tenancy"
	"github.com/scholaris-erp/scholaris-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(dbpool)

	tenantRepo := tenancy.NewCachedRepository(tenancy.NewRepository(dbpool), redisClient, 5*time.Minute)
	resolverConfig := tenancy.ResolverConfig{
		BaseDomain:   cfg.PlatformBaseDomain,
		CentralHosts: cfg.CentralHostList(),
	}

	gate := authz.Gate{BaseDomain: cfg.PlatformBaseDomain, Subdomains: tenantRepo}
	authzMiddleware := authz.Middleware{Gate: gate, Logger: logger}

	periodRepo := periods.NewRepository(dbpool)
	periodService := periods.NewService(periodRepo, auditLogger, logger)
	periodHandler := periods.NewHandler(logger, periodService)

	integrationConfig := outbox.IntegrationConfig{
		Enabled:  cfg.GovIntegrationEnabled,
		Endpoint: cfg.GovAPIURL,
		Token:    cfg.GovAPIToken,
		Timeout:  cfg.GovAPITimeout,
	}
	outboxRepo := outbox.NewRepository(dbpool)
	outboxService := outbox.NewService(outboxRepo, outbox.NewHTTPGateway(integrationConfig), integrationConfig, auditLogger, logger)
	outboxHandler := outbox.NewHandler(logger, outboxService)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Config:         cfg,
		Metrics:        metrics,
		Tenancy:        tenancy.Middleware{Repo: tenantRepo, Config: resolverConfig, Logger: logger},
		Auth:           auth.Middleware{Secret: cfg.JWTSecret, Logger: logger},
		Authz:          authzMiddleware,
		PeriodsHandler: periodHandler,
		OutboxHandler:  outboxHandler,
		JobsHandler:    jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
