package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/scholaris-erp/scholaris-erp/internal/app"
	"github.com/scholaris-erp/scholaris-erp/internal/backups"
	"github.com/scholaris-erp/scholaris-erp/internal/outbox"
	"github.com/scholaris-erp/scholaris-erp/internal/periods"
	"github.com/scholaris-erp/scholaris-erp/internal/platform/db"
	"github.com/scholaris-erp/scholaris-erp/internal/shared"
	"github.com/scholaris-erp/scholaris-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	auditLogger := shared.NewAuditLogger(pool)

	periodService := periods.NewService(periods.NewRepository(pool), auditLogger, logger)

	integrationConfig := outbox.IntegrationConfig{
		Enabled:  cfg.GovIntegrationEnabled,
		Endpoint: cfg.GovAPIURL,
		Token:    cfg.GovAPIToken,
		Timeout:  cfg.GovAPITimeout,
	}
	outboxService := outbox.NewService(outbox.NewRepository(pool), outbox.NewHTTPGateway(integrationConfig), integrationConfig, auditLogger, logger)

	backupRunner := backups.PgDumpRunner{DSN: cfg.PGDSN, Dir: cfg.BackupDir}
	backupService := backups.NewService(backups.NewRepository(pool), backupRunner, logger)

	activationJob := jobs.NewPeriodActivationJob(periodService, logger, nil)
	expiryJob := jobs.NewReopenExpiryJob(periodService, logger, nil)
	pendingJob := jobs.NewOutboxPendingJob(outboxService, logger, nil)
	retryJob := jobs.NewOutboxRetryJob(outboxService, logger, nil)
	backupJob := jobs.NewBackupRunJob(backupService, logger, nil)
	cleanupJob := jobs.NewBackupCleanupJob(backupService, logger, nil)

	now := time.Now().UTC()
	activationTask, err := jobs.NewPeriodActivationTask(now)
	if err != nil {
		logger.Error("build activation task", slog.Any("error", err))
		os.Exit(1)
	}
	expiryTask, err := jobs.NewReopenExpiryTask(now)
	if err != nil {
		logger.Error("build expiry task", slog.Any("error", err))
		os.Exit(1)
	}
	pendingTask, err := jobs.NewOutboxPendingTask(now, 100)
	if err != nil {
		logger.Error("build pending task", slog.Any("error", err))
		os.Exit(1)
	}
	retryTask, err := jobs.NewOutboxRetryTask(now, 50)
	if err != nil {
		logger.Error("build retry task", slog.Any("error", err))
		os.Exit(1)
	}
	backupTask, err := jobs.NewBackupRunTask(now)
	if err != nil {
		logger.Error("build backup task", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupTask, err := jobs.NewBackupCleanupTask(now)
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskPeriodActivation, Handler: activationJob.Handle},
			{Type: jobs.TaskReopenExpiry, Handler: expiryJob.Handle},
			{Type: jobs.TaskOutboxPending, Handler: pendingJob.Handle},
			{Type: jobs.TaskOutboxRetry, Handler: retryJob.Handle},
			{Type: jobs.TaskBackupRun, Handler: backupJob.Handle},
			{Type: jobs.TaskBackupCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 0 * * *", Task: activationTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 1 * * *", Task: expiryTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "*/15 * * * *", Task: pendingTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
			{Spec: "*/30 * * * *", Task: retryTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
			{Spec: "0 * * * *", Task: backupTask, Options: []asynq.Option{asynq.MaxRetry(2)}},
			{Spec: "0 2 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(2)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
