package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/velora-oms/velora-oms/internal/app"
	"github.com/velora-oms/velora-oms/internal/approvals"
	jobmetrics "github.com/velora-oms/velora-oms/internal/jobs"
	"github.com/velora-oms/velora-oms/internal/outstanding"
	"github.com/velora-oms/velora-oms/internal/platform/cache"
	"github.com/velora-oms/velora-oms/internal/platform/db"
	"github.com/velora-oms/velora-oms/internal/shared"
	"github.com/velora-oms/velora-oms/jobs"
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
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, refresh writes will bypass the cache", slog.Any("error", err))
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	outstandingRepo := outstanding.NewRepository(pool)
	outstandingCache := cache.NewJSONCache(redisClient, cfg.OutstandingCacheTTL)
	outstandingService := outstanding.NewService(outstandingRepo, outstandingCache, logger)

	approvalRepo := approvals.NewRepository(pool)

	tasks := &jobs.Tasks{
		Outstanding: outstandingService,
		Approvals:   approvalRepo,
		Audit:       shared.NewAuditLogger(pool),
		Metrics:     jobmetrics.NewMetrics(prometheus.NewRegistry()),
		Logger:      logger,
	}

	reminderTask, err := jobs.NewApprovalReminderTask(jobs.ApprovalReminderPayload{MaxAgeHours: 24})
	if err != nil {
		logger.Error("build reminder task", slog.Any("error", err))
		os.Exit(1)
	}
	pruneTask, err := jobs.NewAuditPruneTask(jobs.AuditPrunePayload{RetentionDays: 365})
	if err != nil {
		logger.Error("build prune task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Tasks:     tasks,
		Logger:    logger,
		Cron: []jobs.CronRegistration{
			{Spec: "*/10 * * * *", Task: jobs.NewOutstandingRefreshTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 8 * * *", Task: reminderTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 3 1 * *", Task: pruneTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
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
