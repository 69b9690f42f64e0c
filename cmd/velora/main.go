package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/velora-oms/velora-oms/internal/app"
	"github.com/velora-oms/velora-oms/internal/approvals"
	"github.com/velora-oms/velora-oms/internal/attachments"
	"github.com/velora-oms/velora-oms/internal/catalog"
	"github.com/velora-oms/velora-oms/internal/customers"
	"github.com/velora-oms/velora-oms/internal/dispatch"
	"github.com/velora-oms/velora-oms/internal/observability"
	"github.com/velora-oms/velora-oms/internal/orders"
	"github.com/velora-oms/velora-oms/internal/outstanding"
	"github.com/velora-oms/velora-oms/internal/platform/cache"
	"github.com/velora-oms/velora-oms/internal/platform/db"
	"github.com/velora-oms/velora-oms/internal/pricelists"
	"github.com/velora-oms/velora-oms/internal/rbac"
	"github.com/velora-oms/velora-oms/internal/shared"
	"github.com/velora-oms/velora-oms/internal/users"
	"github.com/velora-oms/velora-oms/jobs"
	"github.com/velora-oms/velora-oms/report"
)

// catalogReader adapts catalog.Service to the orders decode-time port.
type catalogReader struct {
	svc *catalog.Service
}

func (c catalogReader) ItemInfo(ctx context.Context, id uuid.UUID) (*orders.CatalogInfo, error) {
	item, err := c.svc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &orders.CatalogInfo{
		ID:        item.ID,
		SKU:       item.SKU,
		Name:      item.Name,
		UnitPrice: item.UnitPrice,
		TaxRate:   item.TaxRate,
	}, nil
}

// priceLookup adapts pricelists.Repository to the orders pricing port.
type priceLookup struct {
	repo *pricelists.Repository
}

func (p priceLookup) LookupPrice(ctx context.Context, listID, inventoryID uuid.UUID) (*orders.ListedPrice, error) {
	price, err := p.repo.LookupPrice(ctx, listID, inventoryID)
	if err != nil {
		return nil, err
	}
	return &orders.ListedPrice{UnitPrice: price.UnitPrice, TaxRate: price.TaxRate}, nil
}

// dispatchObserver counts committed dispatch lines and nudges the outstanding
// cache to recompute without waiting for the cron schedule.
type dispatchObserver struct {
	metrics *observability.Metrics
	queue   *jobs.Client
	logger  *slog.Logger
}

func (o dispatchObserver) ObserveDispatchLines(n int) {
	o.metrics.ObserveDispatchLines(n)
	if o.queue == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := o.queue.EnqueueOutstandingRefresh(ctx); err != nil {
		o.logger.Warn("enqueue outstanding refresh", slog.Any("error", err))
	}
}

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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// The outstanding cache degrades to direct reads when Redis is away.
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, outstanding cache disabled", slog.Any("error", err))
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	userRepo := users.NewRepository(pool)
	tokens := users.NewTokenCodec(cfg.AuthTokenSecret, cfg.AuthTokenTTL)
	authService := users.NewService(userRepo, tokens, logger)
	usersHandler := users.NewHandler(authService, logger)

	rbacService := rbac.NewService(pool)
	guard := rbac.Middleware{Source: rbacService, Logger: logger}

	customerRepo := customers.NewRepository(pool)
	customersHandler := customers.NewHandler(customerRepo, logger)

	catalogRepo := catalog.NewRepository(pool)
	catalogService := catalog.NewService(catalogRepo, logger)
	catalogHandler := catalog.NewHandler(catalogService, logger)

	priceListRepo := pricelists.NewRepository(pool)
	priceListsHandler := pricelists.NewHandler(priceListRepo, logger)

	auditLogger := shared.NewAuditLogger(pool)

	attachmentRepo := attachments.NewRepository(pool)
	attachmentsHandler := attachments.NewHandler(attachmentRepo, auditLogger, logger)

	approvalRepo := approvals.NewRepository(pool)
	approvalTracker := approvals.NewTracker(approvalRepo)

	orderRepo := orders.NewRepository(pool)
	orderService := orders.NewService(orderRepo, approvalTracker, rbacService,
		attachmentRepo, catalogReader{svc: catalogService}, customerRepo,
		priceLookup{repo: priceListRepo}, metrics, logger)
	ordersHandler := orders.NewHandler(orderService, approvalTracker, guard, logger)

	jobQueue := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobQueue.Close(); err != nil {
			logger.Warn("job queue close", slog.Any("error", err))
		}
	}()

	dispatchRepo := dispatch.NewRepository(pool)
	dispatchService := dispatch.NewService(dispatchRepo,
		dispatchObserver{metrics: metrics, queue: jobQueue, logger: logger}, logger)
	dispatchHandler := dispatch.NewHandler(dispatchService, guard, logger)

	outstandingRepo := outstanding.NewRepository(pool)
	outstandingCache := cache.NewJSONCache(redisClient, cfg.OutstandingCacheTTL)
	outstandingService := outstanding.NewService(outstandingRepo, outstandingCache, logger)
	outstandingHandler := outstanding.NewHandler(outstandingService, guard, logger)

	reportClient := report.NewClient(cfg.GotenbergURL)
	if err := reportClient.Ping(ctx); err != nil {
		logger.Warn("document converter unreachable", slog.Any("error", err))
	}
	reportHandler := report.NewHandler(report.NewRenderer(reportClient),
		orderService, dispatchService, customerRepo, catalogService, guard, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		AuthService:        authService,
		UsersHandler:       usersHandler,
		CustomersHandler:   customersHandler,
		CatalogHandler:     catalogHandler,
		PriceListsHandler:  priceListsHandler,
		AttachmentsHandler: attachmentsHandler,
		OrdersHandler:      ordersHandler,
		DispatchHandler:    dispatchHandler,
		OutstandingHandler: outstandingHandler,
		ReportHandler:      reportHandler,
		JobsHandler:        jobsHandler,
		Metrics:            metrics,
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
