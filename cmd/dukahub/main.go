package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dukahub/dukahub/internal/analytics"
	"github.com/dukahub/dukahub/internal/app"
	"github.com/dukahub/dukahub/internal/auth"
	"github.com/dukahub/dukahub/internal/billing"
	"github.com/dukahub/dukahub/internal/expenses"
	"github.com/dukahub/dukahub/internal/inventory"
	"github.com/dukahub/dukahub/internal/masterdata"
	"github.com/dukahub/dukahub/internal/observability"
	"github.com/dukahub/dukahub/internal/platform/db"
	"github.com/dukahub/dukahub/internal/sales"
	"github.com/dukahub/dukahub/internal/shared"
	"github.com/dukahub/dukahub/internal/stock"
	"github.com/dukahub/dukahub/internal/team"
	"github.com/dukahub/dukahub/jobs"
)

func main() {
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

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)
	validate := validator.New(validator.WithRequiredStructEnabled())

	stockService := stock.NewService(stock.NewRepository(pool, cfg.TxRetries), auditLogger, metrics,
		stock.ServiceConfig{AllowNegativeStock: cfg.AllowNegativeStock})
	billingService := billing.NewService(billing.NewRepository(pool, cfg.TxRetries), auditLogger, metrics)
	salesService := sales.NewService(sales.NewRepository(pool, cfg.TxRetries), stockService, auditLogger, metrics)
	expensesService := expenses.NewService(expenses.NewRepository(pool, cfg.TxRetries), auditLogger)
	masterdataService := masterdata.NewService(masterdata.NewRepository(pool), auditLogger)
	inventoryService := inventory.NewService(inventory.NewRepository(pool))
	analyticsService := analytics.NewService(analytics.NewRepository(pool),
		analytics.NewCache(redisClient, cfg.AnalyticsCacheTTL))
	teamRepo := team.NewRepository(pool)
	teamService := team.NewService(teamRepo, auditLogger)
	authService := auth.NewService(teamRepo, redisClient, cfg.TokenTTL)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		AuthService:       authService,
		IdempotencyStore:  shared.NewIdempotencyStore(pool),
		AuthHandler:       auth.NewHandler(logger, authService, validate),
		StockHandler:      stock.NewHandler(logger, stockService, validate),
		BillingHandler:    billing.NewHandler(logger, billingService, validate),
		SalesHandler:      sales.NewHandler(logger, salesService, validate),
		ExpensesHandler:   expenses.NewHandler(logger, expensesService, validate),
		MasterDataHandler: masterdata.NewHandler(logger, masterdataService, validate),
		InventoryHandler:  inventory.NewHandler(logger, inventoryService, validate),
		AnalyticsHandler:  analytics.NewHandler(logger, analyticsService),
		TeamHandler:       team.NewHandler(logger, teamService, validate),
		JobHandler:        jobs.NewHandler(inspector, jobClient, logger),
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}
