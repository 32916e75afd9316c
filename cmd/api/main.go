package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/Jessir1108/Capta-Tickets/internal/api/http"
	"github.com/Jessir1108/Capta-Tickets/internal/api/http/handlers"
	"github.com/Jessir1108/Capta-Tickets/internal/classifier"
	"github.com/Jessir1108/Capta-Tickets/internal/config"
	"github.com/Jessir1108/Capta-Tickets/internal/consistency"
	"github.com/Jessir1108/Capta-Tickets/internal/events"
	"github.com/Jessir1108/Capta-Tickets/internal/observability"
	"github.com/Jessir1108/Capta-Tickets/internal/persistence"
	"github.com/Jessir1108/Capta-Tickets/internal/repository"
	"github.com/Jessir1108/Capta-Tickets/internal/repository/memory"
	"github.com/Jessir1108/Capta-Tickets/internal/service"
	"github.com/Jessir1108/Capta-Tickets/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	deps := map[string]handlers.Pinger{"postgres": nil, "redis": nil}

	var store repository.Store
	if pool := pg.PoolHandle(); pool != nil {
		store = repository.NewPostgresStore(pool)
		deps["postgres"] = pg
	} else {
		mem := memory.New()
		if cfg.App.FixturePath != "" {
			if err := mem.LoadFixture(cfg.App.FixturePath); err != nil {
				logger.Fatal("failed to load fixture", zap.String("path", cfg.App.FixturePath), zap.Error(err))
			}
			logger.Info("loaded fixture", zap.String("path", cfg.App.FixturePath))
		}
		store = mem
	}

	var cache classifier.DescendantCache = classifier.NewMemoryCache()
	if cfg.Redis.Enabled {
		redis, err := persistence.NewRedis(ctx, cfg.Redis, logger)
		defer redis.Close()
		if err == nil {
			cache = classifier.NewRedisCache(redis.Client, cfg.Query.CacheTTL())
			deps["redis"] = redis
		} else {
			logger.Warn("falling back to process-local classifier cache", zap.Error(err))
		}
	}

	metrics := observability.NewMetrics()
	resolver := classifier.NewResolver(store, cache, logger)
	engine, err := service.NewQueryEngine(service.QueryDependencies{
		Store:    store,
		Resolver: resolver,
		Config:   cfg.Query,
		Logger:   logger,
		Observer: metrics,
	})
	if err != nil {
		logger.Fatal("failed to build query engine", zap.Error(err))
	}

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAlertWorker(service.NewAlertService(dispatcher, logger, cfg.Notification))
	checker := consistency.NewChecker(store, dispatcher, logger).WithClassifiers(resolver)

	if cfg.Audit.Enabled {
		audit := worker.NewAuditWorker(checker, cfg.Audit.Interval(), consistency.AuditOptions{MaxTickets: cfg.Audit.MaxTickets}, logger)
		go audit.Run(ctx)
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:      handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps),
		Metrics:     handlers.NewMetricsHandler(metrics),
		Analytics:   handlers.NewAnalyticsHandler(engine),
		Tickets:     handlers.NewTicketsHandler(engine, checker),
		Classifiers: handlers.NewClassifiersHandler(resolver),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)
	cancel()

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
