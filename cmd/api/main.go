package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/sla-engine/internal/api/http"
	"github.com/spec-kit/sla-engine/internal/api/http/handlers"
	"github.com/spec-kit/sla-engine/internal/auth"
	"github.com/spec-kit/sla-engine/internal/config"
	"github.com/spec-kit/sla-engine/internal/events"
	"github.com/spec-kit/sla-engine/internal/monitor"
	"github.com/spec-kit/sla-engine/internal/observability"
	"github.com/spec-kit/sla-engine/internal/persistence"
	"github.com/spec-kit/sla-engine/internal/repository"
	"github.com/spec-kit/sla-engine/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
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

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()

	pool := pg.PoolHandle()
	tenantRepo := repository.NewTenantRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	slaRepo := repository.NewCachedSLARepository(
		repository.NewSLARepository(pool), redis.Client, cfg.Cache.TTL(), logger)
	thresholdRepo := repository.NewThresholdRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)
	changeRepo := repository.NewSLAChangeRepository(pool)

	dispatcher := events.NewInMemoryDispatcher(logger)

	slaService := service.NewSLAService(service.SLADependencies{
		TicketRepo:    ticketRepo,
		SLARepo:       slaRepo,
		ThresholdRepo: thresholdRepo,
		ChangeRepo:    changeRepo,
		Logger:        logger,
	})
	slaService.RegisterEventHandlers(dispatcher)

	notificationService := service.NewNotificationService(notificationRepo, logger)

	var scheduler *monitor.Scheduler
	if cfg.Monitor.Enabled {
		breachMonitor := monitor.New(monitor.Dependencies{
			TenantRepo:    tenantRepo,
			TicketRepo:    ticketRepo,
			SLARepo:       slaRepo,
			ThresholdRepo: thresholdRepo,
			Logger:        logger,
			Metrics:       metrics,
			Parallelism:   cfg.Monitor.TenantParallelism,
			ScanTimeout:   cfg.Monitor.ScanTimeout(),
		})
		scheduler = monitor.NewScheduler(breachMonitor, cfg.Monitor.Interval(), logger)
		if err := scheduler.Start(); err != nil {
			logger.Fatal("failed to start breach monitor", zap.Error(err))
		}
	}

	authMiddleware := auth.NewMiddleware(cfg.Auth.ServiceTokenSecret, cfg.Auth.ServiceTokenTTLHours)

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version)
	healthHandler.AddCheck("postgres", pg)
	healthHandler.AddCheck("redis", redis)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         healthHandler,
		TicketSLA:      handlers.NewTicketSLAHandler(slaService),
		Notifications:  handlers.NewNotificationsHandler(notificationService),
		Events:         handlers.NewEventsHandler(dispatcher),
		AuthMiddleware: authMiddleware,
		MetricsHandler: metrics.Handler(),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if scheduler != nil {
		scheduler.Stop()
	}
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
