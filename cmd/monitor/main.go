package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/api/http/handlers"
	"github.com/spec-kit/sla-engine/internal/config"
	"github.com/spec-kit/sla-engine/internal/monitor"
	"github.com/spec-kit/sla-engine/internal/observability"
	"github.com/spec-kit/sla-engine/internal/persistence"
	"github.com/spec-kit/sla-engine/internal/repository"
)

// Standalone breach monitor. Deployments that scale the api
// horizontally run exactly one of these and start the api with
// SLA_MONITOR_ENABLED=false; threshold marks keep the two arrangements
// interchangeable. The embedded HTTP server only serves probes and
// metrics.
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
	logger = logger.Named("monitor")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Schema is owned by the api process; the worker only reads and
	// writes through it.
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()

	pool := pg.PoolHandle()
	tenantRepo := repository.NewTenantRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	slaRepo := repository.NewCachedSLARepository(
		repository.NewSLARepository(pool), redis.Client, cfg.Cache.TTL(), logger)
	thresholdRepo := repository.NewThresholdRepository(pool)

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

	// This binary exists to scan, so SLA_MONITOR_ENABLED is ignored
	// here; the flag only gates the scheduler embedded in the api.
	scheduler := monitor.NewScheduler(breachMonitor, cfg.Monitor.Interval(), logger)
	if err := scheduler.Start(); err != nil {
		logger.Fatal("failed to start breach monitor", zap.Error(err))
	}

	healthHandler := handlers.NewHealthHandler(cfg.App.Name+"-monitor", cfg.App.Version)
	healthHandler.AddCheck("postgres", pg)
	healthHandler.AddCheck("redis", redis)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name + "-monitor"})
	app.Get("/health/live", healthHandler.Live)
	app.Get("/health/ready", healthHandler.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	scheduler.Stop()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
