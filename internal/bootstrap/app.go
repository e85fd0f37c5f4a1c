// Package bootstrap assembles and runs the service.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pratamalabs/domaindesk/internal/api"
	"github.com/pratamalabs/domaindesk/internal/contentfilter"
	"github.com/pratamalabs/domaindesk/internal/database"
	"github.com/pratamalabs/domaindesk/internal/dnscheck"
	"github.com/pratamalabs/domaindesk/internal/events"
	"github.com/pratamalabs/domaindesk/internal/handlers"
	"github.com/pratamalabs/domaindesk/internal/logger"
	"github.com/pratamalabs/domaindesk/internal/metrics"
	"github.com/pratamalabs/domaindesk/internal/reconciler"
	"github.com/pratamalabs/domaindesk/internal/registrar"
	"github.com/pratamalabs/domaindesk/internal/repository"
	"github.com/pratamalabs/domaindesk/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

// Start runs the service until SIGINT/SIGTERM.
func Start() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.NewLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting domaindesk",
		logger.String("addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)),
	)

	db, err := database.New(cfg, log)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.Migrate(migrateCtx); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	redisClient := connectRedis(cfg, log)
	if redisClient != nil {
		defer redisClient.Close()
	}
	publisher := events.NewPublisher(redisClient, log)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	domainRepo := repository.NewDomainRepository(db.DB(), log)
	syncLogRepo := repository.NewSyncLogRepository(db.DB(), log)

	registrarClient := registrar.NewClient(cfg.Registrar, nil, log)
	resolver := dnscheck.NewResolver(cfg.DNS, log)
	filterClient := contentfilter.NewClient(cfg.ContentFilter, nil, log)

	rec := reconciler.New(
		domainRepo, syncLogRepo,
		registrarClient, resolver, filterClient,
		cfg.ContentFilter, publisher, m, log,
	)

	var sched *scheduler.Scheduler
	if cfg.Sync.Enabled {
		sched = scheduler.New(rec, cfg.Sync, log)
		if err := sched.Start(); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	} else {
		log.Info("Sync scheduler disabled")
	}

	router := api.NewRouter(cfg,
		handlers.NewDomainHandler(domainRepo, log),
		handlers.NewSyncHandler(rec, domainRepo, log),
		registry, log,
	)

	server := newServer(cfg, router)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	case sig := <-quit:
		log.Info("Shutting down", logger.String("signal", sig.String()))
	}

	if sched != nil {
		sched.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}

	log.Info("Shutdown complete")
	return nil
}
