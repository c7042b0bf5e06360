package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/display-watch/internal/adapter/api"
	"github.com/V4T54L/display-watch/internal/adapter/api/handler"
	"github.com/V4T54L/display-watch/internal/adapter/artifact"
	"github.com/V4T54L/display-watch/internal/adapter/metrics"
	"github.com/V4T54L/display-watch/internal/adapter/notifier"
	"github.com/V4T54L/display-watch/internal/adapter/registry"
	"github.com/V4T54L/display-watch/internal/adapter/repository/postgres"
	redisrepo "github.com/V4T54L/display-watch/internal/adapter/repository/redis"
	"github.com/V4T54L/display-watch/internal/adapter/repository/wal"
	"github.com/V4T54L/display-watch/internal/adapter/tabular"
	"github.com/V4T54L/display-watch/internal/pkg/config"
	"github.com/V4T54L/display-watch/internal/pkg/logger"
	"github.com/V4T54L/display-watch/internal/usecase"
	"github.com/V4T54L/display-watch/internal/worker"

	_ "github.com/lib/pq" // Keep for postgres driver
)

const (
	journalSegmentSize = 16 << 20  // 16MB
	journalMaxSize     = 256 << 20 // 256MB
	persistRetries     = 3
	persistBackoff     = 500 * time.Millisecond
	redisProbeInterval = 5 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	m := metrics.NewTrackerMetrics()

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database and Redis Connections ---
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		log.Error("failed to open postgres connection", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		log.Error("failed to ensure the database schema", "error", err)
		os.Exit(1)
	}
	log.Info("connected to postgres")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn("could not connect to redis, submissions fall back to the journal until it recovers", "error", err)
	}

	// --- Repositories and Adapters ---
	journal, err := wal.NewJournal(cfg.WALDir, journalSegmentSize, journalMaxSize, log)
	if err != nil {
		log.Error("failed to initialize the submission journal", "error", err)
		os.Exit(1)
	}
	defer journal.Close()

	queue, err := redisrepo.NewJobQueue(redisClient, log, cfg.JobStream, cfg.JobGroup, journal, m)
	if err != nil {
		log.Error("failed to initialize the job queue", "error", err)
		os.Exit(1)
	}
	go queue.StartHealthCheck(ctx, redisProbeInterval)

	historyRepo := postgres.NewJobHistoryRepository(db, log)
	filterRepo := postgres.NewFilterConfigRepository(db, log)
	contacts := postgres.NewContactDirectory(db, log, cfg.ContactCacheTTL, m)
	artifacts := artifact.NewFileStore(cfg.ArtifactDir, log)
	loader := tabular.NewLoader(cfg.InputDir, log)
	jobRegistry := registry.NewJobRegistry()
	logNotifier := notifier.NewLogNotifier(log)

	// --- SSE Broker ---
	events := handler.NewJobEventBroker(log)

	// --- Use Cases ---
	submitUseCase := usecase.NewSubmitJobUseCase(queue, jobRegistry, events, loader, m, log)
	processUseCase := usecase.NewProcessJobUseCase(
		loader, jobRegistry, historyRepo, filterRepo, artifacts, queue, events,
		m, log, cfg.JobTimeout, persistRetries, persistBackoff,
	)
	historyUseCase := usecase.NewJobHistoryUseCase(historyRepo, jobRegistry, artifacts, log)
	filterUseCase := usecase.NewFilterConfigUseCase(filterRepo, historyRepo, log)
	notifyUseCase := usecase.NewNotifyUseCase(historyRepo, contacts, logNotifier, m, log)
	queueAdminUseCase := usecase.NewQueueAdminUseCase(queue, log)

	// --- Worker Pool ---
	pool := worker.NewPool(queue, jobRegistry, processUseCase, log, worker.PoolConfig{Workers: cfg.WorkerCount})
	pool.Start(ctx)

	// --- HTTP Servers ---
	apiServer := &http.Server{
		Addr:        cfg.ServerAddr,
		Handler:     api.NewRouter(log, submitUseCase, historyUseCase, filterUseCase, notifyUseCase, events),
		IdleTimeout: 15 * time.Second,
		// No WriteTimeout: /api/jobs/events holds streams open. Request
		// contexts derive from the shutdown context so those streams end
		// when the process stops.
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	adminServer := &http.Server{
		Addr:    cfg.AdminAddr,
		Handler: api.NewAdminRouter(queueAdminUseCase, log),
	}

	go func() {
		log.Info("starting api server", "addr", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("api server failed", "error", err)
			stop()
		}
	}()

	go func() {
		log.Info("starting admin & metrics server", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("admin & metrics server failed", "error", err)
			stop()
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	log.Info("shutting down...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Error("api server shutdown failed", "error", err)
	}
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		log.Error("admin server shutdown failed", "error", err)
	}

	pool.Wait()
	log.Info("shut down gracefully")
}
