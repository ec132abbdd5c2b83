package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/user/scrapestudio/internal/adapter/analyzer"
	"github.com/user/scrapestudio/internal/adapter/chromedp_scraper"
	"github.com/user/scrapestudio/internal/adapter/postgres"
	redis_adapter "github.com/user/scrapestudio/internal/adapter/redis"
	"github.com/user/scrapestudio/internal/delivery/http/handler"
	"github.com/user/scrapestudio/internal/delivery/http/router"
	"github.com/user/scrapestudio/internal/usecase"
	"github.com/user/scrapestudio/pkg/config"
	"github.com/user/scrapestudio/pkg/logger"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	// --- Logger ---
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		os.Stderr.WriteString("failed to build logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Logger initialized", zap.String("level", cfg.LogLevel))

	// --- Database Connections ---
	ctx := context.Background()

	// PostgreSQL
	dbpool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatal("Unable to connect to database", zap.Error(err))
	}
	defer dbpool.Close()
	log.Info("PostgreSQL connection pool established")

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatal("Unable to connect to Redis", zap.Error(err))
	}
	log.Info("Redis connection established")

	// --- Repositories ---
	queueRepo := redis_adapter.NewQueueRepo(rdb)
	jobRepo := postgres.NewJobRepo(dbpool)
	targetRepo := postgres.NewTargetRepo(dbpool)
	projectRepo := postgres.NewProjectRepo(dbpool)
	resultRepo := postgres.NewResultRepo(dbpool)
	scheduleRepo := postgres.NewScheduleRepo(dbpool)
	webhookRepo := postgres.NewWebhookRepo(dbpool)

	// --- Adapters ---
	scraper := chromedp_scraper.NewChromedpScraper(cfg.ChromePoolSize, cfg.ChromeTimeout(), log)
	analyzers := analyzer.NewHTTPAnalyzerFactory(cfg.AnalyzerURL, cfg.AnalyzerTimeout(), log)

	// --- Use Cases ---
	webhookService := usecase.NewWebhookService(webhookRepo, cfg.WebhookTimeout(), log)

	execDeps := usecase.ExecutorDeps{
		Jobs:      jobRepo,
		Targets:   targetRepo,
		Results:   resultRepo,
		Schedules: scheduleRepo,
		Scraper:   scraper,
		Analyzers: analyzers,
		Webhooks:  webhookService,
		Log:       log,
	}

	jobQueue := usecase.NewJobQueue(queueRepo, jobRepo, projectRepo, execDeps, cfg.MaxConcurrentJobs, log)
	jobQueue.Start()
	log.Info("Job queue started", zap.Int("max_concurrent", cfg.MaxConcurrentJobs))

	scheduler := usecase.NewSchedulerService(scheduleRepo, jobRepo, projectRepo, jobQueue, webhookService, cfg.SchedulerInterval(), log)
	scheduler.Start()
	log.Info("Scheduler started", zap.Duration("interval", cfg.SchedulerInterval()))

	// --- HTTP Server ---
	apiHandler := handler.NewHandler(jobRepo, projectRepo, scheduleRepo, webhookRepo,
		queueRepo, jobQueue, scheduler, webhookService, log)
	httpRouter := router.New(apiHandler, log)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      httpRouter,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("Starting server", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Could not listen on port", zap.String("port", cfg.ServerPort), zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	stop, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	<-stop.Done()
	log.Info("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown failed", zap.Error(err))
	}
	scheduler.Stop()
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Warn("Job queue drained with running jobs cancelled", zap.Error(err))
	}

	log.Info("Shutdown complete")
}
