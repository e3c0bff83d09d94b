package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/mpesa-console/internal/applications"
	"github.com/mpesa-console/internal/cache"
	"github.com/mpesa-console/internal/config"
	"github.com/mpesa-console/internal/database"
	"github.com/mpesa-console/internal/functions"
	"github.com/mpesa-console/internal/handlers"
	"github.com/mpesa-console/internal/queue"
	"github.com/mpesa-console/internal/server"
	"github.com/mpesa-console/internal/store"
	"github.com/mpesa-console/internal/transactions"
	"github.com/mpesa-console/internal/worker"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, using process environment")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.ConfigureLogging()
	logrus.Info("M-Pesa console starting...")
	cfg.LogSafeConfig()

	if !cfg.FunctionsConfigured() {
		logrus.Warn("No credential function endpoint configured; application creation will fail")
	}

	ctx := context.Background()

	// Initialize database
	db, err := database.NewDatabase(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize dashboard cache
	redisClient, err := cache.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		logrus.Fatalf("Failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	dashboardCache := cache.NewDashboardCache(redisClient, cfg.DashboardCacheTTL)

	// Initialize queue
	q, err := queue.NewQueue(cfg.RedisURL, cfg.WorkerConcurrency)
	if err != nil {
		logrus.Fatalf("Failed to initialize queue: %v", err)
	}
	defer q.Close()

	// Services
	st := store.New(db.Pool)
	appService := applications.NewService(st, functions.NewClient(functions.ConfigFrom(cfg)))
	txService := transactions.NewService(st, appService, dashboardCache, transactions.Config{
		Location:        cfg.Location,
		PageSize:        cfg.PageSize,
		MaxFetchRows:    cfg.MaxFetchRows,
		DashboardDays:   cfg.DashboardDays,
		DashboardTop:    cfg.DashboardTop,
		DashboardRecent: cfg.DashboardRecent,
	})

	// Export worker runs in-process
	worker.NewProcessor(st, txService).Register(q.Mux)
	asynqServer := q.NewServer()
	logrus.Info("Starting Asynq worker...")
	if err := asynqServer.Start(q.Mux); err != nil {
		logrus.Fatalf("Asynq worker failed: %v", err)
	}

	httpHandlers := handlers.NewHandler(handlers.Deps{
		Transactions: txService,
		Applications: appService,
		Exports:      st,
		Queue:        q.Client,
		Cache:        dashboardCache,
		Checks: map[string]func(context.Context) error{
			"database": db.Health,
			"redis": func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		},
	})
	httpServer := server.NewServer(cfg, httpHandlers)

	go func() {
		if err := httpServer.Start(); err != nil {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("HTTP shutdown failed: %v", err)
	}
	asynqServer.Shutdown()

	logrus.Info("Shutdown complete")
}
