package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/mpesa-console/internal/applications"
	"github.com/mpesa-console/internal/config"
	"github.com/mpesa-console/internal/database"
	"github.com/mpesa-console/internal/functions"
	"github.com/mpesa-console/internal/queue"
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
	logrus.Info("M-Pesa console export worker starting...")

	ctx := context.Background()

	// Initialize database
	db, err := database.NewDatabase(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize queue
	q, err := queue.NewQueue(cfg.RedisURL, cfg.WorkerConcurrency)
	if err != nil {
		logrus.Fatalf("Failed to initialize queue: %v", err)
	}
	defer q.Close()

	st := store.New(db.Pool)
	labels := applications.NewService(st, functions.NewClient(functions.ConfigFrom(cfg)))
	txService := transactions.NewService(st, labels, nil, transactions.Config{
		Location:     cfg.Location,
		MaxFetchRows: cfg.MaxFetchRows,
	})

	// Register worker handlers
	worker.NewProcessor(st, txService).Register(q.Mux)
	asynqServer := q.NewServer()

	// Handle shutdown signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	if err := asynqServer.Start(q.Mux); err != nil {
		logrus.Fatalf("Worker failed: %v", err)
	}
	logrus.Info("Worker started, processing tasks...")

	<-quit
	logrus.Info("Shutting down worker...")
	asynqServer.Shutdown()

	logrus.Info("Worker shutdown complete")
}
