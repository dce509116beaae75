package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"budgetanalyzer/internal/amqp"
	"budgetanalyzer/internal/config"
	apphttp "budgetanalyzer/internal/http"
	applog "budgetanalyzer/internal/log"
	"budgetanalyzer/internal/services"
	"budgetanalyzer/internal/storage"
	"budgetanalyzer/internal/storage/memory"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	applog.Setup()
	logger := applog.WithComponent("server")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	var (
		repo  services.LimitRepository
		store services.TransactionStore
	)

	switch cfg.DataBackend {
	case "sqlite":
		sqliteRepo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, cfg.Location())
		if err != nil {
			logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer sqliteRepo.Close()
		repo, store = sqliteRepo, sqliteRepo
		logger.Info("Initialized SQLite backend", "path", cfg.SQLiteDBPath)
	default:
		memStore := memory.New()
		repo, store = memStore, memStore
		logger.Info("Initialized memory backend")
	}

	// The notification channel is optional: without a broker, spends are
	// still recorded, only the Telegram recap is lost.
	var publisher services.NotificationPublisher
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("AMQP unavailable, notifications disabled", "error", err)
	} else {
		defer amqpClient.Close()
		publisher = amqpClient
	}

	limits := services.NewLimitsService(repo, cfg.LimitTag, cfg.Currency, cfg.MonthlyBudgetValue(), cfg.Location())
	transactions := services.NewTransactionsService(store, limits, publisher)

	srv := apphttp.NewServer(":"+cfg.Port, transactions, limits)
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting budgetanalyzer server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"tag", cfg.LimitTag,
		"monthly_budget", cfg.MonthlyBudget,
		"currency", cfg.Currency)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
