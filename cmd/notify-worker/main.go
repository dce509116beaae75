package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"budgetanalyzer/internal/amqp"
	"budgetanalyzer/internal/config"
	applog "budgetanalyzer/internal/log"
	"budgetanalyzer/internal/services"
	"budgetanalyzer/internal/telegram"
	"budgetanalyzer/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	applog.Setup()
	logger := applog.WithComponent("notify-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	// Without Telegram credentials the worker still drains the queue and
	// logs each rendered notification instead of delivering it.
	var sender services.MessageSender
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		sender = telegram.NewSender(cfg.TelegramBotToken, cfg.TelegramChatID)
		logger.Info("Telegram delivery enabled", "chat_id", cfg.TelegramChatID)
	} else {
		logger.Info("Telegram delivery disabled - no credentials provided")
	}

	notifyWorker := worker.NewNotifyWorker(services.NewNotificationsService(sender))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting notify-worker", "queue", cfg.AMQPQueue, "exchange", cfg.AMQPExchange)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqp.ConsumeForever(gctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue,
			func(msg *amqp.TransactionRecordedMessage) error {
				return notifyWorker.HandleTransactionRecorded(gctx, msg)
			})
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker stopped gracefully")
}
