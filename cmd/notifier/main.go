package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/anonto42/minitwitter/backend/internal/notify"
	"github.com/anonto42/minitwitter/backend/internal/repositories"
	"github.com/anonto42/minitwitter/backend/pkg/config"
	"github.com/anonto42/minitwitter/backend/pkg/logger"
	"github.com/anonto42/minitwitter/backend/pkg/tracing"
	"github.com/nats-io/nats.go"
)

// The notifier consumes follow events and stores in-app notifications.
func main() {
	cfg := config.Load()
	logger.Init(cfg.Env)

	ctx := context.Background()
	shutdownTracing, err := tracing.Init(ctx, "minitwitter-notifier", cfg.Env, cfg.OtelEndpoint)
	if err != nil {
		slog.Error("Failed to init tracer", "error", err)
	} else {
		defer func() { _ = shutdownTracing(context.Background()) }()
	}

	if cfg.NatsURL == "" {
		slog.Error("NATS_URL environment variable not set")
		os.Exit(1)
	}

	// Posts are never read here.
	cfg.PostStoreDriver = "postgres"
	db, err := config.InitDB(cfg)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.CloseDB()

	nc, err := nats.Connect(cfg.NatsURL, nats.Name("minitwitter-notifier"))
	if err != nil {
		slog.Error("Unable to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer nc.Drain()

	worker := notify.NewWorker(
		repositories.NewPostgresUserRepository(db.Postgres),
		repositories.NewPostgresNotificationRepository(db.Postgres),
		cfg.NotifyTimeout,
	)
	if _, err := worker.Subscribe(nc); err != nil {
		slog.Error("Failed to subscribe to NATS", "error", err)
		os.Exit(1)
	}
	slog.Info("Listening for follow events", "subject", notify.SubjectFollowCreated)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Notifier stopped")
}
