package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/minitwitter/backend/internal/auth"
	"github.com/anonto42/minitwitter/backend/internal/cache"
	"github.com/anonto42/minitwitter/backend/internal/notify"
	"github.com/anonto42/minitwitter/backend/internal/repositories"
	"github.com/anonto42/minitwitter/backend/internal/router"
	"github.com/anonto42/minitwitter/backend/internal/services"
	"github.com/anonto42/minitwitter/backend/pkg/config"
	"github.com/anonto42/minitwitter/backend/pkg/firebase"
	"github.com/anonto42/minitwitter/backend/pkg/logger"
	"github.com/anonto42/minitwitter/backend/pkg/tracing"
	"github.com/labstack/echo/v4"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

type stores struct {
	users         repositories.UserRepository
	follows       repositories.FollowRepository
	likes         repositories.LikeRepository
	posts         repositories.PostRepository
	notifications repositories.NotificationRepository
}

func main() {
	// Load configuration
	cfg := config.Load()
	logger.Init(cfg.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, "minitwitter-api", cfg.Env, cfg.OtelEndpoint)
	if err != nil {
		slog.Error("Failed to init tracer", "error", err)
	} else {
		defer func() { _ = shutdownTracing(context.Background()) }()
	}

	s, closeStores, err := openStores(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize databases", "error", err)
		os.Exit(1)
	}
	defer closeStores()

	opts := serviceOptions(cfg)

	var notifier services.Notifier = notify.LogNotifier{}
	if cfg.NatsURL != "" {
		nc, err := nats.Connect(cfg.NatsURL, nats.Name("minitwitter-api"))
		if err != nil {
			slog.Error("Unable to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer nc.Drain()
		notifier = notify.NewNatsNotifier(nc)
		slog.Info("Connected to NATS")
	}

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL, cfg.RefreshTTL)

	var authService *auth.Service
	if cfg.FirebaseCredentialsPath != "" {
		verifier, err := firebase.NewVerifier(ctx, cfg.FirebaseCredentialsPath)
		if err != nil {
			slog.Error("Failed to initialize Firebase", "error", err)
			os.Exit(1)
		}
		authService = auth.NewService(s.users, tokens, verifier)
	} else {
		authService = auth.NewService(s.users, tokens, nil)
	}

	graph := services.NewGraphService(s.follows, s.users, notifier, opts)
	feed, err := buildFeed(ctx, cfg, services.NewFeedService(graph, s.posts, s.likes, opts), opts)
	if err != nil {
		slog.Error("Failed to initialize feed cache", "error", err)
		os.Exit(1)
	}
	if inv, ok := feed.(services.FeedInvalidator); ok {
		graph.InvalidateFeedsWith(inv)
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	config.SetupMiddleware(e)
	router.SetupRoutes(e, router.Deps{
		Auth:          authService,
		Tokens:        tokens,
		Graph:         graph,
		Likes:         services.NewLikeService(s.likes, s.posts),
		Posts:         services.NewPostService(s.posts, s.likes, opts),
		Feed:          feed,
		Users:         s.users,
		Notifications: s.notifications,
	})

	go func() {
		slog.Info("HTTP server listening", "port", cfg.Port)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown", "error", err)
	}
	slog.Info("Server exited")
}

func serviceOptions(cfg *config.Config) services.Options {
	return services.Options{
		MaxPostLength:   cfg.MaxPostLength,
		FeedPageSize:    cfg.FeedPageSize,
		FeedMaxPageSize: cfg.FeedMaxPageSize,
		NotifyTimeout:   cfg.NotifyTimeout,
	}
}

func openStores(ctx context.Context, cfg *config.Config) (stores, func(), error) {
	if cfg.StoreDriver == "memory" {
		slog.Warn("Using in-memory stores, data is lost on restart")
		return stores{
			users:         repositories.NewMemoryUserRepository(),
			follows:       repositories.NewMemoryFollowRepository(),
			likes:         repositories.NewMemoryLikeRepository(),
			posts:         repositories.NewMemoryPostRepository(),
			notifications: repositories.NewMemoryNotificationRepository(),
		}, func() {}, nil
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		return stores{}, nil, err
	}

	postsInMongo := cfg.PostStoreDriver == "mongo"
	if err := repositories.AutoMigrate(db.Postgres, !postsInMongo); err != nil {
		db.CloseDB()
		return stores{}, nil, err
	}

	s := stores{
		users:         repositories.NewPostgresUserRepository(db.Postgres),
		follows:       repositories.NewPostgresFollowRepository(db.Postgres),
		likes:         repositories.NewPostgresLikeRepository(db.Postgres),
		notifications: repositories.NewPostgresNotificationRepository(db.Postgres),
	}
	if postsInMongo {
		posts := repositories.NewMongoPostRepository(db.Mongo.Database(cfg.MongoDatabase), s.likes)
		if err := posts.EnsureIndexes(ctx); err != nil {
			db.CloseDB()
			return stores{}, nil, err
		}
		s.posts = posts
	} else {
		s.posts = repositories.NewPostgresPostRepository(db.Postgres)
	}
	return s, db.CloseDB, nil
}

func buildFeed(ctx context.Context, cfg *config.Config, feed services.FeedComposer, opts services.Options) (services.FeedComposer, error) {
	switch cfg.CacheDriver {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisotel.InstrumentTracing(rdb); err != nil {
			return nil, err
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, err
		}
		slog.Info("Connected to Redis")
		return services.NewCachedFeed(feed, cache.NewRedisCache(rdb, "minitwitter:"), cfg.CacheTTL, cfg.CacheEnabled, opts), nil
	case "memory":
		return services.NewCachedFeed(feed, cache.NewLRUCache(cfg.CacheSize, cfg.CacheTTL), cfg.CacheTTL, cfg.CacheEnabled, opts), nil
	default:
		return feed, nil
	}
}
