package router

import (
	"log/slog"

	"github.com/anonto42/minitwitter/backend/internal/auth"
	"github.com/anonto42/minitwitter/backend/internal/handlers"
	"github.com/anonto42/minitwitter/backend/internal/middleware"
	"github.com/anonto42/minitwitter/backend/internal/repositories"
	"github.com/anonto42/minitwitter/backend/internal/services"
	"github.com/anonto42/minitwitter/backend/validators"
	"github.com/labstack/echo/v4"
)

// Deps carries everything the HTTP layer needs. main builds it from config.
type Deps struct {
	Auth          *auth.Service
	Tokens        *auth.TokenIssuer
	Graph         *services.GraphService
	Likes         *services.LikeService
	Posts         *services.PostService
	Feed          services.FeedComposer
	Users         repositories.UserRepository
	Notifications repositories.NotificationRepository
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, d Deps) {
	e.Validator = validators.NewValidator()
	e.HTTPErrorHandler = handlers.HTTPErrorHandler

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	authGroup := e.Group("/api/v1/auth")
	handlers.NewAuthHandler(d.Auth).RegisterAuthRoutes(authGroup)
	slog.Debug("Auth routes configured.")

	// Every /api/v1 route resolves an optional principal; mutating routes
	// additionally require one.
	api := e.Group("/api/v1")
	api.Use(middleware.JWTPrincipal(d.Tokens))

	handlers.NewUserHandler(d.Graph).RegisterUserRoutes(api)
	handlers.NewFollowHandler(d.Graph).RegisterFollowRoutes(api)
	handlers.NewFeedHandler(d.Feed).RegisterFeedRoutes(api)
	handlers.NewPostHandler(d.Posts).RegisterPostRoutes(api)
	handlers.NewLikeHandler(d.Likes).RegisterLikeRoutes(api)
	handlers.NewNotificationHandler(d.Notifications, d.Users).RegisterNotificationRoutes(api)

	slog.Debug("All routes configured.")
}
