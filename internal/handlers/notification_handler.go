package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/anonto42/minitwitter/backend/internal/apperror"
	"github.com/anonto42/minitwitter/backend/internal/middleware"
	"github.com/anonto42/minitwitter/backend/internal/models"
	"github.com/anonto42/minitwitter/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	notificationRepository repositories.NotificationRepository
	userRepository         repositories.UserRepository
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifRepo repositories.NotificationRepository, userRepo repositories.UserRepository) *NotificationHandler {
	return &NotificationHandler{
		notificationRepository: notifRepo,
		userRepository:         userRepo,
	}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	n := g.Group("/notifications", middleware.RequireAuth)
	n.GET("", h.GetNotifications)
	n.GET("/unread-count", h.GetUnreadCount)
	n.PUT("/:id/read", h.MarkAsRead)
	n.PUT("/read-all", h.MarkAllAsRead)
}

// ActorSummary is the compact view of who triggered a notification
type ActorSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// EnrichedNotification includes actor info
type EnrichedNotification struct {
	models.Notification
	Actor *ActorSummary `json:"actor,omitempty"`
}

// enrichNotifications loads every actor in one batch.
func (h *NotificationHandler) enrichNotifications(c echo.Context, notifications []models.Notification) ([]EnrichedNotification, error) {
	ids := make([]string, 0, len(notifications))
	for _, n := range notifications {
		ids = append(ids, n.ActorID)
	}
	users, err := h.userRepository.GetUsersByIDs(c.Request().Context(), ids)
	if err != nil {
		return nil, apperror.Transient("load notification actors", err)
	}
	actors := make(map[string]*ActorSummary, len(users))
	for _, u := range users {
		actors[u.ID] = &ActorSummary{ID: u.ID, Username: u.Username}
	}

	enriched := make([]EnrichedNotification, len(notifications))
	for i, n := range notifications {
		enriched[i] = EnrichedNotification{Notification: n, Actor: actors[n.ActorID]}
	}
	return enriched, nil
}

// GetNotifications returns paginated notifications
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)

	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = 20
	}

	notifications, total, err := h.notificationRepository.GetByRecipientID(c.Request().Context(), currentUserID, page, limit)
	if err != nil {
		return apperror.Transient("list notifications", err)
	}
	enriched, err := h.enrichNotifications(c, notifications)
	if err != nil {
		return err
	}

	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"notifications": enriched,
		},
		"meta": echo.Map{
			"currentPage":     page,
			"totalPages":      totalPages,
			"totalItems":      total,
			"itemsPerPage":    limit,
			"hasNextPage":     page < totalPages,
			"hasPreviousPage": page > 1,
		},
	})
}

// GetUnreadCount returns the unread notification count
func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	count, err := h.notificationRepository.GetUnreadCount(c.Request().Context(), getUserIDFromContext(c))
	if err != nil {
		return apperror.Transient("count notifications", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"count": count}})
}

// MarkAsRead marks a notification as read
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	notifID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return apperror.Validation("Invalid notification ID.")
	}

	if err := h.notificationRepository.MarkAsRead(c.Request().Context(), getUserIDFromContext(c), uint(notifID)); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperror.NotFound("Notification not found.")
		}
		return apperror.Transient("mark notification read", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"success": true}})
}

// MarkAllAsRead marks all notifications as read
func (h *NotificationHandler) MarkAllAsRead(c echo.Context) error {
	if err := h.notificationRepository.MarkAllAsRead(c.Request().Context(), getUserIDFromContext(c)); err != nil {
		return apperror.Transient("mark notifications read", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"success": true}})
}
