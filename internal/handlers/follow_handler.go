package handlers

import (
	"net/http"

	"github.com/anonto42/minitwitter/backend/internal/middleware"
	"github.com/anonto42/minitwitter/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// FollowHandler handles follow/unfollow HTTP requests
type FollowHandler struct {
	graph *services.GraphService
}

// NewFollowHandler creates a new FollowHandler
func NewFollowHandler(graph *services.GraphService) *FollowHandler {
	return &FollowHandler{graph: graph}
}

// RegisterFollowRoutes registers follow-related routes. All of them act on
// the authenticated user.
func (h *FollowHandler) RegisterFollowRoutes(g *echo.Group) {
	follows := g.Group("/follows", middleware.RequireAuth)
	follows.GET("/followers", h.MyFollowers)
	follows.GET("/following", h.MyFollowing)
	follows.POST("/:user_id", h.FollowUser)
	follows.DELETE("/:user_id", h.UnfollowUser)
}

// FollowUser follows a user
func (h *FollowHandler) FollowUser(c echo.Context) error {
	follow, err := h.graph.Follow(c.Request().Context(), getUserIDFromContext(c), c.Param("user_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": follow})
}

// UnfollowUser unfollows a user
func (h *FollowHandler) UnfollowUser(c echo.Context) error {
	if err := h.graph.Unfollow(c.Request().Context(), getUserIDFromContext(c), c.Param("user_id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"following": false}})
}

func (h *FollowHandler) MyFollowers(c echo.Context) error {
	users, err := h.graph.FollowersOf(c.Request().Context(), getUserIDFromContext(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": users})
}

func (h *FollowHandler) MyFollowing(c echo.Context) error {
	users, err := h.graph.FollowingOf(c.Request().Context(), getUserIDFromContext(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": users})
}
