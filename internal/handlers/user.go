package handlers

import (
	"net/http"

	"github.com/anonto42/minitwitter/backend/internal/middleware"
	"github.com/anonto42/minitwitter/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// UserHandler exposes public views of users and their follow lists.
type UserHandler struct {
	graph *services.GraphService
}

func NewUserHandler(graph *services.GraphService) *UserHandler {
	return &UserHandler{graph: graph}
}

func (h *UserHandler) RegisterUserRoutes(g *echo.Group) {
	g.GET("/users/me", h.GetProfile, middleware.RequireAuth)
	g.GET("/users/:id", h.GetUser)
	g.GET("/users/:id/followers", h.GetFollowers)
	g.GET("/users/:id/following", h.GetFollowing)
}

// GetUser returns a user with follow counts
func (h *UserHandler) GetUser(c echo.Context) error {
	summary, err := h.graph.UserSummary(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": summary})
}

// GetProfile returns the authenticated user
func (h *UserHandler) GetProfile(c echo.Context) error {
	summary, err := h.graph.UserSummary(c.Request().Context(), getUserIDFromContext(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": summary})
}

func (h *UserHandler) GetFollowers(c echo.Context) error {
	users, err := h.graph.FollowersOf(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": users})
}

func (h *UserHandler) GetFollowing(c echo.Context) error {
	users, err := h.graph.FollowingOf(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": users})
}
