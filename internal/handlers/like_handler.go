package handlers

import (
	"net/http"

	"github.com/anonto42/minitwitter/backend/internal/middleware"
	"github.com/anonto42/minitwitter/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// LikeHandler handles like-related HTTP requests
type LikeHandler struct {
	likes *services.LikeService
}

// NewLikeHandler creates a new LikeHandler
func NewLikeHandler(likes *services.LikeService) *LikeHandler {
	return &LikeHandler{likes: likes}
}

// RegisterLikeRoutes registers like-related routes
func (h *LikeHandler) RegisterLikeRoutes(g *echo.Group) {
	g.GET("/likes/post/:post_id", h.GetLikesForPost)
	g.POST("/likes/:post_id", h.LikePost, middleware.RequireAuth)
	g.DELETE("/likes/:post_id", h.UnlikePost, middleware.RequireAuth)
}

// LikePost likes a post
func (h *LikeHandler) LikePost(c echo.Context) error {
	like, err := h.likes.Like(c.Request().Context(), getUserIDFromContext(c), c.Param("post_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": like})
}

// UnlikePost unlikes a post
func (h *LikeHandler) UnlikePost(c echo.Context) error {
	if err := h.likes.Unlike(c.Request().Context(), getUserIDFromContext(c), c.Param("post_id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"liked": false}})
}

// GetLikesForPost lists a post's likes, newest first
func (h *LikeHandler) GetLikesForPost(c echo.Context) error {
	likes, err := h.likes.LikesOf(c.Request().Context(), c.Param("post_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    likes,
		"meta":    echo.Map{"count": len(likes)},
	})
}
