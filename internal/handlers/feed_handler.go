package handlers

import (
	"net/http"

	"github.com/anonto42/minitwitter/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// FeedHandler serves the caller's feed at GET /posts.
type FeedHandler struct {
	feed services.FeedComposer
}

func NewFeedHandler(feed services.FeedComposer) *FeedHandler {
	return &FeedHandler{feed: feed}
}

func (h *FeedHandler) RegisterFeedRoutes(g *echo.Group) {
	g.GET("/posts", h.GetFeed)
}

// GetFeed returns posts by followed authors. Query parameters: tag, search,
// ordering, limit, offset. Anonymous callers get an empty page.
func (h *FeedHandler) GetFeed(c echo.Context) error {
	ordering, err := services.ParseOrdering(c.QueryParam("ordering"))
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		return err
	}

	page, err := h.feed.ComposeFeed(c.Request().Context(), getUserIDFromContext(c), services.FeedQuery{
		Tag:      c.QueryParam("tag"),
		Search:   c.QueryParam("search"),
		Ordering: ordering,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    page.Results,
		"meta": echo.Map{
			"count":       page.Count,
			"limit":       page.Limit,
			"offset":      page.Offset,
			"hasNextPage": page.Offset+len(page.Results) < page.Count,
		},
	})
}
