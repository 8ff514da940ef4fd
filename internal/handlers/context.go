package handlers

import (
	"strconv"

	"github.com/anonto42/minitwitter/backend/internal/apperror"
	"github.com/anonto42/minitwitter/backend/internal/middleware"
	"github.com/labstack/echo/v4"
)

func getUserIDFromContext(c echo.Context) string {
	return middleware.UserID(c)
}

// queryInt reads an optional integer query parameter. Range checks belong to
// the caller; the feed clamps out-of-range windows instead of rejecting them.
func queryInt(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.Validation(name + " must be an integer.")
	}
	return n, nil
}

// bindAndValidate decodes the request body into req and runs the echo validator.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return apperror.Validation("Invalid request payload.")
	}
	return c.Validate(req)
}
