package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/anonto42/minitwitter/backend/internal/apperror"
	"github.com/anonto42/minitwitter/backend/validators"
	"github.com/labstack/echo/v4"
)

// HTTPErrorHandler writes every error as
// {"success": false, "error": {"code": ..., "message": ...}}.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, code, message := classify(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"status", status,
			"error", err,
		)
	}

	body := echo.Map{
		"success": false,
		"error":   echo.Map{"code": code, "message": message},
	}
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		slog.Error("failed to write error response", "error", err)
	}
}

func classify(err error) (int, string, string) {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		message := appErr.Message
		if appErr.Kind == apperror.KindTransient {
			message = "The service is temporarily unavailable, please retry."
		}
		return apperror.HTTPStatus(appErr.Kind), appErr.Code, message
	}

	var verr *validators.Error
	if errors.As(err, &verr) {
		return http.StatusBadRequest, apperror.CodeValidation, verr.Message
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		message := fmt.Sprint(he.Message)
		switch he.Code {
		case http.StatusBadRequest:
			return he.Code, apperror.CodeValidation, message
		case http.StatusUnauthorized:
			return he.Code, apperror.CodeUnauthorized, message
		case http.StatusForbidden:
			return he.Code, apperror.CodeForbidden, message
		case http.StatusNotFound:
			return he.Code, apperror.CodeNotFound, message
		}
		if he.Code >= http.StatusInternalServerError {
			return he.Code, apperror.CodeTransient, message
		}
		return he.Code, "error", message
	}

	return http.StatusServiceUnavailable, apperror.CodeTransient, "The service is temporarily unavailable, please retry."
}
