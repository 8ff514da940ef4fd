package middleware

import (
	"strings"

	"github.com/anonto42/minitwitter/backend/internal/apperror"
	"github.com/anonto42/minitwitter/backend/internal/auth"
	"github.com/anonto42/minitwitter/backend/internal/models"
	"github.com/labstack/echo/v4"
)

// ContextKeyUserID holds the authenticated user's id in echo.Context.
const ContextKeyUserID = "user_id"

// TokenParser verifies a bearer token of the given type.
type TokenParser interface {
	Parse(tokenString, wantType string) (*models.JwtCustomClaims, error)
}

// JWTPrincipal resolves the caller from an optional "Bearer <token>" header.
// Requests without the header continue anonymously; a malformed or invalid
// token is rejected.
func JWTPrincipal(tokens TokenParser) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return next(c)
			}

			parts := strings.Fields(authHeader)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return apperror.ErrUnauthorized
			}

			claims, err := tokens.Parse(parts[1], auth.TokenTypeAccess)
			if err != nil {
				return apperror.ErrUnauthorized
			}

			c.Set(ContextKeyUserID, claims.UserID)
			return next(c)
		}
	}
}

// RequireAuth rejects anonymous callers.
func RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if UserID(c) == "" {
			return apperror.ErrUnauthorized
		}
		return next(c)
	}
}

// UserID returns the authenticated user's id, or "" for anonymous callers.
func UserID(c echo.Context) string {
	id, _ := c.Get(ContextKeyUserID).(string)
	return id
}
