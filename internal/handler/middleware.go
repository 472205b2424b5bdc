package handler

import (
	"log/slog"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sumire/taskboard/internal/domain"
	"github.com/sumire/taskboard/internal/service"
)

const (
	contextKeyUserID = "user_id"
)

// RequestLogger logs each HTTP request with structured fields.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			slog.Info("http request",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			)

			return err
		}
	}
}

// JWTAuth validates the Bearer token and injects the user ID into echo context.
func JWTAuth(auth *service.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, err := authenticate(auth, c)
			if err != nil {
				return err
			}
			c.Set(contextKeyUserID, userID)
			return next(c)
		}
	}
}

// authenticate resolves the user from the Bearer header, falling back to a
// token query parameter for clients that cannot set headers (websockets).
func authenticate(auth *service.AuthService, c echo.Context) (int64, error) {
	token := ""
	header := c.Request().Header.Get("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			return 0, domain.ErrUnauthorized
		}
		token = parts[1]
	} else {
		token = c.QueryParam("token")
	}
	if token == "" {
		return 0, domain.ErrUnauthorized
	}

	userID, err := auth.ValidateToken(token)
	if err != nil {
		return 0, domain.ErrUnauthorized
	}
	return userID, nil
}

// GetUserID extracts the authenticated user ID from echo context.
func GetUserID(c echo.Context) (int64, bool) {
	id, ok := c.Get(contextKeyUserID).(int64)
	return id, ok
}
