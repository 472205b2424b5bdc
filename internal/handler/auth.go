package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sumire/taskboard/internal/domain"
	"github.com/sumire/taskboard/internal/service"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=2,max=64"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// Register creates a new account and returns the user with a token pair.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return domain.ErrInvalidInput
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	user, tokens, err := h.auth.Register(c.Request().Context(), req.Email, req.Username, req.Password)
	if err != nil {
		return err
	}

	return JSON(c, http.StatusCreated, map[string]any{
		"user":   user,
		"tokens": tokens,
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login checks credentials and returns the user with a token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return domain.ErrInvalidInput
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	user, tokens, err := h.auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return JSON(c, http.StatusOK, map[string]any{
		"user":   user,
		"tokens": tokens,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Refresh generates a new token pair from a refresh token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return domain.ErrInvalidInput
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	tokens, err := h.auth.RefreshAccessToken(req.RefreshToken)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, tokens)
}

// Me returns the currently authenticated user.
func (h *AuthHandler) Me(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return domain.ErrUnauthorized
	}

	user, err := h.auth.GetUser(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, user)
}
