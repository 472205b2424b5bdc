package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sumire/taskboard/internal/service"
)

// NotificationHandler handles the caller's notification inbox.
type NotificationHandler struct {
	inbox *service.InboxService
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(inbox *service.InboxService) *NotificationHandler {
	return &NotificationHandler{inbox: inbox}
}

// List returns the caller's inbox, newest first.
func (h *NotificationHandler) List(c echo.Context) error {
	userID, _ := GetUserID(c)
	list, err := h.inbox.List(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, list)
}

// MarkRead marks one notification read.
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	userID, _ := GetUserID(c)
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	if err := h.inbox.MarkRead(c.Request().Context(), userID, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// MarkAllRead marks the whole inbox read.
func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	userID, _ := GetUserID(c)
	if err := h.inbox.MarkAllRead(c.Request().Context(), userID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Delete removes one notification.
func (h *NotificationHandler) Delete(c echo.Context) error {
	userID, _ := GetUserID(c)
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	if err := h.inbox.Delete(c.Request().Context(), userID, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Clear removes the whole inbox.
func (h *NotificationHandler) Clear(c echo.Context) error {
	userID, _ := GetUserID(c)
	if err := h.inbox.Clear(c.Request().Context(), userID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
