package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sumire/taskboard/internal/domain"
	"github.com/sumire/taskboard/internal/service"
)

// CommentHandler handles card comment endpoints.
type CommentHandler struct {
	comments *service.CommentService
}

// NewCommentHandler creates a new CommentHandler.
func NewCommentHandler(comments *service.CommentService) *CommentHandler {
	return &CommentHandler{comments: comments}
}

// ListByCard returns a card's comments, oldest first.
func (h *CommentHandler) ListByCard(c echo.Context) error {
	userID, _ := GetUserID(c)
	cardID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	list, err := h.comments.ListByCard(c.Request().Context(), userID, cardID)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, list)
}

type createCommentRequest struct {
	ParentID *int64 `json:"parent_id" validate:"omitempty,gt=0"`
	Body     string `json:"body" validate:"required,max=4096"`
}

// Create posts a comment or a reply on a card.
func (h *CommentHandler) Create(c echo.Context) error {
	userID, _ := GetUserID(c)
	cardID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req createCommentRequest
	if err := c.Bind(&req); err != nil {
		return domain.ErrInvalidInput
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	comment, err := h.comments.Create(c.Request().Context(), userID, cardID, req.ParentID, req.Body)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusCreated, comment)
}
