package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sumire/taskboard/internal/domain"
	"github.com/sumire/taskboard/internal/service"
)

// CardHandler handles card endpoints, deadline settings included.
type CardHandler struct {
	cards *service.CardService
}

// NewCardHandler creates a new CardHandler.
func NewCardHandler(cards *service.CardService) *CardHandler {
	return &CardHandler{cards: cards}
}

type cardRequest struct {
	ColumnID    int64  `json:"column_id" validate:"required,gt=0"`
	Title       string `json:"title" validate:"required,max=256"`
	Description string `json:"description" validate:"max=4096"`

	DeadlineAt   string `json:"deadline_at" validate:"omitempty,len=16"`
	NotifyBefore int    `json:"notify_before" validate:"gte=0"`
	NotifyUnit   string `json:"notify_unit" validate:"omitempty,oneof=minute hour day week"`
}

func (r cardRequest) toDomain() domain.Card {
	return domain.Card{
		ColumnID:     r.ColumnID,
		Title:        r.Title,
		Description:  optionalString(r.Description),
		DeadlineAt:   r.DeadlineAt,
		NotifyBefore: r.NotifyBefore,
		NotifyUnit:   domain.NotifyUnit(r.NotifyUnit),
	}
}

// Create makes a card in a column.
func (h *CardHandler) Create(c echo.Context) error {
	userID, _ := GetUserID(c)

	var req cardRequest
	if err := c.Bind(&req); err != nil {
		return domain.ErrInvalidInput
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	card, err := h.cards.Create(c.Request().Context(), userID, req.toDomain())
	if err != nil {
		return err
	}
	return JSON(c, http.StatusCreated, card)
}

// Get returns one card.
func (h *CardHandler) Get(c echo.Context) error {
	userID, _ := GetUserID(c)
	cardID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	card, err := h.cards.Get(c.Request().Context(), userID, cardID)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, card)
}

// ListByBoard returns the board's cards.
func (h *CardHandler) ListByBoard(c echo.Context) error {
	userID, _ := GetUserID(c)
	boardID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	cards, err := h.cards.ListByBoard(c.Request().Context(), userID, boardID)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, cards)
}

// Update rewrites a card, deadline settings included.
func (h *CardHandler) Update(c echo.Context) error {
	userID, _ := GetUserID(c)
	cardID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req cardRequest
	if err := c.Bind(&req); err != nil {
		return domain.ErrInvalidInput
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	card := req.toDomain()
	card.ID = cardID

	updated, err := h.cards.Update(c.Request().Context(), userID, card)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, updated)
}

// Delete removes a card and its dependents.
func (h *CardHandler) Delete(c echo.Context) error {
	userID, _ := GetUserID(c)
	cardID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	if err := h.cards.Delete(c.Request().Context(), userID, cardID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type assignRequest struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}

// Assign puts a board member on the card.
func (h *CardHandler) Assign(c echo.Context) error {
	userID, _ := GetUserID(c)
	cardID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req assignRequest
	if err := c.Bind(&req); err != nil {
		return domain.ErrInvalidInput
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := h.cards.Assign(c.Request().Context(), userID, cardID, req.UserID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Unassign takes a member off the card.
func (h *CardHandler) Unassign(c echo.Context) error {
	userID, _ := GetUserID(c)
	cardID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	memberID, err := pathID(c, "userId")
	if err != nil {
		return err
	}

	if err := h.cards.Unassign(c.Request().Context(), userID, cardID, memberID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
