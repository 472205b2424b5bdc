package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sumire/taskboard/internal/domain"
	"github.com/sumire/taskboard/internal/service"
)

// BoardHandler handles board and column endpoints.
type BoardHandler struct {
	boards *service.BoardService
}

// NewBoardHandler creates a new BoardHandler.
func NewBoardHandler(boards *service.BoardService) *BoardHandler {
	return &BoardHandler{boards: boards}
}

func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidInput
	}
	return id, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type createBoardRequest struct {
	Title       string `json:"title" validate:"required,max=128"`
	Description string `json:"description" validate:"max=2048"`
	Visibility  string `json:"visibility" validate:"omitempty,oneof=private public"`
}

// Create makes a new board owned by the caller.
func (h *BoardHandler) Create(c echo.Context) error {
	userID, _ := GetUserID(c)

	var req createBoardRequest
	if err := c.Bind(&req); err != nil {
		return domain.ErrInvalidInput
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	visibility := domain.BoardPrivate
	if req.Visibility != "" {
		visibility = domain.BoardVisibility(req.Visibility)
	}

	board, err := h.boards.Create(c.Request().Context(), userID, req.Title, optionalString(req.Description), visibility)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusCreated, board)
}

// List returns every board the caller belongs to.
func (h *BoardHandler) List(c echo.Context) error {
	userID, _ := GetUserID(c)
	boards, err := h.boards.ListForUser(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, boards)
}

// Get returns one board.
func (h *BoardHandler) Get(c echo.Context) error {
	userID, _ := GetUserID(c)
	boardID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	board, err := h.boards.Get(c.Request().Context(), userID, boardID)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, board)
}

type updateBoardRequest struct {
	Title       string `json:"title" validate:"required,max=128"`
	Description string `json:"description" validate:"max=2048"`
	Visibility  string `json:"visibility" validate:"required,oneof=private public"`
}

// Update rewrites a board's fields.
func (h *BoardHandler) Update(c echo.Context) error {
	userID, _ := GetUserID(c)
	boardID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req updateBoardRequest
	if err := c.Bind(&req); err != nil {
		return domain.ErrInvalidInput
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	err = h.boards.Update(c.Request().Context(), userID, domain.Board{
		ID:          boardID,
		Title:       req.Title,
		Description: optionalString(req.Description),
		Visibility:  domain.BoardVisibility(req.Visibility),
	})
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Delete tears the board down.
func (h *BoardHandler) Delete(c echo.Context) error {
	userID, _ := GetUserID(c)
	boardID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	if err := h.boards.Delete(c.Request().Context(), userID, boardID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Columns lists the board's columns.
func (h *BoardHandler) Columns(c echo.Context) error {
	userID, _ := GetUserID(c)
	boardID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	cols, err := h.boards.Columns(c.Request().Context(), userID, boardID)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, cols)
}

type createColumnRequest struct {
	Title string `json:"title" validate:"required,max=128"`
}

// CreateColumn adds a column to the board.
func (h *BoardHandler) CreateColumn(c echo.Context) error {
	userID, _ := GetUserID(c)
	boardID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req createColumnRequest
	if err := c.Bind(&req); err != nil {
		return domain.ErrInvalidInput
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	col, err := h.boards.CreateColumn(c.Request().Context(), userID, boardID, req.Title)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusCreated, col)
}

type moveCardRequest struct {
	ColumnID int64 `json:"column_id" validate:"required,gt=0"`
	Position int   `json:"position" validate:"gte=0"`
}

// MoveCard moves a card to a position inside a column.
func (h *BoardHandler) MoveCard(c echo.Context) error {
	userID, _ := GetUserID(c)
	cardID, err := pathID(c, "cardId")
	if err != nil {
		return err
	}

	var req moveCardRequest
	if err := c.Bind(&req); err != nil {
		return domain.ErrInvalidInput
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	err = h.boards.MoveCard(c.Request().Context(), userID, cardID, req.ColumnID, req.Position)
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
