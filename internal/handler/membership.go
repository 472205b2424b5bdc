package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sumire/taskboard/internal/domain"
	"github.com/sumire/taskboard/internal/service"
)

// MembershipHandler handles board membership and invitation endpoints.
type MembershipHandler struct {
	memberships *service.MembershipService
}

// NewMembershipHandler creates a new MembershipHandler.
func NewMembershipHandler(memberships *service.MembershipService) *MembershipHandler {
	return &MembershipHandler{memberships: memberships}
}

// List returns the board's members.
func (h *MembershipHandler) List(c echo.Context) error {
	userID, _ := GetUserID(c)
	boardID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	if _, err := h.memberships.RoleOf(c.Request().Context(), boardID, userID); err != nil {
		return domain.ErrForbidden
	}

	members, err := h.memberships.Members(c.Request().Context(), boardID)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, members)
}

type inviteRequest struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}

// Invite asks a user to join the board.
func (h *MembershipHandler) Invite(c echo.Context) error {
	userID, _ := GetUserID(c)
	boardID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req inviteRequest
	if err := c.Bind(&req); err != nil {
		return domain.ErrInvalidInput
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	inv, err := h.memberships.Invite(c.Request().Context(), userID, boardID, req.UserID)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusCreated, inv)
}

type respondRequest struct {
	Accept bool `json:"accept"`
}

// Respond answers a pending invitation addressed to the caller.
func (h *MembershipHandler) Respond(c echo.Context) error {
	userID, _ := GetUserID(c)
	invitationID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req respondRequest
	if err := c.Bind(&req); err != nil {
		return domain.ErrInvalidInput
	}

	ctx := c.Request().Context()
	if req.Accept {
		err = h.memberships.AcceptInvitation(ctx, userID, invitationID)
	} else {
		err = h.memberships.DeclineInvitation(ctx, userID, invitationID)
	}
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// GenerateLink creates or returns the board's public invitation link.
func (h *MembershipHandler) GenerateLink(c echo.Context) error {
	userID, _ := GetUserID(c)
	boardID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	inv, err := h.memberships.GenerateLink(c.Request().Context(), userID, boardID)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusCreated, inv)
}

// RevokeLink deletes the board's public invitation link.
func (h *MembershipHandler) RevokeLink(c echo.Context) error {
	userID, _ := GetUserID(c)
	boardID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	token := c.Param("token")
	if token == "" {
		return domain.ErrInvalidInput
	}

	if err := h.memberships.RevokeLink(c.Request().Context(), userID, boardID, token); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// JoinViaLink joins the caller to a board through a public link token.
func (h *MembershipHandler) JoinViaLink(c echo.Context) error {
	userID, _ := GetUserID(c)
	token := c.Param("token")
	if token == "" {
		return domain.ErrInvalidInput
	}

	if err := h.memberships.AcceptViaLink(c.Request().Context(), userID, token); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Remove takes a member off the board.
func (h *MembershipHandler) Remove(c echo.Context) error {
	userID, _ := GetUserID(c)
	boardID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	memberID, err := pathID(c, "userId")
	if err != nil {
		return err
	}

	if err := h.memberships.RemoveMember(c.Request().Context(), userID, boardID, memberID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type changeRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=owner member"`
}

// ChangeRole moves a member between owner and member.
func (h *MembershipHandler) ChangeRole(c echo.Context) error {
	userID, _ := GetUserID(c)
	boardID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	memberID, err := pathID(c, "userId")
	if err != nil {
		return err
	}

	var req changeRoleRequest
	if err := c.Bind(&req); err != nil {
		return domain.ErrInvalidInput
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	err = h.memberships.ChangeRole(c.Request().Context(), userID, boardID, memberID, domain.Role(req.Role))
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
