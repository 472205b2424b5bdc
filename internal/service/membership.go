package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sumire/taskboard/internal/domain"
)

// MembershipStore is the board membership contract.
type MembershipStore interface {
	Find(ctx context.Context, boardID, userID int64) (*domain.BoardMember, error)
	FindCreator(ctx context.Context, boardID int64) (*domain.BoardMember, error)
	List(ctx context.Context, boardID int64) ([]domain.BoardMember, error)
	Create(ctx context.Context, m domain.BoardMember) error
	SetRole(ctx context.Context, boardID, userID int64, role domain.Role) error
	Delete(ctx context.Context, boardID, userID int64) error
}

// InvitationStore is the invitation contract.
type InvitationStore interface {
	FindByID(ctx context.Context, id int64) (*domain.Invitation, error)
	FindByToken(ctx context.Context, token string) (*domain.Invitation, error)
	FindPending(ctx context.Context, boardID, recipientID int64) (*domain.Invitation, error)
	FindPublicByBoard(ctx context.Context, boardID int64) (*domain.Invitation, error)
	Create(ctx context.Context, inv domain.Invitation) (*domain.Invitation, error)
	SetStatus(ctx context.Context, id int64, status domain.InvitationStatus) error
	DeleteByToken(ctx context.Context, token string) error
}

// CardAssignments is the slice of card storage the authority needs when a
// member leaves a board.
type CardAssignments interface {
	RemoveMemberFromBoardCards(ctx context.Context, boardID, userID int64) ([]int64, error)
}

// MembershipService is the role state machine for board membership. Every
// transition it allows emits the matching notification event.
type MembershipService struct {
	members       MembershipStore
	invitations   InvitationStore
	cards         CardAssignments
	notifications *NotificationService
}

// NewMembershipService creates a new MembershipService.
func NewMembershipService(members MembershipStore, invitations InvitationStore, cards CardAssignments, notifications *NotificationService) *MembershipService {
	return &MembershipService{
		members:       members,
		invitations:   invitations,
		cards:         cards,
		notifications: notifications,
	}
}

// RoleOf returns the user's role on the board, or ErrNotFound.
func (s *MembershipService) RoleOf(ctx context.Context, boardID, userID int64) (domain.Role, error) {
	m, err := s.members.Find(ctx, boardID, userID)
	if err != nil {
		return "", err
	}
	return m.Role, nil
}

// Require returns ErrForbidden unless the user holds one of the roles.
func (s *MembershipService) Require(ctx context.Context, boardID, userID int64, roles ...domain.Role) error {
	role, err := s.RoleOf(ctx, boardID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrForbidden
		}
		return err
	}
	for _, r := range roles {
		if role == r {
			return nil
		}
	}
	return domain.ErrForbidden
}

// Creator returns the board's creator membership.
func (s *MembershipService) Creator(ctx context.Context, boardID int64) (*domain.BoardMember, error) {
	return s.members.FindCreator(ctx, boardID)
}

// Members lists the board's memberships.
func (s *MembershipService) Members(ctx context.Context, boardID int64) ([]domain.BoardMember, error) {
	return s.members.List(ctx, boardID)
}

func (s *MembershipService) requireManager(ctx context.Context, boardID, userID int64) error {
	role, err := s.RoleOf(ctx, boardID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrForbidden
		}
		return err
	}
	if !role.CanManageMembers() {
		return domain.ErrForbidden
	}
	return nil
}

// Invite asks a user to join a board. Only creators and owners may invite;
// an existing membership or pending invitation is a conflict. Membership is
// created at accept time, not here.
func (s *MembershipService) Invite(ctx context.Context, inviterID, boardID, recipientID int64) (*domain.Invitation, error) {
	if err := s.requireManager(ctx, boardID, inviterID); err != nil {
		return nil, err
	}

	if _, err := s.members.Find(ctx, boardID, recipientID); err == nil {
		return nil, fmt.Errorf("%w: user %d is already a member of board %d", domain.ErrConflict, recipientID, boardID)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if _, err := s.invitations.FindPending(ctx, boardID, recipientID); err == nil {
		return nil, fmt.Errorf("%w: user %d already has a pending invitation to board %d", domain.ErrConflict, recipientID, boardID)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	inv, err := s.invitations.Create(ctx, domain.Invitation{
		BoardID:     boardID,
		InviterID:   inviterID,
		RecipientID: &recipientID,
		Token:       uuid.NewString(),
		Public:      false,
		Status:      domain.InvitationPending,
	})
	if err != nil {
		return nil, err
	}

	pending := domain.ResponsePending
	_, err = s.notifications.Record(ctx, Event{
		ActorID:        inviterID,
		ImpactedUserID: recipientID,
		ObjectID:       boardID,
		Kind:           domain.KindInvite,
		ResponseStatus: &pending,
		InvitationID:   &inv.ID,
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// AcceptInvitation answers a pending invitation: membership is created with
// role member, the inviter is notified, and the original INVITE record's
// response moves to ACCEPTED. Re-answering a decided invitation conflicts.
func (s *MembershipService) AcceptInvitation(ctx context.Context, userID, invitationID int64) error {
	return s.answerInvitation(ctx, userID, invitationID, true)
}

// DeclineInvitation answers a pending invitation without creating a
// membership.
func (s *MembershipService) DeclineInvitation(ctx context.Context, userID, invitationID int64) error {
	return s.answerInvitation(ctx, userID, invitationID, false)
}

func (s *MembershipService) answerInvitation(ctx context.Context, userID, invitationID int64, accept bool) error {
	inv, err := s.invitations.FindByID(ctx, invitationID)
	if err != nil {
		return err
	}
	if inv.RecipientID == nil || *inv.RecipientID != userID {
		return domain.ErrForbidden
	}
	if inv.Status != domain.InvitationPending {
		return fmt.Errorf("%w: invitation %d already %s", domain.ErrConflict, invitationID, inv.Status)
	}

	status := domain.InvitationRejected
	response := domain.ResponseRejected
	if accept {
		status = domain.InvitationAccepted
		response = domain.ResponseAccepted
	}

	if err := s.invitations.SetStatus(ctx, invitationID, status); err != nil {
		return err
	}

	if accept {
		err := s.members.Create(ctx, domain.BoardMember{
			BoardID: inv.BoardID,
			UserID:  userID,
			Role:    domain.RoleMember,
		})
		if err != nil && !errors.Is(err, domain.ErrConflict) {
			return err
		}
	}

	_, err = s.notifications.Record(ctx, Event{
		ActorID:        userID,
		ImpactedUserID: inv.InviterID,
		ObjectID:       inv.BoardID,
		Kind:           domain.KindResponseInvitation,
		ResponseStatus: &response,
	})
	if err != nil {
		return err
	}

	return s.notifications.UpdateInviteResponse(ctx, inv.InviterID, userID, inv.BoardID, response)
}

// GenerateLink creates (or returns the existing) public invitation link
// token for a board. Creators and owners only.
func (s *MembershipService) GenerateLink(ctx context.Context, inviterID, boardID int64) (*domain.Invitation, error) {
	if err := s.requireManager(ctx, boardID, inviterID); err != nil {
		return nil, err
	}

	if inv, err := s.invitations.FindPublicByBoard(ctx, boardID); err == nil {
		return inv, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	return s.invitations.Create(ctx, domain.Invitation{
		BoardID:   boardID,
		InviterID: inviterID,
		Token:     uuid.NewString(),
		Public:    true,
		Status:    domain.InvitationPending,
	})
}

// RevokeLink deletes a board's public invitation link.
func (s *MembershipService) RevokeLink(ctx context.Context, inviterID, boardID int64, token string) error {
	if err := s.requireManager(ctx, boardID, inviterID); err != nil {
		return err
	}
	return s.invitations.DeleteByToken(ctx, token)
}

// AcceptViaLink joins a board through its public link. The link stays open
// for further joins; the inviter gets a via-link notification.
func (s *MembershipService) AcceptViaLink(ctx context.Context, userID int64, token string) error {
	inv, err := s.invitations.FindByToken(ctx, token)
	if err != nil {
		return err
	}
	if !inv.Public {
		return domain.ErrForbidden
	}

	if _, err := s.members.Find(ctx, inv.BoardID, userID); err == nil {
		return fmt.Errorf("%w: user %d is already a member of board %d", domain.ErrConflict, userID, inv.BoardID)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	err = s.members.Create(ctx, domain.BoardMember{
		BoardID: inv.BoardID,
		UserID:  userID,
		Role:    domain.RoleMember,
	})
	if err != nil {
		return err
	}

	_, err = s.notifications.Record(ctx, Event{
		ActorID:        userID,
		ImpactedUserID: inv.InviterID,
		ObjectID:       inv.BoardID,
		Kind:           domain.KindResponseInvitation,
		ViaLink:        true,
	})
	return err
}

// RemoveMember removes a user from a board: the membership row, every card
// assignment on the board, and the user's pending deadline records on those
// cards. The creator can never be removed.
func (s *MembershipService) RemoveMember(ctx context.Context, removerID, boardID, userID int64) error {
	if err := s.requireManager(ctx, boardID, removerID); err != nil {
		return err
	}

	target, err := s.members.Find(ctx, boardID, userID)
	if err != nil {
		return err
	}
	if target.Role == domain.RoleCreator {
		return fmt.Errorf("%w: the creator of board %d cannot be removed", domain.ErrConflict, boardID)
	}

	if err := s.members.Delete(ctx, boardID, userID); err != nil {
		return err
	}

	cardIDs, err := s.cards.RemoveMemberFromBoardCards(ctx, boardID, userID)
	if err != nil {
		return err
	}
	for _, cardID := range cardIDs {
		if err := s.notifications.DeleteDeadlineRecords(ctx, cardID, []int64{userID}); err != nil {
			return err
		}
	}

	boardCtx := domain.SourceBoard
	_, err = s.notifications.Record(ctx, Event{
		ActorID:        removerID,
		ImpactedUserID: userID,
		ObjectID:       boardID,
		Kind:           domain.KindRemove,
		SourceContext:  &boardCtx,
	})
	return err
}

// ChangeRole moves a member between owner and member. The creator role can
// be neither granted nor taken, and nobody escalates their own role.
func (s *MembershipService) ChangeRole(ctx context.Context, invokerID, boardID, userID int64, newRole domain.Role) error {
	if err := s.requireManager(ctx, boardID, invokerID); err != nil {
		return err
	}
	if newRole == domain.RoleCreator {
		return fmt.Errorf("%w: the creator role cannot be granted", domain.ErrConflict)
	}
	if newRole != domain.RoleOwner && newRole != domain.RoleMember {
		return fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, newRole)
	}

	target, err := s.members.Find(ctx, boardID, userID)
	if err != nil {
		return err
	}
	if target.Role == domain.RoleCreator {
		return fmt.Errorf("%w: the creator's role cannot be changed", domain.ErrConflict)
	}
	if invokerID == userID && newRole == domain.RoleOwner && target.Role == domain.RoleMember {
		return domain.ErrForbidden
	}

	if err := s.members.SetRole(ctx, boardID, userID, newRole); err != nil {
		return err
	}

	_, err = s.notifications.Record(ctx, Event{
		ActorID:        invokerID,
		ImpactedUserID: userID,
		ObjectID:       boardID,
		Kind:           domain.KindChangeRole,
		NewRole:        newRole,
	})
	return err
}
