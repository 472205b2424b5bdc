package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sumire/taskboard/internal/domain"
)

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// CardStore is the card persistence contract.
type CardStore interface {
	FindByID(ctx context.Context, id int64) (*domain.Card, error)
	ListByBoard(ctx context.Context, boardID int64) ([]domain.Card, error)
	Create(ctx context.Context, card domain.Card) (*domain.Card, error)
	Update(ctx context.Context, card domain.Card) error
	Delete(ctx context.Context, id int64) error
	AddMember(ctx context.Context, cardID, userID int64) error
	RemoveMember(ctx context.Context, cardID, userID int64) error
}

// ColumnOrder is the slice of column storage the card lifecycle needs.
type ColumnOrder interface {
	FindColumnByID(ctx context.Context, id int64) (*domain.Column, error)
	AppendCardToOrder(ctx context.Context, columnID, cardID int64) error
	RemoveCardFromOrder(ctx context.Context, columnID, cardID int64) error
}

// CardService owns the card lifecycle: creation, deadline edits, assignment
// and the delete cascade. Deadline edits keep each assignee's single
// deadline record in step with the card.
type CardService struct {
	cards         CardStore
	columns       ColumnOrder
	comments      CommentPurger
	roles         *MembershipService
	notifications *NotificationService
}

// NewCardService creates a new CardService.
func NewCardService(cards CardStore, columns ColumnOrder, comments CommentPurger, roles *MembershipService, notifications *NotificationService) *CardService {
	return &CardService{
		cards:         cards,
		columns:       columns,
		comments:      comments,
		roles:         roles,
		notifications: notifications,
	}
}

// Get returns a card to a board member.
func (s *CardService) Get(ctx context.Context, userID, cardID int64) (*domain.Card, error) {
	card, err := s.cards.FindByID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if _, err := s.roles.RoleOf(ctx, card.BoardID, userID); err != nil {
		return nil, domain.ErrForbidden
	}
	return card, nil
}

// ListByBoard returns the board's cards to a member.
func (s *CardService) ListByBoard(ctx context.Context, userID, boardID int64) ([]domain.Card, error) {
	if _, err := s.roles.RoleOf(ctx, boardID, userID); err != nil {
		return nil, domain.ErrForbidden
	}
	return s.cards.ListByBoard(ctx, boardID)
}

// Create makes a card in a column and appends it to the column's order.
func (s *CardService) Create(ctx context.Context, userID int64, card domain.Card) (*domain.Card, error) {
	col, err := s.columns.FindColumnByID(ctx, card.ColumnID)
	if err != nil {
		return nil, err
	}
	if _, err := s.roles.RoleOf(ctx, col.BoardID, userID); err != nil {
		return nil, domain.ErrForbidden
	}
	card.BoardID = col.BoardID

	stored, err := s.cards.Create(ctx, card)
	if err != nil {
		return nil, err
	}
	if err := s.columns.AppendCardToOrder(ctx, card.ColumnID, stored.ID); err != nil {
		return nil, err
	}
	return stored, nil
}

// Update rewrites the card's fields. When the deadline settings change,
// every assignee's deadline record is rewritten in place; clearing the
// deadline drops those records instead.
func (s *CardService) Update(ctx context.Context, userID int64, card domain.Card) (*domain.Card, error) {
	current, err := s.cards.FindByID(ctx, card.ID)
	if err != nil {
		return nil, err
	}
	if _, err := s.roles.RoleOf(ctx, current.BoardID, userID); err != nil {
		return nil, domain.ErrForbidden
	}

	if err := s.cards.Update(ctx, card); err != nil {
		return nil, err
	}

	deadlineChanged := card.DeadlineAt != current.DeadlineAt ||
		card.NotifyBefore != current.NotifyBefore ||
		card.NotifyUnit != current.NotifyUnit

	switch {
	case deadlineChanged && card.HasDeadline():
		for _, assignee := range current.Members {
			_, err := s.notifications.Record(ctx, Event{
				ActorID:        assignee,
				ImpactedUserID: assignee,
				ObjectID:       card.ID,
				Kind:           domain.KindDeadline,
				DeadlineAt:     card.DeadlineAt,
				NotifyBefore:   card.NotifyBefore,
				NotifyUnit:     card.NotifyUnit,
			})
			if err != nil {
				return nil, err
			}
		}
	case deadlineChanged:
		if err := s.notifications.DeleteDeadlineRecords(ctx, card.ID, current.Members); err != nil {
			return nil, err
		}
	}

	return s.cards.FindByID(ctx, card.ID)
}

// Delete removes a card: deadline records and comments go with it, every
// assignee gets a delete notification, and the column order is trimmed. The
// notifications are recorded before the row disappears so the message can
// still name the card.
func (s *CardService) Delete(ctx context.Context, userID, cardID int64) error {
	card, err := s.cards.FindByID(ctx, cardID)
	if err != nil {
		return err
	}
	if _, err := s.roles.RoleOf(ctx, card.BoardID, userID); err != nil {
		return domain.ErrForbidden
	}

	if err := s.notifications.DeleteDeadlineRecords(ctx, cardID, card.Members); err != nil {
		return err
	}

	cardCtx := domain.SourceCard
	for _, assignee := range card.Members {
		_, err := s.notifications.Record(ctx, Event{
			ActorID:        userID,
			ImpactedUserID: assignee,
			ObjectID:       cardID,
			Kind:           domain.KindDelete,
			SourceContext:  &cardCtx,
		})
		if err != nil {
			return err
		}
	}

	// The board creator hears about it too, unless they were an assignee.
	creator, err := s.roles.Creator(ctx, card.BoardID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if creator != nil && !contains(card.Members, creator.UserID) {
		_, err := s.notifications.Record(ctx, Event{
			ActorID:        userID,
			ImpactedUserID: creator.UserID,
			ObjectID:       cardID,
			Kind:           domain.KindDelete,
			SourceContext:  &cardCtx,
			ForCreator:     true,
		})
		if err != nil {
			return err
		}
	}

	if err := s.comments.DeleteByCard(ctx, cardID); err != nil {
		return err
	}
	if err := s.columns.RemoveCardFromOrder(ctx, card.ColumnID, cardID); err != nil {
		return err
	}
	return s.cards.Delete(ctx, cardID)
}

// Assign puts a board member on the card. The assignee is notified, and if
// the card carries a deadline they get a deadline record immediately.
func (s *CardService) Assign(ctx context.Context, userID, cardID, assigneeID int64) error {
	card, err := s.cards.FindByID(ctx, cardID)
	if err != nil {
		return err
	}
	if _, err := s.roles.RoleOf(ctx, card.BoardID, userID); err != nil {
		return domain.ErrForbidden
	}
	if _, err := s.roles.RoleOf(ctx, card.BoardID, assigneeID); err != nil {
		return fmt.Errorf("%w: user %d is not a member of board %d", domain.ErrInvalidInput, assigneeID, card.BoardID)
	}

	if err := s.cards.AddMember(ctx, cardID, assigneeID); err != nil {
		return err
	}

	cardCtx := domain.SourceCard
	_, err = s.notifications.Record(ctx, Event{
		ActorID:        userID,
		ImpactedUserID: assigneeID,
		ObjectID:       cardID,
		Kind:           domain.KindAdd,
		SourceContext:  &cardCtx,
	})
	if err != nil {
		return err
	}

	if !card.HasDeadline() {
		return nil
	}
	_, err = s.notifications.Record(ctx, Event{
		ActorID:        assigneeID,
		ImpactedUserID: assigneeID,
		ObjectID:       cardID,
		Kind:           domain.KindDeadline,
		DeadlineAt:     card.DeadlineAt,
		NotifyBefore:   card.NotifyBefore,
		NotifyUnit:     card.NotifyUnit,
	})
	return err
}

// Unassign takes a member off the card and drops their deadline record.
func (s *CardService) Unassign(ctx context.Context, userID, cardID, memberID int64) error {
	card, err := s.cards.FindByID(ctx, cardID)
	if err != nil {
		return err
	}
	if _, err := s.roles.RoleOf(ctx, card.BoardID, userID); err != nil {
		return domain.ErrForbidden
	}

	if err := s.cards.RemoveMember(ctx, cardID, memberID); err != nil {
		return err
	}
	if err := s.notifications.DeleteDeadlineRecords(ctx, cardID, []int64{memberID}); err != nil {
		return err
	}

	cardCtx := domain.SourceCard
	_, err = s.notifications.Record(ctx, Event{
		ActorID:        userID,
		ImpactedUserID: memberID,
		ObjectID:       cardID,
		Kind:           domain.KindRemove,
		SourceContext:  &cardCtx,
	})
	return err
}
