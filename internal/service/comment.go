package service

import (
	"context"

	"github.com/sumire/taskboard/internal/domain"
)

// CommentStore is the comment persistence contract.
type CommentStore interface {
	FindByID(ctx context.Context, id int64) (*domain.Comment, error)
	ListByCard(ctx context.Context, cardID int64) ([]domain.Comment, error)
	ListThreadAuthors(ctx context.Context, rootID int64) ([]int64, error)
	Create(ctx context.Context, c domain.Comment) (*domain.Comment, error)
}

// CommentService owns card comments and reply threads. A top-level comment
// notifies the card's other assignees; a reply notifies everyone who wrote
// in the thread.
type CommentService struct {
	comments      CommentStore
	cards         CardReader
	roles         *MembershipService
	notifications *NotificationService
}

// NewCommentService creates a new CommentService.
func NewCommentService(comments CommentStore, cards CardReader, roles *MembershipService, notifications *NotificationService) *CommentService {
	return &CommentService{
		comments:      comments,
		cards:         cards,
		roles:         roles,
		notifications: notifications,
	}
}

// ListByCard returns a card's comments to a board member.
func (s *CommentService) ListByCard(ctx context.Context, userID, cardID int64) ([]domain.Comment, error) {
	card, err := s.cards.FindByID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if _, err := s.roles.RoleOf(ctx, card.BoardID, userID); err != nil {
		return nil, domain.ErrForbidden
	}
	return s.comments.ListByCard(ctx, cardID)
}

// Create posts a comment or a reply and fans the notification out.
func (s *CommentService) Create(ctx context.Context, userID, cardID int64, parentID *int64, body string) (*domain.Comment, error) {
	card, err := s.cards.FindByID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if _, err := s.roles.RoleOf(ctx, card.BoardID, userID); err != nil {
		return nil, domain.ErrForbidden
	}

	if parentID != nil {
		parent, err := s.comments.FindByID(ctx, *parentID)
		if err != nil {
			return nil, err
		}
		if parent.CardID != cardID {
			return nil, domain.ErrInvalidInput
		}
		// Threads are one level deep; a reply to a reply lands in the
		// same thread.
		if parent.ParentID != nil {
			parentID = parent.ParentID
		}
	}

	comment, err := s.comments.Create(ctx, domain.Comment{
		CardID:   cardID,
		AuthorID: userID,
		ParentID: parentID,
		Body:     body,
	})
	if err != nil {
		return nil, err
	}

	if parentID == nil {
		err = s.notifyCardMembers(ctx, userID, card)
	} else {
		err = s.notifyThread(ctx, userID, cardID, *parentID)
	}
	if err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *CommentService) notifyCardMembers(ctx context.Context, authorID int64, card *domain.Card) error {
	for _, member := range card.Members {
		if member == authorID {
			continue
		}
		_, err := s.notifications.Record(ctx, Event{
			ActorID:        authorID,
			ImpactedUserID: member,
			ObjectID:       card.ID,
			Kind:           domain.KindComment,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *CommentService) notifyThread(ctx context.Context, authorID, cardID, rootID int64) error {
	authors, err := s.comments.ListThreadAuthors(ctx, rootID)
	if err != nil {
		return err
	}
	for _, author := range authors {
		if author == authorID {
			continue
		}
		_, err := s.notifications.Record(ctx, Event{
			ActorID:        authorID,
			ImpactedUserID: author,
			ObjectID:       cardID,
			Kind:           domain.KindReply,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
