package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sumire/taskboard/internal/domain"
)

// BoardStore is the board and column persistence contract.
type BoardStore interface {
	FindByID(ctx context.Context, id int64) (*domain.Board, error)
	ListForUser(ctx context.Context, userID int64) ([]domain.Board, error)
	ListForUserByRole(ctx context.Context, userID int64, role domain.Role) ([]domain.Board, error)
	Create(ctx context.Context, board domain.Board) (*domain.Board, error)
	Update(ctx context.Context, board domain.Board) error
	Delete(ctx context.Context, id int64) error

	FindColumnByID(ctx context.Context, id int64) (*domain.Column, error)
	ListColumns(ctx context.Context, boardID int64) ([]domain.Column, error)
	CreateColumn(ctx context.Context, col domain.Column) (*domain.Column, error)
	SetCardOrder(ctx context.Context, columnID int64, order []int64) error
	RemoveCardFromOrder(ctx context.Context, columnID, cardID int64) error
	DeleteColumns(ctx context.Context, boardID int64) error
}

// BoardCardStore is the card persistence the board cascade walks.
type BoardCardStore interface {
	FindByID(ctx context.Context, id int64) (*domain.Card, error)
	ListByBoard(ctx context.Context, boardID int64) ([]domain.Card, error)
	DeleteByBoard(ctx context.Context, boardID int64) error
	SetColumn(ctx context.Context, cardID, columnID int64) error
}

// CommentPurger removes card comments during the cascade.
type CommentPurger interface {
	DeleteByCard(ctx context.Context, cardID int64) error
}

// InvitationPurger removes board invitations during the cascade.
type InvitationPurger interface {
	DeleteByBoard(ctx context.Context, boardID int64) error
}

// MembershipPurger is the slice of membership storage the board lifecycle
// touches directly.
type MembershipPurger interface {
	Find(ctx context.Context, boardID, userID int64) (*domain.BoardMember, error)
	List(ctx context.Context, boardID int64) ([]domain.BoardMember, error)
	Create(ctx context.Context, m domain.BoardMember) error
	DeleteByBoard(ctx context.Context, boardID int64) error
}

// BoardService owns board lifecycle and column layout.
type BoardService struct {
	boards        BoardStore
	cards         BoardCardStore
	comments      CommentPurger
	invitations   InvitationPurger
	memberships   MembershipPurger
	roles         *MembershipService
	notifications *NotificationService
}

// NewBoardService creates a new BoardService.
func NewBoardService(boards BoardStore, cards BoardCardStore, comments CommentPurger, invitations InvitationPurger, memberships MembershipPurger, roles *MembershipService, notifications *NotificationService) *BoardService {
	return &BoardService{
		boards:        boards,
		cards:         cards,
		comments:      comments,
		invitations:   invitations,
		memberships:   memberships,
		roles:         roles,
		notifications: notifications,
	}
}

// Create makes a board and its creator membership.
func (s *BoardService) Create(ctx context.Context, userID int64, title string, description *string, visibility domain.BoardVisibility) (*domain.Board, error) {
	board, err := s.boards.Create(ctx, domain.Board{
		Title:       title,
		Slug:        slugify(title),
		Description: description,
		Visibility:  visibility,
	})
	if err != nil {
		return nil, err
	}

	err = s.memberships.Create(ctx, domain.BoardMember{
		BoardID: board.ID,
		UserID:  userID,
		Role:    domain.RoleCreator,
	})
	if err != nil {
		return nil, err
	}
	return board, nil
}

// Get returns the board to a member.
func (s *BoardService) Get(ctx context.Context, userID, boardID int64) (*domain.Board, error) {
	if _, err := s.roles.RoleOf(ctx, boardID, userID); err != nil {
		return nil, domain.ErrForbidden
	}
	return s.boards.FindByID(ctx, boardID)
}

// ListForUser returns every board the user belongs to.
func (s *BoardService) ListForUser(ctx context.Context, userID int64) ([]domain.Board, error) {
	return s.boards.ListForUser(ctx, userID)
}

// Update rewrites the board's mutable fields. Creators and owners only.
func (s *BoardService) Update(ctx context.Context, userID int64, board domain.Board) error {
	if err := s.roles.requireManager(ctx, board.ID, userID); err != nil {
		return err
	}
	current, err := s.boards.FindByID(ctx, board.ID)
	if err != nil {
		return err
	}
	if board.Title != current.Title {
		board.Slug = slugify(board.Title)
	} else {
		board.Slug = current.Slug
	}
	return s.boards.Update(ctx, board)
}

// Delete tears a board down completely. Only the creator may delete; the
// notifications go out before the rows disappear so the messages can still
// name the board. Creator and members get differently phrased records, and
// every assignee's deadline record on the board's cards is dropped.
func (s *BoardService) Delete(ctx context.Context, userID, boardID int64) error {
	member, err := s.memberships.Find(ctx, boardID, userID)
	if err != nil {
		return err
	}
	if member.Role != domain.RoleCreator {
		return domain.ErrForbidden
	}

	cards, err := s.cards.ListByBoard(ctx, boardID)
	if err != nil {
		return err
	}
	members, err := s.memberships.List(ctx, boardID)
	if err != nil {
		return err
	}

	for _, card := range cards {
		if err := s.notifications.DeleteDeadlineRecords(ctx, card.ID, card.Members); err != nil {
			return err
		}
	}

	boardCtx := domain.SourceBoard
	for _, m := range members {
		_, err := s.notifications.Record(ctx, Event{
			ActorID:        userID,
			ImpactedUserID: m.UserID,
			ObjectID:       boardID,
			Kind:           domain.KindDelete,
			SourceContext:  &boardCtx,
			ForCreator:     m.Role == domain.RoleCreator,
		})
		if err != nil {
			return err
		}
	}

	if err := s.invitations.DeleteByBoard(ctx, boardID); err != nil {
		return err
	}
	for _, card := range cards {
		if err := s.comments.DeleteByCard(ctx, card.ID); err != nil {
			return err
		}
	}
	if err := s.cards.DeleteByBoard(ctx, boardID); err != nil {
		return err
	}
	if err := s.boards.DeleteColumns(ctx, boardID); err != nil {
		return err
	}
	if err := s.memberships.DeleteByBoard(ctx, boardID); err != nil {
		return err
	}
	return s.boards.Delete(ctx, boardID)
}

// Columns lists the board's columns for a member.
func (s *BoardService) Columns(ctx context.Context, userID, boardID int64) ([]domain.Column, error) {
	if _, err := s.roles.RoleOf(ctx, boardID, userID); err != nil {
		return nil, domain.ErrForbidden
	}
	return s.boards.ListColumns(ctx, boardID)
}

// CreateColumn adds a column to the board. Any member may.
func (s *BoardService) CreateColumn(ctx context.Context, userID, boardID int64, title string) (*domain.Column, error) {
	if _, err := s.roles.RoleOf(ctx, boardID, userID); err != nil {
		return nil, domain.ErrForbidden
	}
	return s.boards.CreateColumn(ctx, domain.Column{BoardID: boardID, Title: title})
}

// MoveCard moves a card to a position inside a column, which may be the one
// it is already in. Both column orders are rewritten.
func (s *BoardService) MoveCard(ctx context.Context, userID, cardID, toColumnID int64, position int) error {
	target, err := s.boards.FindColumnByID(ctx, toColumnID)
	if err != nil {
		return err
	}
	if _, err := s.roles.RoleOf(ctx, target.BoardID, userID); err != nil {
		return domain.ErrForbidden
	}

	card, err := s.cards.FindByID(ctx, cardID)
	if err != nil {
		return err
	}
	if card.BoardID != target.BoardID {
		return fmt.Errorf("%w: card %d does not belong to board %d", domain.ErrInvalidInput, cardID, target.BoardID)
	}

	if card.ColumnID != toColumnID {
		if err := s.boards.RemoveCardFromOrder(ctx, card.ColumnID, cardID); err != nil {
			return err
		}
		if err := s.cards.SetColumn(ctx, cardID, toColumnID); err != nil {
			return err
		}
	}

	order := make([]int64, 0, len(target.CardOrder)+1)
	for _, id := range target.CardOrder {
		if id != cardID {
			order = append(order, id)
		}
	}
	if position < 0 || position > len(order) {
		position = len(order)
	}
	order = append(order[:position], append([]int64{cardID}, order[position:]...)...)

	return s.boards.SetCardOrder(ctx, toColumnID, order)
}

func slugify(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = "board"
	}
	return slug + "-" + uuid.NewString()[:8]
}
