package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sumire/taskboard/internal/deadline"
	"github.com/sumire/taskboard/internal/domain"
)

// NotificationStore is the persistence contract consumed by the composer.
type NotificationStore interface {
	Create(ctx context.Context, n domain.Notification) (int64, error)
	FindByID(ctx context.Context, id int64) (*domain.Notification, error)
	FindDeadlineByIdentity(ctx context.Context, actorID, impactedUserID, objectID int64) (*domain.Notification, error)
	UpdateDeadline(ctx context.Context, n domain.Notification) error
	UpdateInviteResponse(ctx context.Context, actorID, impactedUserID, objectID int64, from, to domain.ResponseStatus) error
	DeleteByIdentity(ctx context.Context, actorID, impactedUserID, objectID int64, kind domain.NotificationKind) error
}

// CardReader resolves cards for message composition.
type CardReader interface {
	FindByID(ctx context.Context, id int64) (*domain.Card, error)
}

// BoardReader resolves boards for message composition.
type BoardReader interface {
	FindByID(ctx context.Context, id int64) (*domain.Board, error)
}

// UserReader resolves actors for message composition.
type UserReader interface {
	FindByID(ctx context.Context, id int64) (*domain.User, error)
}

// Pusher delivers a payload to a user if they are connected.
type Pusher interface {
	PushToUser(userID int64, event string, payload any) bool
}

// Event carries the raw facts of something that should notify a user.
type Event struct {
	ActorID        int64
	ImpactedUserID int64
	ObjectID       int64
	Kind           domain.NotificationKind
	SourceContext  *domain.SourceContext
	ResponseStatus *domain.ResponseStatus
	InvitationID   *int64

	// DELETE events phrase differently for the creator of the object.
	ForCreator bool
	// RESPONSE_INVITATION via a public link has no accept/reject phrasing.
	ViaLink bool
	// CHANGE_ROLE carries the new role.
	NewRole domain.Role

	// DEADLINE fields.
	DeadlineAt   string
	NotifyBefore int
	NotifyUnit   domain.NotifyUnit
}

// NotificationService composes, persists and pushes notification records.
type NotificationService struct {
	store  NotificationStore
	cards  CardReader
	boards BoardReader
	users  UserReader
	pusher Pusher
	window *deadline.Window
	now    func() time.Time

	// cardLocks serializes deadline upserts per card so two concurrent
	// deadline edits cannot both miss the existing record and double-insert.
	cardLocks sync.Map
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(store NotificationStore, cards CardReader, boards BoardReader, users UserReader, pusher Pusher, window *deadline.Window) *NotificationService {
	return &NotificationService{
		store:  store,
		cards:  cards,
		boards: boards,
		users:  users,
		pusher: pusher,
		window: window,
		now:    time.Now,
	}
}

// Record builds the display message for the event, persists the record and
// returns it as stored. DEADLINE events upsert the single per-card record
// instead of inserting. The impacted user is pushed the fresh record when
// connected, except for deadline records, which the scheduler surfaces.
func (s *NotificationService) Record(ctx context.Context, ev Event) (*domain.Notification, error) {
	if ev.Kind == domain.KindDeadline {
		return s.recordDeadline(ctx, ev)
	}

	message, err := s.composeMessage(ctx, ev)
	if err != nil {
		return nil, err
	}

	id, err := s.store.Create(ctx, domain.Notification{
		ActorID:        ev.ActorID,
		ImpactedUserID: ev.ImpactedUserID,
		ObjectID:       ev.ObjectID,
		Kind:           ev.Kind,
		SourceContext:  ev.SourceContext,
		ResponseStatus: ev.ResponseStatus,
		InvitationID:   ev.InvitationID,
		Message:        message,
	})
	if err != nil {
		return nil, err
	}

	stored, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.pusher != nil {
		s.pusher.PushToUser(stored.ImpactedUserID, "new-notification", stored)
	}
	return stored, nil
}

// recordDeadline is the upsert branch: one DEADLINE record per
// (actor, impacted user, card), rewritten in place on every deadline edit.
func (s *NotificationService) recordDeadline(ctx context.Context, ev Event) (*domain.Notification, error) {
	mu := s.lockCard(ev.ObjectID)
	mu.Lock()
	defer mu.Unlock()

	card, err := s.cards.FindByID(ctx, ev.ObjectID)
	if err != nil {
		return nil, err
	}
	message := deadlineMessage(card.Title, ev.DeadlineAt)

	existing, err := s.store.FindDeadlineByIdentity(ctx, ev.ActorID, ev.ImpactedUserID, ev.ObjectID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if existing == nil {
		_, err := s.store.Create(ctx, domain.Notification{
			ActorID:        ev.ActorID,
			ImpactedUserID: ev.ImpactedUserID,
			ObjectID:       ev.ObjectID,
			Kind:           domain.KindDeadline,
			DeadlineAt:     ev.DeadlineAt,
			NotifyBefore:   ev.NotifyBefore,
			NotifyUnit:     ev.NotifyUnit,
			Shown:          false,
			Read:           false,
			Message:        message,
		})
		if err != nil {
			return nil, err
		}
		return s.store.FindDeadlineByIdentity(ctx, ev.ActorID, ev.ImpactedUserID, ev.ObjectID)
	}

	shown, read, err := s.deadlineFlags(ev)
	if err != nil {
		return nil, err
	}

	updated := *existing
	updated.DeadlineAt = ev.DeadlineAt
	updated.NotifyBefore = ev.NotifyBefore
	updated.NotifyUnit = ev.NotifyUnit
	updated.Message = message
	updated.Shown = shown
	updated.Read = read

	if err := s.store.UpdateDeadline(ctx, updated); err != nil {
		return nil, err
	}
	return s.store.FindDeadlineByIdentity(ctx, ev.ActorID, ev.ImpactedUserID, ev.ObjectID)
}

// deadlineFlags decides the shown/read state of an updated deadline record.
// A deadline already in the past, or one whose notify window has already
// opened, is treated as surfaced so no stale un-shown alert survives.
func (s *NotificationService) deadlineFlags(ev Event) (shown, read bool, err error) {
	now := s.now()

	past, err := s.window.IsPastDeadline(ev.DeadlineAt, now)
	if err != nil {
		return false, false, err
	}
	if past {
		return true, true, nil
	}

	due, err := s.window.IsDue(ev.DeadlineAt, ev.NotifyBefore, ev.NotifyUnit, now)
	if err != nil {
		return false, false, err
	}
	if due {
		return true, true, nil
	}
	return false, false, nil
}

func (s *NotificationService) lockCard(cardID int64) *sync.Mutex {
	mu, _ := s.cardLocks.LoadOrStore(cardID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// UpdateInviteResponse moves the original INVITE notification's response
// status from PENDING to the terminal value.
func (s *NotificationService) UpdateInviteResponse(ctx context.Context, inviterID, recipientID, boardID int64, to domain.ResponseStatus) error {
	return s.store.UpdateInviteResponse(ctx, inviterID, recipientID, boardID, domain.ResponsePending, to)
}

// DeleteDeadlineRecords removes the deadline records of the given users on
// a card. Called when a card or assignment goes away.
func (s *NotificationService) DeleteDeadlineRecords(ctx context.Context, cardID int64, userIDs []int64) error {
	for _, userID := range userIDs {
		if err := s.store.DeleteByIdentity(ctx, userID, userID, cardID, domain.KindDeadline); err != nil {
			return fmt.Errorf("delete deadline records for card %d: %w", cardID, err)
		}
	}
	return nil
}

// composeMessage resolves display entities and renders the per-kind
// template. Second person when the actor notifies themselves.
func (s *NotificationService) composeMessage(ctx context.Context, ev Event) (string, error) {
	actor, err := s.users.FindByID(ctx, ev.ActorID)
	if err != nil {
		return "", err
	}
	actorName := capitalize(actor.Username)
	self := ev.ActorID == ev.ImpactedUserID

	switch ev.Kind {
	case domain.KindAdd:
		card, board, err := s.cardAndBoard(ctx, ev.ObjectID)
		if err != nil {
			return "", err
		}
		if self {
			return fmt.Sprintf("You've just added yourself into card %s of board %s",
				strings.ToUpper(card.Title), strings.ToUpper(board.Title)), nil
		}
		return fmt.Sprintf("%s added you into card %s of board %s",
			actorName, strings.ToUpper(card.Title), strings.ToUpper(board.Title)), nil

	case domain.KindRemove:
		if ev.SourceContext != nil && *ev.SourceContext == domain.SourceCard {
			card, board, err := s.cardAndBoard(ctx, ev.ObjectID)
			if err != nil {
				return "", err
			}
			if self {
				return fmt.Sprintf("You've just removed yourself from card %s of board %s",
					strings.ToUpper(card.Title), strings.ToUpper(board.Title)), nil
			}
			return fmt.Sprintf("%s removed you from card %s of board %s",
				actorName, strings.ToUpper(card.Title), strings.ToUpper(board.Title)), nil
		}
		board, err := s.boards.FindByID(ctx, ev.ObjectID)
		if err != nil {
			return "", err
		}
		if self {
			return fmt.Sprintf("You've removed yourself from board %s", strings.ToUpper(board.Title)), nil
		}
		return fmt.Sprintf("%s removed you from board %s", actorName, strings.ToUpper(board.Title)), nil

	case domain.KindDelete:
		return s.deleteMessage(ctx, ev, actorName, self)

	case domain.KindInvite:
		board, err := s.boards.FindByID(ctx, ev.ObjectID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s invited you to join into board %s", actorName, strings.ToUpper(board.Title)), nil

	case domain.KindResponseInvitation:
		board, err := s.boards.FindByID(ctx, ev.ObjectID)
		if err != nil {
			return "", err
		}
		if ev.ViaLink {
			return fmt.Sprintf("%s has joined into your board %s via your invitation link",
				actorName, strings.ToUpper(board.Title)), nil
		}
		verb := "rejected"
		if ev.ResponseStatus != nil && *ev.ResponseStatus == domain.ResponseAccepted {
			verb = "accepted"
		}
		return fmt.Sprintf("%s %s your invitation to join into board %s",
			actorName, verb, strings.ToUpper(board.Title)), nil

	case domain.KindChangeRole:
		board, err := s.boards.FindByID(ctx, ev.ObjectID)
		if err != nil {
			return "", err
		}
		role := capitalize(string(ev.NewRole))
		if self {
			return fmt.Sprintf("You've changed your role in board %s to be %s",
				strings.ToUpper(board.Title), role), nil
		}
		return fmt.Sprintf("%s changed your role in board %s to be %s",
			actorName, strings.ToUpper(board.Title), role), nil

	case domain.KindComment:
		card, board, err := s.cardAndBoard(ctx, ev.ObjectID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s has commented in the card %s of board %s",
			actorName, strings.ToUpper(card.Title), strings.ToUpper(board.Title)), nil

	case domain.KindReply:
		card, board, err := s.cardAndBoard(ctx, ev.ObjectID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s has replied in a thread on card %s of board %s",
			actorName, strings.ToUpper(card.Title), strings.ToUpper(board.Title)), nil

	default:
		return "", fmt.Errorf("%w: notification kind %q", domain.ErrInvalidInput, ev.Kind)
	}
}

func (s *NotificationService) deleteMessage(ctx context.Context, ev Event, actorName string, self bool) (string, error) {
	var title, noun string
	if ev.SourceContext != nil && *ev.SourceContext == domain.SourceCard {
		card, err := s.cards.FindByID(ctx, ev.ObjectID)
		if err != nil {
			return "", err
		}
		title, noun = strings.ToUpper(card.Title), "card"
	} else {
		board, err := s.boards.FindByID(ctx, ev.ObjectID)
		if err != nil {
			return "", err
		}
		title, noun = strings.ToUpper(board.Title), "board"
	}

	relation := "the participant"
	if ev.ForCreator {
		relation = "the creator"
	}

	if self {
		return fmt.Sprintf("You've just removed the %s %s that you are %s.", noun, title, relation), nil
	}
	return fmt.Sprintf("The %s %s that you are %s, has been removed by %s.", noun, title, relation, actorName), nil
}

func (s *NotificationService) cardAndBoard(ctx context.Context, cardID int64) (*domain.Card, *domain.Board, error) {
	card, err := s.cards.FindByID(ctx, cardID)
	if err != nil {
		return nil, nil, err
	}
	board, err := s.boards.FindByID(ctx, card.BoardID)
	if err != nil {
		return nil, nil, err
	}
	return card, board, nil
}

func deadlineMessage(cardTitle, deadlineAt string) string {
	return fmt.Sprintf("You have a deadline task in card %s in %s", strings.ToUpper(cardTitle), deadlineAt)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
