package service

import (
	"context"

	"github.com/sumire/taskboard/internal/domain"
)

// InboxStore is the read side of notification storage.
type InboxStore interface {
	FindByID(ctx context.Context, id int64) (*domain.Notification, error)
	ListForUser(ctx context.Context, userID int64) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id int64) error
	MarkAllRead(ctx context.Context, userID int64) error
	DeleteByID(ctx context.Context, id int64) error
	DeleteAllForUser(ctx context.Context, userID int64) error
}

// InboxService serves a user's own notification list. Deadline records that
// the sweep has not surfaced yet are invisible here.
type InboxService struct {
	store InboxStore
}

// NewInboxService creates a new InboxService.
func NewInboxService(store InboxStore) *InboxService {
	return &InboxService{store: store}
}

// List returns the user's inbox, newest first.
func (s *InboxService) List(ctx context.Context, userID int64) ([]domain.Notification, error) {
	return s.store.ListForUser(ctx, userID)
}

// MarkRead marks one of the user's notifications read.
func (s *InboxService) MarkRead(ctx context.Context, userID, id int64) error {
	if err := s.requireOwn(ctx, userID, id); err != nil {
		return err
	}
	return s.store.MarkRead(ctx, id)
}

// MarkAllRead marks the user's whole inbox read.
func (s *InboxService) MarkAllRead(ctx context.Context, userID int64) error {
	return s.store.MarkAllRead(ctx, userID)
}

// Delete removes one of the user's notifications.
func (s *InboxService) Delete(ctx context.Context, userID, id int64) error {
	if err := s.requireOwn(ctx, userID, id); err != nil {
		return err
	}
	return s.store.DeleteByID(ctx, id)
}

// Clear removes the user's whole inbox.
func (s *InboxService) Clear(ctx context.Context, userID int64) error {
	return s.store.DeleteAllForUser(ctx, userID)
}

func (s *InboxService) requireOwn(ctx context.Context, userID, id int64) error {
	n, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if n.ImpactedUserID != userID {
		return domain.ErrForbidden
	}
	return nil
}
