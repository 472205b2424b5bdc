package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sumire/taskboard/internal/domain"
)

const notificationColumns = `id, actor_id, impacted_user_id, object_id, kind, source_context,
	 response_status, invitation_id, deadline_at, notify_before, notify_unit,
	 shown, read, message, happened_at, updated_at`

// NotificationRepository persists notification records.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a record and returns its server-assigned id.
func (r *NotificationRepository) Create(ctx context.Context, n domain.Notification) (int64, error) {
	var id int64
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO notifications
		   (actor_id, impacted_user_id, object_id, kind, source_context, response_status,
		    invitation_id, deadline_at, notify_before, notify_unit, shown, read, message, happened_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
		 RETURNING id`,
		n.ActorID, n.ImpactedUserID, n.ObjectID, n.Kind, n.SourceContext, n.ResponseStatus,
		n.InvitationID, n.DeadlineAt, n.NotifyBefore, n.NotifyUnit, n.Shown, n.Read, n.Message,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create notification: %w", err)
	}
	return id, nil
}

// FindByID retrieves a record by id.
func (r *NotificationRepository) FindByID(ctx context.Context, id int64) (*domain.Notification, error) {
	var n domain.Notification
	err := r.db.GetContext(ctx, &n,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find notification by id %d: %w", id, err)
	}
	return &n, nil
}

// FindDeadlineByIdentity retrieves the single DEADLINE record of an
// (actor, impacted user, object) triple.
func (r *NotificationRepository) FindDeadlineByIdentity(ctx context.Context, actorID, impactedUserID, objectID int64) (*domain.Notification, error) {
	var n domain.Notification
	err := r.db.GetContext(ctx, &n,
		`SELECT `+notificationColumns+`
		 FROM notifications
		 WHERE actor_id = $1 AND impacted_user_id = $2 AND object_id = $3 AND kind = $4`,
		actorID, impactedUserID, objectID, domain.KindDeadline)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find deadline notification: %w", err)
	}
	return &n, nil
}

// FindByIdentity retrieves a record by identity, kind and optional context.
func (r *NotificationRepository) FindByIdentity(ctx context.Context, actorID, impactedUserID, objectID int64, kind domain.NotificationKind, sourceContext *domain.SourceContext) (*domain.Notification, error) {
	var n domain.Notification
	err := r.db.GetContext(ctx, &n,
		`SELECT `+notificationColumns+`
		 FROM notifications
		 WHERE actor_id = $1 AND impacted_user_id = $2 AND object_id = $3 AND kind = $4
		   AND ($5::text IS NULL OR source_context = $5)
		 ORDER BY happened_at DESC
		 LIMIT 1`,
		actorID, impactedUserID, objectID, kind, sourceContext)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find notification by identity: %w", err)
	}
	return &n, nil
}

// ListForUser returns the user's inbox, newest first: surfaced deadline
// records plus every non-deadline record addressed to the user. Pending
// deadline alerts stay out of the inbox until the sweep shows them.
func (r *NotificationRepository) ListForUser(ctx context.Context, userID int64) ([]domain.Notification, error) {
	var list []domain.Notification
	err := r.db.SelectContext(ctx, &list,
		`SELECT `+notificationColumns+`
		 FROM notifications
		 WHERE (actor_id = $1 AND impacted_user_id = $1 AND kind = $2 AND shown = TRUE)
		    OR (impacted_user_id = $1 AND kind <> $2)
		 ORDER BY happened_at DESC`,
		userID, domain.KindDeadline)
	if err != nil {
		return nil, fmt.Errorf("list notifications for user %d: %w", userID, err)
	}
	return list, nil
}

// ListPendingDeadlines returns the user's not-yet-surfaced deadline records.
func (r *NotificationRepository) ListPendingDeadlines(ctx context.Context, userID int64) ([]domain.Notification, error) {
	var list []domain.Notification
	err := r.db.SelectContext(ctx, &list,
		`SELECT `+notificationColumns+`
		 FROM notifications
		 WHERE actor_id = $1 AND impacted_user_id = $1 AND kind = $2 AND shown = FALSE
		 ORDER BY happened_at DESC`,
		userID, domain.KindDeadline)
	if err != nil {
		return nil, fmt.Errorf("list pending deadlines for user %d: %w", userID, err)
	}
	return list, nil
}

// MarkRead sets the read flag. A no-op when already read or absent.
func (r *NotificationRepository) MarkRead(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET read = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark notification %d read: %w", id, err)
	}
	return nil
}

// MarkAllRead marks the user's whole inbox read.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET read = TRUE, updated_at = NOW()
		 WHERE (actor_id = $1 AND kind = $2) OR impacted_user_id = $1`,
		userID, domain.KindDeadline)
	if err != nil {
		return fmt.Errorf("mark all read for user %d: %w", userID, err)
	}
	return nil
}

// MarkShown flags a deadline record as surfaced and stamps happened_at so
// the alert sorts to the top of the inbox. A no-op when already shown.
func (r *NotificationRepository) MarkShown(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET shown = TRUE, happened_at = NOW() WHERE id = $1 AND shown = FALSE`, id)
	if err != nil {
		return fmt.Errorf("mark notification %d shown: %w", id, err)
	}
	return nil
}

// UpdateDeadline rewrites the mutable fields of a deadline record in place.
// Identity fields never change.
func (r *NotificationRepository) UpdateDeadline(ctx context.Context, n domain.Notification) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notifications
		 SET deadline_at = $4, notify_before = $5, notify_unit = $6,
		     message = $7, shown = $8, read = $9, updated_at = NOW()
		 WHERE actor_id = $1 AND impacted_user_id = $2 AND object_id = $3 AND kind = $10`,
		n.ActorID, n.ImpactedUserID, n.ObjectID,
		n.DeadlineAt, n.NotifyBefore, n.NotifyUnit,
		n.Message, n.Shown, n.Read, domain.KindDeadline)
	if err != nil {
		return fmt.Errorf("update deadline notification: %w", err)
	}
	return nil
}

// UpdateInviteResponse moves an INVITE record's response status to its
// terminal value.
func (r *NotificationRepository) UpdateInviteResponse(ctx context.Context, actorID, impactedUserID, objectID int64, from, to domain.ResponseStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notifications
		 SET response_status = $5, updated_at = NOW()
		 WHERE actor_id = $1 AND impacted_user_id = $2 AND object_id = $3
		   AND kind = $6 AND response_status = $4`,
		actorID, impactedUserID, objectID, from, to, domain.KindInvite)
	if err != nil {
		return fmt.Errorf("update invite response: %w", err)
	}
	return nil
}

// MarkOverdueShown flags the user's pending deadline records whose deadline
// has passed. The stored layout sorts lexicographically, so a string
// comparison against now is a date comparison.
func (r *NotificationRepository) MarkOverdueShown(ctx context.Context, userID int64, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET shown = TRUE
		 WHERE actor_id = $1 AND impacted_user_id = $1 AND kind = $2
		   AND shown = FALSE AND deadline_at <> '' AND deadline_at < $3`,
		userID, domain.KindDeadline, now.Format(domain.DeadlineLayout))
	if err != nil {
		return fmt.Errorf("mark overdue shown for user %d: %w", userID, err)
	}
	return nil
}

// MarkAllOverdueShown is the maintenance pass over every user, so pending
// records of users who never connect are still healed.
func (r *NotificationRepository) MarkAllOverdueShown(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET shown = TRUE
		 WHERE kind = $1 AND shown = FALSE AND deadline_at <> '' AND deadline_at < $2`,
		domain.KindDeadline, now.Format(domain.DeadlineLayout))
	if err != nil {
		return fmt.Errorf("mark all overdue shown: %w", err)
	}
	return nil
}

// DeleteByIdentity removes every record matching the identity and kind.
// A no-op when nothing matches.
func (r *NotificationRepository) DeleteByIdentity(ctx context.Context, actorID, impactedUserID, objectID int64, kind domain.NotificationKind) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications
		 WHERE actor_id = $1 AND impacted_user_id = $2 AND object_id = $3 AND kind = $4`,
		actorID, impactedUserID, objectID, kind)
	if err != nil {
		return fmt.Errorf("delete notifications by identity: %w", err)
	}
	return nil
}

// DeleteByID removes a single record. A no-op when absent.
func (r *NotificationRepository) DeleteByID(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete notification %d: %w", id, err)
	}
	return nil
}

// DeleteAllForUser clears the user's inbox: surfaced deadline records plus
// every non-deadline record addressed to the user.
func (r *NotificationRepository) DeleteAllForUser(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications
		 WHERE (actor_id = $1 AND impacted_user_id = $1 AND kind = $2 AND shown = TRUE)
		    OR (impacted_user_id = $1 AND kind <> $2)`,
		userID, domain.KindDeadline)
	if err != nil {
		return fmt.Errorf("delete all notifications for user %d: %w", userID, err)
	}
	return nil
}
