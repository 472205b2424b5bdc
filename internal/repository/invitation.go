package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sumire/taskboard/internal/domain"
)

const invitationColumns = `id, board_id, inviter_id, recipient_id, token, public, status, created_at, updated_at`

// InvitationRepository handles board invitation data access.
type InvitationRepository struct {
	db *sqlx.DB
}

// NewInvitationRepository creates a new InvitationRepository.
func NewInvitationRepository(db *sqlx.DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

// FindByID retrieves an invitation by id.
func (r *InvitationRepository) FindByID(ctx context.Context, id int64) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := r.db.GetContext(ctx, &inv,
		`SELECT `+invitationColumns+` FROM invitations WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find invitation by id %d: %w", id, err)
	}
	return &inv, nil
}

// FindByToken retrieves an invitation by its link token.
func (r *InvitationRepository) FindByToken(ctx context.Context, token string) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := r.db.GetContext(ctx, &inv,
		`SELECT `+invitationColumns+` FROM invitations WHERE token = $1`, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find invitation by token: %w", err)
	}
	return &inv, nil
}

// FindPending retrieves the pending private invitation for a recipient on a
// board, if any.
func (r *InvitationRepository) FindPending(ctx context.Context, boardID, recipientID int64) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := r.db.GetContext(ctx, &inv,
		`SELECT `+invitationColumns+`
		 FROM invitations
		 WHERE board_id = $1 AND recipient_id = $2 AND status = $3 AND public = FALSE`,
		boardID, recipientID, domain.InvitationPending)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find pending invitation board=%d recipient=%d: %w", boardID, recipientID, err)
	}
	return &inv, nil
}

// FindPublicByBoard retrieves the board's open public link invitation.
func (r *InvitationRepository) FindPublicByBoard(ctx context.Context, boardID int64) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := r.db.GetContext(ctx, &inv,
		`SELECT `+invitationColumns+`
		 FROM invitations
		 WHERE board_id = $1 AND public = TRUE AND status = $2`,
		boardID, domain.InvitationPending)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find public invitation for board %d: %w", boardID, err)
	}
	return &inv, nil
}

// Create inserts an invitation. Returns the stored invitation.
func (r *InvitationRepository) Create(ctx context.Context, inv domain.Invitation) (*domain.Invitation, error) {
	var result domain.Invitation
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO invitations (board_id, inviter_id, recipient_id, token, public, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+invitationColumns,
		inv.BoardID, inv.InviterID, inv.RecipientID, inv.Token, inv.Public, inv.Status,
	).StructScan(&result)
	if err != nil {
		return nil, fmt.Errorf("create invitation: %w", err)
	}
	return &result, nil
}

// SetStatus moves a pending invitation to a terminal status. Conflict when
// the invitation was already answered.
func (r *InvitationRepository) SetStatus(ctx context.Context, id int64, status domain.InvitationStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE invitations SET status = $2, updated_at = NOW()
		 WHERE id = $1 AND status = $3`,
		id, status, domain.InvitationPending)
	if err != nil {
		return fmt.Errorf("set invitation %d status: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set invitation %d status: %w", id, err)
	}
	if affected == 0 {
		return domain.ErrConflict
	}
	return nil
}

// DeleteByToken removes a public link invitation. A no-op when absent.
func (r *InvitationRepository) DeleteByToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM invitations WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("delete invitation by token: %w", err)
	}
	return nil
}

// DeleteByBoard removes every invitation of a board.
func (r *InvitationRepository) DeleteByBoard(ctx context.Context, boardID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM invitations WHERE board_id = $1`, boardID)
	if err != nil {
		return fmt.Errorf("delete invitations of board %d: %w", boardID, err)
	}
	return nil
}
