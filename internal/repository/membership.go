package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sumire/taskboard/internal/domain"
)

// MembershipRepository handles board membership data access.
type MembershipRepository struct {
	db *sqlx.DB
}

// NewMembershipRepository creates a new MembershipRepository.
func NewMembershipRepository(db *sqlx.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// Find retrieves the membership of a user on a board.
func (r *MembershipRepository) Find(ctx context.Context, boardID, userID int64) (*domain.BoardMember, error) {
	var m domain.BoardMember
	err := r.db.GetContext(ctx, &m,
		`SELECT board_id, user_id, role, created_at, updated_at
		 FROM board_members WHERE board_id = $1 AND user_id = $2`, boardID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find membership board=%d user=%d: %w", boardID, userID, err)
	}
	return &m, nil
}

// FindCreator retrieves the board's creator membership.
func (r *MembershipRepository) FindCreator(ctx context.Context, boardID int64) (*domain.BoardMember, error) {
	var m domain.BoardMember
	err := r.db.GetContext(ctx, &m,
		`SELECT board_id, user_id, role, created_at, updated_at
		 FROM board_members WHERE board_id = $1 AND role = $2`, boardID, domain.RoleCreator)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find creator of board %d: %w", boardID, err)
	}
	return &m, nil
}

// List retrieves every membership of a board.
func (r *MembershipRepository) List(ctx context.Context, boardID int64) ([]domain.BoardMember, error) {
	var members []domain.BoardMember
	err := r.db.SelectContext(ctx, &members,
		`SELECT board_id, user_id, role, created_at, updated_at
		 FROM board_members WHERE board_id = $1 ORDER BY created_at`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list members of board %d: %w", boardID, err)
	}
	return members, nil
}

// Create inserts a membership row. Conflict when the pair already exists.
func (r *MembershipRepository) Create(ctx context.Context, m domain.BoardMember) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO board_members (board_id, user_id, role) VALUES ($1, $2, $3)`,
		m.BoardID, m.UserID, m.Role)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("create membership board=%d user=%d: %w", m.BoardID, m.UserID, err)
	}
	return nil
}

// SetRole updates the role of an existing membership.
func (r *MembershipRepository) SetRole(ctx context.Context, boardID, userID int64, role domain.Role) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE board_members SET role = $3, updated_at = NOW()
		 WHERE board_id = $1 AND user_id = $2`, boardID, userID, role)
	if err != nil {
		return fmt.Errorf("set role board=%d user=%d: %w", boardID, userID, err)
	}
	return nil
}

// Delete removes a membership row. A no-op when absent.
func (r *MembershipRepository) Delete(ctx context.Context, boardID, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM board_members WHERE board_id = $1 AND user_id = $2`, boardID, userID)
	if err != nil {
		return fmt.Errorf("delete membership board=%d user=%d: %w", boardID, userID, err)
	}
	return nil
}

// DeleteByBoard removes all memberships of a board.
func (r *MembershipRepository) DeleteByBoard(ctx context.Context, boardID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM board_members WHERE board_id = $1`, boardID)
	if err != nil {
		return fmt.Errorf("delete memberships of board %d: %w", boardID, err)
	}
	return nil
}
