package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sumire/taskboard/internal/domain"
)

// CommentRepository handles card comment data access.
type CommentRepository struct {
	db *sqlx.DB
}

// NewCommentRepository creates a new CommentRepository.
func NewCommentRepository(db *sqlx.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// FindByID retrieves a comment by id.
func (r *CommentRepository) FindByID(ctx context.Context, id int64) (*domain.Comment, error) {
	var c domain.Comment
	err := r.db.GetContext(ctx, &c,
		`SELECT id, card_id, author_id, parent_id, body, created_at
		 FROM comments WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find comment by id %d: %w", id, err)
	}
	return &c, nil
}

// ListByCard retrieves a card's comments, oldest first.
func (r *CommentRepository) ListByCard(ctx context.Context, cardID int64) ([]domain.Comment, error) {
	var list []domain.Comment
	err := r.db.SelectContext(ctx, &list,
		`SELECT id, card_id, author_id, parent_id, body, created_at
		 FROM comments WHERE card_id = $1 ORDER BY created_at`, cardID)
	if err != nil {
		return nil, fmt.Errorf("list comments for card %d: %w", cardID, err)
	}
	return list, nil
}

// ListThreadAuthors returns the distinct author ids of a comment and its
// replies.
func (r *CommentRepository) ListThreadAuthors(ctx context.Context, rootID int64) ([]int64, error) {
	var authors []int64
	err := r.db.SelectContext(ctx, &authors,
		`SELECT DISTINCT author_id FROM comments WHERE id = $1 OR parent_id = $1`, rootID)
	if err != nil {
		return nil, fmt.Errorf("list thread authors for comment %d: %w", rootID, err)
	}
	return authors, nil
}

// Create inserts a comment. Returns the stored comment.
func (r *CommentRepository) Create(ctx context.Context, c domain.Comment) (*domain.Comment, error) {
	var result domain.Comment
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO comments (card_id, author_id, parent_id, body)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, card_id, author_id, parent_id, body, created_at`,
		c.CardID, c.AuthorID, c.ParentID, c.Body,
	).StructScan(&result)
	if err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return &result, nil
}

// DeleteByCard removes every comment of a card.
func (r *CommentRepository) DeleteByCard(ctx context.Context, cardID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE card_id = $1`, cardID)
	if err != nil {
		return fmt.Errorf("delete comments of card %d: %w", cardID, err)
	}
	return nil
}
