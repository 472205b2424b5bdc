package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sumire/taskboard/internal/domain"
)

// BoardRepository handles board and column data access.
type BoardRepository struct {
	db *sqlx.DB
}

// NewBoardRepository creates a new BoardRepository.
func NewBoardRepository(db *sqlx.DB) *BoardRepository {
	return &BoardRepository{db: db}
}

// FindByID retrieves a board by its ID.
func (r *BoardRepository) FindByID(ctx context.Context, id int64) (*domain.Board, error) {
	var board domain.Board
	err := r.db.GetContext(ctx, &board,
		`SELECT id, title, slug, description, visibility, created_at, updated_at
		 FROM boards WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find board by id %d: %w", id, err)
	}
	return &board, nil
}

// ListForUser retrieves every board the user is a member of.
func (r *BoardRepository) ListForUser(ctx context.Context, userID int64) ([]domain.Board, error) {
	var boards []domain.Board
	err := r.db.SelectContext(ctx, &boards,
		`SELECT b.id, b.title, b.slug, b.description, b.visibility, b.created_at, b.updated_at
		 FROM boards b
		 JOIN board_members m ON m.board_id = b.id
		 WHERE m.user_id = $1
		 ORDER BY b.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list boards for user %d: %w", userID, err)
	}
	return boards, nil
}

// ListForUserByRole retrieves the user's boards filtered by their role.
func (r *BoardRepository) ListForUserByRole(ctx context.Context, userID int64, role domain.Role) ([]domain.Board, error) {
	var boards []domain.Board
	err := r.db.SelectContext(ctx, &boards,
		`SELECT b.id, b.title, b.slug, b.description, b.visibility, b.created_at, b.updated_at
		 FROM boards b
		 JOIN board_members m ON m.board_id = b.id
		 WHERE m.user_id = $1 AND m.role = $2
		 ORDER BY b.created_at DESC`, userID, role)
	if err != nil {
		return nil, fmt.Errorf("list %s boards for user %d: %w", role, userID, err)
	}
	return boards, nil
}

// Create inserts a board. Returns the stored board.
func (r *BoardRepository) Create(ctx context.Context, board domain.Board) (*domain.Board, error) {
	var result domain.Board
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO boards (title, slug, description, visibility)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, title, slug, description, visibility, created_at, updated_at`,
		board.Title, board.Slug, board.Description, board.Visibility,
	).StructScan(&result)
	if err != nil {
		return nil, fmt.Errorf("create board: %w", err)
	}
	return &result, nil
}

// Update rewrites the board's mutable fields.
func (r *BoardRepository) Update(ctx context.Context, board domain.Board) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE boards
		 SET title = $2, slug = $3, description = $4, visibility = $5, updated_at = NOW()
		 WHERE id = $1`,
		board.ID, board.Title, board.Slug, board.Description, board.Visibility)
	if err != nil {
		return fmt.Errorf("update board %d: %w", board.ID, err)
	}
	return nil
}

// Delete removes the board row. Child rows are removed by the service-level
// cascade before this call.
func (r *BoardRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM boards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete board %d: %w", id, err)
	}
	return nil
}

// FindColumnByID retrieves a column with its card order list.
func (r *BoardRepository) FindColumnByID(ctx context.Context, id int64) (*domain.Column, error) {
	row := r.db.QueryRowxContext(ctx,
		`SELECT id, board_id, title, card_order, created_at, updated_at
		 FROM columns WHERE id = $1`, id)

	col, err := scanColumn(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find column by id %d: %w", id, err)
	}
	return col, nil
}

// ListColumns retrieves the board's columns.
func (r *BoardRepository) ListColumns(ctx context.Context, boardID int64) ([]domain.Column, error) {
	rows, err := r.db.QueryxContext(ctx,
		`SELECT id, board_id, title, card_order, created_at, updated_at
		 FROM columns WHERE board_id = $1 ORDER BY id`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list columns for board %d: %w", boardID, err)
	}
	defer rows.Close()

	var cols []domain.Column
	for rows.Next() {
		col, err := scanColumn(rows)
		if err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols = append(cols, *col)
	}
	return cols, rows.Err()
}

// CreateColumn inserts a column with an empty card order.
func (r *BoardRepository) CreateColumn(ctx context.Context, col domain.Column) (*domain.Column, error) {
	row := r.db.QueryRowxContext(ctx,
		`INSERT INTO columns (board_id, title, card_order)
		 VALUES ($1, $2, $3)
		 RETURNING id, board_id, title, card_order, created_at, updated_at`,
		col.BoardID, col.Title, pq.Int64Array(col.CardOrder))

	result, err := scanColumn(row)
	if err != nil {
		return nil, fmt.Errorf("create column: %w", err)
	}
	return result, nil
}

// SetCardOrder replaces a column's card order list.
func (r *BoardRepository) SetCardOrder(ctx context.Context, columnID int64, order []int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE columns SET card_order = $2, updated_at = NOW() WHERE id = $1`,
		columnID, pq.Int64Array(order))
	if err != nil {
		return fmt.Errorf("set card order for column %d: %w", columnID, err)
	}
	return nil
}

// AppendCardToOrder pushes a card id to the tail of the column's order.
func (r *BoardRepository) AppendCardToOrder(ctx context.Context, columnID, cardID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE columns SET card_order = array_append(card_order, $2), updated_at = NOW()
		 WHERE id = $1 AND NOT ($2 = ANY(card_order))`,
		columnID, cardID)
	if err != nil {
		return fmt.Errorf("append card %d to column %d order: %w", cardID, columnID, err)
	}
	return nil
}

// RemoveCardFromOrder pulls a card id out of the column's order. A no-op
// when the id is not present.
func (r *BoardRepository) RemoveCardFromOrder(ctx context.Context, columnID, cardID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE columns SET card_order = array_remove(card_order, $2), updated_at = NOW()
		 WHERE id = $1`,
		columnID, cardID)
	if err != nil {
		return fmt.Errorf("remove card %d from column %d order: %w", cardID, columnID, err)
	}
	return nil
}

// DeleteColumns removes all columns of a board.
func (r *BoardRepository) DeleteColumns(ctx context.Context, boardID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM columns WHERE board_id = $1`, boardID)
	if err != nil {
		return fmt.Errorf("delete columns for board %d: %w", boardID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanColumn(row rowScanner) (*domain.Column, error) {
	var (
		col   domain.Column
		order pq.Int64Array
	)
	err := row.Scan(&col.ID, &col.BoardID, &col.Title, &order, &col.CreatedAt, &col.UpdatedAt)
	if err != nil {
		return nil, err
	}
	col.CardOrder = []int64(order)
	return &col, nil
}
