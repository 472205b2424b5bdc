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

// CardRepository handles card and card-assignment data access.
type CardRepository struct {
	db *sqlx.DB
}

// NewCardRepository creates a new CardRepository.
func NewCardRepository(db *sqlx.DB) *CardRepository {
	return &CardRepository{db: db}
}

const cardColumns = `c.id, c.board_id, c.column_id, c.title, c.description,
	 c.deadline_at, c.notify_before, c.notify_unit, c.created_at, c.updated_at,
	 COALESCE((SELECT array_agg(m.user_id) FROM card_members m WHERE m.card_id = c.id), '{}') AS members`

func scanCard(row rowScanner) (*domain.Card, error) {
	var (
		card    domain.Card
		members pq.Int64Array
	)
	err := row.Scan(&card.ID, &card.BoardID, &card.ColumnID, &card.Title, &card.Description,
		&card.DeadlineAt, &card.NotifyBefore, &card.NotifyUnit, &card.CreatedAt, &card.UpdatedAt,
		&members)
	if err != nil {
		return nil, err
	}
	card.Members = []int64(members)
	return &card, nil
}

// FindByID retrieves a card with its assignee list.
func (r *CardRepository) FindByID(ctx context.Context, id int64) (*domain.Card, error) {
	row := r.db.QueryRowxContext(ctx,
		`SELECT `+cardColumns+` FROM cards c WHERE c.id = $1`, id)

	card, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find card by id %d: %w", id, err)
	}
	return card, nil
}

// ListByBoard retrieves every card of a board with assignees.
func (r *CardRepository) ListByBoard(ctx context.Context, boardID int64) ([]domain.Card, error) {
	rows, err := r.db.QueryxContext(ctx,
		`SELECT `+cardColumns+` FROM cards c WHERE c.board_id = $1 ORDER BY c.id`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list cards for board %d: %w", boardID, err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		cards = append(cards, *card)
	}
	return cards, rows.Err()
}

// Create inserts a card. Returns the stored card.
func (r *CardRepository) Create(ctx context.Context, card domain.Card) (*domain.Card, error) {
	var id int64
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO cards (board_id, column_id, title, description, deadline_at, notify_before, notify_unit)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		card.BoardID, card.ColumnID, card.Title, card.Description,
		card.DeadlineAt, card.NotifyBefore, card.NotifyUnit,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("create card: %w", err)
	}
	return r.FindByID(ctx, id)
}

// Update rewrites the card's mutable fields, deadline included.
func (r *CardRepository) Update(ctx context.Context, card domain.Card) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE cards
		 SET title = $2, description = $3, deadline_at = $4, notify_before = $5,
		     notify_unit = $6, updated_at = NOW()
		 WHERE id = $1`,
		card.ID, card.Title, card.Description, card.DeadlineAt, card.NotifyBefore, card.NotifyUnit)
	if err != nil {
		return fmt.Errorf("update card %d: %w", card.ID, err)
	}
	return nil
}

// SetColumn moves a card to another column.
func (r *CardRepository) SetColumn(ctx context.Context, cardID, columnID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE cards SET column_id = $2, updated_at = NOW() WHERE id = $1`, cardID, columnID)
	if err != nil {
		return fmt.Errorf("move card %d to column %d: %w", cardID, columnID, err)
	}
	return nil
}

// Delete removes the card row and its assignments.
func (r *CardRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM card_members WHERE card_id = $1`, id); err != nil {
		return fmt.Errorf("delete assignments of card %d: %w", id, err)
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM cards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete card %d: %w", id, err)
	}
	return nil
}

// DeleteByBoard removes every card of a board with their assignments.
func (r *CardRepository) DeleteByBoard(ctx context.Context, boardID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM card_members m USING cards c
		 WHERE m.card_id = c.id AND c.board_id = $1`, boardID)
	if err != nil {
		return fmt.Errorf("delete assignments for board %d: %w", boardID, err)
	}
	_, err = r.db.ExecContext(ctx, `DELETE FROM cards WHERE board_id = $1`, boardID)
	if err != nil {
		return fmt.Errorf("delete cards for board %d: %w", boardID, err)
	}
	return nil
}

// AddMember assigns a user to a card. A no-op when already assigned.
func (r *CardRepository) AddMember(ctx context.Context, cardID, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO card_members (card_id, user_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`, cardID, userID)
	if err != nil {
		return fmt.Errorf("add member %d to card %d: %w", userID, cardID, err)
	}
	return nil
}

// RemoveMember unassigns a user from a card. A no-op when not assigned.
func (r *CardRepository) RemoveMember(ctx context.Context, cardID, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM card_members WHERE card_id = $1 AND user_id = $2`, cardID, userID)
	if err != nil {
		return fmt.Errorf("remove member %d from card %d: %w", userID, cardID, err)
	}
	return nil
}

// RemoveMemberFromBoardCards unassigns a user from every card of a board
// and returns the ids of the cards they were assigned to.
func (r *CardRepository) RemoveMemberFromBoardCards(ctx context.Context, boardID, userID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`DELETE FROM card_members m
		 USING cards c
		 WHERE m.card_id = c.id AND c.board_id = $1 AND m.user_id = $2
		 RETURNING m.card_id`, boardID, userID)
	if err != nil {
		return nil, fmt.Errorf("remove member %d from cards of board %d: %w", userID, boardID, err)
	}
	defer rows.Close()

	var cardIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan card id: %w", err)
		}
		cardIDs = append(cardIDs, id)
	}
	return cardIDs, rows.Err()
}
