package domain

import "time"

// BoardVisibility controls who can see a board.
type BoardVisibility string

const (
	BoardPublic  BoardVisibility = "public"
	BoardPrivate BoardVisibility = "private"
)

// Board is the top level of the board -> column -> card hierarchy.
type Board struct {
	ID          int64           `json:"id" db:"id"`
	Title       string          `json:"title" db:"title"`
	Slug        string          `json:"slug" db:"slug"`
	Description *string         `json:"description,omitempty" db:"description"`
	Visibility  BoardVisibility `json:"visibility" db:"visibility"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// Column groups cards within a board and keeps their display order.
type Column struct {
	ID        int64     `json:"id" db:"id"`
	BoardID   int64     `json:"board_id" db:"board_id"`
	Title     string    `json:"title" db:"title"`
	CardOrder []int64   `json:"card_order" db:"-"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
