package domain

import "time"

// Comment is a message on a card. A non-nil ParentID makes it a reply.
type Comment struct {
	ID        int64     `json:"id" db:"id"`
	CardID    int64     `json:"card_id" db:"card_id"`
	AuthorID  int64     `json:"author_id" db:"author_id"`
	ParentID  *int64    `json:"parent_id,omitempty" db:"parent_id"`
	Body      string    `json:"body" db:"body"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
