package domain

import "time"

// NotifyUnit is the unit of the notify-before offset on a card deadline.
type NotifyUnit string

const (
	UnitMinute NotifyUnit = "minute"
	UnitHour   NotifyUnit = "hour"
	UnitDay    NotifyUnit = "day"
	UnitWeek   NotifyUnit = "week"
)

// DeadlineLayout is the storage format of deadline timestamps. Deadlines are
// kept as strings and evaluated in a single configured zone; an empty string
// means the card has no deadline.
const DeadlineLayout = "2006-01-02 15:04"

// Card is a task on a board column.
type Card struct {
	ID          int64   `json:"id" db:"id"`
	BoardID     int64   `json:"board_id" db:"board_id"`
	ColumnID    int64   `json:"column_id" db:"column_id"`
	Title       string  `json:"title" db:"title"`
	Description *string `json:"description,omitempty" db:"description"`

	DeadlineAt   string     `json:"deadline_at" db:"deadline_at"`
	NotifyBefore int        `json:"notify_before" db:"notify_before"`
	NotifyUnit   NotifyUnit `json:"notify_unit" db:"notify_unit"`

	Members []int64 `json:"members" db:"-"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasDeadline reports whether deadline evaluation applies to the card.
func (c Card) HasDeadline() bool {
	return c.DeadlineAt != ""
}
