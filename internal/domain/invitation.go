package domain

import "time"

// InvitationStatus is the lifecycle state of a board invitation. PENDING is
// the only state that can transition; ACCEPTED and REJECTED are terminal.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRejected InvitationStatus = "rejected"
)

// Invitation asks a user to join a board. Public invitations have no
// recipient and are redeemed via their token link by any signed-in user.
type Invitation struct {
	ID          int64            `json:"id" db:"id"`
	BoardID     int64            `json:"board_id" db:"board_id"`
	InviterID   int64            `json:"inviter_id" db:"inviter_id"`
	RecipientID *int64           `json:"recipient_id,omitempty" db:"recipient_id"`
	Token       string           `json:"token" db:"token"`
	Public      bool             `json:"public" db:"public"`
	Status      InvitationStatus `json:"status" db:"status"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at" db:"updated_at"`
}
