package domain

import "time"

// Role is a user's role on a board.
type Role string

const (
	RoleCreator Role = "creator"
	RoleOwner   Role = "owner"
	RoleMember  Role = "member"
)

// CanManageMembers reports whether the role may invite, remove, or change
// the role of other members.
func (r Role) CanManageMembers() bool {
	return r == RoleCreator || r == RoleOwner
}

// BoardMember binds a user to a board with exactly one role. Every board has
// exactly one creator, set at board creation and never reassignable.
type BoardMember struct {
	BoardID   int64     `json:"board_id" db:"board_id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Role      Role      `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
