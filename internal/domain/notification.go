package domain

import "time"

// NotificationKind identifies the event a notification describes.
type NotificationKind string

const (
	KindAdd                NotificationKind = "ADD"
	KindRemove             NotificationKind = "REMOVE"
	KindDelete             NotificationKind = "DELETE"
	KindInvite             NotificationKind = "INVITE"
	KindResponseInvitation NotificationKind = "RESPONSE_INVITATION"
	KindChangeRole         NotificationKind = "CHANGE_ROLE"
	KindDeadline           NotificationKind = "DEADLINE"
	KindComment            NotificationKind = "COMMENT"
	KindReply              NotificationKind = "REPLY"
)

// SourceContext disambiguates ADD/REMOVE/DELETE notifications.
type SourceContext string

const (
	SourceBoard SourceContext = "BOARD"
	SourceCard  SourceContext = "CARD"
)

// ResponseStatus is the lifecycle of an invitation notification.
type ResponseStatus string

const (
	ResponsePending  ResponseStatus = "PENDING"
	ResponseAccepted ResponseStatus = "ACCEPTED"
	ResponseRejected ResponseStatus = "REJECTED"
)

// Notification is a single per-user alert record. For DEADLINE kind at most
// one record exists per (actor, impacted user, object) triple; the deadline
// fields are rewritten in place on every deadline edit.
type Notification struct {
	ID             int64            `json:"id" db:"id"`
	ActorID        int64            `json:"actor_id" db:"actor_id"`
	ImpactedUserID int64            `json:"impacted_user_id" db:"impacted_user_id"`
	ObjectID       int64            `json:"object_id" db:"object_id"`
	Kind           NotificationKind `json:"kind" db:"kind"`
	SourceContext  *SourceContext   `json:"source_context,omitempty" db:"source_context"`
	ResponseStatus *ResponseStatus  `json:"response_status,omitempty" db:"response_status"`
	InvitationID   *int64           `json:"invitation_id,omitempty" db:"invitation_id"`

	DeadlineAt   string     `json:"deadline_at,omitempty" db:"deadline_at"`
	NotifyBefore int        `json:"notify_before" db:"notify_before"`
	NotifyUnit   NotifyUnit `json:"notify_unit" db:"notify_unit"`

	Shown   bool   `json:"shown" db:"shown"`
	Read    bool   `json:"read" db:"read"`
	Message string `json:"message" db:"message"`

	HappenedAt time.Time  `json:"happened_at" db:"happened_at"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}
