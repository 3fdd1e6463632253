package models

import "time"

// NotificationType classifies a notification for display.
type NotificationType string

const (
	NotificationInfo      NotificationType = "info"
	NotificationApproval  NotificationType = "approval"
	NotificationRejection NotificationType = "rejection"
	NotificationSuccess   NotificationType = "success"
)

// Notification is addressed to one user and created only as a side effect of
// application transitions. AudienceRole is set at creation time; routing never
// inspects the free-text title or message.
type Notification struct {
	ID            string           `db:"id" json:"id"`
	UserID        string           `db:"user_id" json:"user_id"`
	AudienceRole  Role             `db:"audience_role" json:"audience_role"`
	Title         string           `db:"title" json:"title"`
	Message       string           `db:"message" json:"message"`
	Type          NotificationType `db:"type" json:"type"`
	Read          bool             `db:"read" json:"read"`
	ApplicationID *string          `db:"application_id" json:"application_id,omitempty"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
}

// NotificationFilter captures listing criteria for a user's notifications.
type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	Limit      int
	Offset     int
}
