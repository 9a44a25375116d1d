package models

import "time"

// Notification is an in-app message delivered to a user or a role group.
// Exactly one of UserID and Role is set.
type Notification struct {
	ID        string    `db:"id" json:"id"`
	UserID    *string   `db:"user_id" json:"user_id,omitempty"`
	Role      *UserRole `db:"role" json:"role,omitempty"`
	Title     string    `db:"title" json:"title"`
	Body      string    `db:"body" json:"body"`
	Link      string    `db:"link" json:"link"`
	Read      bool      `db:"read" json:"read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// NotificationFilter captures listing parameters for notifications.
type NotificationFilter struct {
	UserID   string
	Role     UserRole
	Unread   bool
	Page     int
	PageSize int
}
