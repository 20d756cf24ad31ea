package models

import (
	"time"
)

// NotificationType identifies what happened to produce a notification
type NotificationType string

const (
	NotificationEventCreated NotificationType = "EventCreated"
	NotificationEventUpdated NotificationType = "EventUpdated"
	NotificationEventDeleted NotificationType = "EventDeleted"
)

// Notification is a message in a user's inbox.
type Notification struct {
	ID        uint             `gorm:"primarykey" json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	UserID    uint             `gorm:"not null;index" json:"user_id"`
	GroupID   uint             `gorm:"not null;index" json:"group_id"`
	EventID   *uint            `json:"event_id,omitempty"`
	Type      NotificationType `gorm:"type:varchar(20);not null" json:"type"`
	Message   string           `gorm:"size:500;not null" json:"message"`
	IsRead    bool             `gorm:"not null" json:"is_read"`
	ReadAt    *time.Time       `json:"read_at,omitempty"`
}
