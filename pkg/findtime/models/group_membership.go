package models

import (
	"time"
)

// GroupMembership links a user to a group. Leaving or being removed only
// clears IsActive so the row can be reactivated later.
type GroupMembership struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_user_group" json:"user_id"`
	GroupID   uint      `gorm:"not null;uniqueIndex:idx_user_group" json:"group_id"`
	IsActive  bool      `gorm:"not null" json:"is_active"`
	JoinedAt  time.Time `json:"joined_at"`

	// Relationships
	User  User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Group Group `gorm:"foreignKey:GroupID" json:"group,omitempty"`
}
