package models

import (
	"time"
)

// DefaultGroupColor is used until a member picks a color for a group.
const DefaultGroupColor = "zinc"

// GroupSettings holds one user's display preferences for a group
type GroupSettings struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_settings_user_group" json:"user_id"`
	GroupID   uint      `gorm:"not null;uniqueIndex:idx_settings_user_group" json:"group_id"`
	Color     string    `gorm:"size:20;not null;default:'zinc'" json:"color"`
}
