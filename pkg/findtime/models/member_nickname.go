package models

import (
	"time"
)

// MemberNickname is the name one member (UserID) sees for another member
// (TargetUserID) inside a single group.
type MemberNickname struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	UserID       uint      `gorm:"not null;uniqueIndex:idx_viewer_target_group" json:"user_id"`
	TargetUserID uint      `gorm:"not null;uniqueIndex:idx_viewer_target_group" json:"target_user_id"`
	GroupID      uint      `gorm:"not null;uniqueIndex:idx_viewer_target_group" json:"group_id"`
	Nickname     string    `gorm:"size:50;not null" json:"nickname"`
}
