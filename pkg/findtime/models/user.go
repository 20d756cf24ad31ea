package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// SystemRole represents a user's system-wide role
type SystemRole string

const (
	SystemRoleAdmin SystemRole = "admin"
	SystemRoleUser  SystemRole = "user"
)

// User represents a registered user. Deleting a user is always a soft delete.
type User struct {
	ID             uint           `gorm:"primarykey" json:"id"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
	Email          string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash   string         `json:"-"`
	FirstName      string         `gorm:"not null" json:"first_name"`
	LastName       string         `json:"last_name"`
	Birthday       *time.Time     `json:"birthday,omitempty"`
	ProfilePicLink string         `json:"profile_pic_link,omitempty"`
	SystemRole     SystemRole     `gorm:"type:varchar(20);default:'user'" json:"system_role"`

	// Relationships
	GroupMemberships []GroupMembership `gorm:"foreignKey:UserID" json:"group_memberships,omitempty"`
}

// DisplayName joins first and last name.
func (u User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// IsDeleted reports whether the user has been soft deleted.
func (u User) IsDeleted() bool {
	return u.DeletedAt.Valid
}
