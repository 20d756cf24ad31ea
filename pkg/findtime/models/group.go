package models

import (
	"time"

	"gorm.io/gorm"
)

// Group is a shared calendar. Exactly one member, AdminID, administers it.
type Group struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	Name        string         `gorm:"size:100;not null" json:"name"`
	Description string         `json:"description"`
	AdminID     uint           `gorm:"not null;index" json:"admin_id"`

	// Relationships
	Admin      User              `gorm:"foreignKey:AdminID" json:"admin,omitempty"`
	Members    []GroupMembership `gorm:"foreignKey:GroupID" json:"members,omitempty"`
	Events     []Event           `gorm:"foreignKey:GroupID" json:"events,omitempty"`
	Categories []Category        `gorm:"foreignKey:GroupID" json:"categories,omitempty"`
}
