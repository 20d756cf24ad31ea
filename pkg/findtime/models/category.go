package models

import (
	"time"

	"gorm.io/gorm"
)

// Category is a named, colored label scoped to a single group
type Category struct {
	ID              uint           `gorm:"primarykey" json:"id"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
	Name            string         `gorm:"size:100;not null" json:"name"`
	Color           string         `gorm:"size:7;not null;default:'#000000'" json:"color"` // Hex color code
	GroupID         uint           `gorm:"not null;index" json:"group_id"`
	CreatedByUserID uint           `gorm:"not null" json:"created_by_user_id"`

	// Relationships
	Group     Group `gorm:"foreignKey:GroupID" json:"-"`
	CreatedBy User  `gorm:"foreignKey:CreatedByUserID" json:"-"`
}
