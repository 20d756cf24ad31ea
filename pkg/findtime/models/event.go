package models

import (
	"time"

	"gorm.io/gorm"
)

// RecurrencePattern is the period between two occurrences of a recurring event
type RecurrencePattern string

const (
	RecurrenceDaily   RecurrencePattern = "Daily"
	RecurrenceWeekly  RecurrencePattern = "Weekly"
	RecurrenceMonthly RecurrencePattern = "Monthly"
	RecurrenceYearly  RecurrencePattern = "Yearly"
)

// Valid reports whether p is one of the defined patterns.
func (p RecurrencePattern) Valid() bool {
	switch p {
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly, RecurrenceYearly:
		return true
	}
	return false
}

// Event is a single calendar entry of a group.
//
// A recurring series is stored as a chain: the master row has a nil
// RecurringGroupID and every generated instance points at the master's ID.
// Chains are never more than one level deep. Deletion is soft: a non-null
// DeletedAt is the deleted flag and its timestamp.
type Event struct {
	ID                uint               `gorm:"primarykey" json:"id"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         *time.Time         `gorm:"autoUpdateTime:false" json:"updated_at,omitempty"`
	DeletedAt         gorm.DeletedAt     `gorm:"index" json:"-"`
	Name              string             `gorm:"size:200;not null" json:"name"`
	Description       string             `gorm:"size:1000" json:"description,omitempty"`
	GroupID           uint               `gorm:"not null;index" json:"group_id"`
	StartTime         time.Time          `gorm:"not null;index" json:"start_time"`
	EndTime           time.Time          `gorm:"not null" json:"end_time"`
	CategoryID        *uint              `gorm:"index" json:"category_id,omitempty"`
	Location          string             `gorm:"size:200" json:"location,omitempty"`
	CreatorUserID     uint               `gorm:"not null;index" json:"creator_user_id"`
	IsRecurring       bool               `gorm:"not null" json:"is_recurring"`
	RecurrencePattern *RecurrencePattern `gorm:"type:varchar(10)" json:"recurrence_pattern,omitempty"`
	RecurrenceEndTime *time.Time         `json:"recurrence_end_time,omitempty"`
	RecurringGroupID  *uint              `gorm:"index" json:"recurring_group_id,omitempty"`

	// Relationships
	Group    Group     `gorm:"foreignKey:GroupID" json:"-"`
	Category *Category `gorm:"foreignKey:CategoryID" json:"-"`
	Creator  User      `gorm:"foreignKey:CreatorUserID" json:"-"`
}

// IsDeleted reports whether the event has been soft deleted.
func (e Event) IsDeleted() bool {
	return e.DeletedAt.Valid
}

// IsMaster reports whether the event heads its own chain.
func (e Event) IsMaster() bool {
	return e.RecurringGroupID == nil
}

// Duration returns the length of the event.
func (e Event) Duration() time.Duration {
	return e.EndTime.Sub(e.StartTime)
}
