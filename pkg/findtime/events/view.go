package events

import (
	"time"

	"github.com/findtime/findtime/pkg/findtime/models"
)

// EventView is an event as shown to a group member.
type EventView struct {
	ID                uint                      `json:"id"`
	GroupID           uint                      `json:"group_id"`
	Name              string                    `json:"name"`
	Description       string                    `json:"description,omitempty"`
	Location          string                    `json:"location,omitempty"`
	StartTime         time.Time                 `json:"start_time"`
	EndTime           time.Time                 `json:"end_time"`
	CategoryID        *uint                     `json:"category_id,omitempty"`
	CategoryName      string                    `json:"category_name,omitempty"`
	CategoryColor     string                    `json:"category_color,omitempty"`
	CreatorUserID     uint                      `json:"creator_user_id"`
	CreatorName       string                    `json:"creator_name"`
	CreatorEmail      string                    `json:"creator_email"`
	CreatorNickname   string                    `json:"creator_nickname,omitempty"`
	IsRecurring       bool                      `json:"is_recurring"`
	RecurrencePattern *models.RecurrencePattern `json:"recurrence_pattern,omitempty"`
	RecurrenceEndTime *time.Time                `json:"recurrence_end_time,omitempty"`
	RecurringGroupID  *uint                     `json:"recurring_group_id,omitempty"`
	CreatedAt         time.Time                 `json:"created_at"`
	UpdatedAt         *time.Time                `json:"updated_at,omitempty"`
}

func newEventView(e models.Event) EventView {
	v := EventView{
		ID:                e.ID,
		GroupID:           e.GroupID,
		Name:              e.Name,
		Description:       e.Description,
		Location:          e.Location,
		StartTime:         e.StartTime,
		EndTime:           e.EndTime,
		CategoryID:        e.CategoryID,
		CreatorUserID:     e.CreatorUserID,
		IsRecurring:       e.IsRecurring,
		RecurrencePattern: e.RecurrencePattern,
		RecurrenceEndTime: e.RecurrenceEndTime,
		RecurringGroupID:  e.RecurringGroupID,
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
	}
	if e.Category != nil {
		v.CategoryName = e.Category.Name
		v.CategoryColor = e.Category.Color
	}
	return v
}
