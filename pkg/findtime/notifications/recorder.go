package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/findtime/findtime/pkg/findtime/events"
	"github.com/findtime/findtime/pkg/findtime/models"
)

const maxMessageLength = 500

// Recorder writes one inbox notification per other active group member
// whenever an event changes. Failures are logged and never surface to the
// caller.
type Recorder struct {
	db  *gorm.DB
	log *logrus.Entry
}

// NewRecorder creates a recorder over db
func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db, log: logrus.WithField("component", "notifications")}
}

// EventChanged implements events.Notifier.
func (r *Recorder) EventChanged(ctx context.Context, ch events.Change) {
	if err := r.record(ctx, ch); err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{
			"group_id": ch.GroupID,
			"event_id": ch.EventID,
			"type":     ch.Kind,
		}).Warn("failed to record notifications")
	}
}

func (r *Recorder) record(ctx context.Context, ch events.Change) error {
	db := r.db.WithContext(ctx)

	var recipients []uint
	err := db.Model(&models.GroupMembership{}).
		Where("group_id = ? AND is_active = ? AND user_id <> ?", ch.GroupID, true, ch.ActorID).
		Pluck("user_id", &recipients).Error
	if err != nil {
		return fmt.Errorf("loading recipients: %w", err)
	}
	if len(recipients) == 0 {
		return nil
	}

	var actor models.User
	actorName := "Someone"
	if err := db.Unscoped().First(&actor, ch.ActorID).Error; err == nil {
		actorName = actor.DisplayName()
	}

	message := Message(ch, actorName)
	eventID := ch.EventID
	now := time.Now().UTC()
	rows := make([]models.Notification, 0, len(recipients))
	for _, userID := range recipients {
		rows = append(rows, models.Notification{
			CreatedAt: now,
			UserID:    userID,
			GroupID:   ch.GroupID,
			EventID:   &eventID,
			Type:      ch.Kind,
			Message:   message,
		})
	}
	if err := db.Create(&rows).Error; err != nil {
		return fmt.Errorf("inserting notifications: %w", err)
	}
	return nil
}

// Message renders the inbox text for a change.
func Message(ch events.Change, actorName string) string {
	var msg string
	switch ch.Kind {
	case models.NotificationEventCreated:
		msg = fmt.Sprintf("%s created %q", actorName, ch.EventName)
		if ch.Count > 1 {
			msg += fmt.Sprintf(" (%d occurrences)", ch.Count)
		}
	case models.NotificationEventUpdated:
		msg = fmt.Sprintf("%s updated %q", actorName, ch.EventName)
		if ch.Count > 1 {
			msg += fmt.Sprintf(" and %d related events", ch.Count-1)
		}
	case models.NotificationEventDeleted:
		msg = fmt.Sprintf("%s deleted %q", actorName, ch.EventName)
		if ch.Count > 1 {
			msg += fmt.Sprintf(" and %d related events", ch.Count-1)
		}
	default:
		msg = fmt.Sprintf("%s changed %q", actorName, ch.EventName)
	}
	if r := []rune(msg); len(r) > maxMessageLength {
		msg = string(r[:maxMessageLength])
	}
	return msg
}
