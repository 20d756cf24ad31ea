package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/findtime/findtime/pkg/findtime/apperror"
	"github.com/findtime/findtime/pkg/findtime/membership"
	"github.com/findtime/findtime/pkg/findtime/models"
)

const (
	maxNameLength        = 200
	maxDescriptionLength = 1000
	maxLocationLength    = 200
)

// Authorizer answers the membership questions the service asks before
// touching events. membership.Oracle implements it.
type Authorizer interface {
	ValidateActiveMember(ctx context.Context, groupID, userID uint) (*models.GroupMembership, error)
	IsGroupAdmin(ctx context.Context, groupID, userID uint) (bool, error)
	ValidateCategory(ctx context.Context, categoryID, groupID uint) (*models.Category, error)
	LookupUser(ctx context.Context, userID uint) (*membership.UserInfo, error)
	Nicknames(ctx context.Context, groupID, viewerID uint) (map[uint]string, error)
}

// Change describes a committed mutation, for notification fan-out.
type Change struct {
	Kind      models.NotificationType
	GroupID   uint
	ActorID   uint
	EventID   uint
	EventName string
	Count     int
}

// Notifier is told about every committed create, update and delete.
type Notifier interface {
	EventChanged(ctx context.Context, ch Change)
}

// ExpansionStatus reports what happened to a recurring event's instances.
type ExpansionStatus string

const (
	// ExpansionNone means the event is not recurring.
	ExpansionNone     ExpansionStatus = "none"
	ExpansionComplete ExpansionStatus = "complete"
	// ExpansionFailed means the master was saved but its instances were not.
	ExpansionFailed ExpansionStatus = "failed"
)

// CreateInput is a request to create an event.
type CreateInput struct {
	GroupID           uint
	Name              string
	Description       string
	Location          string
	StartTime         time.Time
	EndTime           time.Time
	CategoryID        *uint
	IsRecurring       bool
	RecurrencePattern *models.RecurrencePattern
	RecurrenceEndTime *time.Time
}

// UpdateInput carries the new values for an update.
type UpdateInput struct {
	Name        string
	Description string
	Location    string
	StartTime   time.Time
	EndTime     time.Time
	CategoryID  *uint
}

// CreateResult is the outcome of a successful create.
type CreateResult struct {
	Event          models.Event
	InstanceCount  int
	Expansion      ExpansionStatus
	ExpansionError string
}

// Message is a human-readable summary of the create.
func (r CreateResult) Message() string {
	switch r.Expansion {
	case ExpansionComplete:
		return fmt.Sprintf("Event created with %d recurring instances", r.InstanceCount)
	case ExpansionFailed:
		return "Event created, but its recurring instances could not be generated"
	}
	return "Event created"
}

// MutationResult is the outcome of an update, delete or category assignment.
type MutationResult struct {
	Count   int
	Message string
}

// Option configures a Service
type Option func(*Service)

// WithNotifier registers n to hear about committed changes.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger used for best-effort failures.
func WithLogger(l *logrus.Entry) Option {
	return func(s *Service) { s.log = l }
}

// Service creates, edits, deletes and lists events.
type Service struct {
	store    Store
	auth     Authorizer
	notifier Notifier
	now      func() time.Time
	log      *logrus.Entry
}

// NewService creates an event service
func NewService(store Store, auth Authorizer, opts ...Option) *Service {
	s := &Service{
		store: store,
		auth:  auth,
		now:   time.Now,
		log:   logrus.WithField("component", "events"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// CreateEvent validates and stores a new event. A recurring event is
// expanded into its instances in the same transaction; if expansion fails
// the master is still kept and the result says so.
func (s *Service) CreateEvent(ctx context.Context, userID uint, in CreateInput) (*CreateResult, error) {
	if _, err := s.auth.ValidateActiveMember(ctx, in.GroupID, userID); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if err := validateFields(name, in.Description, in.Location); err != nil {
		return nil, err
	}
	start, end := in.StartTime.UTC(), in.EndTime.UTC()
	if end.Before(start) {
		return nil, apperror.Validation("Event end time can't be before its start time")
	}
	if in.CategoryID != nil {
		if _, err := s.auth.ValidateCategory(ctx, *in.CategoryID, in.GroupID); err != nil {
			return nil, err
		}
	}

	event := models.Event{
		Name:          name,
		Description:   in.Description,
		GroupID:       in.GroupID,
		StartTime:     start,
		EndTime:       end,
		CategoryID:    in.CategoryID,
		Location:      in.Location,
		CreatorUserID: userID,
		IsRecurring:   in.IsRecurring,
	}

	if in.IsRecurring {
		if in.RecurrencePattern == nil || *in.RecurrencePattern == "" {
			return nil, apperror.Validation("Recurrence pattern can not be empty")
		}
		if !in.RecurrencePattern.Valid() {
			return nil, apperror.Validation("Invalid recurrence pattern. Valid values are: Daily, Weekly, Monthly, Yearly")
		}
		p := *in.RecurrencePattern
		event.RecurrencePattern = &p
		if in.RecurrenceEndTime != nil {
			recEnd := in.RecurrenceEndTime.UTC()
			if !recEnd.After(start) {
				return nil, apperror.Validation("Recurrence end date must be after the start time")
			}
			if recEnd.After(MaxRecurrenceEnd(start)) {
				return nil, apperror.Validation("Recurrence end date cannot be more than %d years after the start time", maxRecurrenceYears)
			}
			event.RecurrenceEndTime = &recEnd
		}
	}

	result := &CreateResult{Expansion: ExpansionNone}
	err := s.store.Transaction(ctx, func(tx Store) error {
		if err := tx.Insert(ctx, &event); err != nil {
			return err
		}
		if !event.IsRecurring {
			return nil
		}

		count, err := s.expand(ctx, tx, event)
		if err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"event_id": event.ID,
				"pattern":  *event.RecurrencePattern,
			}).Warn("failed to create recurring instances")
			result.Expansion = ExpansionFailed
			result.ExpansionError = err.Error()
			return nil
		}
		result.Expansion = ExpansionComplete
		result.InstanceCount = count
		return nil
	})
	if err != nil {
		return nil, apperror.Internal(err, "Failed to create event")
	}
	result.Event = event

	s.notify(ctx, Change{
		Kind:      models.NotificationEventCreated,
		GroupID:   event.GroupID,
		ActorID:   userID,
		EventID:   event.ID,
		EventName: event.Name,
		Count:     1 + result.InstanceCount,
	})
	return result, nil
}

// expand writes the master's instances inside a nested transaction so a
// failure rolls back only the instances.
func (s *Service) expand(ctx context.Context, tx Store, master models.Event) (int, error) {
	instances, err := BuildInstances(master)
	if err != nil {
		return 0, err
	}
	if len(instances) == 0 {
		return 0, nil
	}
	err = tx.Transaction(ctx, func(inner Store) error {
		return inner.InsertMany(ctx, instances)
	})
	if err != nil {
		return 0, err
	}
	return len(instances), nil
}

// UpdateEvent edits an event and, depending on scope, other members of its chain.
func (s *Service) UpdateEvent(ctx context.Context, userID, eventID uint, in UpdateInput, scope UpdateScope) (*MutationResult, error) {
	if !scope.Valid() {
		return nil, apperror.Validation("Invalid update scope %q", scope)
	}
	target, err := s.loadForMutation(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if err := validateFields(name, in.Description, in.Location); err != nil {
		return nil, err
	}
	changes := Changes{
		Name:        name,
		Description: in.Description,
		Location:    in.Location,
		StartTime:   in.StartTime.UTC(),
		EndTime:     in.EndTime.UTC(),
		CategoryID:  in.CategoryID,
	}
	if !changes.EndTime.After(changes.StartTime) {
		return nil, apperror.Validation("Event end time must be after its start time")
	}
	if in.CategoryID != nil {
		if _, err := s.auth.ValidateCategory(ctx, *in.CategoryID, target.GroupID); err != nil {
			return nil, err
		}
	}

	now := s.clock()
	var touched []models.Event
	err = s.store.Transaction(ctx, func(tx Store) error {
		switch scope {
		case ScopeThisAndFuture, ScopeAll:
			chain, err := tx.FindChain(ctx, ResolveChainID(*target))
			if err != nil {
				return err
			}
			if scope == ScopeThisAndFuture {
				chain = SelectThisAndFuture(chain, *target)
			}
			for i := range chain {
				if chain[i].ID == target.ID {
					applyFullOverwrite(&chain[i], changes, now)
				} else {
					applyTimeOfDayOnly(&chain[i], changes, now)
				}
			}
			touched = chain
		default:
			applyFullOverwrite(target, changes, now)
			touched = []models.Event{*target}
		}
		return tx.SaveAll(ctx, touched)
	})
	if err != nil {
		return nil, apperror.Internal(err, "Failed to update event")
	}

	count := len(touched)
	s.notify(ctx, Change{
		Kind:      models.NotificationEventUpdated,
		GroupID:   target.GroupID,
		ActorID:   userID,
		EventID:   target.ID,
		EventName: changes.Name,
		Count:     count,
	})

	msg := "Event updated"
	if scope != ScopeThisOnly && scope != "" {
		msg = fmt.Sprintf("%d events updated (%s)", count, scope.describe())
	}
	return &MutationResult{Count: count, Message: msg}, nil
}

// DeleteEvent soft-deletes an event and, depending on scope, other members of its chain.
func (s *Service) DeleteEvent(ctx context.Context, userID, eventID uint, scope DeleteScope) (*MutationResult, error) {
	if !scope.Valid() {
		return nil, apperror.Validation("Invalid delete scope %q", scope)
	}
	target, err := s.loadForMutation(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}

	var deleted int64
	err = s.store.Transaction(ctx, func(tx Store) error {
		ids := []uint{target.ID}
		if scope == DeleteThisAndFutureEvents || scope == DeleteAllEvents {
			chain, err := tx.FindChain(ctx, ResolveChainID(*target))
			if err != nil {
				return err
			}
			if scope == DeleteThisAndFutureEvents {
				chain = SelectThisAndFuture(chain, *target)
			}
			ids = eventIDs(chain)
		}
		n, err := tx.SoftDelete(ctx, ids)
		deleted = n
		return err
	})
	if err != nil {
		return nil, apperror.Internal(err, "Failed to delete event")
	}

	count := int(deleted)
	s.notify(ctx, Change{
		Kind:      models.NotificationEventDeleted,
		GroupID:   target.GroupID,
		ActorID:   userID,
		EventID:   target.ID,
		EventName: target.Name,
		Count:     count,
	})

	msg := "Event deleted"
	if scope != DeleteThisEventOnly && scope != "" {
		msg = fmt.Sprintf("%d events deleted (%s)", count, scope.describe())
	}
	return &MutationResult{Count: count, Message: msg}, nil
}

// AssignCategory sets an event's category. For a recurring event the whole
// chain gets it.
func (s *Service) AssignCategory(ctx context.Context, userID, groupID, eventID, categoryID uint) (*MutationResult, error) {
	if _, err := s.auth.ValidateActiveMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	category, err := s.auth.ValidateCategory(ctx, categoryID, groupID)
	if err != nil {
		return nil, err
	}
	event, err := s.store.FindByID(ctx, eventID)
	if err != nil || event.GroupID != groupID {
		return nil, notFoundOr(err, eventID)
	}

	var updated int64
	err = s.store.Transaction(ctx, func(tx Store) error {
		ids := []uint{event.ID}
		if event.IsRecurring {
			chain, err := tx.FindChain(ctx, ResolveChainID(*event))
			if err != nil {
				return err
			}
			ids = eventIDs(chain)
		}
		n, err := tx.SetCategory(ctx, ids, category.ID)
		updated = n
		return err
	})
	if err != nil {
		return nil, apperror.Internal(err, "Failed to assign category")
	}

	if event.IsRecurring {
		return &MutationResult{Count: int(updated), Message: fmt.Sprintf("Categories updated on %d events", updated)}, nil
	}
	return &MutationResult{Count: int(updated), Message: fmt.Sprintf("Category %s set for event", category.Name)}, nil
}

// ListGroupEvents returns the group's live events ordered by start time.
func (s *Service) ListGroupEvents(ctx context.Context, userID, groupID uint) ([]EventView, error) {
	if _, err := s.auth.ValidateActiveMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	list, err := s.store.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, apperror.Internal(err, "Failed to list events")
	}
	nicknames, err := s.auth.Nicknames(ctx, groupID, userID)
	if err != nil {
		return nil, apperror.Internal(err, "Failed to list events")
	}

	views := make([]EventView, 0, len(list))
	for _, e := range list {
		v := newEventView(e)
		v.CreatorName = e.Creator.DisplayName()
		v.CreatorEmail = e.Creator.Email
		v.CreatorNickname = nicknames[e.CreatorUserID]
		views = append(views, v)
	}
	return views, nil
}

// GetEvent returns one live event to a member of its group.
func (s *Service) GetEvent(ctx context.Context, userID, eventID uint) (*EventView, error) {
	event, err := s.store.FindByID(ctx, eventID)
	if err != nil {
		return nil, notFoundOr(err, eventID)
	}
	if _, err := s.auth.ValidateActiveMember(ctx, event.GroupID, userID); err != nil {
		return nil, err
	}
	return s.describe(ctx, userID, *event)
}

// NextEvent returns the group's first live event starting now or later.
func (s *Service) NextEvent(ctx context.Context, userID, groupID uint) (*EventView, error) {
	if _, err := s.auth.ValidateActiveMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	event, err := s.store.NextInGroup(ctx, groupID, s.clock())
	if errors.Is(err, ErrEventNotFound) {
		return nil, apperror.NotFound("No upcoming events")
	}
	if err != nil {
		return nil, apperror.Internal(err, "Failed to load next event")
	}
	return s.describe(ctx, userID, *event)
}

func (s *Service) describe(ctx context.Context, viewerID uint, e models.Event) (*EventView, error) {
	v := newEventView(e)
	creator, err := s.auth.LookupUser(ctx, e.CreatorUserID)
	if err == nil {
		v.CreatorName = creator.DisplayName
		v.CreatorEmail = creator.Email
	}
	nicknames, err := s.auth.Nicknames(ctx, e.GroupID, viewerID)
	if err != nil {
		return nil, apperror.Internal(err, "Failed to load event")
	}
	v.CreatorNickname = nicknames[e.CreatorUserID]
	return &v, nil
}

// AuthorizeGroup checks that userID is an active member of groupID.
func (s *Service) AuthorizeGroup(ctx context.Context, userID, groupID uint) error {
	_, err := s.auth.ValidateActiveMember(ctx, groupID, userID)
	return err
}

// AuthorizeMutation checks that userID may change eventID.
func (s *Service) AuthorizeMutation(ctx context.Context, userID, eventID uint) error {
	_, err := s.loadForMutation(ctx, userID, eventID)
	return err
}

// loadForMutation finds a live event and checks the caller may change it:
// an active member who is either the group admin or the event's creator.
func (s *Service) loadForMutation(ctx context.Context, userID, eventID uint) (*models.Event, error) {
	event, err := s.store.FindByID(ctx, eventID)
	if err != nil {
		return nil, notFoundOr(err, eventID)
	}
	if _, err := s.auth.ValidateActiveMember(ctx, event.GroupID, userID); err != nil {
		return nil, err
	}
	if event.CreatorUserID == userID {
		return event, nil
	}
	isAdmin, err := s.auth.IsGroupAdmin(ctx, event.GroupID, userID)
	if err != nil {
		return nil, apperror.Internal(err, "Failed to check permissions")
	}
	if !isAdmin {
		return nil, apperror.Forbidden("Only the group admin or the event creator can change this event")
	}
	return event, nil
}

func (s *Service) notify(ctx context.Context, ch Change) {
	if s.notifier == nil {
		return
	}
	s.notifier.EventChanged(ctx, ch)
}

func validateFields(name, description, location string) error {
	switch {
	case name == "":
		return apperror.Validation("Event name can not be empty")
	case len([]rune(name)) > maxNameLength:
		return apperror.Validation("Event name can not be longer than %d characters", maxNameLength)
	case len([]rune(description)) > maxDescriptionLength:
		return apperror.Validation("Event description can not be longer than %d characters", maxDescriptionLength)
	case len([]rune(location)) > maxLocationLength:
		return apperror.Validation("Event location can not be longer than %d characters", maxLocationLength)
	}
	return nil
}

func notFoundOr(err error, eventID uint) error {
	if err == nil || errors.Is(err, ErrEventNotFound) {
		return apperror.NotFound("Event %d not found", eventID)
	}
	return apperror.Internal(err, "Failed to load event")
}

func eventIDs(list []models.Event) []uint {
	ids := make([]uint, len(list))
	for i, e := range list {
		ids[i] = e.ID
	}
	return ids
}
