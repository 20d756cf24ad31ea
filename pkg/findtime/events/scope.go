package events

import (
	"fmt"
	"strings"
	"time"

	"github.com/findtime/findtime/pkg/findtime/models"
)

// UpdateScope selects which members of a chain an update touches.
type UpdateScope string

const (
	ScopeThisOnly      UpdateScope = "ThisOnly"
	ScopeThisAndFuture UpdateScope = "ThisAndFuture"
	ScopeAll           UpdateScope = "All"
)

// DeleteScope selects which members of a chain a delete touches.
type DeleteScope string

const (
	DeleteThisEventOnly       DeleteScope = "ThisEventOnly"
	DeleteThisAndFutureEvents DeleteScope = "ThisAndFutureEvents"
	DeleteAllEvents           DeleteScope = "AllEvents"
)

// Valid reports whether s is one of the update scopes. The empty scope is
// read as ThisOnly.
func (s UpdateScope) Valid() bool {
	switch s {
	case "", ScopeThisOnly, ScopeThisAndFuture, ScopeAll:
		return true
	}
	return false
}

// Valid reports whether s is one of the delete scopes. The empty scope is
// read as ThisEventOnly.
func (s DeleteScope) Valid() bool {
	switch s {
	case "", DeleteThisEventOnly, DeleteThisAndFutureEvents, DeleteAllEvents:
		return true
	}
	return false
}

// ParseUpdateScope accepts a scope name (case-insensitive) or its ordinal.
// An empty value means ThisOnly.
func ParseUpdateScope(s string) (UpdateScope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "thisonly":
		return ScopeThisOnly, nil
	case "1", "thisandfuture":
		return ScopeThisAndFuture, nil
	case "2", "all":
		return ScopeAll, nil
	}
	return "", fmt.Errorf("invalid update scope %q. Valid values are: ThisOnly, ThisAndFuture, All", s)
}

// ParseDeleteScope accepts a scope name (case-insensitive) or its ordinal.
// An empty value means ThisEventOnly.
func ParseDeleteScope(s string) (DeleteScope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "thiseventonly":
		return DeleteThisEventOnly, nil
	case "1", "thisandfutureevents":
		return DeleteThisAndFutureEvents, nil
	case "2", "allevents":
		return DeleteAllEvents, nil
	}
	return "", fmt.Errorf("invalid delete scope %q. Valid values are: ThisEventOnly, ThisAndFutureEvents, AllEvents", s)
}

func (s UpdateScope) describe() string {
	switch s {
	case ScopeThisAndFuture:
		return "this and future events"
	case ScopeAll:
		return "all events in the series"
	}
	return "this event only"
}

func (s DeleteScope) describe() string {
	switch s {
	case DeleteThisAndFutureEvents:
		return "this and future events"
	case DeleteAllEvents:
		return "all events in the series"
	}
	return "this event only"
}

// ResolveChainID returns the id of the master heading e's chain. A master
// (or a plain event) is its own chain.
func ResolveChainID(e models.Event) uint {
	if e.RecurringGroupID != nil {
		return *e.RecurringGroupID
	}
	return e.ID
}

// SelectThisAndFuture keeps the chain members starting at or after the pivot.
// The pivot itself is included.
func SelectThisAndFuture(chain []models.Event, pivot models.Event) []models.Event {
	var out []models.Event
	for _, e := range chain {
		if !e.StartTime.Before(pivot.StartTime) {
			out = append(out, e)
		}
	}
	return out
}

// Changes are the validated new values of an update.
type Changes struct {
	Name        string
	Description string
	Location    string
	StartTime   time.Time
	EndTime     time.Time
	CategoryID  *uint
}

func (c Changes) applyCommon(e *models.Event, now time.Time) {
	e.Name = c.Name
	e.Description = c.Description
	e.Location = c.Location
	if c.CategoryID != nil {
		id := *c.CategoryID
		e.CategoryID = &id
	}
	stamp := now
	e.UpdatedAt = &stamp
}

// applyFullOverwrite sets the target row to exactly the new values.
func applyFullOverwrite(e *models.Event, c Changes, now time.Time) {
	c.applyCommon(e, now)
	e.StartTime = c.StartTime
	e.EndTime = c.EndTime
}

// applyTimeOfDayOnly keeps the row's own dates and moves it to the new
// clock times. If that would put the end at or before the start, the end is
// placed one new duration after the start instead.
func applyTimeOfDayOnly(e *models.Event, c Changes, now time.Time) {
	c.applyCommon(e, now)
	start := withTimeOfDay(e.StartTime, c.StartTime)
	end := withTimeOfDay(e.EndTime, c.EndTime)
	if !end.After(start) {
		end = start.Add(c.EndTime.Sub(c.StartTime))
	}
	e.StartTime = start
	e.EndTime = end
}

// withTimeOfDay combines the calendar date of date with the clock time of clock, in UTC.
func withTimeOfDay(date, clock time.Time) time.Time {
	date = date.UTC()
	clock = clock.UTC()
	y, m, d := date.Date()
	h, min, s := clock.Clock()
	return time.Date(y, m, d, h, min, s, clock.Nanosecond(), time.UTC)
}
