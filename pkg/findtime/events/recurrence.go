package events

import (
	"fmt"
	"time"

	"github.com/findtime/findtime/pkg/findtime/models"
)

// MaxInstances caps how many instances one recurring event can expand into.
const MaxInstances = 1000

// maxRecurrenceYears bounds how far past the start a recurrence end may lie.
const maxRecurrenceYears = 10

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// addMonths moves t by n calendar months, clamping the day to the end of
// the target month (Jan 31 + 1 month = Feb 28 or 29).
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func addYears(t time.Time, n int) time.Time {
	return addMonths(t, 12*n)
}

// NextOccurrence advances t by one period of the pattern.
func NextOccurrence(t time.Time, p models.RecurrencePattern) (time.Time, error) {
	switch p {
	case models.RecurrenceDaily:
		return t.AddDate(0, 0, 1), nil
	case models.RecurrenceWeekly:
		return t.AddDate(0, 0, 7), nil
	case models.RecurrenceMonthly:
		return addMonths(t, 1), nil
	case models.RecurrenceYearly:
		return addYears(t, 1), nil
	}
	return t, fmt.Errorf("unknown recurrence pattern %q", p)
}

// DefaultHorizon is the end boundary used when a recurring event has no
// explicit recurrence end.
func DefaultHorizon(start time.Time, p models.RecurrencePattern) time.Time {
	switch p {
	case models.RecurrenceDaily:
		return addMonths(start, 3)
	case models.RecurrenceWeekly:
		return addYears(start, 1)
	case models.RecurrenceMonthly:
		return addYears(start, 2)
	case models.RecurrenceYearly:
		return addYears(start, 5)
	}
	return addYears(start, 1)
}

// MaxRecurrenceEnd is the latest recurrence end accepted for a series starting at start.
func MaxRecurrenceEnd(start time.Time) time.Time {
	return addYears(start, maxRecurrenceYears)
}

// EffectiveEnd returns the last instant an instance may start at. A
// recurrence end at exactly midnight names a date and covers that whole day.
func EffectiveEnd(master models.Event) time.Time {
	if master.RecurrenceEndTime == nil {
		return DefaultHorizon(master.StartTime, *master.RecurrencePattern)
	}
	end := master.RecurrenceEndTime.UTC()
	if isMidnight(end) {
		return end.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return end
}

func isMidnight(t time.Time) bool {
	h, m, s := t.Clock()
	return h == 0 && m == 0 && s == 0 && t.Nanosecond() == 0
}

// BuildInstances expands a persisted master into its sibling instances.
// Starts are strictly increasing, one period apart, never past the effective
// end, and there are at most MaxInstances of them. The master itself is not
// part of the result.
func BuildInstances(master models.Event) ([]models.Event, error) {
	if master.ID == 0 {
		return nil, fmt.Errorf("master event has no id")
	}
	if master.RecurrencePattern == nil {
		return nil, fmt.Errorf("event %d has no recurrence pattern", master.ID)
	}
	pattern := *master.RecurrencePattern
	if !pattern.Valid() {
		return nil, fmt.Errorf("unknown recurrence pattern %q", pattern)
	}

	end := EffectiveEnd(master)
	duration := master.Duration()
	chainID := master.ID

	var instances []models.Event
	cur := master.StartTime
	for cur.Before(end) && len(instances) < MaxInstances {
		next, err := NextOccurrence(cur, pattern)
		if err != nil {
			return nil, err
		}
		cur = next
		if cur.After(end) {
			break
		}
		instances = append(instances, newInstance(master, pattern, cur, duration, chainID))
	}
	return instances, nil
}

func newInstance(master models.Event, pattern models.RecurrencePattern, start time.Time, duration time.Duration, chainID uint) models.Event {
	p := pattern
	id := chainID
	inst := models.Event{
		Name:              master.Name,
		Description:       master.Description,
		GroupID:           master.GroupID,
		StartTime:         start,
		EndTime:           start.Add(duration),
		Location:          master.Location,
		CreatorUserID:     master.CreatorUserID,
		IsRecurring:       true,
		RecurrencePattern: &p,
		RecurringGroupID:  &id,
	}
	if master.CategoryID != nil {
		c := *master.CategoryID
		inst.CategoryID = &c
	}
	if master.RecurrenceEndTime != nil {
		e := *master.RecurrenceEndTime
		inst.RecurrenceEndTime = &e
	}
	return inst
}
