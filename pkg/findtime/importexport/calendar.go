package importexport

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/findtime/findtime/pkg/findtime/events"
)

const productID = "-//findtime//EN"

// eventUID is the stable iCalendar UID of a stored event.
func eventUID(id uint) string {
	return fmt.Sprintf("event-%d@findtime", id)
}

// NewCalendar builds a VCALENDAR with one VEVENT per event. Recurring
// series are written out occurrence by occurrence, without RRULE.
func NewCalendar(list []events.EventView, stamp time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	for _, ev := range list {
		cal.Children = append(cal.Children, toVEvent(ev, stamp))
	}
	return cal
}

func toVEvent(ev events.EventView, stamp time.Time) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, eventUID(ev.ID))
	ve.Props.SetText(ical.PropSummary, ev.Name)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, ev.StartTime.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeEnd, ev.EndTime.UTC())

	if ev.Description != "" {
		ve.Props.SetText(ical.PropDescription, ev.Description)
	}
	if ev.Location != "" {
		ve.Props.SetText(ical.PropLocation, ev.Location)
	}
	if ev.CategoryName != "" {
		ve.Props.SetText(ical.PropCategories, ev.CategoryName)
	}
	if ev.RecurringGroupID != nil {
		ve.Props.SetText(ical.PropRelatedTo, eventUID(*ev.RecurringGroupID))
	}
	return ve
}

// WriteCalendar encodes cal to w.
func WriteCalendar(w io.Writer, cal *ical.Calendar) error {
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encoding calendar: %w", err)
	}
	return nil
}

// ParsedEvent is one VEVENT read from an uploaded calendar.
type ParsedEvent struct {
	UID         string
	Name        string
	Description string
	Location    string
	StartTime   time.Time
	EndTime     time.Time
	Err         error
}

// ReadEvents decodes every VEVENT of every VCALENDAR in r. A VEVENT that
// cannot be read is returned with Err set; a malformed stream is an error.
func ReadEvents(r io.Reader) ([]ParsedEvent, error) {
	dec := ical.NewDecoder(r)
	var out []ParsedEvent
	for {
		cal, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decoding calendar: %w", err)
		}
		for _, ev := range cal.Events() {
			out = append(out, fromVEvent(ev))
		}
	}
	return out, nil
}

func fromVEvent(ev ical.Event) ParsedEvent {
	p := ParsedEvent{
		UID:         propText(ev.Props, ical.PropUID),
		Name:        strings.TrimSpace(propText(ev.Props, ical.PropSummary)),
		Description: propText(ev.Props, ical.PropDescription),
		Location:    propText(ev.Props, ical.PropLocation),
	}

	start, err := ev.DateTimeStart(time.UTC)
	if err != nil {
		p.Err = fmt.Errorf("invalid DTSTART: %w", err)
		return p
	}
	if start.IsZero() {
		p.Err = errors.New("missing DTSTART")
		return p
	}
	end, err := ev.DateTimeEnd(time.UTC)
	if err != nil {
		p.Err = fmt.Errorf("invalid DTEND: %w", err)
		return p
	}
	p.StartTime = start.UTC()
	p.EndTime = end.UTC()
	return p
}

func propText(props ical.Props, name string) string {
	text, err := props.Text(name)
	if err != nil {
		return ""
	}
	return text
}
