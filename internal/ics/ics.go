// Package ics renders the calendar invite attached to confirmation emails.
package ics

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
)

type FormatError struct {
	Field  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("ics: %s %s", e.Field, e.Reason)
}

type Invite struct {
	UID            string
	Start          time.Time
	End            time.Time
	Stamp          time.Time
	Title          string
	Description    string
	Location       string
	OrganizerName  string
	OrganizerEmail string
}

func (inv Invite) validate() error {
	switch {
	case strings.TrimSpace(inv.UID) == "":
		return &FormatError{Field: "uid", Reason: "is required"}
	case inv.Start.IsZero():
		return &FormatError{Field: "start", Reason: "is required"}
	case !inv.End.After(inv.Start):
		return &FormatError{Field: "end", Reason: "must be after start"}
	case strings.TrimSpace(inv.Title) == "":
		return &FormatError{Field: "title", Reason: "is required"}
	}
	if inv.OrganizerEmail != "" {
		if _, err := mail.ParseAddress(inv.OrganizerEmail); err != nil {
			return &FormatError{Field: "organizer", Reason: "is not an email address"}
		}
	}
	return nil
}

// Build renders a single-event REQUEST calendar.
func Build(inv Invite) ([]byte, error) {
	if err := inv.validate(); err != nil {
		return nil, err
	}
	stamp := inv.Stamp
	if stamp.IsZero() {
		stamp = inv.Start
	}

	cal := ical.NewCalendarFor("fieldbooking")
	cal.SetMethod(ical.MethodRequest)

	ev := cal.AddEvent(inv.UID)
	ev.SetDtStampTime(stamp.UTC())
	ev.SetStartAt(inv.Start.UTC())
	ev.SetEndAt(inv.End.UTC())
	ev.SetSummary(inv.Title)
	ev.SetStatus(ical.ObjectStatusConfirmed)
	if inv.Description != "" {
		ev.SetDescription(inv.Description)
	}
	if inv.Location != "" {
		ev.SetLocation(inv.Location)
	}
	if inv.OrganizerEmail != "" {
		var params []ical.PropertyParameter
		if inv.OrganizerName != "" {
			params = append(params, ical.WithCN(inv.OrganizerName))
		}
		ev.SetOrganizer("mailto:"+inv.OrganizerEmail, params...)
	}

	return []byte(cal.Serialize()), nil
}
