package calendar

import (
	"context"
	"time"

	"github.com/Domenick1991/fieldbooking/internal/domain"
)

// Event is the part of a remote calendar event the scheduler looks at.
type Event struct {
	ID       string
	Location string
	Start    time.Time
	End      time.Time
	// Timed is false for all-day events.
	Timed bool
}

type EventDraft struct {
	Code        string
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
}

// Gateway is read/write access to one remote calendar. Free/busy reads and
// inserts are not conditional, so callers must serialize writers themselves.
type Gateway interface {
	QueryFreeBusy(ctx context.Context, calendarID string, from, to time.Time) ([]domain.Interval, error)
	ListEvents(ctx context.Context, calendarID string, from, to time.Time) ([]Event, error)
	InsertEvent(ctx context.Context, calendarID string, draft EventDraft) (string, error)
	PatchEvent(ctx context.Context, calendarID, eventID string, start, end time.Time) error
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
	FindEventByBookingCode(ctx context.Context, calendarID, code string) (string, bool, error)
}
