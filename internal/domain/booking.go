package domain

import "time"

type BookingStatus string

const (
	BookingStatusRequested   BookingStatus = "REQUESTED"
	BookingStatusConfirmed   BookingStatus = "CONFIRMED"
	BookingStatusRescheduled BookingStatus = "RESCHEDULED"
	BookingStatusCancelled   BookingStatus = "CANCELLED"
)

type Booking struct {
	Code        string
	EventID     string
	Status      BookingStatus
	PkgKey      string
	PkgMinutes  int
	Type        string
	Address     string
	Start       time.Time
	ClientName  string
	ClientEmail string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (b Booking) Duration() time.Duration {
	return time.Duration(b.PkgMinutes) * time.Minute
}

func (b Booking) End() time.Time {
	return b.Start.Add(b.Duration())
}

// Visible reports whether the booking has a confirmed remote event behind it.
// Requested rows are in-flight writes and are never handed to callers.
func (b Booking) Visible() bool {
	return b.EventID != "" && (b.Status == BookingStatusConfirmed || b.Status == BookingStatusRescheduled)
}
