// Package calendartest provides an in-memory calendar.Gateway for tests.
package calendartest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Domenick1991/fieldbooking/internal/calendar"
	"github.com/Domenick1991/fieldbooking/internal/domain"
)

var ErrEventNotFound = errors.New("event not found")

type storedEvent struct {
	calendar.Event
	Code    string
	Summary string
}

// Fake keeps events in memory. Busy holds extra intervals reported by
// free/busy that have no listed event (e.g. other calendars, private blocks).
// The *Err fields make the matching call fail.
type Fake struct {
	mu     sync.Mutex
	seq    int
	events map[string]*storedEvent

	Busy []domain.Interval

	FreeBusyErr error
	ListErr     error
	InsertErr   error
	PatchErr    error
	DeleteErr   error
	FindErr     error

	FreeBusyCalls int
	ListCalls     int
}

func New() *Fake {
	return &Fake{events: make(map[string]*storedEvent)}
}

// AddEvent seeds an existing appointment and returns its id.
func (f *Fake) AddEvent(location string, start, end time.Time) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.add(&storedEvent{Event: calendar.Event{Location: location, Start: start, End: end, Timed: true}})
}

func (f *Fake) add(ev *storedEvent) string {
	f.seq++
	ev.ID = fmt.Sprintf("evt-%d", f.seq)
	f.events[ev.ID] = ev
	return ev.ID
}

func (f *Fake) Event(id string) (calendar.Event, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[id]
	if !ok {
		return calendar.Event{}, false
	}
	return ev.Event, true
}

func (f *Fake) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func (f *Fake) QueryFreeBusy(_ context.Context, _ string, from, to time.Time) ([]domain.Interval, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FreeBusyCalls++
	if f.FreeBusyErr != nil {
		return nil, f.FreeBusyErr
	}
	window := domain.Interval{Start: from, End: to}
	var busy []domain.Interval
	for _, iv := range f.Busy {
		if iv.Overlaps(window) {
			busy = append(busy, iv)
		}
	}
	for _, ev := range f.events {
		iv := domain.Interval{Start: ev.Start, End: ev.End}
		if ev.Timed && iv.Overlaps(window) {
			busy = append(busy, iv)
		}
	}
	sort.Slice(busy, func(i, j int) bool { return busy[i].Start.Before(busy[j].Start) })
	return busy, nil
}

func (f *Fake) ListEvents(_ context.Context, _ string, from, to time.Time) ([]calendar.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ListCalls++
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	window := domain.Interval{Start: from, End: to}
	var out []calendar.Event
	for _, ev := range f.events {
		if ev.Timed && (domain.Interval{Start: ev.Start, End: ev.End}).Overlaps(window) {
			out = append(out, ev.Event)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (f *Fake) InsertEvent(_ context.Context, _ string, draft calendar.EventDraft) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.InsertErr != nil {
		return "", f.InsertErr
	}
	return f.add(&storedEvent{
		Event:   calendar.Event{Location: draft.Location, Start: draft.Start, End: draft.End, Timed: true},
		Code:    draft.Code,
		Summary: draft.Summary,
	}), nil
}

func (f *Fake) PatchEvent(_ context.Context, _ string, eventID string, start, end time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PatchErr != nil {
		return f.PatchErr
	}
	ev, ok := f.events[eventID]
	if !ok {
		return ErrEventNotFound
	}
	ev.Start, ev.End = start, end
	return nil
}

func (f *Fake) DeleteEvent(_ context.Context, _ string, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	delete(f.events, eventID)
	return nil
}

func (f *Fake) FindEventByBookingCode(_ context.Context, _ string, code string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FindErr != nil {
		return "", false, f.FindErr
	}
	for id, ev := range f.events {
		if ev.Code == code {
			return id, true, nil
		}
	}
	return "", false, nil
}

var _ calendar.Gateway = (*Fake)(nil)
