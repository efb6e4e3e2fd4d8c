package availability

import (
	"context"
	"time"

	"github.com/Domenick1991/fieldbooking/internal/calendar"
	"github.com/Domenick1991/fieldbooking/internal/domain"
	"github.com/Domenick1991/fieldbooking/internal/hours"
	"github.com/Domenick1991/fieldbooking/internal/travel"
	"github.com/sirupsen/logrus"
)

type Settings struct {
	CalendarID     string
	HomeAddress    string
	MaxTravelMiles float64
	Step           time.Duration
}

// Engine lists bookable slots for one day, one duration and one job address.
type Engine struct {
	hours    *hours.Policy
	calendar calendar.Gateway
	oracle   travel.Oracle
	settings Settings
	log      logrus.FieldLogger
}

func NewEngine(policy *hours.Policy, gateway calendar.Gateway, oracle travel.Oracle, settings Settings, log logrus.FieldLogger) *Engine {
	if settings.Step <= 0 {
		settings.Step = 30 * time.Minute
	}
	return &Engine{
		hours:    policy,
		calendar: gateway,
		oracle:   oracle,
		settings: settings,
		log:      log,
	}
}

func (e *Engine) Location() *time.Location {
	return e.hours.Location()
}

// Slots returns the bookable slots of the local business day containing day,
// in time order. A closed day, an address outside the service area or a full
// calendar all yield an empty, non-nil result.
func (e *Engine) Slots(ctx context.Context, day time.Time, duration time.Duration, destination string) ([]domain.Slot, error) {
	if duration <= 0 {
		return nil, domain.Invalid("pkgMinutes", "must be positive")
	}
	slots := []domain.Slot{}

	openAt, closeAt, ok := e.hours.Window(day)
	if !ok {
		return slots, nil
	}

	dayStart := e.hours.DayStart(day)
	busy, err := e.calendar.QueryFreeBusy(ctx, e.settings.CalendarID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, domain.Upstream("calendar freebusy", err)
	}

	listed, err := e.calendar.ListEvents(ctx, e.settings.CalendarID, openAt, closeAt)
	if err != nil {
		return nil, domain.Upstream("calendar list events", err)
	}
	events := make([]calendar.Event, 0, len(listed))
	for _, ev := range listed {
		if ev.Timed {
			events = append(events, ev)
		}
	}

	legs := newMemo(e.oracle)

	target := destination
	if target == "" {
		target = e.settings.HomeAddress
	}
	base := legs.estimate(ctx, e.settings.HomeAddress, target)
	if base.Miles > e.settings.MaxTravelMiles {
		e.log.WithFields(logrus.Fields{
			"address": destination,
			"miles":   base.Miles,
		}).Info("address outside service area")
		return slots, nil
	}

	for start := openAt; start.Before(closeAt); start = start.Add(e.settings.Step) {
		end := start.Add(duration)
		if end.After(closeAt) {
			continue
		}
		if !e.hours.IsOpen(start) || !e.hours.IsOpen(end) {
			continue
		}
		candidate := domain.Interval{Start: start, End: end}
		if overlapsAny(candidate, busy) {
			continue
		}

		if prev, ok := preceding(events, start); ok && destination != "" {
			origin := prev.Location
			if origin == "" {
				origin = e.settings.HomeAddress
			}
			leg := legs.estimate(ctx, origin, destination)
			if start.Before(prev.End.Add(leg.Duration())) {
				continue
			}
		}

		slots = append(slots, domain.Slot{Start: start, End: end, MilesFromBase: base.Miles})
	}
	return slots, nil
}

func overlapsAny(candidate domain.Interval, busy []domain.Interval) bool {
	for _, b := range busy {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}

// preceding returns the last event, in listing order, that has ended by at.
func preceding(events []calendar.Event, at time.Time) (calendar.Event, bool) {
	var (
		prev  calendar.Event
		found bool
	)
	for _, ev := range events {
		if !ev.End.After(at) {
			prev, found = ev, true
		}
	}
	return prev, found
}

type legKey struct {
	origin      string
	destination string
}

// memo caches oracle answers for the lifetime of one Slots call.
type memo struct {
	oracle travel.Oracle
	legs   map[legKey]domain.TravelLeg
}

func newMemo(oracle travel.Oracle) *memo {
	return &memo{oracle: oracle, legs: make(map[legKey]domain.TravelLeg)}
}

func (m *memo) estimate(ctx context.Context, origin, destination string) domain.TravelLeg {
	key := legKey{origin: origin, destination: destination}
	if leg, ok := m.legs[key]; ok {
		return leg
	}
	leg := m.oracle.Estimate(ctx, origin, destination)
	m.legs[key] = leg
	return leg
}
