package availability

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/Domenick1991/fieldbooking/internal/calendar/calendartest"
	"github.com/Domenick1991/fieldbooking/internal/domain"
	"github.com/Domenick1991/fieldbooking/internal/hours"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const home = "100 Base Rd"

type tableOracle struct {
	legs     map[[2]string]domain.TravelLeg
	fallback domain.TravelLeg
	calls    map[[2]string]int
}

func newTableOracle() *tableOracle {
	return &tableOracle{
		legs:     map[[2]string]domain.TravelLeg{},
		fallback: domain.TravelLeg{Minutes: 20, Fallback: true},
		calls:    map[[2]string]int{},
	}
}

func (o *tableOracle) set(origin, destination string, minutes int, miles float64) {
	o.legs[[2]string{origin, destination}] = domain.TravelLeg{Minutes: minutes, Miles: miles}
}

func (o *tableOracle) Estimate(_ context.Context, origin, destination string) domain.TravelLeg {
	key := [2]string{origin, destination}
	o.calls[key]++
	if leg, ok := o.legs[key]; ok {
		return leg
	}
	return o.fallback
}

type fixture struct {
	engine   *Engine
	calendar *calendartest.Fake
	oracle   *tableOracle
	loc      *time.Location
}

func newFixture(t *testing.T, step time.Duration) *fixture {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	log := logrus.New()
	log.SetOutput(io.Discard)

	f := &fixture{calendar: calendartest.New(), oracle: newTableOracle(), loc: loc}
	f.engine = NewEngine(
		hours.NewPolicy(hours.Parse("Tue:09:00-17:00"), loc),
		f.calendar,
		f.oracle,
		Settings{CalendarID: "primary", HomeAddress: home, MaxTravelMiles: 60, Step: step},
		log,
	)
	return f
}

// 2026-10-20 is a Tuesday.
func (f *fixture) tue(h, m int) time.Time {
	return time.Date(2026, 10, 20, h, m, 0, 0, f.loc)
}

func starts(slots []domain.Slot) []time.Time {
	out := make([]time.Time, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Start)
	}
	return out
}

func TestSlots_ClosedDay(t *testing.T) {
	f := newFixture(t, 30*time.Minute)

	slots, err := f.engine.Slots(context.Background(), time.Date(2026, 10, 19, 0, 0, 0, 0, f.loc), time.Hour, "B")
	require.NoError(t, err)
	assert.NotNil(t, slots)
	assert.Empty(t, slots)
	assert.Zero(t, f.calendar.FreeBusyCalls)
}

func TestSlots_BusyIntervalExcludesOverlappingStarts(t *testing.T) {
	f := newFixture(t, 30*time.Minute)
	f.oracle.set(home, "B", 15, 8)
	f.calendar.Busy = []domain.Interval{{Start: f.tue(10, 0), End: f.tue(11, 0)}}

	slots, err := f.engine.Slots(context.Background(), f.tue(0, 0), time.Hour, "B")
	require.NoError(t, err)

	got := starts(slots)
	assert.Contains(t, got, f.tue(9, 0))
	assert.NotContains(t, got, f.tue(9, 30))
	assert.NotContains(t, got, f.tue(10, 0))
	assert.NotContains(t, got, f.tue(10, 30))
	assert.Contains(t, got, f.tue(11, 0))
	// A slot ending exactly at closing time lands on a closed instant.
	assert.Equal(t, f.tue(15, 30), got[len(got)-1])
	assert.Len(t, got, 11)
}

func TestSlots_Invariants(t *testing.T) {
	f := newFixture(t, 30*time.Minute)
	f.oracle.set(home, "B", 15, 42.5)
	f.calendar.Busy = []domain.Interval{
		{Start: f.tue(9, 45), End: f.tue(10, 15)},
		{Start: f.tue(13, 0), End: f.tue(14, 30)},
	}

	duration := 90 * time.Minute
	slots, err := f.engine.Slots(context.Background(), f.tue(12, 0), duration, "B")
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	for i, s := range slots {
		assert.Equal(t, duration, s.End.Sub(s.Start))
		assert.LessOrEqual(t, s.MilesFromBase, 60.0)
		assert.InDelta(t, 42.5, s.MilesFromBase, 0.001)
		for _, b := range f.calendar.Busy {
			assert.False(t, (domain.Interval{Start: s.Start, End: s.End}).Overlaps(b), "slot %s overlaps busy", s.Start)
		}
		if i > 0 {
			assert.True(t, slots[i-1].Start.Before(s.Start))
		}
	}
}

func TestSlots_TouchingBusyIntervalIsNotOverlap(t *testing.T) {
	f := newFixture(t, 30*time.Minute)
	f.oracle.set(home, "B", 15, 8)
	f.calendar.Busy = []domain.Interval{{Start: f.tue(10, 0), End: f.tue(11, 0)}}

	slots, err := f.engine.Slots(context.Background(), f.tue(0, 0), 30*time.Minute, "B")
	require.NoError(t, err)

	got := starts(slots)
	assert.Contains(t, got, f.tue(9, 30))
	assert.Contains(t, got, f.tue(11, 0))
}

func TestSlots_TravelBufferAfterPrecedingAppointment(t *testing.T) {
	f := newFixture(t, 5*time.Minute)
	f.oracle.set(home, "B", 15, 8)
	f.oracle.set("A", "B", 25, 12)
	f.calendar.AddEvent("A", f.tue(9, 0), f.tue(10, 0))

	slots, err := f.engine.Slots(context.Background(), f.tue(0, 0), time.Hour, "B")
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	for _, s := range slots {
		if !s.Start.Before(f.tue(10, 0)) {
			assert.False(t, s.Start.Before(f.tue(10, 25)), "slot at %s ignores travel", s.Start.Format("15:04"))
		}
	}
	assert.Equal(t, f.tue(10, 25), slots[0].Start)
}

func TestSlots_PrecedingWithoutLocationUsesHome(t *testing.T) {
	f := newFixture(t, 30*time.Minute)
	f.oracle.set(home, "B", 40, 8)
	f.calendar.AddEvent("", f.tue(9, 0), f.tue(10, 0))

	slots, err := f.engine.Slots(context.Background(), f.tue(0, 0), time.Hour, "B")
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	assert.Equal(t, f.tue(11, 0), slots[0].Start)
}

func TestSlots_NoDestinationSkipsTravelBuffer(t *testing.T) {
	f := newFixture(t, 30*time.Minute)
	f.oracle.set(home, home, 0, 0)
	f.calendar.AddEvent("A", f.tue(9, 0), f.tue(10, 0))

	slots, err := f.engine.Slots(context.Background(), f.tue(0, 0), time.Hour, "")
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	assert.Equal(t, f.tue(10, 0), slots[0].Start)
	assert.Zero(t, f.oracle.calls[[2]string{"A", ""}])
}

func TestSlots_OutsideServiceArea(t *testing.T) {
	f := newFixture(t, 30*time.Minute)
	f.oracle.set(home, "Far Away", 90, 80)

	slots, err := f.engine.Slots(context.Background(), f.tue(0, 0), time.Hour, "Far Away")
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestSlots_OracleCallsAreMemoized(t *testing.T) {
	f := newFixture(t, 30*time.Minute)
	f.oracle.set(home, "B", 15, 8)
	f.oracle.set("A", "B", 10, 4)
	f.calendar.AddEvent("A", f.tue(9, 0), f.tue(10, 0))

	_, err := f.engine.Slots(context.Background(), f.tue(0, 0), 30*time.Minute, "B")
	require.NoError(t, err)
	assert.Equal(t, 1, f.oracle.calls[[2]string{home, "B"}])
	assert.Equal(t, 1, f.oracle.calls[[2]string{"A", "B"}])
}

func TestSlots_CalendarFailureIsUpstream(t *testing.T) {
	f := newFixture(t, 30*time.Minute)
	f.calendar.FreeBusyErr = errors.New("503 backend error")

	_, err := f.engine.Slots(context.Background(), f.tue(0, 0), time.Hour, "B")
	var ue *domain.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "calendar freebusy", ue.Op)
}

func TestSlots_RejectsNonPositiveDuration(t *testing.T) {
	f := newFixture(t, 30*time.Minute)

	_, err := f.engine.Slots(context.Background(), f.tue(0, 0), 0, "B")
	var ve *domain.ValidationError
	assert.ErrorAs(t, err, &ve)
}
