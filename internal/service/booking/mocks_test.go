package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Domenick1991/fieldbooking/internal/calendar"
	"github.com/Domenick1991/fieldbooking/internal/calendar/calendartest"
	"github.com/Domenick1991/fieldbooking/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

func (m *MockBookingRepository) Get(ctx context.Context, code string) (*domain.Booking, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) Confirm(ctx context.Context, code, eventID string) error {
	args := m.Called(ctx, code, eventID)
	return args.Error(0)
}

func (m *MockBookingRepository) UpdateStart(ctx context.Context, code string, start time.Time) error {
	args := m.Called(ctx, code, start)
	return args.Error(0)
}

func (m *MockBookingRepository) Delete(ctx context.Context, code string) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func (m *MockBookingRepository) ListStaleRequested(ctx context.Context, before time.Time) ([]domain.Booking, error) {
	args := m.Called(ctx, before)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) AcquireCalendarLock(ctx context.Context, calendarID string, ttl time.Duration) (string, bool, error) {
	args := m.Called(ctx, calendarID, ttl)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockLocker) ReleaseCalendarLock(ctx context.Context, calendarID, token string) error {
	args := m.Called(ctx, calendarID, token)
	return args.Error(0)
}

func (m *MockLocker) RefreshCalendarLock(ctx context.Context, calendarID, token string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, calendarID, token, ttl)
	return args.Bool(0), args.Error(1)
}

// memLedger is an in-memory BookingRepository with the same row semantics as
// the postgres one.
type memLedger struct {
	mu   sync.Mutex
	rows map[string]domain.Booking
	now  func() time.Time
}

func newMemLedger(now func() time.Time) *memLedger {
	return &memLedger{rows: make(map[string]domain.Booking), now: now}
}

func (l *memLedger) Create(_ context.Context, b *domain.Booking) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.rows[b.Code]; ok {
		return domain.ErrDuplicateCode
	}
	if b.Status == "" {
		b.Status = domain.BookingStatusRequested
	}
	b.CreatedAt, b.UpdatedAt = l.now(), l.now()
	l.rows[b.Code] = *b
	return nil
}

func (l *memLedger) Get(_ context.Context, code string) (*domain.Booking, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.rows[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &b, nil
}

func (l *memLedger) Confirm(_ context.Context, code, eventID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.rows[code]
	if !ok || b.Status != domain.BookingStatusRequested {
		return domain.ErrNotFound
	}
	b.EventID, b.Status = eventID, domain.BookingStatusConfirmed
	l.rows[code] = b
	return nil
}

func (l *memLedger) UpdateStart(_ context.Context, code string, start time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.rows[code]
	if !ok || (b.Status != domain.BookingStatusConfirmed && b.Status != domain.BookingStatusRescheduled) {
		return domain.ErrNotFound
	}
	b.Start, b.Status = start, domain.BookingStatusRescheduled
	l.rows[code] = b
	return nil
}

func (l *memLedger) Delete(_ context.Context, code string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.rows[code]; !ok {
		return domain.ErrNotFound
	}
	delete(l.rows, code)
	return nil
}

func (l *memLedger) ListStaleRequested(_ context.Context, before time.Time) ([]domain.Booking, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.Booking
	for _, b := range l.rows {
		if b.Status == domain.BookingStatusRequested && b.CreatedAt.Before(before) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type stubSlots struct {
	slots    []domain.Slot
	err      error
	day      time.Time
	duration time.Duration
	address  string
}

func (s *stubSlots) Slots(_ context.Context, day time.Time, duration time.Duration, destination string) ([]domain.Slot, error) {
	s.day, s.duration, s.address = day, duration, destination
	return s.slots, s.err
}

func calendarDraft(code string, start time.Time) calendar.EventDraft {
	return calendar.EventDraft{Code: code, Summary: "Visual Craft • mini", Start: start, End: start.Add(time.Hour)}
}

// lostInsertGateway stores the event and then reports a timeout, like an
// insert that reached the calendar but whose response never came back.
type lostInsertGateway struct {
	*calendartest.Fake
}

func (g lostInsertGateway) InsertEvent(ctx context.Context, calendarID string, draft calendar.EventDraft) (string, error) {
	if _, err := g.Fake.InsertEvent(ctx, calendarID, draft); err != nil {
		return "", err
	}
	return "", context.DeadlineExceeded
}

// slowFreeBusyGateway holds every free/busy query for delay.
type slowFreeBusyGateway struct {
	*calendartest.Fake
	delay time.Duration
}

func (g slowFreeBusyGateway) QueryFreeBusy(ctx context.Context, calendarID string, start, end time.Time) ([]domain.Interval, error) {
	time.Sleep(g.delay)
	return g.Fake.QueryFreeBusy(ctx, calendarID, start, end)
}
