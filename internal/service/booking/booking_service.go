package booking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Domenick1991/fieldbooking/internal/calendar"
	"github.com/Domenick1991/fieldbooking/internal/domain"
	"github.com/Domenick1991/fieldbooking/internal/kafka"
	"github.com/Domenick1991/fieldbooking/internal/repository"
	"github.com/sirupsen/logrus"
)

const maxCodeAttempts = 5

type BookingUseCase interface {
	Availability(ctx context.Context, input AvailabilityInput) (*AvailabilityResult, error)
	CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error)
	GetBooking(ctx context.Context, code string) (*domain.Booking, error)
	RescheduleBooking(ctx context.Context, input RescheduleInput) (*domain.Booking, error)
	CancelBooking(ctx context.Context, code string) error
	OneTapReschedule(ctx context.Context, rawToken string) (*OneTapResult, error)
	Reconcile(ctx context.Context) (*ReconcileReport, error)
}

// SlotFinder is implemented by availability.Engine.
type SlotFinder interface {
	Slots(ctx context.Context, day time.Time, duration time.Duration, destination string) ([]domain.Slot, error)
}

type TokenVerifier interface {
	Verify(raw, action string) (string, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type Settings struct {
	CalendarID        string
	Brand             string
	Location          *time.Location
	DefaultPkgMinutes int
	CodePrefix        string
	LockTTL           time.Duration
	LockWait          time.Duration
	StaleAfter        time.Duration
	BookingTopic      string
}

type BookingService struct {
	bookings           repository.BookingRepository
	calendar           calendar.Gateway
	slots              SlotFinder
	tokens             TokenVerifier
	settings           Settings
	producer           Producer
	notificationsTopic string
	lock               *calendarLock
	now                func() time.Time
	newCode            func() (string, error)
	log                logrus.FieldLogger
}

type AvailabilityInput struct {
	DateISO    string `json:"dateISO"`
	PkgMinutes int    `json:"pkgMinutes"`
	Address    string `json:"address"`
}

type AvailabilityResult struct {
	DateISO string
	Slots   []domain.Slot
}

type ClientInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type CreateBookingInput struct {
	Type       string      `json:"type"`
	PkgKey     string      `json:"pkgKey"`
	PkgMinutes int         `json:"pkgMinutes"`
	Address    string      `json:"address"`
	StartISO   string      `json:"startISO"`
	Client     ClientInput `json:"client"`
}

type RescheduleInput struct {
	Code        string `json:"code"`
	NewStartISO string `json:"newStartISO"`
}

type BookingServiceOption func(*BookingService)

func WithNotificationsTopic(topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.notificationsTopic = topic
	}
}

func WithProducer(p Producer) BookingServiceOption {
	return func(s *BookingService) {
		s.producer = p
	}
}

// WithLocker adds a cross-process calendar lock on top of the in-process one.
func WithLocker(l Locker) BookingServiceOption {
	return func(s *BookingService) {
		s.lock.remote = l
	}
}

func WithClock(now func() time.Time) BookingServiceOption {
	return func(s *BookingService) {
		s.now = now
	}
}

func WithLogger(log logrus.FieldLogger) BookingServiceOption {
	return func(s *BookingService) {
		s.log = log
		s.lock.log = log
	}
}

func WithCodeGenerator(gen func() (string, error)) BookingServiceOption {
	return func(s *BookingService) {
		s.newCode = gen
	}
}

func NewBookingService(
	bookings repository.BookingRepository,
	gateway calendar.Gateway,
	slots SlotFinder,
	tokens TokenVerifier,
	settings Settings,
	opts ...BookingServiceOption,
) *BookingService {
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	if settings.DefaultPkgMinutes <= 0 {
		settings.DefaultPkgMinutes = 60
	}
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	service := &BookingService{
		bookings: bookings,
		calendar: gateway,
		slots:    slots,
		tokens:   tokens,
		settings: settings,
		lock:     newCalendarLock(settings.CalendarID, settings.LockTTL, settings.LockWait, discard),
		now:      time.Now,
		log:      discard,
	}
	service.newCode = func() (string, error) {
		return repository.GenerateCode(service.settings.CodePrefix)
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *BookingService) Availability(ctx context.Context, input AvailabilityInput) (*AvailabilityResult, error) {
	day, err := domain.ParseDay("dateISO", input.DateISO, s.settings.Location)
	if err != nil {
		return nil, err
	}
	minutes, err := s.pkgMinutes(input.PkgMinutes)
	if err != nil {
		return nil, err
	}

	slots, err := s.slots.Slots(ctx, day, time.Duration(minutes)*time.Minute, strings.TrimSpace(input.Address))
	if err != nil {
		return nil, err
	}
	return &AvailabilityResult{DateISO: input.DateISO, Slots: slots}, nil
}

func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error) {
	start, err := domain.ParseTime("startISO", input.StartISO, s.settings.Location)
	if err != nil {
		return nil, err
	}
	minutes, err := s.pkgMinutes(input.PkgMinutes)
	if err != nil {
		return nil, err
	}

	booking := &domain.Booking{
		Status:      domain.BookingStatusRequested,
		PkgKey:      input.PkgKey,
		PkgMinutes:  minutes,
		Type:        input.Type,
		Address:     strings.TrimSpace(input.Address),
		Start:       start,
		ClientName:  strings.TrimSpace(input.Client.Name),
		ClientEmail: strings.TrimSpace(input.Client.Email),
	}

	unlock, err := s.lock.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.ensureFree(ctx, booking.Start, booking.End(), nil); err != nil {
		return nil, err
	}
	if err := s.insertRequested(ctx, booking); err != nil {
		return nil, err
	}

	eventID, err := s.calendar.InsertEvent(ctx, s.settings.CalendarID, s.draft(booking))
	if err != nil {
		s.discardFailedInsert(ctx, booking.Code)
		return nil, domain.Upstream("calendar insert", err)
	}

	if err := s.bookings.Confirm(ctx, booking.Code, eventID); err != nil {
		s.discardRequested(ctx, booking.Code, eventID)
		return nil, domain.Upstream("ledger confirm", err)
	}
	booking.EventID = eventID
	booking.Status = domain.BookingStatusConfirmed

	s.log.WithFields(logrus.Fields{
		"code":  booking.Code,
		"event": eventID,
		"start": booking.Start.Format(time.RFC3339),
	}).Info("booking created")
	s.publish(ctx, kafka.EventBookingCreated, booking, nil)
	return booking, nil
}

func (s *BookingService) GetBooking(ctx context.Context, code string) (*domain.Booking, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.Required("code")
	}
	return s.visible(ctx, code)
}

func (s *BookingService) RescheduleBooking(ctx context.Context, input RescheduleInput) (*domain.Booking, error) {
	code := strings.TrimSpace(input.Code)
	if code == "" {
		return nil, domain.Required("code")
	}
	newStart, err := domain.ParseTime("newStartISO", input.NewStartISO, s.settings.Location)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lock.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return s.reschedule(ctx, code, newStart)
}

// reschedule expects the calendar lock to be held.
func (s *BookingService) reschedule(ctx context.Context, code string, newStart time.Time) (*domain.Booking, error) {
	current, err := s.visible(ctx, code)
	if err != nil {
		return nil, err
	}
	newEnd := newStart.Add(current.Duration())

	own := domain.Interval{Start: current.Start, End: current.End()}
	if err := s.ensureFree(ctx, newStart, newEnd, &own); err != nil {
		return nil, err
	}
	if err := s.calendar.PatchEvent(ctx, s.settings.CalendarID, current.EventID, newStart, newEnd); err != nil {
		return nil, domain.Upstream("calendar patch", err)
	}

	if err := s.bookings.UpdateStart(ctx, code, newStart); err != nil {
		bg := context.WithoutCancel(ctx)
		if perr := s.calendar.PatchEvent(bg, s.settings.CalendarID, current.EventID, current.Start, current.End()); perr != nil {
			s.consistencyGap("reschedule", current.Code, current.EventID, perr)
		}
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, domain.Upstream("ledger update start", err)
	}

	updated := *current
	updated.Start = newStart
	updated.Status = domain.BookingStatusRescheduled
	updated.UpdatedAt = s.now()

	previous := current.Start
	s.log.WithFields(logrus.Fields{
		"code": code,
		"from": previous.Format(time.RFC3339),
		"to":   newStart.Format(time.RFC3339),
	}).Info("booking rescheduled")
	s.publish(ctx, kafka.EventBookingRescheduled, &updated, &previous)
	return &updated, nil
}

func (s *BookingService) CancelBooking(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Required("code")
	}

	unlock, err := s.lock.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	current, err := s.visible(ctx, code)
	if err != nil {
		return err
	}
	if err := s.calendar.DeleteEvent(ctx, s.settings.CalendarID, current.EventID); err != nil {
		return domain.Upstream("calendar delete", err)
	}
	if err := s.bookings.Delete(ctx, code); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		s.consistencyGap("cancel", code, current.EventID, err)
		return domain.Upstream("ledger delete", err)
	}

	current.Status = domain.BookingStatusCancelled
	s.log.WithField("code", code).Info("booking cancelled")
	s.publish(ctx, kafka.EventBookingCancelled, current, nil)
	return nil
}

func (s *BookingService) pkgMinutes(requested int) (int, error) {
	switch {
	case requested == 0:
		return s.settings.DefaultPkgMinutes, nil
	case requested < 0:
		return 0, domain.Invalid("pkgMinutes", "must be positive")
	default:
		return requested, nil
	}
}

// visible loads a booking and hides rows whose remote write never finished.
func (s *BookingService) visible(ctx context.Context, code string) (*domain.Booking, error) {
	b, err := s.bookings.Get(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, domain.Upstream("ledger get", err)
	}
	if !b.Visible() {
		return nil, domain.ErrNotFound
	}
	return b, nil
}

// ensureFree re-reads free/busy under the lock, the same source the
// availability engine offers slots from. own is the booking's current
// interval when it is being moved; it is cut out of the busy blocks because
// free/busy carries no event ids and merges adjacent events.
func (s *BookingService) ensureFree(ctx context.Context, start, end time.Time, own *domain.Interval) error {
	busy, err := s.calendar.QueryFreeBusy(ctx, s.settings.CalendarID, start, end)
	if err != nil {
		return domain.Upstream("calendar freebusy", err)
	}
	want := domain.Interval{Start: start, End: end}
	for _, b := range busy {
		pieces := []domain.Interval{b}
		if own != nil {
			pieces = b.Subtract(*own)
		}
		for _, p := range pieces {
			if want.Overlaps(p) {
				return domain.ErrSlotTaken
			}
		}
	}
	return nil
}

func (s *BookingService) insertRequested(ctx context.Context, booking *domain.Booking) error {
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return fmt.Errorf("generate booking code: %w", err)
		}
		booking.Code = code

		err = s.bookings.Create(ctx, booking)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrDuplicateCode) {
			return domain.Upstream("ledger create", err)
		}
		s.log.WithField("code", code).Warn("booking code collision, regenerating")
	}
	return domain.Upstream("ledger create", fmt.Errorf("no unique code after %d attempts", maxCodeAttempts))
}

// discardFailedInsert handles an insert whose outcome is unknown: the event
// may exist even though the call failed. When the lookup itself fails the
// requested row stays behind so Reconcile can retry by code.
func (s *BookingService) discardFailedInsert(ctx context.Context, code string) {
	bg := context.WithoutCancel(ctx)
	eventID, found, err := s.calendar.FindEventByBookingCode(bg, s.settings.CalendarID, code)
	if err != nil {
		s.consistencyGap("create", code, "", err)
		return
	}
	if !found {
		eventID = ""
	}
	s.discardRequested(ctx, code, eventID)
}

// discardRequested rolls back a create that failed after the ledger row was
// written. If the event cannot be removed the row is kept, since Reconcile
// finds orphaned events only through requested rows.
func (s *BookingService) discardRequested(ctx context.Context, code, eventID string) {
	bg := context.WithoutCancel(ctx)
	if eventID != "" {
		if err := s.calendar.DeleteEvent(bg, s.settings.CalendarID, eventID); err != nil {
			s.consistencyGap("create", code, eventID, err)
			return
		}
	}
	if err := s.bookings.Delete(bg, code); err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.consistencyGap("create", code, eventID, err)
	}
}

func (s *BookingService) consistencyGap(op, code, eventID string, err error) {
	s.log.WithError(err).WithFields(logrus.Fields{
		"op":       op,
		"code":     code,
		"event":    eventID,
		"calendar": s.settings.CalendarID,
	}).Warn("calendar and ledger disagree, left for reconciliation")
}

func (s *BookingService) draft(b *domain.Booking) calendar.EventDraft {
	client := strings.TrimSpace(b.ClientName + " " + b.ClientEmail)
	return calendar.EventDraft{
		Code:        b.Code,
		Summary:     fmt.Sprintf("%s • %s", s.settings.Brand, b.PkgKey),
		Description: fmt.Sprintf("Type: %s\nAddress: %s\nPackage: %s\nClient: %s\nBooking: %s", b.Type, b.Address, b.PkgKey, client, b.Code),
		Location:    b.Address,
		Start:       b.Start,
		End:         b.End(),
	}
}

func (s *BookingService) publish(ctx context.Context, eventType string, b *domain.Booking, previousStart *time.Time) {
	if s.producer == nil || s.settings.BookingTopic == "" {
		return
	}
	event := kafka.BookingEvent{
		Type:          eventType,
		Code:          b.Code,
		EventID:       b.EventID,
		Status:        string(b.Status),
		PkgKey:        b.PkgKey,
		PkgMinutes:    b.PkgMinutes,
		ServiceType:   b.Type,
		Address:       b.Address,
		Start:         b.Start,
		End:           b.End(),
		PreviousStart: previousStart,
		ClientName:    b.ClientName,
		ClientEmail:   b.ClientEmail,
		OccurredAt:    s.now(),
	}
	logger := s.log.WithFields(logrus.Fields{"code": b.Code, "type": eventType})
	if err := s.producer.Publish(ctx, s.settings.BookingTopic, b.Code, event); err != nil {
		logger.WithError(err).Warn("failed to publish booking event")
	}
	if s.notificationsTopic != "" {
		if err := s.producer.Publish(ctx, s.notificationsTopic, b.Code, event); err != nil {
			logger.WithError(err).Warn("failed to publish notification event")
		}
	}
}

var _ BookingUseCase = (*BookingService)(nil)
