package booking

import (
	"context"

	"github.com/Domenick1991/fieldbooking/internal/domain"
	"github.com/Domenick1991/fieldbooking/internal/token"
	"github.com/sirupsen/logrus"
)

type OneTapOutcome string

const (
	OneTapRescheduled    OneTapOutcome = "rescheduled"
	OneTapNoAvailability OneTapOutcome = "no_availability"
)

type OneTapResult struct {
	Outcome OneTapOutcome
	Booking *domain.Booking
}

// OneTapReschedule moves the booking bound to rawToken to the first slot
// still ahead of now today. Every token problem is reported as
// token.ErrInvalidToken.
func (s *BookingService) OneTapReschedule(ctx context.Context, rawToken string) (*OneTapResult, error) {
	code, err := s.tokens.Verify(rawToken, token.ActionOneTapReschedule)
	if err != nil {
		return nil, token.ErrInvalidToken
	}

	unlock, err := s.lock.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := s.visible(ctx, code)
	if err != nil {
		return nil, err
	}

	now := s.now().In(s.settings.Location)
	slots, err := s.slots.Slots(ctx, now, current.Duration(), current.Address)
	if err != nil {
		return nil, err
	}

	for _, slot := range slots {
		if !slot.Start.After(now) {
			continue
		}
		updated, err := s.reschedule(ctx, code, slot.Start)
		if err != nil {
			return nil, err
		}
		return &OneTapResult{Outcome: OneTapRescheduled, Booking: updated}, nil
	}

	s.log.WithFields(logrus.Fields{"code": code}).Info("one-tap reschedule found no slot today")
	return &OneTapResult{Outcome: OneTapNoAvailability, Booking: current}, nil
}
