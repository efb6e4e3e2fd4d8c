package booking

import (
	"context"
	"errors"

	"github.com/Domenick1991/fieldbooking/internal/domain"
	"github.com/sirupsen/logrus"
)

type ReconcileReport struct {
	Scanned       int
	EventsDeleted int
	RowsDeleted   int
	Failed        int
}

// Reconcile rolls back creates that never got confirmed: stale requested rows
// are removed together with any calendar event tagged with their code.
func (s *BookingService) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	unlock, err := s.lock.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	stale, err := s.bookings.ListStaleRequested(ctx, s.now().Add(-s.settings.StaleAfter))
	if err != nil {
		return nil, domain.Upstream("ledger list stale", err)
	}

	report := &ReconcileReport{Scanned: len(stale)}
	for _, b := range stale {
		logger := s.log.WithFields(logrus.Fields{"code": b.Code, "created_at": b.CreatedAt})

		eventID, found, err := s.calendar.FindEventByBookingCode(ctx, s.settings.CalendarID, b.Code)
		if err != nil {
			logger.WithError(err).Warn("reconcile: event lookup failed")
			report.Failed++
			continue
		}
		if found {
			if err := s.calendar.DeleteEvent(ctx, s.settings.CalendarID, eventID); err != nil {
				logger.WithError(err).Warn("reconcile: event delete failed")
				report.Failed++
				continue
			}
			report.EventsDeleted++
		}

		if err := s.bookings.Delete(ctx, b.Code); err != nil && !errors.Is(err, domain.ErrNotFound) {
			logger.WithError(err).Warn("reconcile: row delete failed")
			report.Failed++
			continue
		}
		report.RowsDeleted++
		logger.Info("reconcile: discarded unconfirmed booking")
	}
	return report, nil
}
