package booking

import (
	"context"
	"time"

	"github.com/Domenick1991/fieldbooking/internal/domain"
	"github.com/sirupsen/logrus"
)

const lockRetryInterval = 100 * time.Millisecond

// Locker is a lock shared by every process writing to the same calendar.
type Locker interface {
	AcquireCalendarLock(ctx context.Context, calendarID string, ttl time.Duration) (string, bool, error)
	ReleaseCalendarLock(ctx context.Context, calendarID, token string) error
	RefreshCalendarLock(ctx context.Context, calendarID, token string, ttl time.Duration) (bool, error)
}

// calendarLock serializes writers to one calendar: first within the process,
// then, if a remote Locker is set, across processes.
type calendarLock struct {
	calendarID string
	ttl        time.Duration
	wait       time.Duration
	local      chan struct{}
	remote     Locker
	log        logrus.FieldLogger
}

func newCalendarLock(calendarID string, ttl, wait time.Duration, log logrus.FieldLogger) *calendarLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &calendarLock{
		calendarID: calendarID,
		ttl:        ttl,
		wait:       wait,
		local:      make(chan struct{}, 1),
		log:        log,
	}
}

// acquire blocks for at most the configured wait and returns ErrCalendarBusy
// when the lock stays taken.
func (l *calendarLock) acquire(ctx context.Context) (func(), error) {
	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case l.local <- struct{}{}:
	case <-timer.C:
		return nil, domain.ErrCalendarBusy
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	releaseLocal := func() { <-l.local }

	if l.remote == nil {
		return releaseLocal, nil
	}

	for {
		token, ok, err := l.remote.AcquireCalendarLock(ctx, l.calendarID, l.ttl)
		if err != nil {
			// The in-process lock still holds, so a single instance stays safe.
			l.log.WithError(err).Warn("distributed calendar lock unavailable, continuing with local lock")
			return releaseLocal, nil
		}
		if ok {
			stopRenew := l.renew(token)
			return func() {
				stopRenew()
				if err := l.remote.ReleaseCalendarLock(context.Background(), l.calendarID, token); err != nil {
					l.log.WithError(err).Warn("failed to release calendar lock")
				}
				releaseLocal()
			}, nil
		}

		select {
		case <-time.After(lockRetryInterval):
		case <-timer.C:
			releaseLocal()
			return nil, domain.ErrCalendarBusy
		case <-ctx.Done():
			releaseLocal()
			return nil, ctx.Err()
		}
	}
}

// renew keeps the remote lease alive until the returned stop func is called,
// refreshing it every third of the TTL.
func (l *calendarLock) renew(token string) func() {
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(l.ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				ok, err := l.remote.RefreshCalendarLock(context.Background(), l.calendarID, token, l.ttl)
				if err != nil {
					l.log.WithError(err).Warn("failed to refresh calendar lock")
					continue
				}
				if !ok {
					l.log.WithField("calendar", l.calendarID).Warn("calendar lock lost before release")
					return
				}
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}
