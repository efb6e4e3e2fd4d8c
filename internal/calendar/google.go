package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Domenick1991/fieldbooking/config"
	"github.com/Domenick1991/fieldbooking/internal/domain"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const bookingCodeProperty = "bookingCode"

var ErrAuthNotConfigured = errors.New("google calendar auth not configured")

type GoogleGateway struct {
	svc     *gcal.Service
	timeout time.Duration
}

// NewTokenSource prefers a service account (inline JSON or a file path) with
// optional user impersonation, then an OAuth refresh token.
func NewTokenSource(ctx context.Context, cfg config.CalendarConfig) (oauth2.TokenSource, error) {
	if raw := strings.TrimSpace(cfg.ServiceAccountJSON); raw != "" {
		data := []byte(raw)
		if !strings.HasPrefix(raw, "{") {
			var err error
			data, err = os.ReadFile(raw)
			if err != nil {
				return nil, fmt.Errorf("read service account file: %w", err)
			}
		}
		jwtCfg, err := google.JWTConfigFromJSON(data, gcal.CalendarScope)
		if err != nil {
			return nil, fmt.Errorf("parse service account: %w", err)
		}
		jwtCfg.Subject = cfg.ImpersonateEmail
		return jwtCfg.TokenSource(ctx), nil
	}

	if cfg.OAuthRefreshToken != "" {
		oauthCfg := &oauth2.Config{
			ClientID:     cfg.OAuthClientID,
			ClientSecret: cfg.OAuthClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{gcal.CalendarScope},
		}
		return oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.OAuthRefreshToken}), nil
	}

	return nil, ErrAuthNotConfigured
}

func NewGoogleGateway(ctx context.Context, timeout time.Duration, opts ...option.ClientOption) (*GoogleGateway, error) {
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return &GoogleGateway{svc: svc, timeout: timeout}, nil
}

func (g *GoogleGateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}

func (g *GoogleGateway) QueryFreeBusy(ctx context.Context, calendarID string, from, to time.Time) ([]domain.Interval, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	resp, err := g.svc.Freebusy.Query(&gcal.FreeBusyRequest{
		TimeMin: from.Format(time.RFC3339),
		TimeMax: to.Format(time.RFC3339),
		Items:   []*gcal.FreeBusyRequestItem{{Id: calendarID}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("freebusy query: %w", err)
	}

	cal, ok := resp.Calendars[calendarID]
	if !ok {
		return nil, nil
	}
	if len(cal.Errors) > 0 {
		return nil, fmt.Errorf("freebusy query: %s", cal.Errors[0].Reason)
	}

	busy := make([]domain.Interval, 0, len(cal.Busy))
	for _, p := range cal.Busy {
		start, err := time.Parse(time.RFC3339, p.Start)
		if err != nil {
			return nil, fmt.Errorf("freebusy start %q: %w", p.Start, err)
		}
		end, err := time.Parse(time.RFC3339, p.End)
		if err != nil {
			return nil, fmt.Errorf("freebusy end %q: %w", p.End, err)
		}
		busy = append(busy, domain.Interval{Start: start, End: end})
	}
	return busy, nil
}

func (g *GoogleGateway) ListEvents(ctx context.Context, calendarID string, from, to time.Time) ([]Event, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	var events []Event
	err := g.svc.Events.List(calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Pages(ctx, func(page *gcal.Events) error {
			for _, item := range page.Items {
				ev, err := toEvent(item)
				if err != nil {
					return err
				}
				events = append(events, ev)
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

func (g *GoogleGateway) InsertEvent(ctx context.Context, calendarID string, draft EventDraft) (string, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	created, err := g.svc.Events.Insert(calendarID, &gcal.Event{
		Summary:     draft.Summary,
		Description: draft.Description,
		Location:    draft.Location,
		Start:       &gcal.EventDateTime{DateTime: draft.Start.Format(time.RFC3339)},
		End:         &gcal.EventDateTime{DateTime: draft.End.Format(time.RFC3339)},
		Reminders:   &gcal.EventReminders{UseDefault: true},
		ExtendedProperties: &gcal.EventExtendedProperties{
			Private: map[string]string{bookingCodeProperty: draft.Code},
		},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	return created.Id, nil
}

func (g *GoogleGateway) PatchEvent(ctx context.Context, calendarID, eventID string, start, end time.Time) error {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	_, err := g.svc.Events.Patch(calendarID, eventID, &gcal.Event{
		Start: &gcal.EventDateTime{DateTime: start.Format(time.RFC3339)},
		End:   &gcal.EventDateTime{DateTime: end.Format(time.RFC3339)},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("patch event %s: %w", eventID, err)
	}
	return nil
}

// DeleteEvent treats an event that is already gone as deleted.
func (g *GoogleGateway) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	err := g.svc.Events.Delete(calendarID, eventID).Context(ctx).Do()
	if isGone(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete event %s: %w", eventID, err)
	}
	return nil
}

func (g *GoogleGateway) FindEventByBookingCode(ctx context.Context, calendarID, code string) (string, bool, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	resp, err := g.svc.Events.List(calendarID).
		PrivateExtendedProperty(bookingCodeProperty + "=" + code).
		SingleEvents(true).
		MaxResults(1).
		Context(ctx).
		Do()
	if err != nil {
		return "", false, fmt.Errorf("find event for %s: %w", code, err)
	}
	if len(resp.Items) == 0 {
		return "", false, nil
	}
	return resp.Items[0].Id, true, nil
}

func isGone(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
	}
	return false
}

func toEvent(item *gcal.Event) (Event, error) {
	ev := Event{ID: item.Id, Location: item.Location}
	if item.Start == nil || item.End == nil {
		return ev, nil
	}
	if item.Start.DateTime == "" || item.End.DateTime == "" {
		return ev, nil
	}
	start, err := time.Parse(time.RFC3339, item.Start.DateTime)
	if err != nil {
		return ev, fmt.Errorf("event %s start: %w", item.Id, err)
	}
	end, err := time.Parse(time.RFC3339, item.End.DateTime)
	if err != nil {
		return ev, fmt.Errorf("event %s end: %w", item.Id, err)
	}
	ev.Start, ev.End, ev.Timed = start, end, true
	return ev, nil
}

var _ Gateway = (*GoogleGateway)(nil)
