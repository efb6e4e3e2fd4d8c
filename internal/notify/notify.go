// Package notify turns booking events into client and admin emails.
package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/Domenick1991/fieldbooking/internal/email"
	"github.com/Domenick1991/fieldbooking/internal/ics"
	"github.com/Domenick1991/fieldbooking/internal/kafka"
	"github.com/Domenick1991/fieldbooking/internal/token"
	"github.com/sirupsen/logrus"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const whenLayout = "Mon, Jan 2 2006 at 3:04 PM MST"

type Mailer interface {
	Send(ctx context.Context, msg email.Message) error
}

type TokenIssuer interface {
	Issue(code, action string) (string, error)
}

type Settings struct {
	Brand           string
	PublicBaseURL   string
	FrontendBaseURL string
	FromName        string
	FromEmail       string
	AdminEmail      string
	Location        *time.Location
}

type Notifier struct {
	mailer   Mailer
	tokens   TokenIssuer
	settings Settings
	log      logrus.FieldLogger
}

func NewNotifier(mailer Mailer, tokens TokenIssuer, settings Settings, log logrus.FieldLogger) *Notifier {
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	return &Notifier{mailer: mailer, tokens: tokens, settings: settings, log: log}
}

type view struct {
	Code      string
	When      string
	ManageURL string
	OneTapURL string
}

// Handle sends the email for one booking event. Unknown event types are
// ignored.
func (n *Notifier) Handle(ctx context.Context, ev kafka.BookingEvent) error {
	var (
		msg email.Message
		err error
	)
	switch ev.Type {
	case kafka.EventBookingCreated:
		msg, err = n.confirmation(ev)
	case kafka.EventBookingRescheduled:
		msg, err = n.rescheduled(ev)
	case kafka.EventBookingCancelled:
		msg, err = n.cancelled(ev)
	default:
		n.log.WithField("type", ev.Type).Debug("ignoring booking event")
		return nil
	}
	if err != nil {
		return fmt.Errorf("compose %s for %s: %w", ev.Type, ev.Code, err)
	}
	if len(msg.To) == 0 {
		n.log.WithField("code", ev.Code).Warn("booking event has no recipients")
		return nil
	}

	if err := n.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s for %s: %w", ev.Type, ev.Code, err)
	}
	n.log.WithFields(logrus.Fields{"code": ev.Code, "type": ev.Type}).Info("notification sent")
	return nil
}

func (n *Notifier) ManageURL(code string) string {
	return strings.TrimRight(n.settings.FrontendBaseURL, "/") + "/#/manage/" + code
}

func (n *Notifier) OneTapURL(code string) (string, error) {
	tok, err := n.tokens.Issue(code, token.ActionOneTapReschedule)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(n.settings.PublicBaseURL, "/") + "/api/one-tap-reschedule?token=" + tok, nil
}

func (n *Notifier) confirmation(ev kafka.BookingEvent) (email.Message, error) {
	oneTap, err := n.OneTapURL(ev.Code)
	if err != nil {
		return email.Message{}, err
	}
	v := n.view(ev)
	v.OneTapURL = oneTap

	html, err := render("confirmed.html", v)
	if err != nil {
		return email.Message{}, err
	}
	invite, err := n.invite(ev)
	if err != nil {
		return email.Message{}, err
	}

	return email.Message{
		To:      n.recipients(ev),
		Subject: "Booking Confirmed • " + ev.Code,
		HTML:    html,
		Text:    fmt.Sprintf("Manage: %s\nOne-tap reschedule: %s", v.ManageURL, oneTap),
		Attachments: []email.Attachment{{
			Name:        ev.Code + ".ics",
			ContentType: "text/calendar",
			Data:        invite,
		}},
	}, nil
}

func (n *Notifier) rescheduled(ev kafka.BookingEvent) (email.Message, error) {
	v := n.view(ev)
	html, err := render("rescheduled.html", v)
	if err != nil {
		return email.Message{}, err
	}
	invite, err := n.invite(ev)
	if err != nil {
		return email.Message{}, err
	}
	return email.Message{
		To:      n.recipients(ev),
		Subject: "Booking Rescheduled • " + ev.Code,
		HTML:    html,
		Text:    fmt.Sprintf("New time: %s\nManage: %s", v.When, v.ManageURL),
		Attachments: []email.Attachment{{
			Name:        ev.Code + ".ics",
			ContentType: "text/calendar",
			Data:        invite,
		}},
	}, nil
}

func (n *Notifier) cancelled(ev kafka.BookingEvent) (email.Message, error) {
	v := n.view(ev)
	html, err := render("cancelled.html", v)
	if err != nil {
		return email.Message{}, err
	}
	return email.Message{
		To:      n.recipients(ev),
		Subject: "Booking Cancelled • " + ev.Code,
		HTML:    html,
		Text:    fmt.Sprintf("Your session %s on %s has been cancelled.", ev.Code, v.When),
	}, nil
}

func (n *Notifier) view(ev kafka.BookingEvent) view {
	return view{
		Code:      ev.Code,
		When:      ev.Start.In(n.settings.Location).Format(whenLayout),
		ManageURL: n.ManageURL(ev.Code),
	}
}

func (n *Notifier) invite(ev kafka.BookingEvent) ([]byte, error) {
	return ics.Build(ics.Invite{
		UID:            ev.Code + "@fieldbooking",
		Start:          ev.Start,
		End:            ev.End,
		Stamp:          ev.OccurredAt,
		Title:          n.settings.Brand + " – Session",
		Description:    fmt.Sprintf("Confirmation %s\nManage: %s", ev.Code, n.ManageURL(ev.Code)),
		Location:       ev.Address,
		OrganizerName:  n.settings.FromName,
		OrganizerEmail: n.settings.FromEmail,
	})
}

func (n *Notifier) recipients(ev kafka.BookingEvent) []string {
	var to []string
	for _, addr := range []string{ev.ClientEmail, n.settings.AdminEmail} {
		if addr = strings.TrimSpace(addr); addr != "" {
			to = append(to, addr)
		}
	}
	return to
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
